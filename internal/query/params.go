package query

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/vibesql/vibelite/internal/database"
)

// Mode is how a statement is run against its parameters.
type Mode int

const (
	// ModeSingle runs the statement once.
	ModeSingle Mode = iota
	// ModeBatch runs the statement once per parameter set.
	ModeBatch
)

func (m Mode) String() string {
	switch m {
	case ModeSingle:
		return "single"
	case ModeBatch:
		return "batch"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Params are the bound values for one Execute call. It is either
// SingleParams or BatchParams.
type Params interface {
	Mode() Mode
	isParams()
}

// SingleParams binds one flat, ordered list of values.
type SingleParams []any

// BatchParams binds one list of values per execution.
type BatchParams [][]any

func (SingleParams) Mode() Mode { return ModeSingle }
func (BatchParams) Mode() Mode  { return ModeBatch }

func (SingleParams) isParams() {}
func (BatchParams) isParams()  {}

// Single builds single-mode params.
func Single(args ...any) SingleParams {
	return SingleParams(args)
}

// Batch builds batch-mode params. Batch() with no sets executes nothing.
func Batch(sets ...[]any) BatchParams {
	return BatchParams(sets)
}

// DetectParams picks a mode for untyped input: a non-empty list whose first
// element is itself a list is a batch, anything else is a single list of
// values. nil means no parameters. Byte slices are values, not lists.
func DetectParams(raw any) (Params, error) {
	if raw == nil {
		return Single(), nil
	}
	if p, ok := raw.(Params); ok {
		return p, nil
	}

	v := reflect.ValueOf(raw)
	if !isList(v) {
		return nil, database.NewError(
			database.ErrorCodeInvalidRequest,
			"Invalid parameters",
			fmt.Sprintf("parameters must be a list, got %T", raw),
		)
	}

	if v.Len() > 0 && isList(elem(v.Index(0))) {
		sets := make(BatchParams, v.Len())
		for i := range sets {
			set := elem(v.Index(i))
			if !isList(set) {
				return nil, database.NewError(
					database.ErrorCodeInvalidRequest,
					"Invalid parameters",
					fmt.Sprintf("batch parameter set %d is not a list", i),
				)
			}
			sets[i] = toValues(set)
		}
		return sets, nil
	}

	return SingleParams(toValues(v)), nil
}

// DecodeParams parses a JSON array and applies DetectParams to it. Empty
// input or JSON null means no parameters.
func DecodeParams(data []byte) (Params, error) {
	raw, err := decodeJSON(data)
	if err != nil {
		return nil, err
	}
	return DetectParams(raw)
}

// DecodeBatch parses a JSON array of arrays as batch params, without shape
// detection.
func DecodeBatch(data []byte) (BatchParams, error) {
	raw, err := decodeJSON(data)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return Batch(), nil
	}

	list, ok := raw.([]any)
	if !ok {
		return nil, database.NewError(database.ErrorCodeInvalidRequest, "Invalid batch", "batch must be a JSON array of arrays")
	}

	sets := make(BatchParams, len(list))
	for i, item := range list {
		set, ok := item.([]any)
		if !ok {
			return nil, database.NewError(
				database.ErrorCodeInvalidRequest,
				"Invalid batch",
				fmt.Sprintf("batch parameter set %d is not an array", i),
			)
		}
		sets[i] = set
	}
	return sets, nil
}

func decodeJSON(data []byte) (any, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, database.NewError(database.ErrorCodeInvalidRequest, "Invalid parameters", err.Error())
	}
	return normalizeJSON(raw), nil
}

// normalizeJSON turns json.Number into int64 where the number is integral so
// integer columns and comparisons see integers, float64 otherwise.
func normalizeJSON(v any) any {
	switch val := v.(type) {
	case json.Number:
		if !strings.ContainsAny(val.String(), ".eE") {
			if i, err := val.Int64(); err == nil {
				return i
			}
		}
		if f, err := val.Float64(); err == nil {
			return f
		}
		return val.String()
	case []any:
		for i := range val {
			val[i] = normalizeJSON(val[i])
		}
		return val
	case map[string]any:
		for k := range val {
			val[k] = normalizeJSON(val[k])
		}
		return val
	default:
		return v
	}
}

func elem(v reflect.Value) reflect.Value {
	for v.IsValid() && (v.Kind() == reflect.Interface || v.Kind() == reflect.Pointer) {
		if v.IsNil() {
			return reflect.Value{}
		}
		v = v.Elem()
	}
	return v
}

func isList(v reflect.Value) bool {
	if !v.IsValid() {
		return false
	}
	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		return v.Type().Elem().Kind() != reflect.Uint8
	default:
		return false
	}
}

func toValues(v reflect.Value) []any {
	out := make([]any, v.Len())
	for i := range out {
		out[i] = v.Index(i).Interface()
	}
	return out
}
