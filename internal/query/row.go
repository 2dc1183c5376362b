package query

import (
	"bytes"
	"encoding/json"
)

// Row is one result row. Values keep the engine's column order and can be
// read by position or by column name.
type Row struct {
	columns []string
	values  []any
}

// NewRow pairs column names with values. Both slices are retained.
func NewRow(columns []string, values []any) Row {
	return Row{columns: columns, values: values}
}

// Len returns the number of columns in the row.
func (r Row) Len() int {
	return len(r.values)
}

// Columns returns the column names in order.
func (r Row) Columns() []string {
	return r.columns
}

// Values returns the values in column order.
func (r Row) Values() []any {
	return r.values
}

// Value returns the value at position i.
func (r Row) Value(i int) any {
	return r.values[i]
}

// Get returns the value of the first column called name.
func (r Row) Get(name string) (any, bool) {
	for i, col := range r.columns {
		if col == name {
			return r.values[i], true
		}
	}
	return nil, false
}

// Map returns the row keyed by column name. Later duplicate names win.
func (r Row) Map() map[string]any {
	m := make(map[string]any, len(r.columns))
	for i, col := range r.columns {
		m[col] = r.values[i]
	}
	return m
}

// MarshalJSON encodes the row as an object whose keys keep column order.
func (r Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, col := range r.columns {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(col)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(r.values[i])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
