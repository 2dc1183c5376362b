package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/vibesql/vibelite/internal/config"
	"github.com/vibesql/vibelite/internal/database"
	"github.com/vibesql/vibelite/internal/query"
)

type Handler struct {
	executor query.QueryExecutor
	database string
	limits   config.LimitsConfig
	validate *validator.Validate
	log      zerolog.Logger
}

// NewHandler returns a handler running statements through executor.
// defaultDatabase is used when a request does not name one.
func NewHandler(executor query.QueryExecutor, defaultDatabase string, limits config.LimitsConfig, log zerolog.Logger) *Handler {
	validate := validator.New()
	validate.RegisterTagNameFunc(jsonFieldName)

	return &Handler{
		executor: executor,
		database: defaultDatabase,
		limits:   limits,
		validate: validate,
		log:      log,
	}
}

func jsonFieldName(fld reflect.StructField) string {
	name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
	if name == "-" || name == "" {
		return fld.Name
	}
	return name
}

func (h *Handler) HandleQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.fail(w, NewMethodNotAllowedError(r.Method, r.URL.Path))
		return
	}

	req, dbErr := h.decodeRequest(w, r)
	if dbErr != nil {
		h.fail(w, dbErr)
		return
	}

	params, err := requestParams(req)
	if err != nil {
		h.fail(w, asError(err))
		return
	}

	if err := query.ValidateQuery(req.SQL, h.limits.MaxQueryBytes); err != nil {
		h.fail(w, asError(err))
		return
	}

	if err := query.CheckSafety(req.SQL); err != nil {
		h.fail(w, asError(err))
		return
	}

	identifier := req.Database
	if identifier == "" {
		identifier = h.database
	}

	ctx := r.Context()
	if h.limits.QueryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.limits.QueryTimeout)
		defer cancel()
	}

	h.log.Info().
		Str("sql", truncate(req.SQL, 100)).
		Stringer("mode", params.Mode()).
		Msg("executing query")

	result, err := h.executor.Execute(ctx, identifier, req.SQL, params)
	if err != nil {
		h.fail(w, asError(err))
		return
	}

	if err := WriteSuccess(w, result); err != nil {
		h.log.Error().Err(err).Msg("failed to write response")
		return
	}

	h.log.Info().
		Int("rows", result.RowCount).
		Int64("rows_affected", result.RowsAffected).
		Dur("elapsed", result.ExecutionTime).
		Msg("query succeeded")
}

func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		h.fail(w, NewMethodNotAllowedError(r.Method, r.URL.Path))
		return
	}
	if err := WriteHealth(w); err != nil {
		h.log.Error().Err(err).Msg("failed to write health response")
	}
}

func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/query", h.HandleQuery)
	mux.HandleFunc("/v1/health", h.HandleHealth)
}

func (h *Handler) decodeRequest(w http.ResponseWriter, r *http.Request) (*QueryRequest, *database.Error) {
	defer r.Body.Close()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.limits.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, NewBodyTooLargeError(tooLarge.Limit)
		}
		return nil, NewInternalError("Failed to read request body: " + err.Error())
	}

	var req QueryRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, NewInvalidRequestError("Invalid JSON request body")
	}
	req.Params = nullToAbsent(req.Params)
	req.Batch = nullToAbsent(req.Batch)

	if err := h.validate.Struct(&req); err != nil {
		return nil, validationError(err)
	}
	return &req, nil
}

func (h *Handler) fail(w http.ResponseWriter, err *database.Error) {
	if writeErr := WriteError(w, err); writeErr != nil {
		h.log.Error().Err(writeErr).Msg("failed to write response")
	}
	h.log.Error().
		Str("code", err.Code).
		Str("detail", err.Detail).
		Msg(err.Message)
}

func requestParams(req *QueryRequest) (query.Params, error) {
	if req.Batch != nil {
		return query.DecodeBatch(req.Batch)
	}
	if req.Params != nil {
		return query.DecodeParams(req.Params)
	}
	return query.Single(), nil
}

func nullToAbsent(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil
	}
	return raw
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
