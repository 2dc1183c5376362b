package server

import (
	"encoding/json"
	"net/http"

	"github.com/vibesql/vibelite/internal/database"
	"github.com/vibesql/vibelite/internal/query"
	"github.com/vibesql/vibelite/internal/version"
)

// QueryRequest is the body of POST /v1/query. Params and Batch are
// mutually exclusive; Batch selects batch mode even for a single set.
type QueryRequest struct {
	Database string          `json:"database,omitempty"`
	SQL      string          `json:"sql" validate:"required"`
	Params   json.RawMessage `json:"params,omitempty" validate:"excluded_with=Batch"`
	Batch    json.RawMessage `json:"batch,omitempty"`
}

// QueryResponse represents a query response (success or error).
//
// Rows is omitted when the statement produced no row set and is an empty
// array when it produced zero rows. RowsAffected is set in batch mode only.
type QueryResponse struct {
	Success       bool         `json:"success"`
	Mode          string       `json:"mode,omitempty"`
	Columns       []string     `json:"columns,omitempty"`
	Rows          *[]query.Row `json:"rows,omitempty"`
	RowCount      int          `json:"rowCount,omitempty"`
	RowsAffected  *int64       `json:"rowsAffected,omitempty"`
	ExecutionTime float64      `json:"executionTime,omitempty"`
	Error         *ErrorDetail `json:"error,omitempty"`
}

// ErrorDetail represents error information in the response
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// NewSuccessResponse creates a successful query response
func NewSuccessResponse(result *query.Result) *QueryResponse {
	resp := &QueryResponse{
		Success:       true,
		Mode:          result.Mode.String(),
		ExecutionTime: float64(result.ExecutionTime.Microseconds()) / 1000.0,
	}

	if result.Mode == query.ModeBatch {
		affected := result.RowsAffected
		resp.RowsAffected = &affected
		return resp
	}

	if result.HasRows() {
		rows := result.Rows
		resp.Columns = result.Columns
		resp.Rows = &rows
		resp.RowCount = len(rows)
	}
	return resp
}

// NewErrorResponse creates an error response from a database error
func NewErrorResponse(err *database.Error) *QueryResponse {
	if err == nil {
		return &QueryResponse{
			Success: false,
			Error: &ErrorDetail{
				Code:    database.ErrorCodeInternalError,
				Message: "Unknown error occurred",
			},
		}
	}

	return &QueryResponse{
		Success: false,
		Error: &ErrorDetail{
			Code:    err.Code,
			Message: err.Message,
			Detail:  err.Detail,
		},
	}
}

// WriteJSON writes v as JSON with the given status
func WriteJSON(w http.ResponseWriter, statusCode int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	return json.NewEncoder(w).Encode(v)
}

// WriteSuccess writes a successful query response with 200 OK status
func WriteSuccess(w http.ResponseWriter, result *query.Result) error {
	return WriteJSON(w, http.StatusOK, NewSuccessResponse(result))
}

// WriteError writes an error response with the status matching its code
func WriteError(w http.ResponseWriter, err *database.Error) error {
	return WriteJSON(w, statusFor(err), NewErrorResponse(err))
}

func WriteHealth(w http.ResponseWriter) error {
	return WriteJSON(w, http.StatusOK, &HealthResponse{
		Status:  "ok",
		Version: version.Get().Short(),
	})
}
