package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vibesql/vibelite/internal/config"
	"github.com/vibesql/vibelite/internal/database"
	"github.com/vibesql/vibelite/internal/query"
)

type response struct {
	Success       bool             `json:"success"`
	Mode          string           `json:"mode"`
	Columns       []string         `json:"columns"`
	Rows          []map[string]any `json:"rows"`
	RowCount      int              `json:"rowCount"`
	RowsAffected  *int64           `json:"rowsAffected"`
	ExecutionTime float64          `json:"executionTime"`
	Error         *ErrorDetail     `json:"error"`
}

func newTestHandler(t *testing.T) (*Handler, string) {
	t.Helper()
	db := filepath.Join(t.TempDir(), "handler.db")
	limits := config.Default().Limits
	executor := query.NewExecutor(query.WithMaxRows(limits.MaxResultRows))
	return NewHandler(executor, db, limits, zerolog.Nop()), db
}

func post(t *testing.T, h *Handler, body string) (*httptest.ResponseRecorder, response) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/query", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	h.HandleQuery(w, req)

	var resp response
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp), "body: %s", w.Body.String())
	return w, resp
}

func mustPost(t *testing.T, h *Handler, body string) response {
	t.Helper()
	w, resp := post(t, h, body)
	require.Equal(t, http.StatusOK, w.Code, "error: %+v", resp.Error)
	require.True(t, resp.Success)
	return resp
}

func TestHandleQuery_Success(t *testing.T) {
	h, _ := newTestHandler(t)

	w, resp := post(t, h, `{"sql": "SELECT 1 AS test"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.True(t, resp.Success)
	assert.Equal(t, "single", resp.Mode)
	assert.Equal(t, 1, resp.RowCount)
	require.Len(t, resp.Rows, 1)
	assert.Equal(t, float64(1), resp.Rows[0]["test"])
	assert.Nil(t, resp.Error)
}

func TestHandleQuery_CRUDWorkflow(t *testing.T) {
	h, _ := newTestHandler(t)

	resp := mustPost(t, h, `{"sql": "CREATE TABLE users(id INTEGER PRIMARY KEY, name TEXT NOT NULL)"}`)
	assert.Nil(t, resp.Rows)

	mustPost(t, h, `{"sql": "INSERT INTO users(name) VALUES (?)", "params": ["alice"]}`)

	resp = mustPost(t, h, `{"sql": "INSERT INTO users(name) VALUES (?)", "batch": [["bob"], ["carol"]]}`)
	assert.Equal(t, "batch", resp.Mode)
	require.NotNil(t, resp.RowsAffected)
	assert.Equal(t, int64(2), *resp.RowsAffected)

	mustPost(t, h, `{"sql": "UPDATE users SET name = ? WHERE id = ?", "params": ["robert", 2]}`)
	mustPost(t, h, `{"sql": "DELETE FROM users WHERE name = ?", "params": ["carol"]}`)

	resp = mustPost(t, h, `{"sql": "SELECT id, name FROM users ORDER BY id"}`)
	assert.Equal(t, []string{"id", "name"}, resp.Columns)
	require.Len(t, resp.Rows, 2)
	assert.Equal(t, "alice", resp.Rows[0]["name"])
	assert.Equal(t, "robert", resp.Rows[1]["name"])
}

func TestHandleQuery_LegacyBatchShape(t *testing.T) {
	h, _ := newTestHandler(t)
	mustPost(t, h, `{"sql": "CREATE TABLE t(name TEXT)"}`)

	// a list of lists under params still selects batch mode
	resp := mustPost(t, h, `{"sql": "INSERT INTO t(name) VALUES (?)", "params": [["a"], ["b"]]}`)
	assert.Equal(t, "batch", resp.Mode)
	require.NotNil(t, resp.RowsAffected)
	assert.Equal(t, int64(2), *resp.RowsAffected)
}

func TestHandleQuery_EmptyResultSet(t *testing.T) {
	h, _ := newTestHandler(t)
	mustPost(t, h, `{"sql": "CREATE TABLE t(name TEXT)"}`)

	w := httptest.NewRecorder()
	h.HandleQuery(w, httptest.NewRequest(http.MethodPost, "/v1/query", strings.NewReader(`{"sql": "SELECT * FROM t"}`)))
	require.Equal(t, http.StatusOK, w.Code)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &raw))
	assert.JSONEq(t, `[]`, string(raw["rows"]))
}

func TestHandleQuery_NamedDatabase(t *testing.T) {
	h, _ := newTestHandler(t)
	other := filepath.Join(t.TempDir(), "other.db")

	body, err := json.Marshal(QueryRequest{Database: other, SQL: "CREATE TABLE elsewhere(x)"})
	require.NoError(t, err)
	mustPost(t, h, string(body))

	_, resp := post(t, h, `{"sql": "SELECT * FROM elsewhere"}`)
	assert.False(t, resp.Success)

	body, err = json.Marshal(QueryRequest{Database: other, SQL: "SELECT * FROM elsewhere"})
	require.NoError(t, err)
	mustPost(t, h, string(body))
}

func TestHandleQuery_Errors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{"invalid json", `{"sql": `, http.StatusBadRequest, database.ErrorCodeInvalidRequest},
		{"missing sql", `{}`, http.StatusBadRequest, database.ErrorCodeMissingRequiredField},
		{"empty sql", `{"sql": ""}`, http.StatusBadRequest, database.ErrorCodeMissingRequiredField},
		{"params and batch", `{"sql": "SELECT 1", "params": [1], "batch": [[1]]}`, http.StatusBadRequest, database.ErrorCodeInvalidRequest},
		{"params not a list", `{"sql": "SELECT ?", "params": {"a": 1}}`, http.StatusBadRequest, database.ErrorCodeInvalidRequest},
		{"batch not nested", `{"sql": "SELECT ?", "batch": [1, 2]}`, http.StatusBadRequest, database.ErrorCodeInvalidRequest},
		{"unknown keyword", `{"sql": "FROBNICATE t"}`, http.StatusBadRequest, database.ErrorCodeInvalidSQL},
		{"syntax error", `{"sql": "SELECT FROM WHERE"}`, http.StatusBadRequest, database.ErrorCodeInvalidSQL},
		{"unsafe update", `{"sql": "UPDATE t SET x = 1"}`, http.StatusBadRequest, database.ErrorCodeUnsafeQuery},
		{"unsafe delete", `{"sql": "DELETE FROM t"}`, http.StatusBadRequest, database.ErrorCodeUnsafeQuery},
		{"query too large", `{"sql": "SELECT '` + strings.Repeat("x", 11*1024) + `'"}`, http.StatusRequestEntityTooLarge, database.ErrorCodeQueryTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := newTestHandler(t)
			w, resp := post(t, h, tt.body)
			assert.Equal(t, tt.status, w.Code)
			assert.False(t, resp.Success)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
			assert.NotEmpty(t, resp.Error.Message)
			assert.Nil(t, resp.Rows)
		})
	}
}

func TestHandleQuery_ConstraintViolation(t *testing.T) {
	h, _ := newTestHandler(t)
	mustPost(t, h, `{"sql": "CREATE TABLE parent(id INTEGER PRIMARY KEY)"}`)
	mustPost(t, h, `{"sql": "CREATE TABLE child(parent_id INTEGER REFERENCES parent(id))"}`)

	w, resp := post(t, h, `{"sql": "INSERT INTO child VALUES (?)", "params": [42]}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, database.ErrorCodeConstraintViolation, resp.Error.Code)
}

func TestHandleQuery_MethodNotAllowed(t *testing.T) {
	h, _ := newTestHandler(t)

	for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete} {
		w := httptest.NewRecorder()
		h.HandleQuery(w, httptest.NewRequest(method, "/v1/query", nil))
		assert.Equal(t, http.StatusMethodNotAllowed, w.Code, method)
		assert.Contains(t, w.Body.String(), database.ErrorCodeMethodNotAllowed)
	}
}

func TestHandleQuery_BodyTooLarge(t *testing.T) {
	db := filepath.Join(t.TempDir(), "handler.db")
	limits := config.Default().Limits
	limits.MaxBodyBytes = 64
	h := NewHandler(query.NewExecutor(), db, limits, zerolog.Nop())

	w, resp := post(t, h, `{"sql": "SELECT '`+strings.Repeat("x", 128)+`'"}`)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "Request body too large", resp.Error.Message)
}

func TestHandleQuery_ResultTooLarge(t *testing.T) {
	db := filepath.Join(t.TempDir(), "handler.db")
	limits := config.Default().Limits
	h := NewHandler(query.NewExecutor(query.WithMaxRows(2)), db, limits, zerolog.Nop())

	mustPost(t, h, `{"sql": "CREATE TABLE t(x)"}`)
	mustPost(t, h, `{"sql": "INSERT INTO t VALUES (?)", "batch": [[1], [2], [3]]}`)

	w, resp := post(t, h, `{"sql": "SELECT x FROM t"}`)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Equal(t, database.ErrorCodeResultTooLarge, resp.Error.Code)
}

func TestHandleQuery_Timeout(t *testing.T) {
	db := filepath.Join(t.TempDir(), "handler.db")
	limits := config.Default().Limits
	limits.QueryTimeout = time.Nanosecond
	h := NewHandler(query.NewExecutor(), db, limits, zerolog.Nop())

	w, resp := post(t, h, `{"sql": "WITH RECURSIVE c(n) AS (SELECT 1 UNION ALL SELECT n + 1 FROM c) SELECT count(*) FROM c"}`)
	assert.Equal(t, http.StatusRequestTimeout, w.Code)
	assert.Equal(t, database.ErrorCodeQueryTimeout, resp.Error.Code)
}

func TestHandleQuery_LogsRequests(t *testing.T) {
	var buf bytes.Buffer
	db := filepath.Join(t.TempDir(), "handler.db")
	h := NewHandler(query.NewExecutor(), db, config.Default().Limits, zerolog.New(&buf))

	mustPost(t, h, `{"sql": "SELECT 1"}`)
	assert.Contains(t, buf.String(), `"message":"query succeeded"`)

	post(t, h, `{"sql": "DELETE FROM t"}`)
	assert.Contains(t, buf.String(), `"code":"UNSAFE_QUERY"`)
}

func TestHandleHealth(t *testing.T) {
	h, _ := newTestHandler(t)

	w := httptest.NewRecorder()
	h.HandleHealth(w, httptest.NewRequest(http.MethodGet, "/v1/health", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var health HealthResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&health))
	assert.Equal(t, "ok", health.Status)
	assert.NotEmpty(t, health.Version)

	w = httptest.NewRecorder()
	h.HandleHealth(w, httptest.NewRequest(http.MethodPost, "/v1/health", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestRegisterRoutes(t *testing.T) {
	h, _ := newTestHandler(t)
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/query", strings.NewReader(`{"sql": "SELECT 1"}`)))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/nope", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
