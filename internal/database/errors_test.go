package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranslateError_NilError(t *testing.T) {
	assert.Nil(t, TranslateError(nil))
}

func TestTranslateError_PassesThroughError(t *testing.T) {
	original := NewError(ErrorCodeInvalidSQL, "Test message", "Test detail")
	wrapped := fmt.Errorf("outer: %w", original)

	result := TranslateError(wrapped)
	assert.Same(t, original, result)
}

func TestTranslateError_Context(t *testing.T) {
	result := TranslateError(context.DeadlineExceeded)
	assert.Equal(t, ErrorCodeQueryTimeout, result.Code)
	assert.Equal(t, "Query execution timeout", result.Message)

	result = TranslateError(fmt.Errorf("query: %w", context.Canceled))
	assert.Equal(t, ErrorCodeQueryTimeout, result.Code)
	assert.Equal(t, "Query execution canceled", result.Message)
}

func TestTranslateError_ConnDone(t *testing.T) {
	result := TranslateError(sql.ErrConnDone)
	assert.Equal(t, ErrorCodeDatabaseUnavailable, result.Code)
}

func TestTranslateError_SQLite(t *testing.T) {
	tests := []struct {
		name    string
		err     sqlite3.Error
		code    string
		message string
	}{
		{
			name:    "foreign key",
			err:     sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintForeignKey},
			code:    ErrorCodeConstraintViolation,
			message: "Foreign key constraint failed",
		},
		{
			name:    "unique",
			err:     sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintUnique},
			code:    ErrorCodeConstraintViolation,
			message: "Unique constraint failed",
		},
		{
			name:    "primary key",
			err:     sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintPrimaryKey},
			code:    ErrorCodeConstraintViolation,
			message: "Unique constraint failed",
		},
		{
			name:    "not null",
			err:     sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintNotNull},
			code:    ErrorCodeConstraintViolation,
			message: "Not null constraint failed",
		},
		{
			name:    "syntax",
			err:     sqlite3.Error{Code: sqlite3.ErrError},
			code:    ErrorCodeInvalidSQL,
			message: "Invalid SQL syntax",
		},
		{
			name:    "busy",
			err:     sqlite3.Error{Code: sqlite3.ErrBusy},
			code:    ErrorCodeDatabaseBusy,
			message: "Database is locked",
		},
		{
			name:    "locked",
			err:     sqlite3.Error{Code: sqlite3.ErrLocked},
			code:    ErrorCodeDatabaseBusy,
			message: "Database is locked",
		},
		{
			name:    "cannot open",
			err:     sqlite3.Error{Code: sqlite3.ErrCantOpen},
			code:    ErrorCodeDatabaseUnavailable,
			message: "Database is unavailable",
		},
		{
			name:    "read only",
			err:     sqlite3.Error{Code: sqlite3.ErrReadonly},
			code:    ErrorCodeDatabaseUnavailable,
			message: "Database is unavailable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := TranslateError(tt.err)
			require.NotNil(t, result)
			assert.Equal(t, tt.code, result.Code)
			assert.Equal(t, tt.message, result.Message)

			var liteErr sqlite3.Error
			assert.True(t, errors.As(result, &liteErr), "driver error should stay reachable")
		})
	}
}

func TestTranslateError_PostgreSQL(t *testing.T) {
	tests := []struct {
		sqlState string
		code     string
	}{
		{"42601", ErrorCodeInvalidSQL},
		{"42P01", ErrorCodeInvalidSQL},
		{"23503", ErrorCodeConstraintViolation},
		{"23505", ErrorCodeConstraintViolation},
		{"57014", ErrorCodeQueryTimeout},
		{"40P01", ErrorCodeDatabaseBusy},
		{"08006", ErrorCodeDatabaseUnavailable},
		{"XX000", ErrorCodeInternalError},
	}

	for _, tt := range tests {
		t.Run(tt.sqlState, func(t *testing.T) {
			pqErr := &pq.Error{
				Code:    pq.ErrorCode(tt.sqlState),
				Message: "boom",
			}
			result := TranslateError(pqErr)
			assert.Equal(t, tt.code, result.Code)
			assert.Contains(t, result.Detail, "PostgreSQL error: boom")
		})
	}
}

func TestTranslateError_PostgreSQLDetail(t *testing.T) {
	pqErr := &pq.Error{
		Code:       "23503",
		Message:    "insert or update on table \"orders\" violates foreign key constraint",
		Detail:     "Key (user_id)=(7) is not present in table \"users\".",
		Constraint: "orders_user_id_fkey",
	}

	result := TranslateError(pqErr)
	assert.Equal(t, "Constraint failed", result.Message)
	assert.Contains(t, result.Detail, "Detail: Key (user_id)=(7)")
	assert.Contains(t, result.Detail, "Constraint: orders_user_id_fkey")
}

func TestTranslateError_MySQL(t *testing.T) {
	tests := []struct {
		number uint16
		code   string
	}{
		{1064, ErrorCodeInvalidSQL},
		{1452, ErrorCodeConstraintViolation},
		{1062, ErrorCodeConstraintViolation},
		{1213, ErrorCodeDatabaseBusy},
		{1040, ErrorCodeDatabaseUnavailable},
		{9999, ErrorCodeInternalError},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.number), func(t *testing.T) {
			result := TranslateError(&mysql.MySQLError{Number: tt.number, Message: "boom"})
			assert.Equal(t, tt.code, result.Code)
			assert.Equal(t, fmt.Sprintf("MySQL error %d: boom", tt.number), result.Detail)
		})
	}
}

func TestTranslateError_ArgumentMismatch(t *testing.T) {
	result := TranslateError(errors.New("sql: expected 1 arguments, got 2"))
	assert.Equal(t, ErrorCodeInvalidSQL, result.Code)
	assert.Equal(t, "Parameter mismatch", result.Message)
}

func TestTranslateError_Unknown(t *testing.T) {
	result := TranslateError(errors.New("something odd"))
	assert.Equal(t, ErrorCodeInternalError, result.Code)
	assert.Equal(t, "something odd", result.Detail)
}

func TestErrCode(t *testing.T) {
	assert.Equal(t, ErrorCodeUnsafeQuery, ErrCode(fmt.Errorf("wrapped: %w", NewError(ErrorCodeUnsafeQuery, "m", ""))))
	assert.Equal(t, ErrorCodeInternalError, ErrCode(errors.New("plain")))
	assert.True(t, IsConstraintViolation(NewError(ErrorCodeConstraintViolation, "m", "")))
	assert.False(t, IsConstraintViolation(nil))
}

func TestError_Error(t *testing.T) {
	assert.Equal(t, "INVALID_SQL: Invalid SQL syntax (near \"SELCT\")",
		NewError(ErrorCodeInvalidSQL, "Invalid SQL syntax", "near \"SELCT\"").Error())
	assert.Equal(t, "QUERY_TIMEOUT: Query execution timeout",
		NewError(ErrorCodeQueryTimeout, "Query execution timeout", "").Error())
}

func TestHTTPStatus(t *testing.T) {
	tests := map[string]int{
		ErrorCodeInvalidSQL:           400,
		ErrorCodeInvalidRequest:       400,
		ErrorCodeMissingRequiredField: 400,
		ErrorCodeUnsafeQuery:          400,
		ErrorCodeMethodNotAllowed:     405,
		ErrorCodeQueryTimeout:         408,
		ErrorCodeConstraintViolation:  409,
		ErrorCodeDatabaseBusy:         409,
		ErrorCodeQueryTooLarge:        413,
		ErrorCodeResultTooLarge:       413,
		ErrorCodeDatabaseUnavailable:  503,
		ErrorCodeInternalError:        500,
		"SOMETHING_ELSE":              500,
	}

	for code, want := range tests {
		assert.Equal(t, want, HTTPStatus(code), code)
	}
}
