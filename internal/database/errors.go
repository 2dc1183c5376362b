package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

// Error codes
const (
	ErrorCodeInvalidSQL           = "INVALID_SQL"
	ErrorCodeInvalidRequest       = "INVALID_REQUEST"
	ErrorCodeMissingRequiredField = "MISSING_REQUIRED_FIELD"
	ErrorCodeMethodNotAllowed     = "METHOD_NOT_ALLOWED"
	ErrorCodeUnsafeQuery          = "UNSAFE_QUERY"
	ErrorCodeQueryTimeout         = "QUERY_TIMEOUT"
	ErrorCodeQueryTooLarge        = "QUERY_TOO_LARGE"
	ErrorCodeResultTooLarge       = "RESULT_TOO_LARGE"
	ErrorCodeConstraintViolation  = "CONSTRAINT_VIOLATION"
	ErrorCodeDatabaseBusy         = "DATABASE_BUSY"
	ErrorCodeDatabaseUnavailable  = "DATABASE_UNAVAILABLE"
	ErrorCodeInternalError        = "INTERNAL_ERROR"
)

// Error is the error type returned by sessions and everything built on them.
// The driver error it was translated from stays reachable through Unwrap.
type Error struct {
	Code    string
	Message string
	Detail  string

	err error
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Detail)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.err
}

// NewError creates a new Error
func NewError(code, message, detail string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Detail:  detail,
	}
}

func wrapError(code, message string, err error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Detail:  err.Error(),
		err:     err,
	}
}

// ErrCode reports the code of the first *Error in err's chain, or
// ErrorCodeInternalError when there is none.
func ErrCode(err error) string {
	var dbErr *Error
	if errors.As(err, &dbErr) {
		return dbErr.Code
	}
	return ErrorCodeInternalError
}

// IsConstraintViolation reports whether err is a translated constraint
// failure (foreign key, unique, not null, check).
func IsConstraintViolation(err error) bool {
	return ErrCode(err) == ErrorCodeConstraintViolation
}

// TranslateError maps a driver or database/sql error onto an *Error.
// A nil error translates to nil.
func TranslateError(err error) *Error {
	if err == nil {
		return nil
	}

	var dbErr *Error
	if errors.As(err, &dbErr) {
		return dbErr
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return wrapError(ErrorCodeQueryTimeout, "Query execution timeout", err)
	}
	if errors.Is(err, context.Canceled) {
		return wrapError(ErrorCodeQueryTimeout, "Query execution canceled", err)
	}
	if errors.Is(err, sql.ErrConnDone) {
		return wrapError(ErrorCodeDatabaseUnavailable, "Database is unavailable", err)
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return translateSQLiteError(liteErr, err)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return translatePQError(pqErr, err)
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return translateMySQLError(myErr, err)
	}

	// argument mismatches surface as plain errors from database/sql or the driver
	if isArgumentMismatch(err.Error()) {
		return wrapError(ErrorCodeInvalidSQL, "Parameter mismatch", err)
	}

	return wrapError(ErrorCodeInternalError, "An internal error occurred", err)
}

var argumentMismatchMarkers = []string{
	"sql: expected ",
	"sql: converting argument",
	"not enough args to execute query",
}

func isArgumentMismatch(msg string) bool {
	for _, marker := range argumentMismatchMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

func translateSQLiteError(liteErr sqlite3.Error, err error) *Error {
	switch liteErr.Code {
	case sqlite3.ErrConstraint:
		return wrapError(ErrorCodeConstraintViolation, constraintMessage(liteErr.ExtendedCode), err)
	case sqlite3.ErrBusy, sqlite3.ErrLocked:
		return wrapError(ErrorCodeDatabaseBusy, "Database is locked", err)
	case sqlite3.ErrError, sqlite3.ErrRange, sqlite3.ErrMismatch:
		return wrapError(ErrorCodeInvalidSQL, "Invalid SQL syntax", err)
	case sqlite3.ErrTooBig:
		return wrapError(ErrorCodeQueryTooLarge, "Query too large", err)
	case sqlite3.ErrCantOpen, sqlite3.ErrNotADB, sqlite3.ErrCorrupt,
		sqlite3.ErrReadonly, sqlite3.ErrFull, sqlite3.ErrIoErr, sqlite3.ErrPerm, sqlite3.ErrAuth:
		return wrapError(ErrorCodeDatabaseUnavailable, "Database is unavailable", err)
	case sqlite3.ErrInterrupt:
		return wrapError(ErrorCodeQueryTimeout, "Query execution canceled", err)
	default:
		return wrapError(ErrorCodeInternalError, "An internal error occurred", err)
	}
}

func constraintMessage(ext sqlite3.ErrNoExtended) string {
	switch ext {
	case sqlite3.ErrConstraintForeignKey:
		return "Foreign key constraint failed"
	case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
		return "Unique constraint failed"
	case sqlite3.ErrConstraintNotNull:
		return "Not null constraint failed"
	case sqlite3.ErrConstraintCheck:
		return "Check constraint failed"
	default:
		return "Constraint failed"
	}
}

// SQLSTATE to error code mapping
var sqlStateToCode = map[string]string{
	// Syntax errors
	"42601": ErrorCodeInvalidSQL, // syntax_error
	"42703": ErrorCodeInvalidSQL, // undefined_column
	"42P01": ErrorCodeInvalidSQL, // undefined_table
	"42P02": ErrorCodeInvalidSQL, // undefined_parameter
	"42883": ErrorCodeInvalidSQL, // undefined_function
	"42804": ErrorCodeInvalidSQL, // datatype_mismatch
	"22P02": ErrorCodeInvalidSQL, // invalid_text_representation

	// Integrity constraints
	"23502": ErrorCodeConstraintViolation, // not_null_violation
	"23503": ErrorCodeConstraintViolation, // foreign_key_violation
	"23505": ErrorCodeConstraintViolation, // unique_violation
	"23514": ErrorCodeConstraintViolation, // check_violation

	"57014": ErrorCodeQueryTimeout, // query_canceled

	"40P01": ErrorCodeDatabaseBusy, // deadlock_detected
	"55P03": ErrorCodeDatabaseBusy, // lock_not_available

	"53000": ErrorCodeDatabaseUnavailable, // insufficient_resources
	"53100": ErrorCodeDatabaseUnavailable, // disk_full
	"53200": ErrorCodeDatabaseUnavailable, // out_of_memory
	"53300": ErrorCodeDatabaseUnavailable, // too_many_connections
	"08000": ErrorCodeDatabaseUnavailable, // connection_exception
	"08003": ErrorCodeDatabaseUnavailable, // connection_does_not_exist
	"08006": ErrorCodeDatabaseUnavailable, // connection_failure
	"08001": ErrorCodeDatabaseUnavailable, // sqlclient_unable_to_establish_sqlconnection
	"08004": ErrorCodeDatabaseUnavailable, // sqlserver_rejected_establishment_of_sqlconnection
}

func translatePQError(pqErr *pq.Error, err error) *Error {
	code, found := sqlStateToCode[string(pqErr.Code)]
	if !found {
		code = ErrorCodeInternalError
	}

	detail := fmt.Sprintf("PostgreSQL error: %s", pqErr.Message)
	if pqErr.Detail != "" {
		detail += fmt.Sprintf(" | Detail: %s", pqErr.Detail)
	}
	if pqErr.Hint != "" {
		detail += fmt.Sprintf(" | Hint: %s", pqErr.Hint)
	}
	if pqErr.Constraint != "" {
		detail += fmt.Sprintf(" | Constraint: %s", pqErr.Constraint)
	}

	return &Error{
		Code:    code,
		Message: messageFor(code, pqErr.Message),
		Detail:  detail,
		err:     err,
	}
}

// MySQL server error numbers
var mysqlNumberToCode = map[uint16]string{
	1064: ErrorCodeInvalidSQL, // ER_PARSE_ERROR
	1146: ErrorCodeInvalidSQL, // ER_NO_SUCH_TABLE
	1054: ErrorCodeInvalidSQL, // ER_BAD_FIELD_ERROR
	1366: ErrorCodeInvalidSQL, // ER_TRUNCATED_WRONG_VALUE_FOR_FIELD

	1048: ErrorCodeConstraintViolation, // ER_BAD_NULL_ERROR
	1062: ErrorCodeConstraintViolation, // ER_DUP_ENTRY
	1451: ErrorCodeConstraintViolation, // ER_ROW_IS_REFERENCED_2
	1452: ErrorCodeConstraintViolation, // ER_NO_REFERENCED_ROW_2
	3819: ErrorCodeConstraintViolation, // ER_CHECK_CONSTRAINT_VIOLATED

	1205: ErrorCodeDatabaseBusy, // ER_LOCK_WAIT_TIMEOUT
	1213: ErrorCodeDatabaseBusy, // ER_LOCK_DEADLOCK

	1040: ErrorCodeDatabaseUnavailable, // ER_CON_COUNT_ERROR
	1045: ErrorCodeDatabaseUnavailable, // ER_ACCESS_DENIED_ERROR
	1049: ErrorCodeDatabaseUnavailable, // ER_BAD_DB_ERROR
}

func translateMySQLError(myErr *mysql.MySQLError, err error) *Error {
	code, found := mysqlNumberToCode[myErr.Number]
	if !found {
		code = ErrorCodeInternalError
	}

	return &Error{
		Code:    code,
		Message: messageFor(code, myErr.Message),
		Detail:  fmt.Sprintf("MySQL error %d: %s", myErr.Number, myErr.Message),
		err:     err,
	}
}

func messageFor(code, fallback string) string {
	switch code {
	case ErrorCodeInvalidSQL:
		return "Invalid SQL syntax"
	case ErrorCodeConstraintViolation:
		return "Constraint failed"
	case ErrorCodeQueryTimeout:
		return "Query execution timeout"
	case ErrorCodeDatabaseBusy:
		return "Database is locked"
	case ErrorCodeDatabaseUnavailable:
		return "Database is unavailable"
	default:
		if fallback != "" {
			return fallback
		}
		return "An error occurred"
	}
}

// HTTPStatus returns the HTTP status code for an error code
func HTTPStatus(code string) int {
	switch code {
	case ErrorCodeInvalidSQL, ErrorCodeInvalidRequest, ErrorCodeMissingRequiredField, ErrorCodeUnsafeQuery:
		return 400
	case ErrorCodeMethodNotAllowed:
		return 405
	case ErrorCodeQueryTimeout:
		return 408
	case ErrorCodeConstraintViolation, ErrorCodeDatabaseBusy:
		return 409
	case ErrorCodeQueryTooLarge, ErrorCodeResultTooLarge:
		return 413
	case ErrorCodeDatabaseUnavailable:
		return 503
	default:
		return 500
	}
}
