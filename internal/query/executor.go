package query

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/vibesql/vibelite/internal/database"
)

// Result is the outcome of one Execute call.
//
// In single mode Rows holds every row the statement produced, in engine
// order, or is nil when the statement produces no columns (INSERT, UPDATE,
// DELETE, DDL). In batch mode Rows is nil and RowsAffected is the total
// across all parameter sets.
type Result struct {
	Mode          Mode
	Columns       []string
	Rows          []Row
	RowCount      int
	RowsAffected  int64
	ExecutionTime time.Duration
}

// HasRows reports whether the statement produced a row set (possibly empty).
func (r *Result) HasRows() bool {
	return r.Rows != nil
}

type Executor struct {
	maxRows     int
	busyTimeout time.Duration
	log         zerolog.Logger
}

type Option func(*Executor)

// WithLogger sets the logger for executor and session events.
func WithLogger(log zerolog.Logger) Option {
	return func(e *Executor) { e.log = log }
}

// WithMaxRows caps the rows a single-mode read may return. Zero or less
// disables the cap.
func WithMaxRows(n int) Option {
	return func(e *Executor) { e.maxRows = n }
}

// WithBusyTimeout sets how long SQLite waits for a locked database file.
func WithBusyTimeout(d time.Duration) Option {
	return func(e *Executor) { e.busyTimeout = d }
}

func NewExecutor(opts ...Option) *Executor {
	e := &Executor{
		maxRows:     MaxResultRows,
		busyTimeout: database.DefaultBusyTimeout,
		log:         zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

var defaultExecutor = NewExecutor(WithMaxRows(0))

// Execute runs sql against the database named by identifier with the
// package's default executor, which has no row cap.
func Execute(ctx context.Context, identifier, sql string, params Params) (*Result, error) {
	return defaultExecutor.Execute(ctx, identifier, sql, params)
}

// Execute acquires a session on identifier, runs sql with params, commits
// and releases the session. Nothing is committed when the statement fails.
func (e *Executor) Execute(ctx context.Context, identifier, sql string, params Params) (result *Result, err error) {
	startTime := time.Now()

	sess, err := database.Open(ctx, identifier, database.Options{
		BusyTimeout: e.busyTimeout,
		Logger:      &e.log,
	})
	if err != nil {
		return nil, err
	}
	defer func() {
		if err = sess.Release(err); err != nil {
			result = nil
			return
		}
		result.ExecutionTime = time.Since(startTime)
		e.log.Debug().
			Str("database", sess.Identifier().String()).
			Stringer("mode", result.Mode).
			Int("rows", result.RowCount).
			Int64("rows_affected", result.RowsAffected).
			Dur("elapsed", result.ExecutionTime).
			Msg("query executed")
	}()

	return e.Run(ctx, sess, sql, params)
}

// Run executes one statement inside an already acquired session. It neither
// commits nor releases; the caller owns sess.
func (e *Executor) Run(ctx context.Context, sess *database.Session, sql string, params Params) (*Result, error) {
	startTime := time.Now()

	if params == nil {
		params = Single()
	}

	var result *Result
	var err error
	switch p := params.(type) {
	case BatchParams:
		result, err = e.runBatch(ctx, sess.Tx(), sql, p)
	case SingleParams:
		result, err = e.runSingle(ctx, sess.Tx(), sql, p)
	default:
		return nil, database.NewError(database.ErrorCodeInvalidRequest, "Invalid parameters", "unsupported parameter type")
	}
	if err != nil {
		e.log.Debug().Err(err).Stringer("mode", params.Mode()).Msg("query failed")
		return nil, err
	}

	result.ExecutionTime = time.Since(startTime)
	return result, nil
}

func (e *Executor) runBatch(ctx context.Context, tx *sql.Tx, query string, sets BatchParams) (*Result, error) {
	result := &Result{Mode: ModeBatch}
	if len(sets) == 0 {
		return result, nil
	}

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return nil, database.TranslateError(err)
	}
	defer stmt.Close()

	for _, args := range sets {
		res, err := stmt.ExecContext(ctx, args...)
		if err != nil {
			return nil, database.TranslateError(err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return nil, database.TranslateError(err)
		}
		result.RowsAffected += n
	}

	return result, nil
}

func (e *Executor) runSingle(ctx context.Context, tx *sql.Tx, query string, args SingleParams) (*Result, error) {
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, database.TranslateError(err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, database.TranslateError(err)
	}

	if len(columns) == 0 {
		// Statements without a row set still have to be stepped to run.
		for rows.Next() {
		}
		if err := rows.Err(); err != nil {
			return nil, database.TranslateError(err)
		}
		return &Result{Mode: ModeSingle}, nil
	}

	parsed, err := e.parseRows(rows, columns)
	if err != nil {
		return nil, err
	}

	return &Result{
		Mode:     ModeSingle,
		Columns:  columns,
		Rows:     parsed,
		RowCount: len(parsed),
	}, nil
}

func (e *Executor) parseRows(rows *sql.Rows, columns []string) ([]Row, error) {
	binary := make([]bool, len(columns))
	if types, err := rows.ColumnTypes(); err == nil {
		for i, ct := range types {
			binary[i] = isBinaryType(ct.DatabaseTypeName())
		}
	}

	results := []Row{}

	for rows.Next() {
		if err := CheckRowLimit(len(results), e.maxRows); err != nil {
			return nil, err
		}

		values := make([]any, len(columns))
		valuePtrs := make([]any, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}

		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, database.TranslateError(err)
		}

		for i, val := range values {
			if b, ok := val.([]byte); ok && !binary[i] {
				values[i] = string(b)
			}
		}

		results = append(results, NewRow(columns, values))
	}

	if err := rows.Err(); err != nil {
		return nil, database.TranslateError(err)
	}

	return results, nil
}

func isBinaryType(name string) bool {
	switch strings.ToUpper(name) {
	case "BLOB", "BYTEA", "BINARY", "VARBINARY", "TINYBLOB", "MEDIUMBLOB", "LONGBLOB":
		return true
	default:
		return false
	}
}
