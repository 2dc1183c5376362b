package query

import "context"

// QueryExecutor defines the interface for executing SQL queries
type QueryExecutor interface {
	Execute(ctx context.Context, identifier, sql string, params Params) (*Result, error)
}

// Ensure Executor implements QueryExecutor
var _ QueryExecutor = (*Executor)(nil)
