package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/vibesql/vibelite/internal/query"
	"github.com/vibesql/vibelite/internal/server"
)

type execOptions struct {
	database string
	params   string
	batch    string
	format   string
}

func newExecCommand(a *app) *cobra.Command {
	opts := &execOptions{}

	cmd := &cobra.Command{
		Use:   "exec [flags] SQL",
		Short: "Execute one statement and print its result",
		Example: `  vibelite exec --db app.db "CREATE TABLE t(id INTEGER PRIMARY KEY, name TEXT)"
  vibelite exec --db app.db --params '["alice"]' "INSERT INTO t(name) VALUES (?)"
  vibelite exec --db app.db --batch '[["bob"],["carol"]]' "INSERT INTO t(name) VALUES (?)"
  vibelite exec --db app.db --format table "SELECT * FROM t"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExec(cmd, a, opts, args[0])
		},
	}

	cmd.Flags().StringVarP(&opts.database, "db", "d", "", "database identifier (defaults to database.path)")
	cmd.Flags().StringVarP(&opts.params, "params", "p", "", "JSON array of parameters; an array of arrays runs a batch")
	cmd.Flags().StringVarP(&opts.batch, "batch", "b", "", "JSON array of parameter arrays, one execution each")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "json", "output format: json or table")
	cmd.MarkFlagsMutuallyExclusive("params", "batch")

	return cmd
}

func runExec(cmd *cobra.Command, a *app, opts *execOptions, sql string) error {
	if opts.format != "json" && opts.format != "table" {
		return fmt.Errorf("unknown format %q (want json or table)", opts.format)
	}

	params, err := opts.parseParams()
	if err != nil {
		return err
	}

	identifier := opts.database
	if identifier == "" {
		identifier = a.cfg.Database.Path
	}

	executor := query.NewExecutor(
		query.WithLogger(a.log),
		query.WithBusyTimeout(a.cfg.Database.BusyTimeout),
		query.WithMaxRows(a.cfg.Limits.MaxResultRows),
	)

	result, err := executor.Execute(cmd.Context(), identifier, sql, params)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if opts.format == "table" {
		return printTable(out, result)
	}
	return printJSON(out, result)
}

func (o *execOptions) parseParams() (query.Params, error) {
	switch {
	case o.batch != "":
		return query.DecodeBatch([]byte(o.batch))
	case o.params != "":
		return query.DecodeParams([]byte(o.params))
	default:
		return query.Single(), nil
	}
}

func printJSON(w io.Writer, result *query.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(server.NewSuccessResponse(result))
}
