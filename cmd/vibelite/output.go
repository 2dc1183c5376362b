package main

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/pterm/pterm"

	"github.com/vibesql/vibelite/internal/database"
	"github.com/vibesql/vibelite/internal/query"
)

var (
	errorColor   = color.New(color.FgRed, color.Bold)
	successColor = color.New(color.FgGreen, color.Bold)
	detailColor  = color.New(color.FgHiBlack)
)

func printTable(w io.Writer, result *query.Result) error {
	switch {
	case result.Mode == query.ModeBatch:
		successColor.Fprintf(w, "%d rows affected", result.RowsAffected)
	case !result.HasRows():
		successColor.Fprint(w, "OK")
	default:
		data := pterm.TableData{result.Columns}
		for _, row := range result.Rows {
			cells := make([]string, row.Len())
			for i, v := range row.Values() {
				cells[i] = formatCell(v)
			}
			data = append(data, cells)
		}

		table, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
		if err != nil {
			return fmt.Errorf("render table: %w", err)
		}
		fmt.Fprintln(w, table)
		fmt.Fprintf(w, "(%d rows)", result.RowCount)
	}

	fmt.Fprintf(w, " in %s\n", result.ExecutionTime.Round(time.Microsecond))
	return nil
}

func formatCell(v any) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return "x'" + hex.EncodeToString(val) + "'"
	case time.Time:
		return val.Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(val)
	}
}

// printError writes err as a colored line, with the code and detail of a
// database error when there is one.
func printError(w io.Writer, err error) {
	var dbErr *database.Error
	if !errors.As(err, &dbErr) {
		errorColor.Fprint(w, "Error: ")
		fmt.Fprintln(w, err)
		return
	}

	errorColor.Fprintf(w, "Error [%s]: ", dbErr.Code)
	fmt.Fprintln(w, dbErr.Message)
	if dbErr.Detail != "" {
		detailColor.Fprintf(w, "  %s\n", dbErr.Detail)
	}
}
