package query

import (
	"fmt"
	"strings"

	"github.com/vibesql/vibelite/internal/database"
)

const (
	// MaxQuerySize is the default maximum SQL query length (10KB)
	MaxQuerySize = 10 * 1024
)

// statementKeywords are the leading keywords accepted by ValidateQuery.
var statementKeywords = []string{
	"SELECT", "INSERT", "UPDATE", "DELETE", "REPLACE", "UPSERT",
	"CREATE", "DROP", "ALTER", "TRUNCATE",
	"WITH", "VALUES", "PRAGMA", "EXPLAIN",
}

// ValidateQuery checks a SQL query for basic requirements before it reaches
// the engine: non-empty, at most maxSize bytes (zero means MaxQuerySize) and
// starting with a known statement keyword. Everything else is left to the
// engine's own parser.
func ValidateQuery(sql string, maxSize int) error {
	if maxSize <= 0 {
		maxSize = MaxQuerySize
	}

	trimmed := strings.TrimSpace(sql)
	if trimmed == "" {
		return database.NewError(
			database.ErrorCodeMissingRequiredField,
			"Missing required field",
			"The 'sql' field is required and cannot be empty",
		)
	}

	if len(sql) > maxSize {
		return database.NewError(
			database.ErrorCodeQueryTooLarge,
			"Query too large",
			fmt.Sprintf("Query size (%d bytes) exceeds maximum allowed size (%d bytes)", len(sql), maxSize),
		)
	}

	verb := leadingKeyword(trimmed)
	for _, keyword := range statementKeywords {
		if verb == keyword {
			return nil
		}
	}

	return database.NewError(
		database.ErrorCodeInvalidSQL,
		"Invalid SQL syntax",
		"Query must start with a valid SQL keyword ("+strings.Join(statementKeywords, ", ")+")",
	)
}

// leadingKeyword returns the first word of sql, upper-cased, ignoring
// comments.
func leadingKeyword(sql string) string {
	stripped := strings.TrimSpace(removeComments(sql))
	end := strings.IndexFunc(stripped, func(r rune) bool {
		return !(r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'))
	})
	if end == -1 {
		end = len(stripped)
	}
	return strings.ToUpper(stripped[:end])
}
