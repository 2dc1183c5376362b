package query

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/vibesql/vibelite/internal/database"
)

var (
	whereClausePattern = regexp.MustCompile(`\bWHERE\b`)
	cteTargetPattern   = regexp.MustCompile(`\)\s*(UPDATE|DELETE)\b`)
	singleLineComment  = regexp.MustCompile(`--[^\n]*`)
	multiLineComment   = regexp.MustCompile(`/\*[\s\S]*?\*/`)
	stringLiteral      = regexp.MustCompile(`'(?:[^']|'')*'`)
	quotedIdentifier   = regexp.MustCompile(`"(?:[^"]|"")*"`)
)

// CheckSafety rejects UPDATE and DELETE statements that have no WHERE
// clause, including ones behind a WITH clause. 'WHERE 1=1' opts in to
// touching every row.
func CheckSafety(sql string) error {
	cleaned := strings.ToUpper(removeStringLiterals(removeComments(sql)))
	verb := leadingKeyword(cleaned)

	if verb == "WITH" {
		m := cteTargetPattern.FindStringSubmatch(cleaned)
		if m == nil {
			return nil
		}
		verb = m[1]
	}

	if verb != "UPDATE" && verb != "DELETE" {
		return nil
	}

	if whereClausePattern.MatchString(cleaned) {
		return nil
	}

	return database.NewError(
		database.ErrorCodeUnsafeQuery,
		fmt.Sprintf("Unsafe query: %s without WHERE clause", verb),
		fmt.Sprintf("%s queries must include a WHERE clause. Use 'WHERE 1=1' to affect all rows explicitly", verb),
	)
}

// removeComments strips -- and /* */ comments. Nested block comments are
// not supported.
func removeComments(sql string) string {
	sql = singleLineComment.ReplaceAllString(sql, "")
	return multiLineComment.ReplaceAllString(sql, "")
}

// removeStringLiterals blanks string literals and quoted identifiers so a
// WHERE inside them is not mistaken for a clause.
func removeStringLiterals(sql string) string {
	sql = stringLiteral.ReplaceAllString(sql, "''")
	return quotedIdentifier.ReplaceAllString(sql, `""`)
}
