package database

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Dialect describes how to reach one kind of database engine and what has to
// run on a fresh connection before the session's transaction begins.
type Dialect struct {
	Name         string
	Driver       string
	SessionSetup []string
}

var (
	// SQLite enforces foreign keys only when asked, per connection.
	SQLite = Dialect{
		Name:         "sqlite",
		Driver:       "sqlite3",
		SessionSetup: []string{"PRAGMA foreign_keys = ON"},
	}

	Postgres = Dialect{
		Name:   "postgres",
		Driver: "postgres",
	}

	MySQL = Dialect{
		Name:         "mysql",
		Driver:       "mysql",
		SessionSetup: []string{"SET FOREIGN_KEY_CHECKS = 1"},
	}
)

// Identifier is a parsed database identifier: the dialect it selects and the
// driver-specific DSN to open.
type Identifier struct {
	Raw     string
	Dialect Dialect
	DSN     string
}

// String hides credentials so identifiers can be logged.
func (id Identifier) String() string {
	switch id.Dialect.Name {
	case Postgres.Name:
		if u, err := url.Parse(id.Raw); err == nil {
			return u.Redacted()
		}
		return Postgres.Name
	case MySQL.Name:
		cfg, err := mysql.ParseDSN(id.DSN)
		if err != nil {
			return MySQL.Name
		}
		return fmt.Sprintf("mysql://%s@%s(%s)/%s", cfg.User, cfg.Net, cfg.Addr, cfg.DBName)
	default:
		return id.Raw
	}
}

// ParseIdentifier selects a dialect from a database identifier. Anything
// without a recognised scheme is a SQLite file path (or :memory:).
func ParseIdentifier(raw string, busyTimeout time.Duration) (Identifier, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Identifier{}, NewError(
			ErrorCodeMissingRequiredField,
			"Missing required field: database",
			"A database identifier (file path or URL) is required",
		)
	}

	switch {
	case strings.HasPrefix(trimmed, "postgres://"), strings.HasPrefix(trimmed, "postgresql://"):
		if _, err := pq.ParseURL(trimmed); err != nil {
			return Identifier{}, wrapError(ErrorCodeInvalidRequest, "Invalid PostgreSQL URL", err)
		}
		return Identifier{Raw: trimmed, Dialect: Postgres, DSN: trimmed}, nil

	case strings.HasPrefix(trimmed, "mysql://"):
		cfg, err := mysql.ParseDSN(strings.TrimPrefix(trimmed, "mysql://"))
		if err != nil {
			return Identifier{}, wrapError(ErrorCodeInvalidRequest, "Invalid MySQL DSN", err)
		}
		cfg.ParseTime = true
		return Identifier{Raw: trimmed, Dialect: MySQL, DSN: cfg.FormatDSN()}, nil

	default:
		return Identifier{Raw: trimmed, Dialect: SQLite, DSN: sqliteDSN(trimmed, busyTimeout)}, nil
	}
}

func sqliteDSN(path string, busyTimeout time.Duration) string {
	if busyTimeout <= 0 {
		return path
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%s_busy_timeout=%d", path, sep, busyTimeout.Milliseconds())
}
