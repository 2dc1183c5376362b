// Package database acquires and releases scoped database sessions.
//
// A Session owns one dedicated connection and the transaction opened on it
// for the lifetime of a single call. Open runs the dialect's session setup
// (foreign key enforcement for SQLite) before the transaction begins, and
// Release commits or rolls back and then closes everything, on every path.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// DefaultBusyTimeout is how long SQLite waits on a locked database file
// before reporting DATABASE_BUSY.
const DefaultBusyTimeout = 5 * time.Second

// Options configure session acquisition.
type Options struct {
	BusyTimeout time.Duration
	Logger      *zerolog.Logger
}

// Session is one scoped acquisition: a private *sql.DB limited to a single
// connection, that connection, and the implicit transaction on it.
// A Session must not be shared between goroutines.
type Session struct {
	id   Identifier
	db   *sql.DB
	conn *sql.Conn
	tx   *sql.Tx
	log  zerolog.Logger

	released bool
}

// Open acquires a session on the database named by identifier.
func Open(ctx context.Context, identifier string, opts Options) (*Session, error) {
	log := zerolog.Nop()
	if opts.Logger != nil {
		log = *opts.Logger
	}

	id, err := ParseIdentifier(identifier, opts.BusyTimeout)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(id.Dialect.Driver, id.DSN)
	if err != nil {
		return nil, wrapError(ErrorCodeDatabaseUnavailable, "Failed to open database", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	conn, err := db.Conn(ctx)
	if err != nil {
		db.Close()
		return nil, unavailable(err)
	}

	for _, stmt := range id.Dialect.SessionSetup {
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			conn.Close()
			db.Close()
			return nil, TranslateError(fmt.Errorf("session setup %q: %w", stmt, err))
		}
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		conn.Close()
		db.Close()
		return nil, TranslateError(fmt.Errorf("begin transaction: %w", err))
	}

	log.Debug().Str("database", id.String()).Str("dialect", id.Dialect.Name).Msg("session opened")

	return &Session{
		id:   id,
		db:   db,
		conn: conn,
		tx:   tx,
		log:  log,
	}, nil
}

// unavailable translates a connect-time failure. Driver errors keep their own
// classification, anything else means the database could not be reached.
func unavailable(err error) *Error {
	translated := TranslateError(err)
	if translated.Code == ErrorCodeInternalError {
		return wrapError(ErrorCodeDatabaseUnavailable, "Database is unavailable", err)
	}
	return translated
}

// Tx returns the session's transaction.
func (s *Session) Tx() *sql.Tx {
	return s.tx
}

// Dialect returns the dialect the session was opened with.
func (s *Session) Dialect() Dialect {
	return s.id.Dialect
}

// Identifier returns the parsed identifier the session was opened on.
func (s *Session) Identifier() Identifier {
	return s.id
}

// Release ends the session. With a nil execErr the transaction is committed,
// otherwise it is rolled back. The connection and its pool are closed
// unconditionally afterwards.
//
// A commit on a transaction or connection that is already finished is not an
// error: the work was either committed or discarded by whoever finished it,
// and the caller keeps the result it already has. Any other commit failure is
// returned. execErr always takes precedence over errors from Release itself.
// Calling Release more than once is a no-op.
func (s *Session) Release(execErr error) error {
	if s.released {
		return execErr
	}
	s.released = true

	var err error
	if execErr == nil {
		if cerr := s.tx.Commit(); cerr != nil {
			if notCommittable(cerr) {
				s.log.Warn().Err(cerr).Str("database", s.id.String()).Msg("commit skipped: session no longer committable")
			} else {
				err = TranslateError(fmt.Errorf("commit: %w", cerr))
			}
		}
	} else {
		if rerr := s.tx.Rollback(); rerr != nil && !errors.Is(rerr, sql.ErrTxDone) {
			s.log.Error().Err(rerr).Str("database", s.id.String()).Msg("rollback failed")
		}
	}

	if cerr := s.close(); cerr != nil {
		s.log.Error().Err(cerr).Str("database", s.id.String()).Msg("failed to release session")
		if err == nil {
			err = fmt.Errorf("release session: %w", cerr)
		}
	}

	if execErr != nil {
		return execErr
	}
	return err
}

func (s *Session) close() error {
	return errors.Join(s.conn.Close(), s.db.Close())
}

func notCommittable(err error) bool {
	return errors.Is(err, sql.ErrTxDone) || errors.Is(err, sql.ErrConnDone)
}
