package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ehrgate/ehrgate/internal/connector"
	"github.com/ehrgate/ehrgate/internal/connector/sqlite"
)

// Store is the gateway's storage collaborator. It persists credentials and
// clinical records through sqlx on whichever dialect the connector speaks.
type Store struct {
	db   *sqlx.DB
	conn connector.Connector
	now  func() time.Time
}

// New wraps an open connector and applies migrations.
func New(conn connector.Connector) (*Store, error) {
	s := newStore(conn)
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return s, nil
}

// NewMemory opens a private in-memory SQLite store.
func NewMemory() (*Store, error) {
	conn := sqlite.New()
	if err := conn.Connect(connector.ConnectionConfig{Driver: "sqlite", DSN: ":memory:"}); err != nil {
		return nil, fmt.Errorf("open memory database: %w", err)
	}
	s, err := New(conn)
	if err != nil {
		conn.Disconnect()
		return nil, err
	}
	return s, nil
}

func newStore(conn connector.Connector) *Store {
	return &Store{db: conn.DB(), conn: conn, now: time.Now}
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.conn.Disconnect()
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.conn.Ping(ctx)
}

// Driver returns the dialect name (sqlite, postgres, mysql).
func (s *Store) Driver() string {
	return s.conn.DriverName()
}

// namedExecer is satisfied by both *sqlx.DB and *sqlx.Tx.
type namedExecer interface {
	PrepareNamedContext(ctx context.Context, query string) (*sqlx.NamedStmt, error)
	NamedExecContext(ctx context.Context, query string, arg interface{}) (sql.Result, error)
}

// insert runs a named INSERT and returns the new row id, using RETURNING on
// dialects that lack LastInsertId.
func (s *Store) insert(ctx context.Context, query string, arg interface{}) (int64, error) {
	return s.insertWith(ctx, s.db, query, arg)
}

func (s *Store) insertWith(ctx context.Context, q namedExecer, query string, arg interface{}) (int64, error) {
	if s.conn.SupportsReturning() {
		stmt, err := q.PrepareNamedContext(ctx, query+" RETURNING id")
		if err != nil {
			return 0, err
		}
		defer stmt.Close()

		var id int64
		if err := stmt.GetContext(ctx, &id, arg); err != nil {
			return 0, err
		}
		return id, nil
	}

	result, err := q.NamedExecContext(ctx, query, arg)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// get runs a single-row query written with ? placeholders.
func (s *Store) get(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	return s.db.GetContext(ctx, dest, s.db.Rebind(query), args...)
}

// sel runs a multi-row query written with ? placeholders.
func (s *Store) sel(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	return s.db.SelectContext(ctx, dest, s.db.Rebind(query), args...)
}

// exec runs a statement written with ? placeholders and returns rows affected.
func (s *Store) exec(ctx context.Context, query string, args ...interface{}) (int64, error) {
	result, err := s.db.ExecContext(ctx, s.db.Rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// wrap annotates err with op, translating missing rows and uniqueness
// violations into the package sentinels.
func (s *Store) wrap(op string, err error) error {
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return ErrNotFound
	case s.conn.IsUniqueViolation(err):
		return fmt.Errorf("%s: %w", op, ErrDuplicate)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

// timestamp returns the current time truncated to microseconds, the finest
// precision every supported dialect stores.
func (s *Store) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}
