package sqlite

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/ehrgate/ehrgate/internal/connector"
)

func init() {
	// modernc registers as "sqlite", which sqlx does not know by default.
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

// SQLiteConnector implements connector.Connector for SQLite databases.
type SQLiteConnector struct {
	db *sqlx.DB
}

// New creates a new SQLiteConnector.
func New() connector.Connector {
	return &SQLiteConnector{}
}

// Connect opens the SQLite database file specified in the DSN. An empty DSN
// opens a private in-memory database. Query parameters like
// ?_journal_mode=WAL are supported.
func (c *SQLiteConnector) Connect(cfg connector.ConnectionConfig) error {
	dsn := cfg.DSN
	if dsn == "" {
		dsn = ":memory:"
	}

	db, err := sqlx.Connect("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("sqlite connect: %w", err)
	}

	connector.ApplyPool(db, cfg)
	db.SetMaxOpenConns(1) // SQLite doesn't support concurrent writes

	// Enable foreign keys (off by default in SQLite).
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return fmt.Errorf("enable foreign keys: %w", err)
	}

	c.db = db
	return nil
}

// Disconnect closes the database connection.
func (c *SQLiteConnector) Disconnect() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Ping verifies the database connection is alive.
func (c *SQLiteConnector) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// DB returns the underlying sqlx.DB connection.
func (c *SQLiteConnector) DB() *sqlx.DB {
	return c.db
}

func (c *SQLiteConnector) ColumnTypes() connector.ColumnTypes {
	return connector.ColumnTypes{
		PrimaryKey: "INTEGER PRIMARY KEY AUTOINCREMENT",
		Bool:       "INTEGER",
		Timestamp:  "DATETIME",
		Float:      "REAL",
		Text:       "TEXT",
	}
}

func (c *SQLiteConnector) CreateIndexSQL(name, table string, columns ...string) string {
	return fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s(%s)", name, table, strings.Join(columns, ", "))
}

// IsIgnorableMigrationError treats "duplicate column" from ALTER TABLE ADD
// COLUMN as a no-op so migrations stay idempotent.
func (c *SQLiteConnector) IsIgnorableMigrationError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "duplicate column")
}

// DriverName returns the driver identifier for SQLite.
func (c *SQLiteConnector) DriverName() string { return "sqlite" }

// SupportsReturning reports false; inserts read the id via LastInsertId.
func (c *SQLiteConnector) SupportsReturning() bool { return false }

// IsUniqueViolation reports whether err is a UNIQUE or PRIMARY KEY
// constraint failure.
func (c *SQLiteConnector) IsUniqueViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	case sqlite3.SQLITE_CONSTRAINT:
		// primary code only, when extended result codes are off
		return strings.Contains(se.Error(), "UNIQUE constraint failed")
	}
	return false
}
