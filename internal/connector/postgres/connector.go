package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"

	"github.com/ehrgate/ehrgate/internal/connector"
)

// SQLSTATE codes the connector classifies.
const (
	codeUniqueViolation = "23505"
	codeDuplicateColumn = "42701"
	codeDuplicateObject = "42710"
)

// PostgresConnector implements connector.Connector for PostgreSQL databases.
type PostgresConnector struct {
	db *sqlx.DB
}

// New creates a new PostgresConnector.
func New() connector.Connector {
	return &PostgresConnector{}
}

// Connect establishes a connection to the PostgreSQL database through the
// pgx stdlib driver and applies the pool settings.
func (c *PostgresConnector) Connect(cfg connector.ConnectionConfig) error {
	db, err := sqlx.Connect("pgx", cfg.DSN)
	if err != nil {
		return fmt.Errorf("postgres connect: %w", err)
	}

	connector.ApplyPool(db, cfg)

	c.db = db
	return nil
}

// Disconnect closes the database connection pool.
func (c *PostgresConnector) Disconnect() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Ping verifies the database connection is alive.
func (c *PostgresConnector) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// DB returns the underlying sqlx.DB connection pool.
func (c *PostgresConnector) DB() *sqlx.DB {
	return c.db
}

func (c *PostgresConnector) ColumnTypes() connector.ColumnTypes {
	return connector.ColumnTypes{
		PrimaryKey: "BIGSERIAL PRIMARY KEY",
		Bool:       "BOOLEAN",
		Timestamp:  "TIMESTAMPTZ",
		Float:      "DOUBLE PRECISION",
		Text:       "TEXT",
	}
}

func (c *PostgresConnector) CreateIndexSQL(name, table string, columns ...string) string {
	return fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)", name, table, strings.Join(columns, ", "))
}

func (c *PostgresConnector) IsIgnorableMigrationError(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == codeDuplicateColumn || pgErr.Code == codeDuplicateObject
}

// DriverName returns the driver identifier for PostgreSQL.
func (c *PostgresConnector) DriverName() string { return "postgres" }

// SupportsReturning reports true; pgx does not implement LastInsertId.
func (c *PostgresConnector) SupportsReturning() bool { return true }

func (c *PostgresConnector) IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation
}
