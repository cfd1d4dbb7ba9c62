package mysql

import (
	"context"
	"errors"
	"fmt"
	"strings"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"

	"github.com/ehrgate/ehrgate/internal/connector"
)

// Server error numbers the connector classifies.
const (
	errDupFieldName = 1060
	errDupKeyName   = 1061
	errDupEntry     = 1062
)

// MySQLConnector implements connector.Connector for MySQL databases.
type MySQLConnector struct {
	db *sqlx.DB
}

// New creates a new MySQLConnector.
func New() connector.Connector {
	return &MySQLConnector{}
}

// Connect establishes a connection to the MySQL database. The DSN must
// already carry parseTime=true (connector.SanitizeDSN adds it).
func (c *MySQLConnector) Connect(cfg connector.ConnectionConfig) error {
	db, err := sqlx.Connect("mysql", cfg.DSN)
	if err != nil {
		return fmt.Errorf("mysql connect: %w", err)
	}

	connector.ApplyPool(db, cfg)

	c.db = db
	return nil
}

// Disconnect closes the database connection pool.
func (c *MySQLConnector) Disconnect() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Ping verifies the database connection is alive.
func (c *MySQLConnector) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// DB returns the underlying sqlx.DB connection pool.
func (c *MySQLConnector) DB() *sqlx.DB {
	return c.db
}

func (c *MySQLConnector) ColumnTypes() connector.ColumnTypes {
	return connector.ColumnTypes{
		PrimaryKey: "BIGINT AUTO_INCREMENT PRIMARY KEY",
		Bool:       "BOOLEAN",
		Timestamp:  "DATETIME(6)",
		Float:      "DOUBLE",
		Text:       "TEXT",
	}
}

// CreateIndexSQL omits IF NOT EXISTS, which MySQL does not accept for
// indexes; re-running it fails with ER_DUP_KEYNAME, which is ignorable.
func (c *MySQLConnector) CreateIndexSQL(name, table string, columns ...string) string {
	return fmt.Sprintf("CREATE INDEX %s ON %s (%s)", name, table, strings.Join(columns, ", "))
}

func (c *MySQLConnector) IsIgnorableMigrationError(err error) bool {
	var myErr *mysqldriver.MySQLError
	if !errors.As(err, &myErr) {
		return false
	}
	return myErr.Number == errDupKeyName || myErr.Number == errDupFieldName
}

// DriverName returns the driver identifier for MySQL.
func (c *MySQLConnector) DriverName() string { return "mysql" }

// SupportsReturning reports false; MySQL has no RETURNING clause.
func (c *MySQLConnector) SupportsReturning() bool { return false }

func (c *MySQLConnector) IsUniqueViolation(err error) bool {
	var myErr *mysqldriver.MySQLError
	return errors.As(err, &myErr) && myErr.Number == errDupEntry
}
