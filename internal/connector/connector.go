package connector

import (
	"context"
	"net/url"
	"regexp"
	"strings"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
)

// ConnectionConfig holds database connection parameters.
type ConnectionConfig struct {
	Driver          string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// ColumnTypes names the dialect-specific column types used by the gateway's
// migrations. Everything else is portable VARCHAR/TEXT/INTEGER.
type ColumnTypes struct {
	PrimaryKey string // auto-incrementing integer primary key, including the PRIMARY KEY clause
	Bool       string
	Timestamp  string
	Float      string
	Text       string // unbounded, never indexed
}

// Connector is the interface every storage dialect implements. It owns the
// connection pool and answers the few questions where SQL dialects disagree.
type Connector interface {
	// Connection management
	Connect(cfg ConnectionConfig) error
	Disconnect() error
	Ping(ctx context.Context) error
	DB() *sqlx.DB

	// DDL
	ColumnTypes() ColumnTypes
	CreateIndexSQL(name, table string, columns ...string) string
	IsIgnorableMigrationError(err error) bool

	// Metadata
	DriverName() string
	SupportsReturning() bool
	IsUniqueViolation(err error) bool
}

// ApplyPool copies the pool settings in cfg onto db, skipping zero values.
func ApplyPool(db *sqlx.DB, cfg ConnectionConfig) {
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if cfg.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}
}

// SanitizeDSN ensures that URL-style postgres DSNs have their userinfo
// (especially the password) properly percent-encoded, and that MySQL DSNs use
// the tcp() wrapper and parse DATETIME columns into time.Time.
// SQLite paths are returned unchanged.
func SanitizeDSN(driver, dsn string) string {
	switch driver {
	case "postgres":
		return sanitizeURLDSN(dsn)
	case "mysql":
		return sanitizeMySQLDSN(dsn)
	default:
		return dsn
	}
}

// mysqlBareHostPort matches "user:pass@host:port/db" (no tcp() wrapper, no ()
// wrapper). We look for the last "@" followed by what looks like host:port/db.
var mysqlBareHostPort = regexp.MustCompile(`^(.+)@([^(@]+:\d+)(/.*)?$`)

// sanitizeMySQLDSN normalizes a MySQL DSN so that go-sql-driver/mysql can
// parse it correctly. The driver requires the format:
//
//	user:pass@tcp(host:port)/dbname
//
// Bare host:port and "@(host:port)" forms are rewritten. The result always
// has parseTime enabled because the store scans timestamps into time.Time.
func sanitizeMySQLDSN(dsn string) string {
	candidates := []string{dsn}

	if idx := strings.LastIndex(dsn, "@("); idx >= 0 {
		candidates = append(candidates, dsn[:idx]+"@tcp"+dsn[idx+1:])
	}
	if m := mysqlBareHostPort.FindStringSubmatch(dsn); m != nil {
		candidates = append(candidates, m[1]+"@tcp("+m[2]+")"+m[3])
	}

	for _, c := range candidates {
		cfg, err := mysqldriver.ParseDSN(c)
		if err != nil || (cfg.Net != "tcp" && cfg.Net != "unix") {
			continue
		}
		cfg.ParseTime = true
		return cfg.FormatDSN()
	}

	// Nothing worked; let the connect call give a clear error.
	return dsn
}

// sanitizeURLDSN parses a DSN that begins with a scheme (e.g.
// postgres://user:p@ss#word@host/db) and re-encodes the password so the
// URL library can parse it unambiguously.
func sanitizeURLDSN(dsn string) string {
	schemeEnd := strings.Index(dsn, "://")
	if schemeEnd < 0 {
		return dsn // key=value DSN, return as-is
	}

	scheme := dsn[:schemeEnd]
	rest := dsn[schemeEnd+3:]

	query := ""
	if qi := strings.IndexByte(rest, '?'); qi >= 0 {
		query = rest[qi:]
		rest = rest[:qi]
	}

	// Everything before the LAST '@' is userinfo.
	atIdx := strings.LastIndex(rest, "@")
	if atIdx < 0 {
		return dsn
	}

	userinfo := rest[:atIdx]
	hostpath := rest[atIdx+1:]

	user := userinfo
	pass := ""
	if ci := strings.IndexByte(userinfo, ':'); ci >= 0 {
		user = userinfo[:ci]
		pass = userinfo[ci+1:]
	}
	if u, err := url.PathUnescape(user); err == nil {
		user = u
	}
	if p, err := url.PathUnescape(pass); err == nil {
		pass = p
	}

	return scheme + "://" + escapeUserinfo(user) + ":" + escapeUserinfo(pass) + "@" + hostpath + query
}

// escapeUserinfo percent-encodes every character that could confuse the URL
// parser, spaces included.
func escapeUserinfo(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// RedactDSN returns dsn with its password masked, for logs and display.
// Key=value postgres DSNs and SQLite paths are returned unchanged.
func RedactDSN(driver, dsn string) string {
	dsn = SanitizeDSN(driver, dsn)
	switch driver {
	case "postgres":
		if u, err := url.Parse(dsn); err == nil && u.User != nil {
			return u.Redacted()
		}
	case "mysql":
		if cfg, err := mysqldriver.ParseDSN(dsn); err == nil && cfg.Passwd != "" {
			cfg.Passwd = "xxxxx"
			return cfg.FormatDSN()
		}
	}
	return dsn
}
