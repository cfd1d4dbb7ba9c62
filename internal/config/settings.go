package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ehrgate/ehrgate/internal/model"
)

// Secret hashing modes for client secrets.
const (
	HashSHA256 = "sha256"
	HashBcrypt = "bcrypt"
)

// DevSigningKey signs tokens when no key is configured outside production.
// Tokens signed with it are forgeable by anyone who has read this file.
const DevSigningKey = "ehrgate-dev-secret-change-me"

// DefaultTokenTTL is the lifetime of an access token.
const DefaultTokenTTL = 60 * time.Minute

// Settings is the immutable configuration handed to the credential and token
// service at construction. Nothing in the service reads ambient state.
type Settings struct {
	SigningKey    string
	TokenTTL      time.Duration
	Issuer        string
	HashMode      string
	CheckActive   bool
	EnforceScopes bool
	Production    bool
}

// SetDefaults registers every configuration key with its default and binds
// the environment: EHRGATE_<SECTION>_<KEY>, plus JWT_SECRET_KEY and
// DATABASE_URL for deployments that already export them.
func SetDefaults(v *viper.Viper) {
	d := DefaultYAMLConfig()

	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.socket_port", d.Server.SocketPort)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
	v.SetDefault("server.rate_limit", d.Server.RateLimit)
	v.SetDefault("server.heartbeat", d.Server.Heartbeat)
	v.SetDefault("server.cors.origins", d.Server.CORS.Origins)

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_ttl", d.Auth.TokenTTL)
	v.SetDefault("auth.issuer", d.Auth.Issuer)
	v.SetDefault("auth.hash", d.Auth.Hash)
	v.SetDefault("auth.check_active", false)
	v.SetDefault("auth.enforce_scopes", false)
	v.SetDefault("auth.production", false)

	v.SetDefault("database.driver", d.Database.Driver)
	v.SetDefault("database.dsn", d.Database.DSN)
	pool := model.DefaultPoolConfig()
	v.SetDefault("database.pool.max_open_conns", pool.MaxOpenConns)
	v.SetDefault("database.pool.max_idle_conns", pool.MaxIdleConns)
	v.SetDefault("database.pool.conn_max_lifetime", pool.ConnMaxLifetime.String())
	v.SetDefault("database.pool.conn_max_idle_time", pool.ConnMaxIdleTime.String())

	v.SetDefault("mcp.transport", d.MCP.Transport)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)

	v.SetEnvPrefix("EHRGATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.BindEnv("auth.jwt_secret", "EHRGATE_AUTH_JWT_SECRET", "JWT_SECRET_KEY")
	v.BindEnv("database.dsn", "EHRGATE_DATABASE_DSN", "DATABASE_URL")
}

// LoadSettings builds Settings from v. A missing signing key is an error in
// production posture; otherwise DevSigningKey is used and a warning is
// logged on every call.
func LoadSettings(v *viper.Viper, logger *slog.Logger) (Settings, error) {
	s := Settings{
		SigningKey:    strings.TrimSpace(v.GetString("auth.jwt_secret")),
		TokenTTL:      v.GetDuration("auth.token_ttl"),
		Issuer:        v.GetString("auth.issuer"),
		HashMode:      strings.ToLower(strings.TrimSpace(v.GetString("auth.hash"))),
		CheckActive:   v.GetBool("auth.check_active"),
		EnforceScopes: v.GetBool("auth.enforce_scopes"),
		Production:    v.GetBool("auth.production"),
	}

	if s.TokenTTL <= 0 {
		s.TokenTTL = DefaultTokenTTL
	}
	if s.HashMode == "" {
		s.HashMode = HashSHA256
	}
	if s.HashMode != HashSHA256 && s.HashMode != HashBcrypt {
		return Settings{}, fmt.Errorf("auth.hash: unsupported mode %q (want %s or %s)", s.HashMode, HashSHA256, HashBcrypt)
	}

	if s.SigningKey == "" {
		if s.Production {
			return Settings{}, ErrMissingSigningKey
		}
		if logger != nil {
			logger.Warn("no token signing key configured; using the development placeholder. Set JWT_SECRET_KEY before deploying")
		}
		s.SigningKey = DevSigningKey
	}
	return s, nil
}

// UsesDevKey reports whether s signs with the development placeholder.
func (s Settings) UsesDevKey() bool {
	return s.SigningKey == DevSigningKey
}

// LoadPool reads the database.pool keys.
func LoadPool(v *viper.Viper) model.PoolConfig {
	return model.PoolConfig{
		MaxOpenConns:    v.GetInt("database.pool.max_open_conns"),
		MaxIdleConns:    v.GetInt("database.pool.max_idle_conns"),
		ConnMaxLifetime: v.GetDuration("database.pool.conn_max_lifetime"),
		ConnMaxIdleTime: v.GetDuration("database.pool.conn_max_idle_time"),
	}
}
