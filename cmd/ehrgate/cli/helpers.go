package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/ehrgate/ehrgate/internal/config"
	"github.com/ehrgate/ehrgate/internal/connector"
	"github.com/ehrgate/ehrgate/internal/connector/mysql"
	"github.com/ehrgate/ehrgate/internal/connector/postgres"
	"github.com/ehrgate/ehrgate/internal/connector/sqlite"
	"github.com/ehrgate/ehrgate/internal/service"
	"github.com/ehrgate/ehrgate/internal/store"
	"github.com/ehrgate/ehrgate/internal/telemetry"
)

// newRegistry creates a connector registry with every supported storage
// dialect registered.
func newRegistry() *connector.Registry {
	registry := connector.NewRegistry()
	registry.RegisterDriver("postgres", postgres.New)
	registry.RegisterDriver("mysql", mysql.New)
	registry.RegisterDriver("sqlite", sqlite.New)
	return registry
}

// newLogger builds the process logger from logging.level and
// logging.format. --dev forces debug.
func newLogger() *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(viper.GetString("logging.level"))); err != nil {
		level = slog.LevelInfo
	}
	if devMode {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(viper.GetString("logging.format"), "json") {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// openStore connects to the configured database and applies migrations.
func openStore(logger *slog.Logger) (*store.Store, error) {
	pool := config.LoadPool(viper.GetViper())
	cfg := connector.ConnectionConfig{
		Driver:          viper.GetString("database.driver"),
		DSN:             viper.GetString("database.dsn"),
		MaxOpenConns:    pool.MaxOpenConns,
		MaxIdleConns:    pool.MaxIdleConns,
		ConnMaxLifetime: pool.ConnMaxLifetime,
		ConnMaxIdleTime: pool.ConnMaxIdleTime,
	}
	conn, err := newRegistry().Open(cfg)
	if err != nil {
		return nil, err
	}
	st, err := store.New(conn)
	if err != nil {
		conn.Disconnect()
		return nil, err
	}
	logger.Debug("database opened", "driver", cfg.Driver, "dsn", connector.RedactDSN(cfg.Driver, cfg.DSN))
	return st, nil
}

// openAuth opens the store and builds the credential service on it. The
// caller closes the store.
func openAuth(logger *slog.Logger) (*service.AuthService, *store.Store, error) {
	settings, err := config.LoadSettings(viper.GetViper(), logger)
	if err != nil {
		return nil, nil, err
	}
	st, err := openStore(logger)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	return service.NewAuthService(st, settings, logger), st, nil
}

// credentialStats feeds the credential gauges.
func credentialStats(st *store.Store) telemetry.StatsFunc {
	return func(ctx context.Context) (telemetry.Stats, error) {
		creds, err := st.ListCredentials(ctx)
		if err != nil {
			return telemetry.Stats{}, err
		}
		stats := telemetry.Stats{Credentials: len(creds)}
		for _, c := range creds {
			if c.IsActive {
				stats.ActiveCredentials++
			}
		}
		return stats, nil
	}
}

// versionString returns a display version string.
func versionString() string {
	if appVersion == "" || appVersion == "dev" {
		return "dev"
	}
	if strings.HasPrefix(appVersion, "v") {
		return appVersion
	}
	return "v" + appVersion
}
