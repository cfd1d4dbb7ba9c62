package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// YAMLConfig represents the top-level ehrgate configuration file.
type YAMLConfig struct {
	Server   ServerConfig   `yaml:"server"`
	Auth     AuthConfig     `yaml:"auth"`
	Database DatabaseConfig `yaml:"database"`
	MCP      MCPConfig      `yaml:"mcp"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig controls the HTTP gateway and the socket listener.
type ServerConfig struct {
	Host            string     `yaml:"host"`
	Port            int        `yaml:"port"`
	SocketPort      int        `yaml:"socket_port"`
	ShutdownTimeout string     `yaml:"shutdown_timeout"`
	RateLimit       int        `yaml:"rate_limit"`
	Heartbeat       string     `yaml:"heartbeat"`
	CORS            CORSConfig `yaml:"cors"`
}

// CORSConfig controls cross-origin resource sharing settings.
type CORSConfig struct {
	Origins []string `yaml:"origins"`
}

// AuthConfig controls credential hashing and token issuance.
type AuthConfig struct {
	JWTSecret     string `yaml:"jwt_secret"`
	TokenTTL      string `yaml:"token_ttl"`
	Issuer        string `yaml:"issuer"`
	Hash          string `yaml:"hash"`
	CheckActive   bool   `yaml:"check_active"`
	EnforceScopes bool   `yaml:"enforce_scopes"`
	Production    bool   `yaml:"production"`
}

// DatabaseConfig selects the storage dialect.
type DatabaseConfig struct {
	Driver string          `yaml:"driver"`
	DSN    string          `yaml:"dsn"`
	Pool   *PoolYAMLConfig `yaml:"pool,omitempty"`
}

// PoolYAMLConfig controls the connection pool in YAML config.
type PoolYAMLConfig struct {
	MaxOpenConns    int    `yaml:"max_open_conns"`
	MaxIdleConns    int    `yaml:"max_idle_conns"`
	ConnMaxLifetime string `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime string `yaml:"conn_max_idle_time"`
}

// MCPConfig controls the standalone MCP server.
type MCPConfig struct {
	Transport string `yaml:"transport"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// LoadYAMLConfig reads and parses a YAML configuration file. Environment
// variables referenced as ${VAR_NAME} in the file are expanded before parsing.
func LoadYAMLConfig(path string) (*YAMLConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	content := os.ExpandEnv(string(data))

	cfg := DefaultYAMLConfig()
	if err := yaml.Unmarshal([]byte(content), cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	return cfg, nil
}

// DefaultYAMLConfig returns a YAMLConfig pre-filled with the gateway defaults.
func DefaultYAMLConfig() *YAMLConfig {
	return &YAMLConfig{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8000,
			SocketPort:      7777,
			ShutdownTimeout: "30s",
			Heartbeat:       "30s",
			CORS: CORSConfig{
				Origins: []string{"*"},
			},
		},
		Auth: AuthConfig{
			TokenTTL: "60m",
			Issuer:   "ehrgate",
			Hash:     HashSHA256,
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    "ehrgate.db",
		},
		MCP: MCPConfig{
			Transport: "stdio",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// WriteDefaultConfig writes the default configuration to a YAML file. It
// refuses to overwrite an existing file.
func WriteDefaultConfig(path string) error {
	data, err := yaml.Marshal(DefaultYAMLConfig())
	if err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
