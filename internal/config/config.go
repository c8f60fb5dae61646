// Package config defines the deskd configuration, loaded from TOML with
// DESKD_* environment overrides for secrets.
package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Config is the root configuration object.
type Config struct {
	LogLevel string `toml:"log_level"`

	Engine   EngineConfig   `toml:"engine"`
	Stream   StreamConfig   `toml:"stream"`
	Audit    AuditConfig    `toml:"audit"`
	Server   ServerConfig   `toml:"server"`
	Redis    RedisConfig    `toml:"redis"`
	Postgres PostgresConfig `toml:"postgres"`
	S3       S3Config       `toml:"s3"`
	Notify   NotifyConfig   `toml:"notify"`
}

// EngineConfig locates the backend and carries the bearer token used by both
// the stream connection and the one-shot API.
type EngineConfig struct {
	StreamURL string `toml:"stream_url"`
	APIURL    string `toml:"api_url"`
	Token     string `toml:"token"`
}

// StreamConfig tunes the connection manager.
type StreamConfig struct {
	ReconnectDelaySeconds int `toml:"reconnect_delay_seconds"`
	InboundBuffer         int `toml:"inbound_buffer"`
}

// AuditConfig tunes the audit orchestrator.
type AuditConfig struct {
	AutoCloseSeconds int `toml:"auto_close_seconds"`
}

// ServerConfig configures the local HTTP API.
type ServerConfig struct {
	Enabled bool   `toml:"enabled"`
	Port    int    `toml:"port"`
	APIKey  string `toml:"api_key"`
}

// RedisConfig configures the optional event mirror.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// PostgresConfig configures the optional audit-run history store.
type PostgresConfig struct {
	Enabled       bool   `toml:"enabled"`
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	MaxConns      int    `toml:"max_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// S3Config configures the optional audit-report archive.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	Prefix         string `toml:"prefix"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// NotifyConfig configures audit-outcome alerting.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		LogLevel: "info",
		Stream: StreamConfig{
			ReconnectDelaySeconds: 5,
			InboundBuffer:         256,
		},
		Audit: AuditConfig{
			AutoCloseSeconds: 20,
		},
		Server: ServerConfig{
			Enabled: true,
			Port:    8710,
		},
		Postgres: PostgresConfig{
			Port:          5432,
			SSLMode:       "disable",
			RunMigrations: true,
		},
	}
}

// Validate checks that the configuration is usable. It is called after Load.
func (c *Config) Validate() error {
	if err := requireURL(c.Engine.StreamURL, "engine.stream_url", "ws", "wss"); err != nil {
		return err
	}
	if err := requireURL(c.Engine.APIURL, "engine.api_url", "http", "https"); err != nil {
		return err
	}
	if strings.TrimSpace(c.Engine.Token) == "" {
		return fmt.Errorf("config: engine.token is required")
	}

	if c.Server.Enabled && (c.Server.Port <= 0 || c.Server.Port > 65535) {
		return fmt.Errorf("config: server.port %d out of range", c.Server.Port)
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("config: redis.addr is required when redis is enabled")
	}
	if c.Postgres.Enabled && c.Postgres.DSN == "" && c.Postgres.Host == "" {
		return fmt.Errorf("config: postgres.dsn or postgres.host is required when postgres is enabled")
	}
	if c.S3.Enabled {
		if c.S3.Bucket == "" {
			return fmt.Errorf("config: s3.bucket is required when s3 is enabled")
		}
		if c.S3.Region == "" {
			return fmt.Errorf("config: s3.region is required when s3 is enabled")
		}
	}
	return nil
}

// requireURL validates a non-empty URL with one of the given schemes.
func requireURL(raw, field string, schemes ...string) error {
	if strings.TrimSpace(raw) == "" {
		return fmt.Errorf("config: %s is required", field)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("config: %s: %w", field, err)
	}
	for _, s := range schemes {
		if u.Scheme == s {
			return nil
		}
	}
	return fmt.Errorf("config: %s: unsupported scheme %q", field, u.Scheme)
}
