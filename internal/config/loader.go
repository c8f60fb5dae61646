package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies DESKD_* environment overrides, and returns the
// result. The caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env if present; missing is fine.
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides overwrites Config fields from well-known DESKD_*
// variables when set, so operators can inject secrets without touching the
// TOML file.
func applyEnvOverrides(cfg *Config) {
	setStr(&cfg.LogLevel, "DESKD_LOG_LEVEL")

	setStr(&cfg.Engine.StreamURL, "DESKD_ENGINE_STREAM_URL")
	setStr(&cfg.Engine.APIURL, "DESKD_ENGINE_API_URL")
	setStr(&cfg.Engine.Token, "DESKD_ENGINE_TOKEN")

	setInt(&cfg.Stream.ReconnectDelaySeconds, "DESKD_STREAM_RECONNECT_DELAY_SECONDS")
	setInt(&cfg.Stream.InboundBuffer, "DESKD_STREAM_INBOUND_BUFFER")

	setInt(&cfg.Audit.AutoCloseSeconds, "DESKD_AUDIT_AUTO_CLOSE_SECONDS")

	setBool(&cfg.Server.Enabled, "DESKD_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "DESKD_SERVER_PORT")
	setStr(&cfg.Server.APIKey, "DESKD_SERVER_API_KEY")

	setBool(&cfg.Redis.Enabled, "DESKD_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "DESKD_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "DESKD_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "DESKD_REDIS_DB")
	setBool(&cfg.Redis.TLSEnabled, "DESKD_REDIS_TLS_ENABLED")

	setBool(&cfg.Postgres.Enabled, "DESKD_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "DESKD_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "DESKD_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "DESKD_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "DESKD_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "DESKD_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "DESKD_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "DESKD_POSTGRES_SSL_MODE")
	setBool(&cfg.Postgres.RunMigrations, "DESKD_POSTGRES_RUN_MIGRATIONS")

	setBool(&cfg.S3.Enabled, "DESKD_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "DESKD_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "DESKD_S3_REGION")
	setStr(&cfg.S3.Bucket, "DESKD_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "DESKD_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "DESKD_S3_SECRET_KEY")
	setBool(&cfg.S3.ForcePathStyle, "DESKD_S3_FORCE_PATH_STYLE")

	setStr(&cfg.Notify.TelegramToken, "DESKD_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "DESKD_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "DESKD_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "DESKD_NOTIFY_EVENTS")
}

// Typed env-var helpers. Each only mutates the target when the variable is
// present and non-empty.

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
