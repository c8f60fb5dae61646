package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTOML(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "deskd.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func validTOML(t *testing.T) string {
	return writeTOML(t, `
log_level = "debug"

[engine]
stream_url = "wss://engine.example.com/stream"
api_url = "https://engine.example.com/api"
token = "sk-file"

[stream]
reconnect_delay_seconds = 7
`)
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	cfg, err := Load(validTOML(t))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 7, cfg.Stream.ReconnectDelaySeconds)

	// Untouched sections keep their defaults.
	assert.Equal(t, 256, cfg.Stream.InboundBuffer)
	assert.Equal(t, 20, cfg.Audit.AutoCloseSeconds)
	assert.Equal(t, 8710, cfg.Server.Port)
	assert.True(t, cfg.Postgres.RunMigrations)
}

func TestLoadWithoutFileUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 5, cfg.Stream.ReconnectDelaySeconds)
}

func TestEnvOverridesWinOverFile(t *testing.T) {
	t.Setenv("DESKD_ENGINE_TOKEN", "sk-env")
	t.Setenv("DESKD_STREAM_RECONNECT_DELAY_SECONDS", "11")
	t.Setenv("DESKD_SERVER_ENABLED", "false")
	t.Setenv("DESKD_NOTIFY_EVENTS", "audit_failed, audit_passed")

	cfg, err := Load(validTOML(t))
	require.NoError(t, err)

	assert.Equal(t, "sk-env", cfg.Engine.Token)
	assert.Equal(t, 11, cfg.Stream.ReconnectDelaySeconds)
	assert.False(t, cfg.Server.Enabled)
	assert.Equal(t, []string{"audit_failed", "audit_passed"}, cfg.Notify.Events)
}

func TestMalformedEnvValueIsIgnored(t *testing.T) {
	t.Setenv("DESKD_STREAM_RECONNECT_DELAY_SECONDS", "soon")

	cfg, err := Load(validTOML(t))
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Stream.ReconnectDelaySeconds, "non-numeric override keeps the file value")
}

func TestValidate(t *testing.T) {
	base := func() Config {
		cfg := Defaults()
		cfg.Engine.StreamURL = "wss://engine.example.com/stream"
		cfg.Engine.APIURL = "https://engine.example.com/api"
		cfg.Engine.Token = "sk-test"
		return cfg
	}

	t.Run("valid", func(t *testing.T) {
		cfg := base()
		assert.NoError(t, cfg.Validate())
	})

	t.Run("missing token", func(t *testing.T) {
		cfg := base()
		cfg.Engine.Token = "  "
		assert.ErrorContains(t, cfg.Validate(), "engine.token")
	})

	t.Run("wrong stream scheme", func(t *testing.T) {
		cfg := base()
		cfg.Engine.StreamURL = "https://engine.example.com/stream"
		assert.ErrorContains(t, cfg.Validate(), "unsupported scheme")
	})

	t.Run("missing api url", func(t *testing.T) {
		cfg := base()
		cfg.Engine.APIURL = ""
		assert.ErrorContains(t, cfg.Validate(), "engine.api_url")
	})

	t.Run("server port out of range", func(t *testing.T) {
		cfg := base()
		cfg.Server.Port = 70000
		assert.ErrorContains(t, cfg.Validate(), "server.port")
	})

	t.Run("redis enabled needs addr", func(t *testing.T) {
		cfg := base()
		cfg.Redis.Enabled = true
		assert.ErrorContains(t, cfg.Validate(), "redis.addr")
	})

	t.Run("postgres enabled needs dsn or host", func(t *testing.T) {
		cfg := base()
		cfg.Postgres.Enabled = true
		assert.ErrorContains(t, cfg.Validate(), "postgres.dsn or postgres.host")
	})

	t.Run("s3 enabled needs bucket", func(t *testing.T) {
		cfg := base()
		cfg.S3.Enabled = true
		cfg.S3.Region = "us-east-1"
		assert.ErrorContains(t, cfg.Validate(), "s3.bucket")
	})
}
