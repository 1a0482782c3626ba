package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLoadDefaults verifies the built-in settings when nothing is configured.
func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, []string{"http://localhost:8080"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, int64(7<<20), cfg.Server.MaxMessageSize)
	assert.Equal(t, 50, cfg.Room.Capacity)
	assert.Equal(t, 50, cfg.Room.HistoryLimit)
	assert.Equal(t, 12*time.Hour, cfg.Room.TTL)
	assert.Equal(t, []string{"badword", "profanity", "idiot"}, cfg.Moderation.Terms)
	assert.Equal(t, "*", cfg.Moderation.Mask)
	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, "roomchat", cfg.Store.Redis.Prefix)
	assert.Equal(t, "info", cfg.Log.Level)
}

// TestLoadFile reads every section from an explicit YAML file.
func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roomchat.yaml")
	content := `
server:
  addr: ":9000"
  allowed_origins:
    - "https://chat.example"
  rate_limit:
    burst: 10
    refill_interval: 2s
room:
  capacity: 10
  ttl: 1h
moderation:
  terms: ["darn"]
  mask: "#"
store:
  driver: SQLite
  sqlite_path: /tmp/roomchat.db
log:
  level: debug
  pretty: true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, []string{"https://chat.example"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 10, cfg.Server.RateLimit.Burst)
	assert.Equal(t, 2*time.Second, cfg.Server.RateLimit.RefillInterval)
	assert.Equal(t, 10, cfg.Room.Capacity)
	assert.Equal(t, time.Hour, cfg.Room.TTL)
	assert.Equal(t, 50, cfg.Room.HistoryLimit)
	assert.Equal(t, []string{"darn"}, cfg.Moderation.Terms)
	assert.Equal(t, "#", cfg.Moderation.Mask)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "/tmp/roomchat.db", cfg.Store.SQLitePath)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Log.Pretty)
}

// TestLoadEnvironment covers prefixed variables and the short aliases.
func TestLoadEnvironment(t *testing.T) {
	t.Setenv("PORT", "3000")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("STORE_DRIVER", "redis")
	t.Setenv("REDIS_ADDRESS", "redis:6379")
	t.Setenv("ROOMCHAT_ROOM_CAPACITY", "20")
	t.Setenv("ROOMCHAT_ROOM_TTL", "30m")
	t.Setenv("ROOMCHAT_LOG_LEVEL", "warn")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":3000", cfg.Server.Addr)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "redis", cfg.Store.Driver)
	assert.Equal(t, "redis:6379", cfg.Store.Redis.Address)
	assert.Equal(t, 20, cfg.Room.Capacity)
	assert.Equal(t, 30*time.Minute, cfg.Room.TTL)
	assert.Equal(t, "warn", cfg.Log.Level)
}

// TestPrefixedEnvWinsOverAlias verifies ROOMCHAT_SERVER_ADDR beats PORT.
func TestPrefixedEnvWinsOverAlias(t *testing.T) {
	t.Setenv("PORT", "3000")
	t.Setenv("ROOMCHAT_SERVER_ADDR", ":4000")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":4000", cfg.Server.Addr)
}

// TestLoadSanitizes replaces invalid values with defaults.
func TestLoadSanitizes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
room:
  capacity: -1
  sweep_interval: 1ms
moderation:
  mask: "##"
store:
  driver: ""
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 50, cfg.Room.Capacity)
	assert.Equal(t, time.Minute, cfg.Room.SweepInterval)
	assert.Equal(t, "*", cfg.Moderation.Mask)
	assert.Equal(t, "memory", cfg.Store.Driver)
}

// TestLoadMissingExplicitFile verifies a named file must exist.
func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
