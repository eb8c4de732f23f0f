package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points HOME at a temp dir and clears config env vars.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	t.Setenv(EnvConfigPath, "")
	return home
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	home := isolate(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "", cfg.Namespace)
	assert.Equal(t, 15*time.Minute, cfg.DefaultTTL)
	assert.Equal(t, filepath.Join(home, ".cache", "cache-mcp", "cache.sock"), cfg.Socket)
	assert.Equal(t, "@every 10m", cfg.PurgeSchedule)
	assert.Equal(t, "bolt", cfg.Backend.Driver)
	assert.Equal(t, filepath.Join(home, ".cache", "cache-mcp", "cache.bbolt"), cfg.Backend.Bolt.Path)
	assert.Equal(t, "cache", cfg.Backend.Bolt.Bucket)
	assert.Equal(t, "cache_entries", cfg.Backend.Postgres.Table)
}

func TestLoad_File(t *testing.T) {
	isolate(t)
	path := writeConfig(t, `
namespace: tenant
default_ttl: 90s
socket: /tmp/cache-test.sock
purge_schedule: ""
backend:
  driver: memcached
  memcached:
    servers: ["localhost:11211", "10.0.0.2:11211"]
    timeout: 250ms
log:
  dir: /tmp/cache-logs
  verbosity: 2
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "tenant", cfg.Namespace)
	assert.Equal(t, 90*time.Second, cfg.DefaultTTL)
	assert.Equal(t, "/tmp/cache-test.sock", cfg.Socket)
	assert.Equal(t, "", cfg.PurgeSchedule)
	assert.Equal(t, "memcached", cfg.Backend.Driver)
	assert.Equal(t, []string{"localhost:11211", "10.0.0.2:11211"}, cfg.Backend.Memcached.Servers)
	assert.Equal(t, 250*time.Millisecond, cfg.Backend.Memcached.Timeout)
	assert.Equal(t, "/tmp/cache-logs", cfg.Log.Dir)
	assert.Equal(t, 2, cfg.Log.Verbosity)
}

func TestLoad_PathFromEnv(t *testing.T) {
	isolate(t)
	path := writeConfig(t, "namespace: fromenv\n")
	t.Setenv(EnvConfigPath, path)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "fromenv", cfg.Namespace)
}

func TestLoad_EnvOverrides(t *testing.T) {
	isolate(t)
	path := writeConfig(t, "namespace: file\nbackend:\n  driver: bolt\n")
	t.Setenv("CACHE_MCP_NAMESPACE", "env")
	t.Setenv("CACHE_MCP_BACKEND_DRIVER", "postgres")
	t.Setenv("CACHE_MCP_BACKEND_POSTGRES_DSN", "postgres://localhost/cache")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "env", cfg.Namespace)
	assert.Equal(t, "postgres", cfg.Backend.Driver)
	assert.Equal(t, "postgres://localhost/cache", cfg.Backend.Postgres.DSN)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "unknown driver", body: "backend:\n  driver: redis\n"},
		{name: "memcached without servers", body: "backend:\n  driver: memcached\n"},
		{name: "memcached bad address", body: "backend:\n  driver: memcached\n  memcached:\n    servers: [\"nohost\"]\n"},
		{name: "postgres without dsn", body: "backend:\n  driver: postgres\n"},
		{name: "bolt without path", body: "backend:\n  driver: bolt\n  bolt:\n    path: \"\"\n"},
		{name: "negative ttl", body: "default_ttl: -5s\n"},
		{name: "sub-second ttl", body: "default_ttl: 500ms\n"},
		{name: "one nanosecond ttl", body: "default_ttl: 1ns\n"},
		{name: "empty socket", body: "socket: \"\"\n"},
		{name: "malformed yaml", body: "backend: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestLoad_DefaultTTLBounds(t *testing.T) {
	tests := []struct {
		body string
		want time.Duration
	}{
		{body: "default_ttl: 0s\n", want: 0},
		{body: "default_ttl: 1s\n", want: time.Second},
		{body: "default_ttl: 1500ms\n", want: 1500 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.body, func(t *testing.T) {
			isolate(t)
			cfg, err := Load(writeConfig(t, tt.body))
			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg.DefaultTTL)
		})
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	isolate(t)
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
