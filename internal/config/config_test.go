package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 3306, cfg.Database.Port)
	assert.Equal(t, "monitor", cfg.Database.User)
	assert.Equal(t, "monitor123", cfg.Database.Password)
	assert.Equal(t, "monitoring", cfg.Database.Name)
	assert.Equal(t, 5, cfg.Database.ConnectRetries)
	assert.Equal(t, 2*time.Second, cfg.Database.RetryBackoff)
	assert.Equal(t, ":8080", cfg.Server.Addr())
	assert.NoError(t, cfg.Validate())
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()

	warnings := cfg.ApplyEnv(envMap(map[string]string{
		"DB_HOST":         "mysql-service",
		"DB_PORT":         "3307",
		"DB_USER":         "svc",
		"DB_PASSWORD":     "secret",
		"DB_NAME":         "metrics",
		"DB_POOL_SIZE":    "20",
		"API_NAME":        "Go-2",
		"REQUEST_TIMEOUT": "750ms",
		"LOG_CONSOLE":     "false",
	}))

	assert.Empty(t, warnings)
	assert.Equal(t, "mysql-service", cfg.Database.Host)
	assert.Equal(t, 3307, cfg.Database.Port)
	assert.Equal(t, "svc", cfg.Database.User)
	assert.Equal(t, "secret", cfg.Database.Password)
	assert.Equal(t, "metrics", cfg.Database.Name)
	assert.Equal(t, 20, cfg.Database.PoolSize)
	assert.Equal(t, "Go-2", cfg.Server.APIName)
	assert.Equal(t, 750*time.Millisecond, cfg.Server.RequestTimeout)
	assert.False(t, cfg.Log.Console)
}

func TestApplyEnv_MalformedKeepsDefault(t *testing.T) {
	cfg := Default()

	warnings := cfg.ApplyEnv(envMap(map[string]string{
		"DB_PORT":         "not-a-port",
		"REQUEST_TIMEOUT": "soon",
		"DB_HOST":         "",
	}))

	assert.Len(t, warnings, 2)
	assert.Equal(t, DefaultDBPort, cfg.Database.Port)
	assert.Equal(t, DefaultRequestTimeout, cfg.Server.RequestTimeout)
	assert.Equal(t, DefaultDBHost, cfg.Database.Host, "Empty value falls back to default")
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sysmon.yaml")
	content := `
server:
  port: 9090
  api_name: yaml-api
  request_timeout: 3s
database:
  driver: sqlite3
  path: /tmp/sysmon.db
  pool_size: 4
log:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	for _, key := range []string{"PORT", "DB_DRIVER", "DB_PATH", "DB_POOL_SIZE", "DB_CONNECT_RETRIES", "REQUEST_TIMEOUT", "LOG_LEVEL"} {
		t.Setenv(key, "")
	}
	t.Setenv("API_NAME", "env-api")

	cfg, warnings, err := Load(path)
	require.NoError(t, err)
	assert.Empty(t, warnings)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "env-api", cfg.Server.APIName, "Environment wins over file")
	assert.Equal(t, 3*time.Second, cfg.Server.RequestTimeout)
	assert.Equal(t, "sqlite3", cfg.Database.Driver)
	assert.Equal(t, 4, cfg.Database.PoolSize)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, DefaultConnectRetries, cfg.Database.ConnectRetries, "Unset keys keep defaults")
}

func TestLoad_Errors(t *testing.T) {
	t.Setenv("DB_DRIVER", "")

	_, _, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("database:\n  driver: postgres\n"), 0o644))
	_, _, err = Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be mysql or sqlite3")
}
