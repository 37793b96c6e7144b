package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, DefaultDatabase, cfg.Database)
	assert.Equal(t, 10*time.Second, cfg.PollInterval)
	assert.Equal(t, 256, cfg.MemoSize)
	assert.Equal(t, time.Second, cfg.Reconnect.BaseDelay)
	assert.Equal(t, 30*time.Second, cfg.Reconnect.MaxDelay)
	assert.Equal(t, 0, cfg.Reconnect.MaxAttempts)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_NoFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_YAML(t *testing.T) {
	path := writeFile(t, "threadkeep.yaml", `
server_url: https://chat.example.com
token: abc
user_id: u1
database: /tmp/tk.db
poll_interval: 5s
memo_size: 64
metrics_addr: ":9090"
reconnect:
  base_delay: 500ms
  max_delay: 1m
  max_attempts: 7
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://chat.example.com", cfg.ServerURL)
	assert.Equal(t, "abc", cfg.Token)
	assert.Equal(t, "u1", cfg.UserID)
	assert.Equal(t, "/tmp/tk.db", cfg.Database)
	assert.Equal(t, 5*time.Second, cfg.PollInterval)
	assert.Equal(t, 64, cfg.MemoSize)
	assert.Equal(t, ":9090", cfg.MetricsAddr)
	assert.Equal(t, Reconnect{BaseDelay: 500 * time.Millisecond, MaxDelay: time.Minute, MaxAttempts: 7}, cfg.Reconnect)
}

func TestLoad_PartialYAMLKeepsDefaults(t *testing.T) {
	path := writeFile(t, "threadkeep.yaml", "user_id: u2\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "u2", cfg.UserID)
	assert.Equal(t, DefaultPollInterval, cfg.PollInterval)
	assert.Equal(t, DefaultMaxDelay, cfg.Reconnect.MaxDelay)
}

func TestLoad_EmptyFile(t *testing.T) {
	cfg, err := Load(writeFile(t, "empty.yaml", ""))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_UnknownField(t *testing.T) {
	_, err := Load(writeFile(t, "bad.yaml", "pol_interval: 5s\n"))
	assert.Error(t, err)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeFile(t, "threadkeep.yaml", "user_id: from-file\npoll_interval: 5s\n")
	t.Setenv("THREADKEEP_USER_ID", "from-env")
	t.Setenv("THREADKEEP_POLL_INTERVAL", "2m")
	t.Setenv("THREADKEEP_MEMO_SIZE", "12")
	t.Setenv("THREADKEEP_RECONNECT_MAX_ATTEMPTS", "3")
	t.Setenv("THREADKEEP_TOKEN", "")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.UserID)
	assert.Equal(t, 2*time.Minute, cfg.PollInterval)
	assert.Equal(t, 12, cfg.MemoSize)
	assert.Equal(t, 3, cfg.Reconnect.MaxAttempts)
	assert.Empty(t, cfg.Token, "empty variables do not override")
}

func TestLoad_BadEnvValues(t *testing.T) {
	t.Setenv("THREADKEEP_POLL_INTERVAL", "soon")
	t.Setenv("THREADKEEP_MEMO_SIZE", "many")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "THREADKEEP_POLL_INTERVAL")
	assert.Contains(t, err.Error(), "THREADKEEP_MEMO_SIZE")
}

func TestLoadDotEnv(t *testing.T) {
	const key = "THREADKEEP_DOTENV_TEST_VALUE"
	t.Cleanup(func() { os.Unsetenv(key) })
	path := writeFile(t, ".env", key+"=loaded\n")

	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "loaded", os.Getenv(key))
}

func TestLoadDotEnv_MissingIgnored(t *testing.T) {
	assert.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), ".env")))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"empty database", func(c *Config) { c.Database = "" }, "database must be set"},
		{"zero poll", func(c *Config) { c.PollInterval = 0 }, "poll_interval"},
		{"zero memo", func(c *Config) { c.MemoSize = 0 }, "memo_size"},
		{"zero base delay", func(c *Config) { c.Reconnect.BaseDelay = 0 }, "base_delay"},
		{"max below base", func(c *Config) { c.Reconnect.MaxDelay = time.Millisecond }, "max_delay"},
		{"negative attempts", func(c *Config) { c.Reconnect.MaxAttempts = -1 }, "max_attempts"},
		{"bad server scheme", func(c *Config) { c.ServerURL = "ftp://x" }, "server_url"},
		{"server without host", func(c *Config) { c.ServerURL = "http://" }, "missing host"},
		{"bad ws scheme", func(c *Config) { c.WSURL = "http://x/ws" }, "ws_url"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestRequireServer(t *testing.T) {
	cfg := Default()
	err := cfg.RequireServer()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server_url")
	assert.Contains(t, err.Error(), "user_id")

	cfg.ServerURL = "http://localhost:8000"
	cfg.UserID = "u1"
	assert.NoError(t, cfg.RequireServer())
}

func TestPushURL(t *testing.T) {
	tests := []struct {
		server, ws, want string
	}{
		{"https://chat.example.com", "", "wss://chat.example.com/ws"},
		{"http://localhost:8000/base/", "", "ws://localhost:8000/base/ws"},
		{"http://localhost:8000", "wss://push.example.com/socket", "wss://push.example.com/socket"},
	}
	for _, tt := range tests {
		cfg := &Config{ServerURL: tt.server, WSURL: tt.ws}
		got, err := cfg.PushURL()
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	_, err := (&Config{ServerURL: "ftp://x"}).PushURL()
	assert.Error(t, err)
}
