package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/FrenchMajesty/yuko/utils/errs"
	"github.com/FrenchMajesty/yuko/utils/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "yuko.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfig(t *testing.T) {
	t.Setenv(TokenEnv, "")
	path := writeConfig(t, `
token: abc.def.ghi
api_url: http://localhost:9999/api/
request_timeout: 3s
retry:
  max_retries: 5
  base_delay: 100ms
  max_delay: 2s
  backoff_multiple: 3
max_ratelimit_retries: 2
global_requests_per_second: 25
cache:
  users: 1000
  members: 0
allowed_mentions:
  parse: [users, roles]
  replied_user: true
logger:
  type: noop
stats:
  backend: redis
  redis_addr: localhost:6379
  ttl: 1h
debug_server:
  enabled: true
  addr: 127.0.0.1:9000
`)

	config, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "abc.def.ghi", config.Token)
	assert.Equal(t, "http://localhost:9999/api", config.APIURL)
	assert.Equal(t, 3*time.Second, config.RequestTimeoutDuration())
	assert.Equal(t, 5, config.RetryPolicy().MaxRetries)
	assert.Equal(t, 100*time.Millisecond, config.RetryPolicy().BaseDelay)
	assert.Equal(t, 2*time.Second, config.RetryPolicy().MaxDelay)
	assert.Equal(t, float64(3), config.RetryPolicy().BackoffMultiple)
	assert.Equal(t, 2, config.MaxRateLimitRetries)
	assert.Equal(t, float64(25), config.GlobalRequestsPerSecond)
	assert.Equal(t, 1000, config.CacheLimit("users"))
	assert.Equal(t, 0, config.CacheLimit("members"))
	assert.Equal(t, 100, config.CacheLimit("messages"), "defaults survive a partial cache section")
	assert.Equal(t, -1, config.CacheLimit("guilds"))
	assert.Equal(t, []string{"users", "roles"}, config.AllowedMentions.Parse)
	assert.True(t, config.AllowedMentions.RepliedUser)
	assert.Equal(t, logger.LoggerTypeNoop, config.Logger.Type)
	assert.Equal(t, StatsBackendRedis, config.Stats.Backend)
	assert.Equal(t, time.Hour, config.StatsTTL())
	assert.True(t, config.DebugServer.Enabled)
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv(TokenEnv, "from-env")
	path := writeConfig(t, "{}\n")

	config, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", config.Token)
	assert.Equal(t, 3, config.RetryPolicy().MaxRetries)
	assert.Equal(t, 500*time.Millisecond, config.RetryPolicy().BaseDelay)
	assert.Equal(t, 15*time.Second, config.RequestTimeoutDuration())
	assert.Equal(t, StatsBackendMemory, config.Stats.Backend)
	assert.False(t, config.DebugServer.Enabled)
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	t.Setenv(TokenEnv, "from-env")
	config, err := LoadConfig(writeConfig(t, "token: from-file\n"))
	require.NoError(t, err)
	assert.Equal(t, "from-env", config.Token)
}

func TestLoadConfig_Invalid(t *testing.T) {
	t.Setenv(TokenEnv, "")

	cases := map[string]string{
		"missing token":      "api_url: https://example.com\n",
		"bad url":            "token: t\napi_url: example.com\n",
		"bad duration":       "token: t\nrequest_timeout: soon\n",
		"negative retries":   "token: t\nretry:\n  max_retries: -1\n",
		"max below base":     "token: t\nretry:\n  base_delay: 2s\n  max_delay: 1s\n",
		"bad cache limit":    "token: t\ncache:\n  users: -5\n",
		"bad mention type":   "token: t\nallowed_mentions:\n  parse: [channels]\n",
		"file logger path":   "token: t\nlogger:\n  type: file\n",
		"unknown stats":      "token: t\nstats:\n  backend: postgres\n",
		"redis without addr": "token: t\nstats:\n  backend: redis\n",
		"debug without addr": "token: t\ndebug_server:\n  enabled: true\n  addr: \"\"\n",
	}

	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, content))
			assert.ErrorIs(t, err, errs.ErrInvalidArgument)
		})
	}
}

func TestLoadConfig_Unreadable(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = LoadConfig(writeConfig(t, "token: [unterminated\n"))
	assert.Error(t, err)
}
