// ABOUTME: Tests for configuration loading, env expansion, and validation.
// ABOUTME: Covers defaults, duration parsing, and missing-credential behavior.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gateway.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_Full(t *testing.T) {
	path := writeConfig(t, `
server:
  http_addr: ":8080"
line:
  channel_secret: secret
  channel_access_token: token
engine:
  base_url: http://localhost:9000
  timeout: 5m
sessions:
  ttl: 24h
  sweep_interval: 30m
tasks:
  ttl: 12h
database:
  path: /tmp/line-gateway/history.db
logging:
  level: debug
  format: json
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.HTTPAddr)
	assert.True(t, cfg.Line.Configured())
	assert.Equal(t, 5*time.Minute, cfg.Engine.Timeout)
	assert.Equal(t, 24*time.Hour, cfg.Sessions.TTL)
	assert.Equal(t, 30*time.Minute, cfg.Sessions.SweepInterval)
	assert.Equal(t, 12*time.Hour, cfg.Tasks.TTL)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `
server:
  http_addr: ":8080"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, DefaultSessionTTL, cfg.Sessions.TTL)
	assert.Equal(t, DefaultSweepInterval, cfg.Sessions.SweepInterval)
	assert.Equal(t, DefaultTaskTTL, cfg.Tasks.TTL)
	assert.Equal(t, DefaultEngineTimeout, cfg.Engine.Timeout)
	assert.False(t, cfg.Line.Configured())
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("TEST_CHANNEL_SECRET", "expanded-secret")

	path := writeConfig(t, `
server:
  http_addr: ":8080"
line:
  channel_secret: ${TEST_CHANNEL_SECRET}
  channel_access_token: token
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "expanded-secret", cfg.Line.ChannelSecret)
}

func TestLoad_UnsetEnvExpandsEmpty(t *testing.T) {
	path := writeConfig(t, `
server:
  http_addr: ":8080"
line:
  channel_secret: ${DEFINITELY_NOT_SET_ANYWHERE}
  channel_access_token: token
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.False(t, cfg.Line.Configured())
}

func TestLoad_MissingHTTPAddr(t *testing.T) {
	path := writeConfig(t, `
line:
  channel_secret: secret
  channel_access_token: token
`)

	_, err := Load(path)
	assert.ErrorContains(t, err, "server.http_addr")
}

func TestLoad_BadDuration(t *testing.T) {
	path := writeConfig(t, `
server:
  http_addr: ":8080"
sessions:
  ttl: not-a-duration
`)

	_, err := Load(path)
	assert.ErrorContains(t, err, "sessions.ttl")
}

func TestLoad_BadLoggingFormat(t *testing.T) {
	path := writeConfig(t, `
server:
  http_addr: ":8080"
logging:
  format: xml
`)

	_, err := Load(path)
	assert.ErrorContains(t, err, "logging.format")
}

func TestLoad_FileMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
