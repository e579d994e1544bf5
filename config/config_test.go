package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kleeedolinux/resocket/socket"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "resocket.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, socket.DefaultBackoff(), cfg.Backoff())
}

func TestLoadOverrides(t *testing.T) {
	path := writeConfig(t, `
base_url: https://quiz.example.com
endpoint: /ws/team/12
send_rate: 5
send_burst: 2
redis:
  addr: localhost:6379
  prefix: team:12
reconnect:
  base_ms: 500
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://quiz.example.com", cfg.BaseURL)
	assert.Equal(t, "/ws/team/12", cfg.Endpoint)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 5.0, cfg.SendRate)

	b := cfg.Backoff()
	assert.Equal(t, 500*time.Millisecond, b.Base)
	assert.Equal(t, 30*time.Second, b.Max)
	assert.Equal(t, 5, b.MaxAttempts)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := map[string]string{
		"bad scheme":    "base_url: ftp://quiz\n",
		"zero base":     "reconnect:\n  base_ms: 0\n",
		"max below":     "reconnect:\n  base_ms: 5000\n  max_ms: 1000\n",
		"negative rate": "send_rate: -1\n",
		"no burst":      "send_rate: 2\nsend_burst: 0\n",
		"zero dial":     "transport:\n  dial_timeout_ms: 0\n",
		"slow ping":     "transport:\n  read_timeout_ms: 1000\n  ping_interval_ms: 1000\n",
		"negative read": "transport:\n  read_timeout_ms: -5\n",
		"not yaml":      "base_url: [unterminated\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadTransport(t *testing.T) {
	path := writeConfig(t, `
transport:
  handshake_ms: 2500
  read_timeout_ms: 60000
  compression: true
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, TransportConfig{
		DialTimeoutMS: 15000,
		HandshakeMS:   2500,
		ReadTimeoutMS: 60000,
		Compression:   true,
	}, cfg.Transport)
	assert.Len(t, cfg.SocketOptions(), 4)
}
