package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaults(t *testing.T) {
	cfg := ServerConfigFromEnv()
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, time.Hour, cfg.SessionTTL)
	assert.Equal(t, 10*time.Minute, cfg.TerminalLinger)
	assert.Equal(t, 30*time.Second, cfg.UpstreamTimeout)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SPOOFCALL_LISTEN_ADDR", ":9999")
	t.Setenv("SESSION_TTL", "15m")
	t.Setenv("CALL_RATE_PER_MINUTE", "3.5")
	t.Setenv("UPSTREAM_TIMEOUT", "not-a-duration")

	cfg := ServerConfigFromEnv()
	assert.Equal(t, ":9999", cfg.ListenAddr)
	assert.Equal(t, 15*time.Minute, cfg.SessionTTL)
	assert.Equal(t, 3.5, cfg.CallRatePerMinute)
	// Unparseable values fall back instead of failing startup.
	assert.Equal(t, 30*time.Second, cfg.UpstreamTimeout)
}
