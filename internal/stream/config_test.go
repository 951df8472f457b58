package stream

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigApplyDefaults(t *testing.T) {
	var c Config
	c.ApplyDefaults()
	assert.Equal(t, DefaultConfig(), c)

	c = Config{Stream: "custom", PollInterval: 250 * time.Millisecond}
	c.ApplyDefaults()
	assert.Equal(t, "custom", c.Stream)
	assert.Equal(t, 250*time.Millisecond, c.PollInterval)
	assert.Equal(t, 64, c.ReadBatch)
	assert.Equal(t, 600*time.Second, c.ConnectionTimeout)
}

func TestConfigValidate(t *testing.T) {
	c := DefaultConfig()
	assert.NoError(t, c.Validate())

	c.Stream = ""
	assert.Error(t, c.Validate())

	c = DefaultConfig()
	c.ReadBlock = c.ConnectionTimeout
	assert.Error(t, c.Validate())

	c = DefaultConfig()
	c.MessageInterval = 2 * c.ConnectionTimeout
	assert.Error(t, c.Validate())
}

func TestNewSession(t *testing.T) {
	r := httptest.NewRequest("GET", "/sse/events", nil)
	r.RemoteAddr = "203.0.113.9:50211"
	r.Header.Set("User-Agent", "sync-client/2.1")

	s := NewSession("abc", r, ModeDirect)
	assert.Equal(t, "abc", s.ID)
	assert.Equal(t, "203.0.113.9", s.ClientIP)
	assert.Equal(t, "sync-client/2.1", s.UserAgent)
	assert.Equal(t, ModeDirect, s.Mode)
	assert.Equal(t, "sse-group-abc", s.Group())
	assert.Equal(t, "consumer-abc", s.Consumer())

	generated := NewSession("", r, ModeProxy)
	require.NotEmpty(t, generated.ID)
	assert.NotEqual(t, s.ID, generated.ID)
}

func TestUpstreamConfigured(t *testing.T) {
	assert.False(t, Upstream{}.Configured())
	assert.False(t, Upstream{BaseURL: "https://wl.example.com"}.Configured())
	assert.False(t, Upstream{Token: "tok"}.Configured())
	assert.True(t, Upstream{BaseURL: "https://wl.example.com", Token: "tok"}.Configured())
}
