// Package stream implements the catalog event distribution subsystem: a
// direct broadcaster that fans out change events from the event log to
// long-lived SSE connections, and a proxy that re-streams an upstream feed
// to its own downstream clients.
package stream

import (
	"fmt"
	"time"
)

// Config holds the per-connection streaming knobs. The defaults encode
// real operational trade-offs (disconnect detection latency vs. false
// positives), so every one of them is tunable.
type Config struct {
	// Stream is the event log stream key the broadcaster reads.
	Stream string `yaml:"stream"`

	// PollInterval is the sleep between poll cycles.
	PollInterval time.Duration `yaml:"poll_interval"`

	// ReadBlock is how long a single log read waits for new entries.
	ReadBlock time.Duration `yaml:"read_block"`

	// ReadBatch caps the number of entries fetched per poll.
	ReadBatch int `yaml:"read_batch"`

	// MessageInterval is the period between timestamp liveness frames.
	MessageInterval time.Duration `yaml:"message_interval"`

	// HeartbeatDelay is the period between comment-only heartbeats.
	HeartbeatDelay time.Duration `yaml:"heartbeat_delay"`

	// ConnectionTimeout is the hard lifetime of one connection. Clients
	// are expected to reconnect; SSE auto-retry handles this.
	ConnectionTimeout time.Duration `yaml:"connection_timeout"`

	// WriteFailureLimit is the number of consecutive failed writes that
	// terminates a session.
	WriteFailureLimit int `yaml:"write_failure_limit"`

	// ProxyChunkSize is the read size for the upstream copy loop in
	// proxy mode.
	ProxyChunkSize int `yaml:"proxy_chunk_size"`
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		Stream:            "catalog",
		PollInterval:      time.Second,
		ReadBlock:         100 * time.Millisecond,
		ReadBatch:         64,
		MessageInterval:   10 * time.Second,
		HeartbeatDelay:    60 * time.Second,
		ConnectionTimeout: 600 * time.Second,
		WriteFailureLimit: 3,
		ProxyChunkSize:    512,
	}
}

// ApplyDefaults fills in missing values with defaults.
func (c *Config) ApplyDefaults() {
	d := DefaultConfig()
	if c.Stream == "" {
		c.Stream = d.Stream
	}
	if c.PollInterval <= 0 {
		c.PollInterval = d.PollInterval
	}
	if c.ReadBlock <= 0 {
		c.ReadBlock = d.ReadBlock
	}
	if c.ReadBatch <= 0 {
		c.ReadBatch = d.ReadBatch
	}
	if c.MessageInterval <= 0 {
		c.MessageInterval = d.MessageInterval
	}
	if c.HeartbeatDelay <= 0 {
		c.HeartbeatDelay = d.HeartbeatDelay
	}
	if c.ConnectionTimeout <= 0 {
		c.ConnectionTimeout = d.ConnectionTimeout
	}
	if c.WriteFailureLimit <= 0 {
		c.WriteFailureLimit = d.WriteFailureLimit
	}
	if c.ProxyChunkSize <= 0 {
		c.ProxyChunkSize = d.ProxyChunkSize
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Stream == "" {
		return fmt.Errorf("stream key cannot be empty")
	}
	if c.ReadBlock >= c.ConnectionTimeout {
		return fmt.Errorf("read_block (%s) must be shorter than connection_timeout (%s)", c.ReadBlock, c.ConnectionTimeout)
	}
	if c.MessageInterval >= c.ConnectionTimeout {
		return fmt.Errorf("message_interval (%s) must be shorter than connection_timeout (%s)", c.MessageInterval, c.ConnectionTimeout)
	}
	return nil
}
