// Package eventlog provides an ordered, append-only, multi-consumer-group
// event log keyed by stream name. Each streaming session reads through its
// own consumer group, so no two sessions ever contend for the same cursor.
package eventlog

import (
	"context"
	"errors"
	"time"
)

// ErrGroupNotFound is returned when reading through a consumer group that
// does not exist.
var ErrGroupNotFound = errors.New("consumer group not found")

// Entry is one record read from a stream: the log-assigned id and the raw
// payload as appended.
type Entry struct {
	ID      string
	Payload []byte
}

// StartPosition controls where a newly created consumer group begins.
type StartPosition int

const (
	// StartNew delivers only entries appended after the group is created.
	StartNew StartPosition = iota
	// StartBeginning replays the stream from its first retained entry.
	StartBeginning
)

// Log is the minimal surface the distribution subsystem needs from the
// underlying log. Implementations must preserve append order within a
// stream and track per-group cursors independently.
type Log interface {
	// Append adds a payload to the stream and returns the log-assigned id.
	Append(ctx context.Context, stream string, payload []byte) (string, error)

	// CreateGroup registers a consumer group on the stream. Creating a
	// group that already exists is not an error.
	CreateGroup(ctx context.Context, stream, group string, start StartPosition) error

	// ReadNew returns the next unread entries for the group, in append
	// order, waiting up to block for at least one entry to arrive.
	// An empty batch after the block elapses is not an error.
	ReadNew(ctx context.Context, stream, group, consumer string, maxCount int, block time.Duration) ([]Entry, error)

	// Ack marks an entry as processed by the group so it is not
	// redelivered.
	Ack(ctx context.Context, stream, group, id string) error

	// DestroyGroup removes a consumer group and its cursor. Destroying an
	// unknown group is not an error.
	DestroyGroup(ctx context.Context, stream, group string) error
}
