package eventlog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// NATSOptions configures the JetStream-backed log.
type NATSOptions struct {
	// FileStorage selects durable on-disk streams. Defaults to in-memory.
	FileStorage bool

	// GroupTTL is how long an idle consumer group survives before the
	// server reclaims it. Streaming sessions read continuously, so a live
	// session keeps its group alive; a leaked group expires on its own.
	// Zero disables expiry.
	GroupTTL time.Duration
}

// NATSLog implements Log on NATS JetStream. Streams map to JetStream
// streams, consumer groups to durable pull consumers with explicit acks,
// and entry ids to stream sequence numbers.
type NATSLog struct {
	js   jetstream.JetStream
	opts NATSOptions

	mu      sync.Mutex
	streams map[string]struct{}
	groups  map[string]*groupState
}

// groupState caches the pull-consumer handle for one group together with
// the fetched-but-unacked message handles, keyed by entry id. JetStream
// acks go through the message handle, so ReadNew parks each handle here
// until Ack (or redelivery) claims it.
type groupState struct {
	consumer jetstream.Consumer

	mu      sync.Mutex
	pending map[string]jetstream.Msg
}

// NewNATSLog creates a JetStream-backed log on an established connection.
func NewNATSLog(nc *nats.Conn, opts NATSOptions) (*NATSLog, error) {
	if nc == nil {
		return nil, fmt.Errorf("nats connection cannot be nil")
	}
	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("failed to create jetstream context: %w", err)
	}
	return &NATSLog{
		js:      js,
		opts:    opts,
		streams: make(map[string]struct{}),
		groups:  make(map[string]*groupState),
	}, nil
}

func (l *NATSLog) storage() jetstream.StorageType {
	if l.opts.FileStorage {
		return jetstream.FileStorage
	}
	return jetstream.MemoryStorage
}

// ensureStream creates the JetStream stream on first use.
func (l *NATSLog) ensureStream(ctx context.Context, stream string) error {
	l.mu.Lock()
	_, ok := l.streams[stream]
	l.mu.Unlock()
	if ok {
		return nil
	}

	_, err := l.js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     stream,
		Subjects: []string{stream + ".>"},
		Storage:  l.storage(),
	})
	if err != nil {
		return fmt.Errorf("failed to ensure stream %s: %w", stream, err)
	}

	l.mu.Lock()
	l.streams[stream] = struct{}{}
	l.mu.Unlock()
	return nil
}

// Append publishes the payload and returns the stream sequence as the
// entry id.
func (l *NATSLog) Append(ctx context.Context, stream string, payload []byte) (string, error) {
	if err := l.ensureStream(ctx, stream); err != nil {
		return "", err
	}
	ack, err := l.js.Publish(ctx, stream+".events", payload)
	if err != nil {
		return "", fmt.Errorf("failed to publish to %s: %w", stream, err)
	}
	return strconv.FormatUint(ack.Sequence, 10), nil
}

// CreateGroup registers a durable pull consumer for the group.
// CreateOrUpdateConsumer is idempotent, so an existing group is tolerated.
func (l *NATSLog) CreateGroup(ctx context.Context, stream, group string, start StartPosition) error {
	if err := l.ensureStream(ctx, stream); err != nil {
		return err
	}

	deliver := jetstream.DeliverNewPolicy
	if start == StartBeginning {
		deliver = jetstream.DeliverAllPolicy
	}

	consumer, err := l.js.CreateOrUpdateConsumer(ctx, stream, jetstream.ConsumerConfig{
		Durable:           group,
		AckPolicy:         jetstream.AckExplicitPolicy,
		DeliverPolicy:     deliver,
		FilterSubject:     stream + ".>",
		InactiveThreshold: l.opts.GroupTTL,
	})
	if err != nil {
		return fmt.Errorf("failed to create consumer group %s: %w", group, err)
	}

	l.mu.Lock()
	l.groups[stream+"/"+group] = &groupState{
		consumer: consumer,
		pending:  make(map[string]jetstream.Msg),
	}
	l.mu.Unlock()
	return nil
}

func (l *NATSLog) group(stream, group string) (*groupState, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	g, ok := l.groups[stream+"/"+group]
	return g, ok
}

// ReadNew fetches the next batch for the group, waiting up to block.
// The consumer argument identifies the reader for logging only; JetStream
// pull consumers track a single cursor per durable.
func (l *NATSLog) ReadNew(ctx context.Context, stream, group, consumer string, maxCount int, block time.Duration) ([]Entry, error) {
	g, ok := l.group(stream, group)
	if !ok {
		return nil, ErrGroupNotFound
	}

	batch, err := g.consumer.Fetch(maxCount, jetstream.FetchMaxWait(block))
	if err != nil {
		if errors.Is(err, nats.ErrTimeout) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch failed for group %s: %w", group, err)
	}

	var entries []Entry
	for msg := range batch.Messages() {
		md, err := msg.Metadata()
		if err != nil {
			slog.Warn("Dropping message without metadata", "stream", stream, "group", group, "error", err)
			continue
		}
		id := strconv.FormatUint(md.Sequence.Stream, 10)
		entries = append(entries, Entry{ID: id, Payload: msg.Data()})

		g.mu.Lock()
		g.pending[id] = msg
		g.mu.Unlock()
	}
	if err := batch.Error(); err != nil && !errors.Is(err, nats.ErrTimeout) {
		return entries, fmt.Errorf("fetch interrupted for group %s: %w", group, err)
	}
	return entries, nil
}

// Ack acknowledges a previously fetched entry. Acking an id that is no
// longer pending is harmless; the server will simply redeliver.
func (l *NATSLog) Ack(ctx context.Context, stream, group, id string) error {
	g, ok := l.group(stream, group)
	if !ok {
		return ErrGroupNotFound
	}

	g.mu.Lock()
	msg, ok := g.pending[id]
	if ok {
		delete(g.pending, id)
	}
	g.mu.Unlock()

	if !ok {
		slog.Debug("Ack for unknown entry", "stream", stream, "group", group, "id", id)
		return nil
	}
	return msg.Ack()
}

// DestroyGroup deletes the durable consumer. An unknown group is not an
// error: the server may have already expired it.
func (l *NATSLog) DestroyGroup(ctx context.Context, stream, group string) error {
	l.mu.Lock()
	delete(l.groups, stream+"/"+group)
	l.mu.Unlock()

	err := l.js.DeleteConsumer(ctx, stream, group)
	if err != nil && !errors.Is(err, jetstream.ErrConsumerNotFound) {
		return fmt.Errorf("failed to delete consumer group %s: %w", group, err)
	}
	return nil
}

// Compile-time check
var _ Log = (*NATSLog)(nil)
