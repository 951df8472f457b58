package stream

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/cel-go/cel"

	"catsync/internal/eventlog"
	"catsync/internal/sse"
)

// Options carries per-session streaming options decoded from the request.
type Options struct {
	// Filter drops non-matching events before they are queued.
	// Direct mode only; the proxy forwards the upstream feed verbatim.
	Filter cel.Program
}

// Streamer serves one long-lived SSE response per call. Stream blocks the
// calling goroutine until the connection ends; termination is signalled by
// returning, never by error.
type Streamer interface {
	Stream(ctx context.Context, sess Session, opts Options, w http.ResponseWriter)
}

// DirectStreamer serves the feed straight from the event log. Each session
// polls its own consumer group and multiplexes log events with timestamp
// frames and comment heartbeats onto the single outbound stream.
//
// Each Stream call is single-goroutine; concurrency exists only across
// simultaneously open connections, which share nothing but the registry.
type DirectStreamer struct {
	log      eventlog.Log
	registry *Registry
	cfg      Config
}

// NewDirectStreamer creates a broadcaster over the given log.
func NewDirectStreamer(log eventlog.Log, registry *Registry, cfg Config) *DirectStreamer {
	cfg.ApplyDefaults()
	return &DirectStreamer{log: log, registry: registry, cfg: cfg}
}

// envelope is the wire form of a log payload as appended by the catalog
// mutation path.
type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// connectedPayload is the body of the initial connected frame.
type connectedPayload struct {
	SessionID   string `json:"session_id"`
	Mode        Mode   `json:"mode"`
	ClientIP    string `json:"client_ip,omitempty"`
	ConnectedAt string `json:"connected_at"`
	Upstream    string `json:"upstream,omitempty"`
}

// timestampPayload is the body of the periodic liveness frame.
type timestampPayload struct {
	Seq  uint64 `json:"seq"`
	Time string `json:"time"`
}

func connectedFrame(sess Session, upstream string) []byte {
	data, _ := json.Marshal(connectedPayload{
		SessionID:   sess.ID,
		Mode:        sess.Mode,
		ClientIP:    sess.ClientIP,
		ConnectedAt: sess.ConnectedAt.UTC().Format(time.RFC3339),
		Upstream:    upstream,
	})
	return sse.Frame{Event: "connected", Data: string(data)}.Encode()
}

// Stream implements Streamer.
func (d *DirectStreamer) Stream(ctx context.Context, sess Session, opts Options, w http.ResponseWriter) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}
	writeStreamHeaders(w)
	fw := newFrameWriter(ctx, w, flusher, d.cfg.WriteFailureLimit)

	// Never count a connection that never delivered a byte.
	if err := fw.send(connectedFrame(sess, "")); err != nil {
		slog.Info("SSE session ended before first write", "session", sess.ID, "error", err)
		return
	}

	lease := d.registry.Register()
	defer lease.Release()

	group, consumer := sess.Group(), sess.Consumer()
	if err := d.log.CreateGroup(ctx, d.cfg.Stream, group, eventlog.StartNew); err != nil {
		// Bookkeeping failure: the stream stays up, it just won't carry
		// log events until the client reconnects.
		slog.Warn("Failed to create consumer group", "session", sess.ID, "group", group, "error", err)
	}
	defer func() {
		// The request context is usually cancelled by now; clean up on a
		// fresh one.
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := d.log.DestroyGroup(cleanupCtx, d.cfg.Stream, group); err != nil {
			slog.Warn("Failed to destroy consumer group", "session", sess.ID, "group", group, "error", err)
		}
	}()

	slog.Info("SSE session established", "session", sess.ID, "client_ip", sess.ClientIP, "open", d.registry.Open())

	var (
		start         = time.Now()
		lastMessage   = start
		lastHeartbeat = start
		seq           uint64
		queue         []sse.Frame
	)

	for {
		if time.Since(start) >= d.cfg.ConnectionTimeout {
			slog.Info("SSE session reached connection timeout", "session", sess.ID)
			return
		}
		if ctx.Err() != nil {
			slog.Info("SSE client disconnected", "session", sess.ID)
			return
		}

		entries, err := d.log.ReadNew(ctx, d.cfg.Stream, group, consumer, d.cfg.ReadBatch, d.cfg.ReadBlock)
		if err != nil {
			if ctx.Err() != nil {
				slog.Info("SSE client disconnected", "session", sess.ID)
				return
			}
			if !errors.Is(err, eventlog.ErrGroupNotFound) {
				slog.Warn("Log read failed", "session", sess.ID, "error", err)
			}
		}
		for _, e := range entries {
			frame, ok := d.entryFrame(e, opts.Filter)
			if !ok {
				// Filtered out: consumed as far as this session is
				// concerned.
				d.ack(ctx, group, e.ID, sess.ID)
				continue
			}
			queue = append(queue, frame)
		}

		// Drain in arrival order, one send attempt per entry. A failed
		// frame is dropped, not retried: forward progress over
		// per-event redelivery.
		for len(queue) > 0 {
			frame := queue[0]
			queue = queue[1:]
			if err := fw.send(frame.Encode()); err != nil {
				if fw.exhausted() {
					slog.Warn("SSE session terminated after repeated write failures",
						"session", sess.ID, "failures", fw.failures)
					return
				}
				continue
			}
			d.ack(ctx, group, frame.ID, sess.ID)
		}

		if time.Since(lastMessage) >= d.cfg.MessageInterval {
			seq++
			data, _ := json.Marshal(timestampPayload{Seq: seq, Time: time.Now().UTC().Format(time.RFC3339)})
			if err := fw.send(sse.Frame{Event: "timestamp", Data: string(data)}.Encode()); err != nil {
				if fw.exhausted() {
					slog.Warn("SSE session terminated after repeated write failures", "session", sess.ID)
					return
				}
			} else {
				lastMessage = time.Now()
			}
		}

		if time.Since(lastHeartbeat) >= d.cfg.HeartbeatDelay {
			if err := fw.send(sse.Comment("keepalive")); err != nil {
				if fw.exhausted() {
					slog.Warn("SSE session terminated after repeated write failures", "session", sess.ID)
					return
				}
			} else {
				lastHeartbeat = time.Now()
			}
		}

		select {
		case <-ctx.Done():
			slog.Info("SSE client disconnected", "session", sess.ID)
			return
		case <-time.After(d.cfg.PollInterval):
		}
	}
}

// entryFrame converts a log entry into its SSE frame. Payloads that do not
// carry the catalog envelope are forwarded as generic messages rather than
// dropped. The second return is false when the session filter rejects the
// event.
func (d *DirectStreamer) entryFrame(e eventlog.Entry, filter cel.Program) (sse.Frame, bool) {
	var env envelope
	if err := json.Unmarshal(e.Payload, &env); err != nil || env.Type == "" {
		return sse.Frame{ID: e.ID, Event: "message", Data: string(e.Payload)}, true
	}

	if filter != nil {
		var payload map[string]any
		if err := json.Unmarshal(env.Data, &payload); err == nil {
			if !evalFilter(filter, payload) {
				return sse.Frame{}, false
			}
		}
	}
	return sse.Frame{ID: e.ID, Event: env.Type, Data: string(env.Data)}, true
}

// ack acknowledges a delivered entry. Ack failures never tear down an
// otherwise healthy connection.
func (d *DirectStreamer) ack(ctx context.Context, group, id, session string) {
	if err := d.log.Ack(ctx, d.cfg.Stream, group, id); err != nil {
		slog.Warn("Failed to ack entry", "session", session, "group", group, "id", id, "error", err)
	}
}

// Compile-time check
var _ Streamer = (*DirectStreamer)(nil)
