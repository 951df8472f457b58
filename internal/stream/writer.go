package stream

import (
	"context"
	"encoding/json"
	"net/http"

	"catsync/internal/sse"
)

// writeStreamHeaders writes the SSE response headers shared by both modes.
// X-Accel-Buffering disables response buffering in intermediary proxies.
func writeStreamHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
}

// frameWriter pushes complete frames onto one client connection and tracks
// consecutive write failures. The transport gives no synchronous delivery
// confirmation, so a write counts as failed when any of the available
// signals fires: the write call errors, or the request context reports the
// peer gone immediately after. Each frame goes out in a single Write call,
// so a heartbeat can never interleave into the middle of an event frame.
type frameWriter struct {
	w        http.ResponseWriter
	flusher  http.Flusher
	ctx      context.Context
	failures int
	limit    int
}

func newFrameWriter(ctx context.Context, w http.ResponseWriter, flusher http.Flusher, limit int) *frameWriter {
	return &frameWriter{w: w, flusher: flusher, ctx: ctx, limit: limit}
}

// send writes one complete frame. A successful write resets the
// consecutive-failure count.
func (fw *frameWriter) send(frame []byte) error {
	_, err := fw.w.Write(frame)
	if err == nil {
		fw.flusher.Flush()
		err = fw.ctx.Err()
	}
	if err != nil {
		fw.failures++
		return err
	}
	fw.failures = 0
	return nil
}

// exhausted reports whether consecutive failures reached the limit.
func (fw *frameWriter) exhausted() bool {
	return fw.failures >= fw.limit
}

// errorFrame renders a diagnostic error frame for the downstream client.
func errorFrame(message string) []byte {
	data, _ := json.Marshal(map[string]string{"message": message})
	return sse.Frame{Event: "error", Data: string(data)}.Encode()
}
