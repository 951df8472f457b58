package stream

import (
	"bytes"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"
)

// syncWriter is a thread-safe ResponseWriter with Flusher support, so
// tests can inspect the body while the streamer goroutine is writing.
// failAfter limits the number of successful writes; -1 means unlimited.
type syncWriter struct {
	mu        sync.Mutex
	header    http.Header
	buf       bytes.Buffer
	status    int
	failAfter int
	writes    int
}

func newSyncWriter() *syncWriter {
	return &syncWriter{header: make(http.Header), failAfter: -1}
}

func failingWriter(after int) *syncWriter {
	w := newSyncWriter()
	w.failAfter = after
	return w
}

func (w *syncWriter) Header() http.Header { return w.header }

func (w *syncWriter) Write(b []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.failAfter >= 0 && w.writes >= w.failAfter {
		return 0, errors.New("broken pipe")
	}
	w.writes++
	return w.buf.Write(b)
}

func (w *syncWriter) WriteHeader(code int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.status = code
}

func (w *syncWriter) Flush() {}

func (w *syncWriter) String() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.String()
}

// noFlushWriter implements ResponseWriter without Flusher.
type noFlushWriter struct {
	header http.Header
	buf    bytes.Buffer
	status int
}

func newNoFlushWriter() *noFlushWriter {
	return &noFlushWriter{header: make(http.Header)}
}

func (w *noFlushWriter) Header() http.Header         { return w.header }
func (w *noFlushWriter) Write(b []byte) (int, error) { return w.buf.Write(b) }
func (w *noFlushWriter) WriteHeader(code int)        { w.status = code }

// testConfig returns streaming knobs scaled down for fast tests. The
// periodic frames are pushed out of the way by default; tests that need
// them override the intervals.
func testConfig() Config {
	return Config{
		Stream:            "catalog",
		PollInterval:      5 * time.Millisecond,
		ReadBlock:         10 * time.Millisecond,
		ReadBatch:         64,
		MessageInterval:   time.Hour,
		HeartbeatDelay:    time.Hour,
		ConnectionTimeout: 10 * time.Second,
		WriteFailureLimit: 3,
		ProxyChunkSize:    8,
	}
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal(msg)
}
