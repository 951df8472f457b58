package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"catsync/internal/sse"
)

// Upstream identifies the direct-mode deployment a proxy re-streams from.
type Upstream struct {
	// BaseURL is the upstream server base, e.g. https://wl.example.com.
	BaseURL string `yaml:"base_url"`
	// Token is the bearer credential presented on the upstream leg.
	Token string `yaml:"token"`
}

// Configured reports whether both the URL and the credential are present.
func (u Upstream) Configured() bool {
	return u.BaseURL != "" && u.Token != ""
}

// ProxyStreamer presents the same client-facing protocol as
// DirectStreamer while internally holding a second long-lived HTTP request
// open against the upstream's feed, reassembling frames from arbitrary
// byte chunks and forwarding them verbatim. One upstream leg per
// downstream connection; there is no proxy-side fan-out.
type ProxyStreamer struct {
	upstream Upstream
	registry *Registry
	cfg      Config
	client   *http.Client
}

// NewProxyStreamer creates a proxy bound to the given upstream. The HTTP
// client timeout covers the whole streaming request, so it must outlast
// the hard connection timeout.
func NewProxyStreamer(upstream Upstream, registry *Registry, cfg Config) *ProxyStreamer {
	cfg.ApplyDefaults()
	return &ProxyStreamer{
		upstream: upstream,
		registry: registry,
		cfg:      cfg,
		client: &http.Client{
			Timeout: cfg.ConnectionTimeout + 30*time.Second,
		},
	}
}

// Stream implements Streamer.
func (p *ProxyStreamer) Stream(ctx context.Context, sess Session, opts Options, w http.ResponseWriter) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}
	writeStreamHeaders(w)
	fw := newFrameWriter(ctx, w, flusher, p.cfg.WriteFailureLimit)

	// Never attempt the upstream call with empty credentials.
	if !p.upstream.Configured() {
		slog.Error("Proxy mode without upstream configuration", "session", sess.ID)
		_ = fw.send(errorFrame("upstream not configured"))
		return
	}

	if err := fw.send(connectedFrame(sess, p.upstream.BaseURL)); err != nil {
		slog.Info("Proxy session ended before first write", "session", sess.ID, "error", err)
		return
	}

	lease := p.registry.Register()
	defer lease.Release()

	resp, err := p.open(ctx, sess)
	if err != nil {
		slog.Warn("Upstream connection failed", "session", sess.ID, "upstream", p.upstream.BaseURL, "error", err)
		// Best effort: the session is already failing.
		_ = fw.send(errorFrame("upstream connection failed"))
		return
	}
	defer resp.Body.Close()

	slog.Info("Proxy session established", "session", sess.ID, "upstream", p.upstream.BaseURL, "open", p.registry.Open())
	p.copyLoop(ctx, sess, fw, resp.Body)
}

// open issues the single long-lived GET against the upstream feed.
func (p *ProxyStreamer) open(ctx context.Context, sess Session) (*http.Response, error) {
	url := strings.TrimRight(p.upstream.BaseURL, "/") + "/sse/events?session_id=" + sess.ID
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+p.upstream.Token)
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("upstream returned status %d", resp.StatusCode)
	}
	return resp, nil
}

// copyLoop reads small chunks from the upstream body, reassembles complete
// frames and forwards each one downstream unmodified.
func (p *ProxyStreamer) copyLoop(ctx context.Context, sess Session, fw *frameWriter, body io.Reader) {
	var asm sse.Assembler
	buf := make([]byte, p.cfg.ProxyChunkSize)
	start := time.Now()

	for {
		if time.Since(start) >= p.cfg.ConnectionTimeout {
			slog.Info("Proxy session reached connection timeout", "session", sess.ID)
			return
		}
		if ctx.Err() != nil {
			slog.Info("Proxy client disconnected", "session", sess.ID)
			return
		}

		n, err := body.Read(buf)
		if n > 0 {
			asm.Write(buf[:n])
			for frame := asm.Next(); frame != nil; frame = asm.Next() {
				if werr := fw.send(frame); werr != nil && fw.exhausted() {
					slog.Warn("Proxy session terminated after repeated write failures",
						"session", sess.ID, "failures", fw.failures)
					return
				}
			}
		}
		if err == nil {
			continue
		}

		if errors.Is(err, io.EOF) {
			// Graceful upstream closure: flush any trailing partial
			// frame, then tell the client the feed ended.
			if rest := asm.Flush(); len(rest) > 0 {
				_ = fw.send(append(rest, '\n', '\n'))
			}
			data, _ := json.Marshal(map[string]string{"upstream": p.upstream.BaseURL})
			_ = fw.send(sse.Frame{Event: "disconnected", Data: string(data)}.Encode())
			slog.Info("Upstream stream ended", "session", sess.ID)
			return
		}
		if ctx.Err() != nil {
			slog.Info("Proxy client disconnected", "session", sess.ID)
			return
		}
		slog.Warn("Upstream read failed", "session", sess.ID, "error", err)
		_ = fw.send(errorFrame("upstream read failed"))
		return
	}
}

// Compile-time check
var _ Streamer = (*ProxyStreamer)(nil)
