package stream

import (
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Mode distinguishes the data-owning deployment from the aggregating one.
type Mode string

const (
	// ModeDirect serves the feed straight from the event log.
	ModeDirect Mode = "direct"
	// ModeProxy re-streams an upstream direct feed.
	ModeProxy Mode = "proxy"
)

// Session is the ephemeral per-connection state. It is owned exclusively
// by the streamer handling the connection and is never persisted or shared.
type Session struct {
	ID          string
	ClientIP    string
	UserAgent   string
	ConnectedAt time.Time
	Mode        Mode
}

// NewSession builds a session from the inbound request. The id is caller
// supplied via the session_id query parameter handling upstream of this
// call; when empty a fresh one is generated.
func NewSession(id string, r *http.Request, mode Mode) Session {
	if id == "" {
		id = uuid.New().String()
	}
	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		ip = host
	}
	return Session{
		ID:          id,
		ClientIP:    ip,
		UserAgent:   r.UserAgent(),
		ConnectedAt: time.Now(),
		Mode:        mode,
	}
}

// Group is the consumer group name bound to this session. Exactly one
// binding exists per live session; it is created on connect and destroyed
// on disconnect.
func (s Session) Group() string {
	return "sse-group-" + s.ID
}

// Consumer is the consumer name within the session's group.
func (s Session) Consumer() string {
	return "consumer-" + s.ID
}
