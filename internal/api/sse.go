package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/schema"

	"catsync/internal/stream"
)

// sseQuery is the query-string form of a feed subscription.
type sseQuery struct {
	SessionID string `schema:"session_id"`
	Filter    string `schema:"filter"`
}

// handleStreamEvents hands the connection to the configured streamer.
// The call blocks for the whole life of the connection.
func (h *Handler) handleStreamEvents(w http.ResponseWriter, r *http.Request) {
	var q sseQuery
	decoder := schema.NewDecoder()
	decoder.IgnoreUnknownKeys(true)
	if err := decoder.Decode(&q, r.URL.Query()); err != nil {
		slog.Warn("SSE: invalid query parameters", "error", err)
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "Invalid query parameters")
		return
	}

	filter, err := stream.CompileFilter(q.Filter)
	if err != nil {
		slog.Warn("SSE: invalid filter expression", "filter", q.Filter, "error", err)
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "Invalid filter expression")
		return
	}

	sess := stream.NewSession(q.SessionID, r, h.mode)
	h.streamer.Stream(r.Context(), sess, stream.Options{Filter: filter}, w)
}
