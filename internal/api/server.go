package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"catsync/internal/catalog"
	"catsync/internal/config"
	"catsync/internal/identity"
	"catsync/internal/stream"
)

// Handler carries the dependencies of the HTTP endpoints.
type Handler struct {
	catalog  *catalog.Service
	streamer stream.Streamer
	registry *stream.Registry
	mode     stream.Mode
}

// NewHandler creates the endpoint handler.
func NewHandler(svc *catalog.Service, streamer stream.Streamer, registry *stream.Registry, mode stream.Mode) *Handler {
	return &Handler{catalog: svc, streamer: streamer, registry: registry, mode: mode}
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":           "ok",
		"mode":             h.mode,
		"open_connections": h.registry.Open(),
	})
}

// Server is the HTTP front of the service.
type Server struct {
	httpServer *http.Server
}

// NewServer wires the routes and middleware. Auth, when enabled, covers
// every endpoint except health.
func NewServer(cfg config.Server, h *Handler, tokens *identity.TokenService, authEnabled bool) *Server {
	protect := func(next http.HandlerFunc) http.HandlerFunc {
		if !authEnabled || tokens == nil {
			return next
		}
		wrapped := identity.Middleware(tokens)(next)
		return wrapped.ServeHTTP
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = 1 << 20
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", withRequestID(withRecover(h.handleHealth)))

	// The SSE route carries no timeout and no logging wrapper: the
	// streamer owns the connection lifetime and logs the session itself.
	mux.HandleFunc("GET /sse/events", withRequestID(withRecover(protect(h.handleStreamEvents))))

	mux.HandleFunc("GET /products", withRequestID(withLogging(withRecover(withTimeout(protect(h.handleListProducts), timeout)))))
	mux.HandleFunc("GET /products/{sku}", withRequestID(withLogging(withRecover(withTimeout(protect(h.handleGetProduct), timeout)))))
	mux.HandleFunc("POST /products", withRequestID(withLogging(withRecover(withTimeout(maxBodySize(protect(h.handleCreateProduct), maxBody), timeout)))))
	mux.HandleFunc("PATCH /products/{sku}", withRequestID(withLogging(withRecover(withTimeout(maxBodySize(protect(h.handleUpdateProduct), maxBody), timeout)))))
	mux.HandleFunc("DELETE /products/{sku}", withRequestID(withLogging(withRecover(withTimeout(protect(h.handleDeleteProduct), timeout)))))
	mux.HandleFunc("POST /products/{sku}/restore", withRequestID(withLogging(withRecover(withTimeout(protect(h.handleRestoreProduct), timeout)))))
	mux.HandleFunc("POST /products/import", withRequestID(withLogging(withRecover(withTimeout(maxBodySize(protect(h.handleImportProducts), 10<<20), timeout)))))

	return &Server{
		httpServer: &http.Server{
			Addr:    cfg.Addr(),
			Handler: mux,
			// No WriteTimeout: SSE responses stay open far beyond any
			// sane request deadline.
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Handler exposes the root handler for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start blocks serving HTTP until shutdown.
func (s *Server) Start() error {
	slog.Info("HTTP server listening", "addr", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drains the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
