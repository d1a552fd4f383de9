// Package api implements the Control API (C8): a loopback-only HTTP surface
// over the notification store, used by the TUI and other local consumers
// that don't want to talk SQLite directly.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bryonbaker/gh-notifier/internal/remote"
	"github.com/bryonbaker/gh-notifier/internal/store"
)

type requestIDKey struct{}

// requestID stamps every inbound request with a UUID, echoed back as the
// X-Request-Id response header and attached to every log line the handler
// emits for that request -- so a user report referencing a response header
// can be grepped straight out of the daemon's logs.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		w.Header().Set("X-Request-Id", id)
		ctx := context.WithValue(r.Context(), requestIDKey{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// Server is the Control API's HTTP server. It binds to 127.0.0.1 only --
// never 0.0.0.0 -- so the loopback-only requirement is enforced at the
// listener level, not just by convention.
type Server struct {
	httpServer *http.Server
	listener   net.Listener
	logger     *zap.Logger
}

// Marker is the subset of the Remote Client the Control API needs to
// propagate mark-as-read to the upstream inbox.
type Marker interface {
	MarkRead(ctx context.Context, id string) error
}

type response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

type markAsReadRequest struct {
	NotificationIDs []string `json:"notification_ids"`
}

// New builds a Server bound to 127.0.0.1:port. The listener is created
// eagerly so callers can detect a port conflict before Start is called.
func New(port uint16, st store.Store, marker Marker, logger *zap.Logger) (*Server, error) {
	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		return nil, fmt.Errorf("binding control API listener: %w", err)
	}

	h := &handlers{store: st, marker: marker, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RedirectSlashes)
	r.Use(requestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: false,
	}))

	r.Route("/api/v1/notifications", func(r chi.Router) {
		r.Post("/mark-as-read", h.markAsRead)
		r.Post("/mark-all-as-read", h.markAllAsRead)
		r.Get("/", h.listAll)
		r.Get("/unread", h.listUnread)
	})

	return &Server{
		httpServer: &http.Server{Handler: r},
		listener:   ln,
		logger:     logger,
	}, nil
}

// Addr returns the bound address, useful for tests that ask for port 0.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Start begins serving HTTP requests. It blocks until the server is stopped
// or encounters a fatal error. ErrServerClosed is not returned.
func (s *Server) Start() error {
	err := s.httpServer.Serve(s.listener)
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server using the provided context.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

type handlers struct {
	store  store.Store
	marker Marker
	logger *zap.Logger
}

func (h *handlers) markAsRead(w http.ResponseWriter, r *http.Request) {
	var req markAsReadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "decoding request body: "+err.Error())
		return
	}

	reqID := requestIDFromContext(r.Context())
	for _, id := range req.NotificationIDs {
		if err := h.marker.MarkRead(r.Context(), id); err != nil {
			h.logger.Warn("failed to mark remote notification read",
				zap.String("id", id), zap.String("request_id", reqID), zap.Error(err))
		}
		if err := h.store.MarkAsRead(id); err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("marking %s as read: %v", id, err))
			return
		}
	}

	writeJSON(w, http.StatusOK, response{Success: true})
}

func (h *handlers) markAllAsRead(w http.ResponseWriter, r *http.Request) {
	if err := h.store.MarkAllAsRead(); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, response{Success: true})
}

func (h *handlers) listAll(w http.ResponseWriter, r *http.Request) {
	all, err := h.store.ListAll()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, all)
}

func (h *handlers) listUnread(w http.ResponseWriter, r *http.Request) {
	unread, err := h.store.ListUnread()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, unread)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, response{Success: false, Message: message})
}

var _ Marker = (*remote.Client)(nil)
