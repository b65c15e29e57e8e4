// Package transport serves the remote sync API:
//
//	POST /sync           apply a pushed batch
//	GET  /sync/full      return the caller's full state
//	GET  /projects/{id}  return a project's owner
//	GET  /health         liveness, unauthenticated
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rpggio/blueprint/internal/domain/cloudsync"
)

// Backend stores remote state per user.
type Backend interface {
	ApplyBatch(ctx context.Context, userID string, batch cloudsync.BatchSyncInput) (*cloudsync.SyncResult, error)
	FullState(ctx context.Context, userID string) (*cloudsync.FullState, error)
	ProjectOwner(ctx context.Context, projectID string) (string, error)
}

// Server wires HTTP handlers.
type Server struct {
	backend Backend
	logger  *slog.Logger
}

// NewServer creates an HTTP server router with middleware.
func NewServer(backend Backend, authMiddleware func(http.Handler) http.Handler, logger *slog.Logger) *chi.Mux {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	srv := &Server{backend: backend, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(logger))

	r.Get("/health", srv.handleHealth)
	r.Group(func(r chi.Router) {
		if authMiddleware != nil {
			r.Use(authMiddleware)
		}
		r.Post("/sync", srv.handlePush)
		r.Get("/sync/full", srv.handleFullState)
		r.Get("/projects/{id}", srv.handleProjectOwner)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handlePush(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserFromContext(r.Context())
	if !ok || userID == "" {
		writeError(w, http.StatusUnauthorized, "missing user")
		return
	}

	var batch cloudsync.BatchSyncInput
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&batch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid sync batch")
		return
	}

	result, err := s.backend.ApplyBatch(r.Context(), userID, batch)
	if err != nil {
		s.writeBackendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleFullState(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserFromContext(r.Context())
	if !ok || userID == "" {
		writeError(w, http.StatusUnauthorized, "missing user")
		return
	}

	state, err := s.backend.FullState(r.Context(), userID)
	if err != nil {
		s.writeBackendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *Server) handleProjectOwner(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	owner, err := s.backend.ProjectOwner(r.Context(), id)
	if err != nil {
		s.writeBackendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cloudsync.ProjectOwner{ID: id, OwnerID: owner})
}

func (s *Server) writeBackendError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrProjectNotFound):
		writeError(w, http.StatusNotFound, "project not found")
	case errors.Is(err, ErrUnavailable):
		writeError(w, http.StatusServiceUnavailable, "temporarily unavailable")
	default:
		s.logger.Error("sync backend error", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

const maxBodyBytes = 8 << 20

type errorBody struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorBody{Error: message})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Debug("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
			)
		})
	}
}
