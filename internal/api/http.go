package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"clipforge/internal/logging"
	"clipforge/internal/queue"
	"clipforge/internal/services"
)

// StatusProvider supplies daemon diagnostics for GET /api/status.
type StatusProvider interface {
	RunningStatus(ctx context.Context) map[string]any
}

// Server is the daemon HTTP surface.
type Server struct {
	tasks    *TaskService
	status   StatusProvider
	token    string
	logger   *slog.Logger
	listener *http.Server
}

// NewServer builds the HTTP server. token may be empty to disable
// authentication.
func NewServer(tasks *TaskService, status StatusProvider, bind, token string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &Server{
		tasks:  tasks,
		status: status,
		token:  token,
		logger: logger.With(logging.String(logging.FieldComponent, "http")),
	}
	s.listener = &http.Server{
		Addr:              bind,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes() http.Handler {
	router := chi.NewRouter()
	router.Use(s.authenticate)
	router.Route("/api", func(r chi.Router) {
		r.Post("/tasks", s.handleSubmit)
		r.Get("/tasks", s.handleList)
		r.Get("/tasks/{id}", s.handleGet)
		r.Get("/tasks/{id}/result", s.handleResult)
		r.Post("/tasks/{id}/cancel", s.handleCancel)
		r.Get("/status", s.handleStatus)
	})
	return router
}

// ListenAndServe blocks until the server stops.
func (s *Server) ListenAndServe() error {
	s.logger.Info("http api listening", logging.String("bind", s.listener.Addr))
	err := s.listener.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.listener.Shutdown(ctx)
}

// Handler exposes the routed handler, used by tests.
func (s *Server) Handler() http.Handler {
	return s.listener.Handler
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.token != "" {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") || strings.TrimPrefix(header, "Bearer ") != s.token {
				writeError(w, http.StatusUnauthorized, "invalid or missing bearer token")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	task, err := s.tasks.Submit(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	var statuses []queue.Status
	if raw := r.URL.Query().Get("status"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			status, ok := queue.ParseStatus(part)
			if !ok {
				writeError(w, http.StatusBadRequest, "unknown status "+strings.TrimSpace(part))
				return
			}
			statuses = append(statuses, status)
		}
	}
	tasks, err := s.tasks.List(r.Context(), statuses...)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tasks": tasks, "count": len(tasks)})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	status, err := s.tasks.Status(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleResult(w http.ResponseWriter, r *http.Request) {
	report, err := s.tasks.Result(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	accepted, err := s.tasks.Cancel(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if !accepted {
		writeError(w, http.StatusConflict, "task is already finished")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"id": id, "cancel_requested": true})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	payload := map[string]any{}
	if s.status != nil {
		payload = s.status.RunningStatus(r.Context())
	}
	health, err := s.tasks.Health(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	payload["queue"] = health
	writeJSON(w, http.StatusOK, payload)
}

func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	details := services.Details(err)
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, services.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, services.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, services.ErrTransport):
		status = http.StatusBadGateway
	}
	if status >= 500 {
		s.logger.Error("request failed", logging.Error(err))
	}
	writeError(w, status, details.Message)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}
