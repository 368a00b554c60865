package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/url"
	"os"
	"strings"

	"clipforge/internal/config"
	"clipforge/internal/logging"
	"clipforge/internal/pipeline"
	"clipforge/internal/queue"
	"clipforge/internal/services"
)

// SubmitRequest carries the parameters of a conversion submission.
type SubmitRequest struct {
	SourceURL    string   `json:"url"`
	AudioQuality string   `json:"audio_quality,omitempty"`
	VideoQuality string   `json:"video_quality,omitempty"`
	Publish      bool     `json:"publish,omitempty"`
	Hashtags     []string `json:"hashtags,omitempty"`
	Priority     int      `json:"priority,omitempty"`
}

// TaskStatus is the status view returned for a single task.
type TaskStatus struct {
	Task             *queue.Task `json:"task"`
	Stage            string      `json:"stage"`
	ElapsedSeconds   float64     `json:"elapsed_seconds"`
	EstRemainingSecs float64     `json:"estimated_remaining_seconds"`
}

// TaskService provides task operations shared by the CLI and the HTTP
// server.
type TaskService struct {
	store  *queue.Store
	cfg    *config.Config
	logger *slog.Logger
}

// NewTaskService builds a service over an open store.
func NewTaskService(cfg *config.Config, store *queue.Store, logger *slog.Logger) *TaskService {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &TaskService{
		store:  store,
		cfg:    cfg,
		logger: logger.With(logging.String(logging.FieldComponent, "api")),
	}
}

// Submit validates the request, applies configured quality defaults,
// and enqueues a task.
func (s *TaskService) Submit(ctx context.Context, req SubmitRequest) (*queue.Task, error) {
	source := strings.TrimSpace(req.SourceURL)
	if source == "" {
		return nil, services.Wrap(services.ErrValidation, "api", "submit", "url is required", nil)
	}
	parsed, err := url.Parse(source)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, services.Wrap(services.ErrValidation, "api", "submit", "url must be absolute", err)
	}
	params := queue.Parameters{
		SourceURL:    source,
		AudioQuality: normalizeQuality(req.AudioQuality, s.cfg.Quality.Audio),
		VideoQuality: normalizeQuality(req.VideoQuality, s.cfg.Quality.Video),
		Publish:      req.Publish,
		Hashtags:     req.Hashtags,
	}
	task, err := s.store.Submit(ctx, params, req.Priority)
	if err != nil {
		return nil, err
	}
	s.logger.Info("task submitted",
		logging.String(logging.FieldTaskID, task.ID),
		logging.String("source_url", source),
	)
	return task, nil
}

func normalizeQuality(value, fallback string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	switch value {
	case "low", "medium", "high":
		return value
	}
	return fallback
}

// Get returns a task or a not-found error.
func (s *TaskService) Get(ctx context.Context, id string) (*queue.Task, error) {
	task, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, services.Wrap(services.ErrNotFound, "api", "get task", id, nil)
	}
	return task, nil
}

// Status returns the task together with elapsed and estimated
// remaining time derived from its pipeline state.
func (s *TaskService) Status(ctx context.Context, id string) (TaskStatus, error) {
	task, err := s.Get(ctx, id)
	if err != nil {
		return TaskStatus{}, err
	}
	state := pipeline.StateFromTask(task)
	return TaskStatus{
		Task:             task,
		Stage:            state.Stage().String(),
		ElapsedSeconds:   state.Elapsed().Seconds(),
		EstRemainingSecs: state.EstimatedRemaining().Seconds(),
	}, nil
}

// List returns tasks, optionally filtered by status.
func (s *TaskService) List(ctx context.Context, statuses ...queue.Status) ([]*queue.Task, error) {
	return s.store.List(ctx, statuses...)
}

// Cancel requests cancellation. Returns false when the task is already
// terminal.
func (s *TaskService) Cancel(ctx context.Context, id string) (bool, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return false, err
	}
	accepted, err := s.store.RequestCancel(ctx, id)
	if err != nil {
		return false, err
	}
	if accepted {
		s.logger.Info("cancellation requested", logging.String(logging.FieldTaskID, id))
	}
	return accepted, nil
}

// Result loads the final report of a completed task.
func (s *TaskService) Result(ctx context.Context, id string) (map[string]any, error) {
	task, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if task.Status != queue.StatusCompleted {
		return nil, services.Wrap(services.ErrValidation, "api", "get result",
			"task is "+string(task.Status)+", result available once completed", nil)
	}
	if task.ResultPath == "" {
		return nil, services.Wrap(services.ErrNotFound, "api", "get result", "no result recorded", nil)
	}
	data, err := os.ReadFile(task.ResultPath)
	if err != nil {
		return nil, services.Wrap(services.ErrNotFound, "api", "get result", task.ResultPath, err)
	}
	var report map[string]any
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, services.Wrap(services.ErrStage, "api", "get result", "decode final report", err)
	}
	return report, nil
}

// Health reports queue health counts.
func (s *TaskService) Health(ctx context.Context) (queue.HealthSummary, error) {
	return s.store.Health(ctx)
}
