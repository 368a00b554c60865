package worker

import (
	"context"

	"clipforge/internal/logging"
	"clipforge/internal/queue"
	"clipforge/internal/stage"
)

// StatusSummary represents lightweight worker diagnostics.
type StatusSummary struct {
	Running     bool
	WorkerID    string
	LastError   string
	LastTask    *queue.Task
	QueueStats  map[queue.Status]int
	StageHealth map[string]stage.Health
}

// Status returns the latest worker information.
func (w *Worker) Status(ctx context.Context) StatusSummary {
	w.mu.Lock()
	running := w.running
	lastErr := w.lastErr
	lastTask := w.lastTask
	w.mu.Unlock()

	stats, err := w.store.Stats(ctx)
	if err != nil {
		w.logger.Warn("failed to read queue stats", logging.Error(err))
	}

	health := make(map[string]stage.Health, len(w.stages))
	for stg, handler := range w.stages {
		health[stg.String()] = handler.HealthCheck(ctx)
	}

	summary := StatusSummary{
		Running:     running,
		WorkerID:    w.id,
		QueueStats:  stats,
		StageHealth: health,
	}
	if lastErr != nil {
		summary.LastError = lastErr.Error()
	}
	if lastTask != nil {
		copied := *lastTask
		summary.LastTask = &copied
	}
	return summary
}
