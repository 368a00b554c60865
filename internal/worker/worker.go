package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"clipforge/internal/config"
	"clipforge/internal/logging"
	"clipforge/internal/manifest"
	"clipforge/internal/notifications"
	"clipforge/internal/queue"
	"clipforge/internal/services"
	"clipforge/internal/stage"
)

// Worker leases tasks from the queue and processes them sequentially.
type Worker struct {
	cfg      *config.Config
	store    *queue.Store
	stages   stage.Set
	notifier notifications.Service
	uploader *manifest.Uploader
	logger   *slog.Logger
	id       string

	pollInterval  time.Duration
	errorInterval time.Duration

	mu       sync.Mutex
	running  bool
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	lastErr  error
	lastTask *queue.Task
	current  string
}

// New builds a worker. A nil stage set defaults to the simulated
// pipeline and a nil notifier to the configured service.
func New(cfg *config.Config, store *queue.Store, stages stage.Set, notifier notifications.Service, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = logging.NewNop()
	}
	if stages == nil {
		stages = stage.Simulated(time.Duration(cfg.Workflow.PublishStepDelay) * time.Second)
	}
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}
	poll := time.Duration(cfg.Workflow.QueuePollInterval) * time.Second
	if poll <= 0 {
		poll = 5 * time.Second
	}
	retry := time.Duration(cfg.Workflow.ErrorRetryInterval) * time.Second
	if retry <= 0 {
		retry = 10 * time.Second
	}
	id := fmt.Sprintf("worker-%d", os.Getpid())
	return &Worker{
		cfg:           cfg,
		store:         store,
		stages:        stages,
		notifier:      notifier,
		uploader:      manifest.NewUploader(cfg.ObjectStore),
		logger:        logger.With(logging.String(logging.FieldComponent, "worker")),
		id:            id,
		pollInterval:  poll,
		errorInterval: retry,
	}
}

// ID returns the worker identifier recorded on leased tasks.
func (w *Worker) ID() string {
	return w.id
}

// Start begins background processing.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return errors.New("worker already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.running = true
	w.wg.Add(1)
	w.mu.Unlock()

	go func() {
		defer w.wg.Done()
		w.run(runCtx)
	}()
	return nil
}

// Stop terminates background processing and waits for completion.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	cancel := w.cancel
	w.running = false
	w.cancel = nil
	w.mu.Unlock()

	cancel()
	w.wg.Wait()
}

// Run processes tasks until the context is cancelled. An in-flight
// task is marked interrupted, best effort, on shutdown.
func (w *Worker) Run(ctx context.Context) error {
	w.run(ctx)
	return ctx.Err()
}

func (w *Worker) run(ctx context.Context) {
	ctx = services.WithWorkerID(ctx, w.id)
	logger := logging.WithContext(ctx, w.logger)
	logger.Info("worker started")
	requeued, err := w.store.ResetInterrupted(ctx)
	if err != nil {
		logger.Warn("failed to requeue interrupted tasks", logging.Error(err))
	} else if requeued > 0 {
		logger.Info("requeued interrupted tasks", logging.Int64("count", requeued))
	}

	for {
		select {
		case <-ctx.Done():
			w.markCurrentInterrupted()
			logger.Info("worker stopped")
			return
		default:
		}

		task, err := w.store.Lease(ctx, w.id)
		if err != nil {
			w.setLastError(err)
			logger.Error("failed to lease next task",
				logging.Error(err),
				logging.String(logging.FieldEventType, "queue_lease_failed"),
				logging.String(logging.FieldErrorHint, "check queue database access"),
			)
			w.wait(ctx, w.errorInterval)
			continue
		}
		if task == nil {
			w.wait(ctx, w.pollInterval)
			continue
		}

		w.setCurrent(task)
		if err := w.processTask(ctx, task); err != nil {
			if errors.Is(err, context.Canceled) {
				w.markCurrentInterrupted()
				logger.Info("worker stopped")
				return
			}
			w.setLastError(err)
		}
		w.clearCurrent()
	}
}

func (w *Worker) wait(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

func (w *Worker) setCurrent(task *queue.Task) {
	w.mu.Lock()
	w.current = task.ID
	copied := *task
	w.lastTask = &copied
	w.mu.Unlock()
}

func (w *Worker) clearCurrent() {
	w.mu.Lock()
	w.current = ""
	w.mu.Unlock()
}

func (w *Worker) setLastError(err error) {
	w.mu.Lock()
	w.lastErr = err
	w.mu.Unlock()
}

// markCurrentInterrupted flags the in-flight task so it is requeued on
// the next start. Uses a fresh context because the run context is
// already cancelled.
func (w *Worker) markCurrentInterrupted() {
	w.mu.Lock()
	id := w.current
	w.current = ""
	w.mu.Unlock()
	if id == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ctx = services.WithWorkerID(services.WithTaskID(ctx, id), w.id)
	logger := logging.WithContext(ctx, w.logger)
	if err := w.store.MarkInterrupted(ctx, id); err != nil {
		logger.Warn("failed to mark task interrupted", logging.Error(err))
	} else {
		logger.Warn("task interrupted by shutdown")
	}
}
