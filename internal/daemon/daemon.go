package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"clipforge/internal/api"
	"clipforge/internal/config"
	"clipforge/internal/logging"
	"clipforge/internal/queue"
	"clipforge/internal/worker"
)

// Daemon coordinates the worker and the HTTP API and enforces
// single-instance execution through a file lock.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger
	store  *queue.Store
	worker *worker.Worker
	server *api.Server

	lockPath string
	lock     *flock.Flock

	running   atomic.Bool
	serverErr chan error
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool                 `json:"running"`
	Worker       worker.StatusSummary `json:"worker"`
	QueueDBPath  string               `json:"queue_db_path"`
	LockFilePath string               `json:"lock_file_path"`
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *queue.Store, wrk *worker.Worker, server *api.Server, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil || wrk == nil {
		return nil, errors.New("daemon requires config, store, and worker")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	lockPath := filepath.Join(cfg.Paths.LogDir, "clipforged.lock")
	return &Daemon{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		worker:   wrk,
		server:   server,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// AttachServer wires the HTTP API server. The server is built after the
// daemon because it reports daemon status, so it cannot be passed to New.
// Must be called before Start.
func (d *Daemon) AttachServer(server *api.Server) {
	d.server = server
}

// Start acquires the daemon lock, launches the worker loop, and begins
// serving the HTTP API when one is configured.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another clipforge daemon instance is already running")
	}

	if err := d.worker.Start(ctx); err != nil {
		_ = d.lock.Unlock()
		return fmt.Errorf("start worker: %w", err)
	}

	if d.server != nil {
		d.serverErr = make(chan error, 1)
		go func() {
			d.serverErr <- d.server.ListenAndServe()
		}()
	}

	d.running.Store(true)
	d.logger.Info("clipforge daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop drains the HTTP server, stops the worker, and releases the lock.
// The server shuts down first so no new tasks arrive while the worker
// finishes its current one.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := d.server.Shutdown(shutdownCtx); err != nil {
			d.logger.Warn("http server shutdown", logging.Error(err))
		}
		cancel()
		if err := <-d.serverErr; err != nil {
			d.logger.Warn("http server exited with error", logging.Error(err))
		}
	}
	d.worker.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("clipforge daemon stopped")
}

// Close stops the daemon and releases the queue store.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	return Status{
		Running:      d.running.Load(),
		Worker:       d.worker.Status(ctx),
		QueueDBPath:  filepath.Join(d.cfg.Paths.LogDir, "queue.db"),
		LockFilePath: d.lockPath,
	}
}

// RunningStatus satisfies the API status provider.
func (d *Daemon) RunningStatus(ctx context.Context) map[string]any {
	status := d.Status(ctx)
	stats := make(map[string]int, len(status.Worker.QueueStats))
	for st, count := range status.Worker.QueueStats {
		stats[string(st)] = count
	}
	return map[string]any{
		"running":      status.Running,
		"worker_id":    status.Worker.WorkerID,
		"last_error":   status.Worker.LastError,
		"queue_stats":  stats,
		"stage_health": status.Worker.StageHealth,
	}
}
