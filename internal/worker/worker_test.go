package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"clipforge/internal/config"
	"clipforge/internal/pipeline"
	"clipforge/internal/queue"
	"clipforge/internal/services"
	"clipforge/internal/stage"
)

func newTestConfig(t *testing.T) *config.Config {
	t.Helper()
	root := t.TempDir()
	cfg := config.Default()
	cfg.Paths.OutputDir = filepath.Join(root, "output")
	cfg.Paths.TempDir = filepath.Join(root, "temp")
	cfg.Paths.LogDir = filepath.Join(root, "logs")
	cfg.Integrity.SigningSecret = "test-signing-secret"
	cfg.Notifications.NtfyTopic = ""
	cfg.Workflow.PublishStepDelay = 0
	return &cfg
}

func newTestWorker(t *testing.T, cfg *config.Config, stages stage.Set) (*Worker, *queue.Store) {
	t.Helper()
	store, err := queue.OpenPath(filepath.Join(t.TempDir(), "queue.db"))
	if err != nil {
		t.Fatalf("OpenPath: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return New(cfg, store, stages, nil, nil), store
}

func leaseSubmitted(t *testing.T, store *queue.Store, w *Worker, params queue.Parameters) *queue.Task {
	t.Helper()
	ctx := context.Background()
	if _, err := store.Submit(ctx, params, 0); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	task, err := store.Lease(ctx, w.ID())
	if err != nil {
		t.Fatalf("Lease: %v", err)
	}
	if task == nil {
		t.Fatal("no task leased")
	}
	return task
}

func TestProcessTaskCompletes(t *testing.T) {
	cfg := newTestConfig(t)
	w, store := newTestWorker(t, cfg, nil)
	ctx := context.Background()
	task := leaseSubmitted(t, store, w, queue.Parameters{
		SourceURL: "https://example.com/watch?v=demo",
		Publish:   true,
		Hashtags:  []string{"fyp"},
	})

	if err := w.processTask(ctx, task); err != nil {
		t.Fatalf("processTask: %v", err)
	}

	got, err := store.GetByID(ctx, task.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != queue.StatusCompleted || got.Progress != 100 {
		t.Fatalf("task not completed: %+v", got)
	}
	if got.ResultPath == "" {
		t.Fatal("result path not recorded")
	}

	data, err := os.ReadFile(got.ResultPath)
	if err != nil {
		t.Fatalf("final report missing: %v", err)
	}
	var report map[string]any
	if err := json.Unmarshal(data, &report); err != nil {
		t.Fatalf("decode final report: %v", err)
	}
	if report["process_id"] != task.ProcessID {
		t.Fatalf("report process id = %v", report["process_id"])
	}
	if valid, _ := report["chain_valid"].(bool); !valid {
		t.Fatal("hash chain reported invalid for clean run")
	}
	if sig, _ := report["signature"].(string); len(sig) != 64 {
		t.Fatalf("report signature missing: %v", report["signature"])
	}
	if published, _ := report["published"].(bool); !published {
		t.Fatal("publication flag missing from report")
	}

	logDir := cfg.ProcessLogDir(task.ProcessID)
	for _, name := range []string{"audit.json", "audit.log", filepath.Join("validation", "integrity_report.json")} {
		if _, err := os.Stat(filepath.Join(logDir, name)); err != nil {
			t.Fatalf("%s not written: %v", name, err)
		}
	}

	manifestPath := filepath.Join(cfg.ProcessDir(task.ProcessID), "artifacts_manifest.json")
	if _, err := os.Stat(manifestPath); err != nil {
		t.Fatalf("manifest not written: %v", err)
	}
}

func TestProcessTaskLogsCarryTaskFields(t *testing.T) {
	cfg := newTestConfig(t)
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	store, err := queue.OpenPath(filepath.Join(t.TempDir(), "queue.db"))
	if err != nil {
		t.Fatalf("OpenPath: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	w := New(cfg, store, nil, nil, logger)
	task := leaseSubmitted(t, store, w, queue.Parameters{SourceURL: "https://example.com/watch?v=log"})

	ctx := services.WithWorkerID(context.Background(), w.ID())
	if err := w.processTask(ctx, task); err != nil {
		t.Fatalf("processTask: %v", err)
	}

	var stageEntries int
	dec := json.NewDecoder(&buf)
	for dec.More() {
		var entry map[string]any
		if err := dec.Decode(&entry); err != nil {
			t.Fatalf("decode log entry: %v", err)
		}
		if entry["msg"] != "stage started" {
			continue
		}
		stageEntries++
		if entry["task_id"] != task.ID || entry["process_id"] != task.ProcessID {
			t.Fatalf("log entry missing task identifiers: %+v", entry)
		}
		if entry["worker_id"] != w.ID() {
			t.Fatalf("log entry missing worker identifier: %+v", entry)
		}
		if stg, _ := entry["stage"].(string); stg == "" {
			t.Fatalf("log entry missing stage: %+v", entry)
		}
	}
	if stageEntries != len(pipeline.Stages()) {
		t.Fatalf("stage start entries = %d, want %d", stageEntries, len(pipeline.Stages()))
	}
}

func TestProcessTaskStageFailure(t *testing.T) {
	cfg := newTestConfig(t)
	stages := stage.Simulated(0)
	stages[pipeline.StageAnalyzing] = stage.Func{Name: "analyzing", Fn: func(context.Context, *stage.Exchange) error {
		return services.Wrap(services.ErrStage, "analyzing", "inspect", "no video stream found", nil)
	}}
	w, store := newTestWorker(t, cfg, stages)
	ctx := context.Background()
	task := leaseSubmitted(t, store, w, queue.Parameters{SourceURL: "https://example.com/watch?v=bad"})

	if err := w.processTask(ctx, task); err != nil {
		t.Fatalf("stage failure must not surface as a loop error: %v", err)
	}

	got, _ := store.GetByID(ctx, task.ID)
	if got.Status != queue.StatusFailed {
		t.Fatalf("task status = %s", got.Status)
	}
	if got.ErrorMessage == "" {
		t.Fatal("error message not recorded")
	}

	// The audit trail records the failure and stays consistent.
	data, err := os.ReadFile(filepath.Join(cfg.ProcessLogDir(task.ProcessID), "audit.json"))
	if err != nil {
		t.Fatalf("audit.json missing after failure: %v", err)
	}
	var record map[string]any
	if err := json.Unmarshal(data, &record); err != nil {
		t.Fatalf("decode audit: %v", err)
	}
	if record["status"] != "error" {
		t.Fatalf("audit status = %v", record["status"])
	}

	// Acquisition artifacts are retained for diagnosis.
	if _, err := os.Stat(filepath.Join(cfg.ProcessTempDir(task.ProcessID), "source_video.mp4")); err != nil {
		t.Fatalf("failed-run artifacts removed: %v", err)
	}
}

func TestProcessTaskCancelledAtStageBoundary(t *testing.T) {
	cfg := newTestConfig(t)
	var store *queue.Store
	var taskID string
	stages := stage.Simulated(0)
	base := stages[pipeline.StageEditing]
	stages[pipeline.StageEditing] = stage.Func{Name: "editing", Fn: func(ctx context.Context, ex *stage.Exchange) error {
		if err := base.Run(ctx, ex); err != nil {
			return err
		}
		// A cancel arriving mid-stage takes effect at the next
		// boundary, not immediately.
		_, err := store.RequestCancel(ctx, taskID)
		return err
	}}
	w, s := newTestWorker(t, cfg, stages)
	store = s
	ctx := context.Background()
	task := leaseSubmitted(t, store, w, queue.Parameters{SourceURL: "https://example.com/watch?v=c"})
	taskID = task.ID

	if err := w.processTask(ctx, task); err != nil {
		t.Fatalf("processTask: %v", err)
	}

	got, _ := store.GetByID(ctx, task.ID)
	if got.Status != queue.StatusCancelled {
		t.Fatalf("task status = %s", got.Status)
	}
	if got.Progress != pipeline.Progress(pipeline.StageEditing) {
		t.Fatalf("progress = %v, want frozen at %v", got.Progress, pipeline.Progress(pipeline.StageEditing))
	}

	// Adaptation never ran.
	if _, err := os.Stat(filepath.Join(cfg.ProcessTempDir(task.ProcessID), "portrait.mp4")); !os.IsNotExist(err) {
		t.Fatal("stage after cancellation still executed")
	}
}

func TestRunLeasesAndProcesses(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.Workflow.QueuePollInterval = 1
	w, store := newTestWorker(t, cfg, nil)
	ctx := context.Background()
	task, err := store.Submit(ctx, queue.Parameters{SourceURL: "https://example.com/watch?v=loop"}, 0)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop()

	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		got, err := store.GetByID(ctx, task.ID)
		if err != nil {
			t.Fatalf("GetByID: %v", err)
		}
		if got.IsTerminal() {
			if got.Status != queue.StatusCompleted {
				t.Fatalf("task ended %s: %s", got.Status, got.ErrorMessage)
			}
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatal("task not processed before deadline")
}

func TestStartTwiceFails(t *testing.T) {
	cfg := newTestConfig(t)
	w, _ := newTestWorker(t, cfg, nil)
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop()
	if err := w.Start(context.Background()); err == nil {
		t.Fatal("second Start must fail")
	}
}

func TestStatusReportsStageHealth(t *testing.T) {
	cfg := newTestConfig(t)
	w, _ := newTestWorker(t, cfg, nil)
	summary := w.Status(context.Background())
	if summary.Running {
		t.Fatal("idle worker reported running")
	}
	if len(summary.StageHealth) != len(pipeline.Stages()) {
		t.Fatalf("stage health entries = %d", len(summary.StageHealth))
	}
	for name, health := range summary.StageHealth {
		if !health.Ready {
			t.Fatalf("stage %s not ready: %+v", name, health)
		}
	}
}

func TestErrorsIsCancellation(t *testing.T) {
	// Guard the loop's shutdown branch: a context cancellation must be
	// distinguishable from a stage failure.
	err := services.Wrap(services.ErrCancelled, "publishing", "upload", "publication interrupted", context.Canceled)
	if !errors.Is(err, context.Canceled) {
		t.Fatal("wrapped cancellation lost the context marker")
	}
}
