package worker

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"clipforge/internal/audit"
	"clipforge/internal/integrity"
	"clipforge/internal/logging"
	"clipforge/internal/manifest"
	"clipforge/internal/pipeline"
	"clipforge/internal/queue"
	"clipforge/internal/services"
	"clipforge/internal/stage"
)

// stageMessages are the progress messages written at stage entry.
var stageMessages = map[pipeline.Stage]string{
	pipeline.StageAcquiring:  "downloading source video",
	pipeline.StageAnalyzing:  "analyzing video content",
	pipeline.StageEditing:    "editing highlight cut",
	pipeline.StageAdapting:   "adapting to portrait format",
	pipeline.StageOptimizing: "optimizing for engagement",
	pipeline.StagePublishing: "publishing to platform",
}

// processContext bundles the per-process collaborators. Everything is
// scoped to one task; nothing is shared between processes.
type processContext struct {
	task   *queue.Task
	state  *pipeline.ProcessState
	trail  *audit.Trail
	ledger *integrity.Ledger
	man    *manifest.Manager
	ex     *stage.Exchange
	logger *slog.Logger
	chain  []integrity.ChainRecord
}

func (w *Worker) processTask(ctx context.Context, task *queue.Task) error {
	ctx = services.WithTaskID(ctx, task.ID)
	ctx = services.WithProcessID(ctx, task.ProcessID)
	logger := logging.WithContext(ctx, w.logger)
	logger.Info("processing task", logging.String("source_url", task.Parameters.SourceURL))

	proc, err := w.buildProcessContext(task, logger)
	if err != nil {
		logger.Error("failed to initialize process", logging.Error(err))
		if markErr := w.store.MarkFailed(ctx, task.ID, err.Error()); markErr != nil {
			logger.Warn("failed to mark task failed", logging.Error(markErr))
		}
		return err
	}
	// The report on disk must reflect every validation that ran, even
	// when the task fails partway.
	defer proc.ledger.GenerateReport()

	if err := proc.trail.RecordStart(task.Parameters.SourceURL); err != nil {
		logger.Warn("failed to record process start", logging.Error(err))
	}
	_ = w.notifier.NotifyTaskStarted(ctx, task.ID, task.Parameters.SourceURL)

	for _, stg := range pipeline.Stages() {
		cancelled, err := w.checkCancel(ctx, proc)
		if err != nil {
			return err
		}
		if cancelled {
			return nil
		}
		if err := w.runStage(ctx, proc, stg); err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			w.failTask(ctx, proc, stg, err)
			return nil
		}
	}

	return w.completeTask(ctx, proc)
}

func (w *Worker) buildProcessContext(task *queue.Task, logger *slog.Logger) (*processContext, error) {
	trail, err := audit.New(w.cfg.Paths.LogDir, task.ProcessID, logger)
	if err != nil {
		return nil, err
	}
	ledger, err := integrity.New(w.cfg.Paths.LogDir, task.ProcessID, logger)
	if err != nil {
		return nil, err
	}
	man, err := manifest.New(w.cfg.Paths.OutputDir, task.ProcessID, logger)
	if err != nil {
		return nil, err
	}
	workDir := w.cfg.ProcessTempDir(task.ProcessID)
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "worker", "init", "create work directory", err)
	}
	return &processContext{
		task:   task,
		state:  pipeline.StateFromTask(task),
		trail:  trail,
		ledger: ledger,
		man:    man,
		ex:     stage.NewExchange(task.ProcessID, workDir, task.Parameters),
		logger: logger,
	}, nil
}

// checkCancel honors a pending cancellation request before the next
// stage starts. Progress stays frozen at the last completed stage.
func (w *Worker) checkCancel(ctx context.Context, proc *processContext) (bool, error) {
	requested, err := w.store.CancelRequested(ctx, proc.task.ID)
	if err != nil {
		return false, err
	}
	if !requested {
		return false, nil
	}
	progress := proc.state.Progress()
	proc.state.Cancel()
	if err := w.store.MarkCancelled(ctx, proc.task.ID, progress); err != nil {
		return false, err
	}
	proc.trail.Fail("cancelled by request", map[string]any{"progress": progress})
	proc.logger.Info("task cancelled", logging.Float64("progress", progress))
	_ = w.notifier.NotifyTaskCancelled(ctx, proc.task.ID)
	return true, nil
}

func (w *Worker) runStage(ctx context.Context, proc *processContext, stg pipeline.Stage) error {
	ctx = services.WithStage(ctx, stg.String())
	logger := logging.WithContext(ctx, w.logger)
	message := stageMessages[stg]
	if err := proc.state.Advance(stg, message); err != nil {
		return err
	}
	progress := pipeline.Progress(stg)
	if err := w.store.UpdateProgress(ctx, proc.task.ID, stg.String(), progress, message); err != nil {
		return err
	}
	if err := proc.trail.RecordEvent("stage_start", map[string]any{
		"stage":    stg.String(),
		"progress": progress,
	}); err != nil {
		logger.Warn("failed to record stage start", logging.Error(err))
	}
	logger.Info("stage started", logging.Float64("progress", progress))

	handler, ok := w.stages[stg]
	if !ok {
		return services.Wrap(services.ErrConfiguration, stg.String(), "run", "no handler configured", nil)
	}
	input := proc.ex.Current
	if err := handler.Run(ctx, proc.ex); err != nil {
		return err
	}
	return w.recordStageOutputs(proc, stg, input)
}

// recordStageOutputs captures digests, audit events, and manifest
// entries for what the stage produced, and extends the process hash
// chain. inputPath is the artifact the stage consumed.
func (w *Worker) recordStageOutputs(proc *processContext, stg pipeline.Stage, inputPath string) error {
	info := map[string]any{"stage": stg.String()}
	var payload any

	switch stg {
	case pipeline.StageAcquiring:
		videoHash, err := proc.ledger.HashFile(proc.ex.Artifacts[stg])
		if err != nil {
			return err
		}
		audioHash, err := proc.ledger.HashFile(proc.ex.AudioPath)
		if err != nil {
			return err
		}
		info["video_path"] = proc.ex.Artifacts[stg]
		info["video_hash"] = videoHash
		info["audio_path"] = proc.ex.AudioPath
		info["audio_hash"] = audioHash
		info["video_info"] = proc.ex.VideoInfo
		payload = proc.ex.VideoInfo
	case pipeline.StageAnalyzing:
		segmentsHash := proc.ledger.HashData(proc.ex.Segments)
		info["segments"] = proc.ex.Segments
		info["segments_hash"] = segmentsHash
		info["analysis_report"] = proc.ex.AnalysisReport
		payload = proc.ex.Segments
	case pipeline.StageEditing, pipeline.StageAdapting, pipeline.StageOptimizing:
		hash, err := proc.ledger.HashFile(proc.ex.Artifacts[stg])
		if err != nil {
			return err
		}
		if err := proc.trail.RecordTransformation(stg.String(), inputPath, proc.ex.Artifacts[stg], map[string]any{
			"video_quality": proc.ex.Params.VideoQuality,
		}); err != nil {
			proc.logger.Warn("failed to record transformation", logging.Error(err))
		}
		info["output_path"] = proc.ex.Artifacts[stg]
		info["output_hash"] = hash
		if stg == pipeline.StageOptimizing {
			info["metadata"] = proc.ex.Metadata
			info["metadata_hash"] = proc.ledger.HashData(proc.ex.Metadata)
		}
		payload = map[string]any{"output_hash": hash}
	case pipeline.StagePublishing:
		if !proc.ex.Published {
			return nil
		}
		info["result"] = proc.ex.PublicationResult
		payload = proc.ex.PublicationResult
	default:
		return nil
	}

	if err := proc.man.Record(info); err != nil {
		return err
	}
	if err := proc.trail.RecordFileOperation("create", proc.ex.Current, map[string]any{"stage": stg.String()}); err != nil {
		proc.logger.Warn("failed to record file operation", logging.Error(err))
	}

	link := integrity.ChainRecord{
		Stage:     stg.String(),
		Timestamp: float64(time.Now().UnixNano()) / float64(time.Second),
		DataHash:  proc.ledger.HashData(payload),
		Data:      payload,
	}
	if n := len(proc.chain); n > 0 {
		link.PreviousHash = proc.chain[n-1].DataHash
	}
	proc.chain = append(proc.chain, link)
	return nil
}

func (w *Worker) failTask(ctx context.Context, proc *processContext, stg pipeline.Stage, cause error) {
	proc.state.Fail(cause.Error())
	proc.trail.Fail(cause.Error(), map[string]any{"stage": stg.String()})
	if err := w.store.MarkFailed(ctx, proc.task.ID, cause.Error()); err != nil {
		proc.logger.Warn("failed to mark task failed", logging.Error(err))
	}
	proc.logger.Error("stage failed",
		logging.String(logging.FieldStage, stg.String()),
		logging.Error(cause),
	)
	_ = w.notifier.NotifyTaskFailed(ctx, proc.task.ID, cause.Error())
	_ = w.notifier.NotifyError(ctx, cause, stg.String())
}
