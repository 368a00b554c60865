package worker

import (
	"context"
	"time"

	"clipforge/internal/logging"
	"clipforge/internal/pipeline"
)

func (w *Worker) completeTask(ctx context.Context, proc *processContext) error {
	// Verify the hash chain built across the stages before declaring
	// the process sound.
	chainResult := proc.ledger.VerifyChain(proc.chain)
	if err := proc.trail.RecordValidation("process_chain", chainResult.Valid, map[string]any{
		"chain_length":   chainResult.Length,
		"not_applicable": chainResult.NotApplicable,
	}); err != nil {
		proc.logger.Warn("failed to record chain validation", logging.Error(err))
	}

	finalVideo := proc.ex.Artifacts[pipeline.StageOptimizing]
	finalHash, err := proc.ledger.HashFile(finalVideo)
	if err != nil {
		w.failTask(ctx, proc, pipeline.StageOptimizing, err)
		return nil
	}

	copied, err := proc.man.CopyArtifact(finalVideo, "")
	if err != nil {
		w.failTask(ctx, proc, pipeline.StageOptimizing, err)
		return nil
	}

	now := time.Now()
	started := proc.task.CreatedAt
	report := map[string]any{
		"process_id":   proc.task.ProcessID,
		"task_id":      proc.task.ID,
		"url":          proc.task.Parameters.SourceURL,
		"start_time":   float64(started.UnixNano()) / float64(time.Second),
		"end_time":     float64(now.UnixNano()) / float64(time.Second),
		"total_time":   now.Sub(started).Seconds(),
		"output_path":  proc.man.OutputDir(),
		"final_video":  copied,
		"final_hash":   finalHash,
		"published":    proc.ex.Published,
		"publication":  proc.ex.PublicationResult,
		"metadata":     proc.ex.Metadata,
		"download_url": "/api/tasks/" + proc.task.ID + "/result",
		"chain_valid":  chainResult.Valid,
	}
	signature, err := proc.ledger.Sign(report, w.cfg.Integrity.SigningSecret)
	if err != nil {
		proc.logger.Warn("failed to sign final report", logging.Error(err))
	} else {
		report["signature"] = signature
	}

	reportPath, err := proc.man.SaveFinalReport(report)
	if err != nil {
		w.failTask(ctx, proc, pipeline.StagePublishing, err)
		return nil
	}

	if w.uploader != nil {
		if _, err := proc.man.Upload(ctx, w.uploader, copied, ""); err != nil {
			proc.logger.Warn("artifact upload failed", logging.Error(err))
		}
	}

	if err := proc.trail.Complete(report); err != nil {
		proc.logger.Warn("failed to record completion", logging.Error(err))
	}
	if err := proc.state.Complete("conversion finished"); err != nil {
		proc.logger.Warn("state already terminal", logging.Error(err))
	}
	if err := w.store.MarkCompleted(ctx, proc.task.ID, reportPath); err != nil {
		return err
	}

	proc.logger.Info("task completed",
		logging.String("result_path", reportPath),
		logging.Duration("elapsed", now.Sub(started)),
	)
	_ = w.notifier.NotifyTaskCompleted(ctx, proc.task.ID, reportPath, now.Sub(started))
	if proc.ex.Published {
		url, _ := proc.ex.PublicationResult["video_url"].(string)
		_ = w.notifier.NotifyPublished(ctx, proc.task.ID, url)
	}
	return nil
}
