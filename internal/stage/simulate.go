package stage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"clipforge/internal/digest"
	"clipforge/internal/pipeline"
	"clipforge/internal/services"
)

// Simulated builds a handler set that exercises the full pipeline
// without external tools. Every stage writes a real file into the
// exchange work dir so hashing, auditing, and manifesting behave
// exactly as they do with real transformations. publishDelay spaces
// the publication sub-steps; the sleeps honor context cancellation.
func Simulated(publishDelay time.Duration) Set {
	return Set{
		pipeline.StageAcquiring:  Func{Name: "acquiring", Fn: simulateAcquire},
		pipeline.StageAnalyzing:  Func{Name: "analyzing", Fn: simulateAnalyze},
		pipeline.StageEditing:    Func{Name: "editing", Fn: simulateEdit},
		pipeline.StageAdapting:   Func{Name: "adapting", Fn: simulateAdapt},
		pipeline.StageOptimizing: Func{Name: "optimizing", Fn: simulateOptimize},
		pipeline.StagePublishing: Func{Name: "publishing", Fn: publishFunc(publishDelay)},
	}
}

func writeStageFile(ex *Exchange, name, content string) (string, error) {
	path := filepath.Join(ex.WorkDir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", services.Wrap(services.ErrStage, "simulate", "write artifact", name, err)
	}
	return path, nil
}

func simulateAcquire(ctx context.Context, ex *Exchange) error {
	if ex.Params.SourceURL == "" {
		return services.Wrap(services.ErrValidation, "acquiring", "download", "source url is empty", nil)
	}
	videoPath, err := writeStageFile(ex, "source_video.mp4", "source video for "+ex.Params.SourceURL)
	if err != nil {
		return err
	}
	audioPath, err := writeStageFile(ex, "source_audio.m4a", "source audio for "+ex.Params.SourceURL)
	if err != nil {
		return err
	}
	ex.AudioPath = audioPath
	ex.VideoInfo = map[string]any{
		"source_url": ex.Params.SourceURL,
		"title":      "Simulated source",
		"duration":   600,
		"resolution": "1920x1080",
	}
	ex.SetArtifact(pipeline.StageAcquiring, videoPath)
	return nil
}

func simulateAnalyze(ctx context.Context, ex *Exchange) error {
	fd, err := digest.File(ex.Current)
	if err != nil {
		return services.Wrap(services.ErrStage, "analyzing", "probe", ex.Current, err)
	}
	ex.Segments = []map[string]any{
		{"start": 12.0, "end": 27.0, "score": 0.91},
		{"start": 140.0, "end": 152.0, "score": 0.84},
	}
	ex.AnalysisReport = map[string]any{
		"source_hash":   fd.Hash,
		"source_size":   fd.Size,
		"segment_count": len(ex.Segments),
	}
	ex.SetArtifact(pipeline.StageAnalyzing, ex.Current)
	return nil
}

func simulateEdit(ctx context.Context, ex *Exchange) error {
	path, err := writeStageFile(ex, "edited.mp4",
		fmt.Sprintf("edited cut of %s with %d segments", filepath.Base(ex.Current), len(ex.Segments)))
	if err != nil {
		return err
	}
	ex.SetArtifact(pipeline.StageEditing, path)
	return nil
}

func simulateAdapt(ctx context.Context, ex *Exchange) error {
	path, err := writeStageFile(ex, "portrait.mp4",
		"9:16 portrait adaptation of "+filepath.Base(ex.Current))
	if err != nil {
		return err
	}
	ex.SetArtifact(pipeline.StageAdapting, path)
	return nil
}

func simulateOptimize(ctx context.Context, ex *Exchange) error {
	path, err := writeStageFile(ex, "final.mp4",
		"optimized rendition of "+filepath.Base(ex.Current))
	if err != nil {
		return err
	}
	ex.Metadata = map[string]any{
		"caption":       "Simulated highlight",
		"hashtags":      ex.Params.Hashtags,
		"audio_quality": ex.Params.AudioQuality,
		"video_quality": ex.Params.VideoQuality,
	}
	ex.SetArtifact(pipeline.StageOptimizing, path)
	return nil
}

// publishFunc emulates the platform publisher: upload, publish,
// verify, each separated by a short wait the way the real client
// paces its API calls.
func publishFunc(delay time.Duration) func(ctx context.Context, ex *Exchange) error {
	return func(ctx context.Context, ex *Exchange) error {
		if !ex.Params.Publish {
			ex.SetArtifact(pipeline.StagePublishing, ex.Current)
			return nil
		}
		if _, err := os.Stat(ex.Current); err != nil {
			return services.Wrap(services.ErrNotFound, "publishing", "verify video", ex.Current, err)
		}
		steps := []string{"upload", "publish", "verify"}
		for _, step := range steps {
			if err := sleepCtx(ctx, delay); err != nil {
				return services.Wrap(services.ErrCancelled, "publishing", step, "publication interrupted", err)
			}
		}
		videoID := fmt.Sprintf("video_%d_%s", time.Now().Unix(), ex.ProcessID)
		ex.Published = true
		ex.PublicationResult = map[string]any{
			"status":    "published",
			"video_id":  videoID,
			"video_url": "https://short.example/v/" + videoID,
			"hashtags":  ex.Params.Hashtags,
		}
		ex.SetArtifact(pipeline.StagePublishing, ex.Current)
		return nil
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
