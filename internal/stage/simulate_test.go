package stage

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"clipforge/internal/pipeline"
	"clipforge/internal/queue"
	"clipforge/internal/services"
)

func runStages(t *testing.T, ex *Exchange, set Set, stages ...pipeline.Stage) {
	t.Helper()
	for _, stg := range stages {
		handler, ok := set[stg]
		if !ok {
			t.Fatalf("no handler for %s", stg)
		}
		if err := handler.Run(context.Background(), ex); err != nil {
			t.Fatalf("%s: %v", stg, err)
		}
	}
}

func TestSimulatedPipelineProducesArtifacts(t *testing.T) {
	set := Simulated(0)
	ex := NewExchange("proc-s", t.TempDir(), queue.Parameters{
		SourceURL: "https://example.com/watch?v=x",
		Hashtags:  []string{"fyp"},
	})

	runStages(t, ex, set, pipeline.Stages()...)

	for _, stg := range []pipeline.Stage{
		pipeline.StageAcquiring,
		pipeline.StageEditing,
		pipeline.StageAdapting,
		pipeline.StageOptimizing,
	} {
		path, ok := ex.Artifacts[stg]
		if !ok {
			t.Fatalf("no artifact for %s", stg)
		}
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("artifact for %s missing on disk: %v", stg, err)
		}
	}
	if ex.AudioPath == "" || ex.VideoInfo == nil {
		t.Fatal("acquisition outputs missing")
	}
	if len(ex.Segments) == 0 || ex.AnalysisReport == nil {
		t.Fatal("analysis outputs missing")
	}
	if ex.Metadata == nil {
		t.Fatal("optimization metadata missing")
	}
	if ex.Published {
		t.Fatal("published without being asked to")
	}
	if ex.Current != ex.Artifacts[pipeline.StagePublishing] {
		t.Fatal("current artifact not advanced")
	}
}

func TestSimulatedPublish(t *testing.T) {
	set := Simulated(0)
	ex := NewExchange("proc-p", t.TempDir(), queue.Parameters{
		SourceURL: "https://example.com/watch?v=y",
		Publish:   true,
	})

	runStages(t, ex, set, pipeline.Stages()...)

	if !ex.Published {
		t.Fatal("publish requested but not performed")
	}
	if status, _ := ex.PublicationResult["status"].(string); status != "published" {
		t.Fatalf("publication result = %+v", ex.PublicationResult)
	}
}

func TestSimulatedAcquireRequiresURL(t *testing.T) {
	set := Simulated(0)
	ex := NewExchange("proc-e", t.TempDir(), queue.Parameters{})
	err := set[pipeline.StageAcquiring].Run(context.Background(), ex)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation marker, got %v", err)
	}
}

func TestPublishHonorsCancellation(t *testing.T) {
	set := Simulated(50 * time.Millisecond)
	ex := NewExchange("proc-c", t.TempDir(), queue.Parameters{
		SourceURL: "https://example.com/watch?v=z",
		Publish:   true,
	})
	runStages(t, ex, set, pipeline.StageAcquiring, pipeline.StageAnalyzing,
		pipeline.StageEditing, pipeline.StageAdapting, pipeline.StageOptimizing)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := set[pipeline.StagePublishing].Run(ctx, ex)
	if !errors.Is(err, services.ErrCancelled) {
		t.Fatalf("expected cancelled marker, got %v", err)
	}
	if ex.Published {
		t.Fatal("publication completed despite cancellation")
	}
}

func TestFuncHealth(t *testing.T) {
	handler := Func{Name: "editing", Fn: func(context.Context, *Exchange) error { return nil }}
	health := handler.HealthCheck(context.Background())
	if !health.Ready || health.Name != "editing" {
		t.Fatalf("unexpected health: %+v", health)
	}
}
