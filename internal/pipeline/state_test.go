package pipeline

import (
	"testing"
	"time"

	"clipforge/internal/queue"
)

func TestStageOrderingAndProgress(t *testing.T) {
	want := []struct {
		stage    Stage
		progress float64
	}{
		{StageAcquiring, 5},
		{StageAnalyzing, 20},
		{StageEditing, 40},
		{StageAdapting, 60},
		{StageOptimizing, 75},
		{StagePublishing, 90},
	}
	stages := Stages()
	if len(stages) != len(want) {
		t.Fatalf("Stages() returned %d stages, want %d", len(stages), len(want))
	}
	for i, expected := range want {
		if stages[i] != expected.stage {
			t.Fatalf("stage %d = %s, want %s", i, stages[i], expected.stage)
		}
		if got := Progress(expected.stage); got != expected.progress {
			t.Fatalf("Progress(%s) = %v, want %v", expected.stage, got, expected.progress)
		}
	}
	if Next(StagePublishing) != StageCompleted {
		t.Fatalf("Next(publishing) = %s", Next(StagePublishing))
	}
	if Next(StageFailed) != StageFailed {
		t.Fatalf("terminal stage should have no successor")
	}
}

func TestAdvanceSnapsProgress(t *testing.T) {
	state := NewState("proc-1")
	if state.Stage() != StageInitializing || state.Progress() != 0 {
		t.Fatalf("unexpected initial state: %s %v", state.Stage(), state.Progress())
	}
	if err := state.Advance(StageAnalyzing, "probing source"); err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if state.Progress() != 20 || state.Message() != "probing source" {
		t.Fatalf("entry progress not applied: %v %q", state.Progress(), state.Message())
	}
}

func TestTerminalStatesAreSticky(t *testing.T) {
	state := NewState("proc-2")
	if err := state.Advance(StageEditing, ""); err != nil {
		t.Fatalf("Advance: %v", err)
	}
	state.Fail("trim failed")

	if state.Stage() != StageFailed {
		t.Fatalf("stage = %s", state.Stage())
	}
	if state.Progress() != 40 {
		t.Fatalf("failure must freeze progress at 40, got %v", state.Progress())
	}
	if err := state.Advance(StageAdapting, ""); err == nil {
		t.Fatal("Advance after failure must be rejected")
	}
	state.Cancel()
	if state.Stage() != StageFailed {
		t.Fatal("terminal stage overwritten by later cancel")
	}
	state.SetProgress(99, "late update")
	if state.Progress() != 40 {
		t.Fatal("progress mutated after terminal transition")
	}
}

func TestCancelFreezesProgress(t *testing.T) {
	state := NewState("proc-3")
	if err := state.Advance(StageOptimizing, ""); err != nil {
		t.Fatalf("Advance: %v", err)
	}
	state.SetProgress(80, "encoding")
	state.Cancel()
	if state.Stage() != StageCancelled || state.Progress() != 80 {
		t.Fatalf("unexpected cancel state: %s %v", state.Stage(), state.Progress())
	}
}

func TestSetProgressClamps(t *testing.T) {
	state := NewState("proc-4")
	if err := state.Advance(StagePublishing, ""); err != nil {
		t.Fatalf("Advance: %v", err)
	}
	state.SetProgress(50, "")
	if state.Progress() != 90 {
		t.Fatalf("progress regressed below stage entry: %v", state.Progress())
	}
	state.SetProgress(150, "")
	if state.Progress() != 100 {
		t.Fatalf("progress exceeded 100: %v", state.Progress())
	}
}

func TestEstimatedRemaining(t *testing.T) {
	state := NewState("proc-5")
	base := time.Now()
	state.startedAt = base
	state.now = func() time.Time { return base.Add(time.Minute) }

	if state.EstimatedRemaining() != 0 {
		t.Fatal("no estimate expected at zero progress")
	}
	if err := state.Advance(StageAnalyzing, ""); err != nil {
		t.Fatalf("Advance: %v", err)
	}
	remaining := state.EstimatedRemaining()
	if remaining != 4*time.Minute {
		t.Fatalf("remaining = %s, want 4m", remaining)
	}
	if err := state.Complete("done"); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if state.EstimatedRemaining() != 0 {
		t.Fatal("completed process must not report remaining time")
	}
	if state.Elapsed() != time.Minute {
		t.Fatalf("elapsed = %s, want 1m", state.Elapsed())
	}
}

func TestStateFromTask(t *testing.T) {
	created := time.Now().Add(-2 * time.Minute)
	task := &queue.Task{
		ID:        "t1",
		ProcessID: "t1",
		Status:    queue.StatusProcessing,
		Stage:     string(StageAdapting),
		Progress:  60,
		Message:   "fitting portrait frame",
		CreatedAt: created,
		UpdatedAt: time.Now(),
	}
	state := StateFromTask(task)
	if state.Stage() != StageAdapting || state.Progress() != 60 {
		t.Fatalf("reconstruction mismatch: %s %v", state.Stage(), state.Progress())
	}
	if state.Elapsed() < time.Minute {
		t.Fatalf("elapsed should reflect created_at, got %s", state.Elapsed())
	}

	task.Status = queue.StatusFailed
	task.ErrorMessage = "encoder exited"
	state = StateFromTask(task)
	if state.Stage() != StageFailed || state.Err() != "encoder exited" {
		t.Fatalf("failed reconstruction mismatch: %s %q", state.Stage(), state.Err())
	}
}
