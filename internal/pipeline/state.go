package pipeline

import (
	"fmt"
	"sync"
	"time"

	"clipforge/internal/queue"
	"clipforge/internal/services"
)

// ProcessState tracks one in-flight conversion process. Transitions are
// sticky once a terminal stage is reached.
type ProcessState struct {
	mu        sync.RWMutex
	processID string
	stage     Stage
	progress  float64
	message   string
	err       string
	startedAt time.Time
	endedAt   time.Time
	now       func() time.Time
}

// NewState creates a fresh state in the initializing stage.
func NewState(processID string) *ProcessState {
	state := &ProcessState{
		processID: processID,
		stage:     StageInitializing,
		now:       time.Now,
	}
	state.startedAt = state.now()
	return state
}

// StateFromTask reconstructs process state from a persisted queue row.
func StateFromTask(task *queue.Task) *ProcessState {
	state := NewState(task.ProcessID)
	state.startedAt = task.CreatedAt
	state.progress = task.Progress
	state.message = task.Message
	state.err = task.ErrorMessage
	switch task.Status {
	case queue.StatusCompleted:
		state.stage = StageCompleted
		state.endedAt = task.UpdatedAt
	case queue.StatusFailed:
		state.stage = StageFailed
		state.endedAt = task.UpdatedAt
	case queue.StatusCancelled:
		state.stage = StageCancelled
		state.endedAt = task.UpdatedAt
	default:
		if task.Stage != "" && Valid(Stage(task.Stage)) {
			state.stage = Stage(task.Stage)
		}
	}
	return state
}

// ProcessID returns the identifier of the tracked process.
func (p *ProcessState) ProcessID() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.processID
}

// Stage returns the current stage.
func (p *ProcessState) Stage() Stage {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.stage
}

// Progress returns the current overall percentage.
func (p *ProcessState) Progress() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.progress
}

// Message returns the latest progress message.
func (p *ProcessState) Message() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.message
}

// Err returns the recorded failure message, empty unless failed.
func (p *ProcessState) Err() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.err
}

// Advance moves the process into the given working stage and snaps
// progress to the stage entry percentage.
func (p *ProcessState) Advance(stage Stage, message string) error {
	if !Valid(stage) {
		return services.Wrap(services.ErrValidation, "pipeline", "advance", fmt.Sprintf("unknown stage %q", stage), nil)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if IsTerminal(p.stage) {
		return services.Wrap(services.ErrValidation, "pipeline", "advance",
			fmt.Sprintf("process %s already %s", p.processID, p.stage), nil)
	}
	p.stage = stage
	p.message = message
	if entry := Progress(stage); entry >= 0 {
		p.progress = entry
	}
	if IsTerminal(stage) {
		p.endedAt = p.now()
	}
	return nil
}

// SetProgress records intra-stage progress. Values are clamped to the
// current stage entry percentage on the low side and 100 on the high
// side. No-op once terminal.
func (p *ProcessState) SetProgress(progress float64, message string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if IsTerminal(p.stage) {
		return
	}
	if entry := Progress(p.stage); entry >= 0 && progress < entry {
		progress = entry
	}
	if progress > 100 {
		progress = 100
	}
	p.progress = progress
	if message != "" {
		p.message = message
	}
}

// Complete marks the process finished at 100 percent.
func (p *ProcessState) Complete(message string) error {
	return p.Advance(StageCompleted, message)
}

// Fail freezes the process at its current progress with an error
// message. Repeated calls after a terminal transition are ignored.
func (p *ProcessState) Fail(message string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if IsTerminal(p.stage) {
		return
	}
	p.stage = StageFailed
	p.err = message
	p.message = message
	p.endedAt = p.now()
}

// Cancel freezes the process at its current progress.
func (p *ProcessState) Cancel() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if IsTerminal(p.stage) {
		return
	}
	p.stage = StageCancelled
	p.message = "cancelled by request"
	p.endedAt = p.now()
}

// Elapsed reports wall time since the process started, stopping at the
// terminal transition once one occurred.
func (p *ProcessState) Elapsed() time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.endedAt.IsZero() {
		return p.endedAt.Sub(p.startedAt)
	}
	return p.now().Sub(p.startedAt)
}

// EstimatedRemaining extrapolates remaining time from progress so far.
// Returns zero until progress is positive or after a terminal stage.
func (p *ProcessState) EstimatedRemaining() time.Duration {
	p.mu.RLock()
	progress := p.progress
	terminal := IsTerminal(p.stage)
	p.mu.RUnlock()
	if terminal || progress <= 0 {
		return 0
	}
	elapsed := p.Elapsed()
	remaining := float64(elapsed) / progress * (100 - progress)
	return time.Duration(remaining)
}

// Snapshot captures the state for status reporting.
type Snapshot struct {
	ProcessID          string        `json:"process_id"`
	Stage              Stage         `json:"stage"`
	Progress           float64       `json:"progress"`
	Message            string        `json:"message,omitempty"`
	Error              string        `json:"error,omitempty"`
	StartedAt          time.Time     `json:"started_at"`
	Elapsed            time.Duration `json:"elapsed"`
	EstimatedRemaining time.Duration `json:"estimated_remaining"`
}

// Snapshot returns a point-in-time copy for status queries.
func (p *ProcessState) Snapshot() Snapshot {
	elapsed := p.Elapsed()
	remaining := p.EstimatedRemaining()
	p.mu.RLock()
	defer p.mu.RUnlock()
	return Snapshot{
		ProcessID:          p.processID,
		Stage:              p.stage,
		Progress:           p.progress,
		Message:            p.message,
		Error:              p.err,
		StartedAt:          p.startedAt,
		Elapsed:            elapsed,
		EstimatedRemaining: remaining,
	}
}
