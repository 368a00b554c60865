package pipeline

// Stage identifies a phase of the conversion pipeline.
type Stage string

const (
	StageInitializing Stage = "initializing"
	StageAcquiring    Stage = "acquiring"
	StageAnalyzing    Stage = "analyzing"
	StageEditing      Stage = "editing"
	StageAdapting     Stage = "adapting"
	StageOptimizing   Stage = "optimizing"
	StagePublishing   Stage = "publishing"
	StageCompleted    Stage = "completed"
	StageFailed       Stage = "failed"
	StageCancelled    Stage = "cancelled"
)

// stageOrder lists the working stages in canonical execution order.
var stageOrder = []Stage{
	StageInitializing,
	StageAcquiring,
	StageAnalyzing,
	StageEditing,
	StageAdapting,
	StageOptimizing,
	StagePublishing,
	StageCompleted,
}

// stageProgress maps each stage to the overall progress on entry.
var stageProgress = map[Stage]float64{
	StageInitializing: 0,
	StageAcquiring:    5,
	StageAnalyzing:    20,
	StageEditing:      40,
	StageAdapting:     60,
	StageOptimizing:   75,
	StagePublishing:   90,
	StageCompleted:    100,
}

// Stages returns the working stages in execution order, excluding the
// initializing placeholder and the completed terminal.
func Stages() []Stage {
	ordered := make([]Stage, 0, len(stageOrder)-2)
	for _, stage := range stageOrder {
		if stage == StageInitializing || stage == StageCompleted {
			continue
		}
		ordered = append(ordered, stage)
	}
	return ordered
}

// Progress reports the overall progress percentage at stage entry.
// Terminal failure states keep whatever progress they froze at, so
// they report -1 here.
func Progress(stage Stage) float64 {
	if value, ok := stageProgress[stage]; ok {
		return value
	}
	return -1
}

// IsTerminal reports whether the stage ends the pipeline.
func IsTerminal(stage Stage) bool {
	switch stage {
	case StageCompleted, StageFailed, StageCancelled:
		return true
	}
	return false
}

// Valid reports whether the stage name is known.
func Valid(stage Stage) bool {
	if IsTerminal(stage) {
		return true
	}
	_, ok := stageProgress[stage]
	return ok
}

// Next returns the stage following the given working stage, or
// StageCompleted when the sequence is exhausted. Terminal stages have
// no successor and return themselves.
func Next(stage Stage) Stage {
	if IsTerminal(stage) {
		return stage
	}
	for i, candidate := range stageOrder {
		if candidate == stage && i+1 < len(stageOrder) {
			return stageOrder[i+1]
		}
	}
	return StageCompleted
}

func (s Stage) String() string {
	return string(s)
}
