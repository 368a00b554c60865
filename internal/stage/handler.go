package stage

import (
	"context"

	"clipforge/internal/pipeline"
	"clipforge/internal/queue"
)

// Exchange carries the working state of one conversion process through
// the stages. Each stage reads the current artifact, produces a new
// one, and records anything the later stages or the final report need.
type Exchange struct {
	ProcessID string
	Params    queue.Parameters
	WorkDir   string

	// Current is the artifact path the next stage should consume.
	Current string
	// Artifacts maps each completed stage to the file it produced.
	Artifacts map[pipeline.Stage]string

	// AudioPath is the extracted audio track from acquisition.
	AudioPath string
	// VideoInfo holds source metadata gathered during acquisition.
	VideoInfo map[string]any
	// Segments are the highlight windows selected during analysis.
	Segments []map[string]any
	// AnalysisReport summarizes the analysis pass.
	AnalysisReport map[string]any
	// Metadata is the viral metadata produced by optimization.
	Metadata map[string]any

	Published         bool
	PublicationResult map[string]any
}

// NewExchange prepares an empty exchange for a process.
func NewExchange(processID, workDir string, params queue.Parameters) *Exchange {
	return &Exchange{
		ProcessID: processID,
		Params:    params,
		WorkDir:   workDir,
		Artifacts: make(map[pipeline.Stage]string),
		Metadata:  make(map[string]any),
	}
}

// SetArtifact records the stage output and makes it the current input.
func (e *Exchange) SetArtifact(stage pipeline.Stage, path string) {
	e.Artifacts[stage] = path
	e.Current = path
}

// Handler is the contract each pipeline stage implements.
type Handler interface {
	Run(ctx context.Context, ex *Exchange) error
	HealthCheck(ctx context.Context) Health
}

// Func adapts a bare function to a Handler that always reports ready.
type Func struct {
	Name string
	Fn   func(ctx context.Context, ex *Exchange) error
}

func (f Func) Run(ctx context.Context, ex *Exchange) error {
	return f.Fn(ctx, ex)
}

func (f Func) HealthCheck(context.Context) Health {
	return Healthy(f.Name)
}

// Set maps each working stage to its handler.
type Set map[pipeline.Stage]Handler
