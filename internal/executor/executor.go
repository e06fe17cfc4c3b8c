// Package executor runs pipeline definitions over documents: strict stage
// order, per-stage input resolution, failure isolation, and per-stage cost
// and latency accounting.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/docbench/docbench/internal/corpus"
	"github.com/docbench/docbench/internal/pipeline"
	"github.com/docbench/docbench/internal/tools"
)

const defaultStageTimeout = 5 * time.Minute

// StageStatus is the recorded outcome of one stage.
type StageStatus string

const (
	StatusOK      StageStatus = "ok"
	StatusFailed  StageStatus = "failed"
	StatusSkipped StageStatus = "skipped"
)

// StageResult records one stage's outcome. A failed stage keeps whatever
// cost the tool reported before failing; a skipped stage never ran and
// carries zero cost and latency.
type StageResult struct {
	Stage     string             `json:"stage"`
	Tool      string             `json:"tool"`
	Status    StageStatus        `json:"status"`
	Output    *tools.StageOutput `json:"output,omitempty"`
	CostUSD   float64            `json:"cost_usd"`
	Latency   time.Duration      `json:"latency"`
	Error     string             `json:"error,omitempty"`
	ErrorKind ErrorKind          `json:"error_kind,omitempty"`
}

// PipelineResult is the complete outcome of running one pipeline over one
// document. It exists even when the pipeline failed partway; FinalOutput is
// the last successful stage's output, nil when no stage succeeded.
type PipelineResult struct {
	DocID        string             `json:"doc_id"`
	DocType      string             `json:"doc_type"`
	Pipeline     string             `json:"pipeline"`
	Stages       []StageResult      `json:"stages"`
	FinalOutput  *tools.StageOutput `json:"final_output,omitempty"`
	TotalCostUSD float64            `json:"total_cost_usd"`
	TotalLatency time.Duration      `json:"total_latency"`
	Success      bool               `json:"success"`
}

// Config configures an Executor.
type Config struct {
	Registry     *tools.Registry
	StageTimeout time.Duration // per-invocation timeout (default 5m)
	Logger       *slog.Logger
}

// Executor runs pipeline definitions. It never retries and never estimates
// cost; both belong to the tool backends.
type Executor struct {
	registry     *tools.Registry
	stageTimeout time.Duration
	logger       *slog.Logger
}

// New creates an Executor.
func New(cfg Config) *Executor {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.StageTimeout
	if timeout <= 0 {
		timeout = defaultStageTimeout
	}

	return &Executor{
		registry:     cfg.Registry,
		stageTimeout: timeout,
		logger:       logger.With("component", "executor"),
	}
}

// Validate checks a pipeline definition against the registry: every tool
// must exist and accept its stage configuration. Called by Execute before
// any stage runs, and exposed for `pipelines validate`.
func (e *Executor) Validate(def *pipeline.Definition) error {
	if err := def.Validate(); err != nil {
		return &ConfigError{Pipeline: def.Name, Err: err}
	}
	for _, stage := range def.Stages {
		tool, err := e.registry.Get(stage.Tool)
		if err != nil {
			return &ConfigError{Pipeline: def.Name, Err: fmt.Errorf("stage %s: %w", stage.Name, err)}
		}
		if err := tool.ValidateConfig(stage.Config); err != nil {
			return &ConfigError{Pipeline: def.Name, Err: fmt.Errorf("stage %s: %w", stage.Name, err)}
		}
	}
	return nil
}

// Execute runs the pipeline over one document. Stage failures are recorded,
// not returned: the only error paths are configuration problems caught
// before the first stage runs.
func (e *Executor) Execute(ctx context.Context, def *pipeline.Definition, doc corpus.Document) (*PipelineResult, error) {
	if err := e.Validate(def); err != nil {
		return nil, err
	}

	result := &PipelineResult{
		DocID:    doc.ID,
		DocType:  doc.Type,
		Pipeline: def.Name,
		Stages:   make([]StageResult, 0, len(def.Stages)),
		Success:  true,
	}

	outputs := make(map[string]*tools.StageOutput, len(def.Stages))

	for i, stage := range def.Stages {
		if !result.Success {
			result.Stages = append(result.Stages, StageResult{
				Stage:  stage.Name,
				Tool:   stage.Tool,
				Status: StatusSkipped,
			})
			continue
		}

		sr := e.runStage(ctx, def, i, doc, outputs)
		result.Stages = append(result.Stages, sr)
		result.TotalCostUSD += sr.CostUSD
		result.TotalLatency += sr.Latency

		if sr.Status != StatusOK {
			result.Success = false
			e.logger.Warn("stage failed",
				"pipeline", def.Name,
				"doc_id", doc.ID,
				"stage", stage.Name,
				"kind", sr.ErrorKind,
				"error", sr.Error)
			continue
		}

		outputs[stage.Name] = sr.Output
		result.FinalOutput = sr.Output
	}

	e.logger.Info("pipeline executed",
		"pipeline", def.Name,
		"doc_id", doc.ID,
		"success", result.Success,
		"cost_usd", result.TotalCostUSD,
		"latency", result.TotalLatency)

	return result, nil
}

// runStage invokes one stage under the per-stage timeout and converts the
// outcome into a StageResult.
func (e *Executor) runStage(ctx context.Context, def *pipeline.Definition, i int, doc corpus.Document, outputs map[string]*tools.StageOutput) StageResult {
	stage := def.Stages[i]
	sr := StageResult{Stage: stage.Name, Tool: stage.Tool}

	tool, err := e.registry.Get(stage.Tool)
	if err != nil {
		// Validate already checked this; a racing registry reload could
		// still remove the tool between validation and execution.
		sr.Status = StatusFailed
		sr.ErrorKind = KindFailure
		sr.Error = err.Error()
		return sr
	}

	input := tools.Input{Document: doc}
	if src := def.InputFor(i); src != pipeline.InputDocument {
		input.Prior = outputs[src]
	}

	stageCtx, cancel := context.WithTimeout(ctx, e.stageTimeout)
	defer cancel()

	start := time.Now()
	res, procErr := tool.Process(stageCtx, input, stage.Config)
	sr.Latency = time.Since(start)

	if res != nil {
		sr.CostUSD = res.CostUSD
	}

	if procErr != nil {
		kind := KindFailure
		if errors.Is(procErr, context.DeadlineExceeded) || stageCtx.Err() == context.DeadlineExceeded {
			kind = KindTimeout
		}
		stageErr := &StageError{Stage: stage.Name, Kind: kind, Err: procErr}
		sr.Status = StatusFailed
		sr.ErrorKind = kind
		sr.Error = stageErr.Error()
		return sr
	}

	sr.Status = StatusOK
	sr.Output = res.Output
	return sr
}
