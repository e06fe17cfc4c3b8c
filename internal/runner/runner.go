// Package runner orchestrates benchmark sweeps: every pipeline over every
// corpus document, document-parallel and stage-sequential, with results and
// scores persisted as they land.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/docbench/docbench/internal/corpus"
	"github.com/docbench/docbench/internal/executor"
	"github.com/docbench/docbench/internal/metrics"
	"github.com/docbench/docbench/internal/pipeline"
	"github.com/docbench/docbench/internal/store"
)

const defaultConcurrency = 4

// Unit outcome statuses recorded in the manifest.
const (
	UnitSucceeded = "succeeded" // every stage ok
	UnitPartial   = "partial"   // some stages ok before a failure
	UnitFailed    = "failed"    // no stage ok, or configuration error
)

// Config configures a sweep runner.
type Config struct {
	Executor    *executor.Executor
	Suite       *metrics.Suite
	Store       *store.Store // optional; nil disables persistence
	Concurrency int          // max in-flight (pipeline, document) units
	Logger      *slog.Logger
}

// Runner executes sweeps.
type Runner struct {
	exec        *executor.Executor
	suite       *metrics.Suite
	store       *store.Store
	concurrency int
	logger      *slog.Logger
}

// New creates a runner. Executor is required; Suite and Store are optional
// (no scoring / no persistence respectively).
func New(cfg Config) *Runner {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		exec:        cfg.Executor,
		suite:       cfg.Suite,
		store:       cfg.Store,
		concurrency: concurrency,
		logger:      logger.With("component", "runner"),
	}
}

// NewRunID mints a sortable run identifier: UTC timestamp plus a short
// random suffix, e.g. "20260823-152233-1a2b3c4d".
func NewRunID() string {
	return fmt.Sprintf("%s-%s",
		time.Now().UTC().Format("20060102-150405"),
		uuid.New().String()[:8])
}

// Sweep describes one benchmark run.
type Sweep struct {
	RunID     string // minted when empty
	Plan      string // label recorded on the run (plan file path)
	Pipelines []*pipeline.Definition
	Entries   []corpus.Entry
}

// UnitOutcome is one (pipeline, document) line of the manifest.
type UnitOutcome struct {
	Pipeline    string        `json:"pipeline"`
	DocID       string        `json:"doc_id"`
	Status      string        `json:"status"`
	StageStatus []string      `json:"stage_status,omitempty"` // per stage, in order
	CostUSD     float64       `json:"cost_usd"`
	Latency     time.Duration `json:"latency"`
	Metrics     int           `json:"metrics"`
	Skipped     int           `json:"skipped"`
	Error       string        `json:"error,omitempty"`
}

// Manifest is the complete record of a sweep: which units succeeded,
// partially succeeded, or failed outright.
type Manifest struct {
	RunID        string        `json:"run_id"`
	Started      time.Time     `json:"started"`
	Finished     time.Time     `json:"finished"`
	Units        []UnitOutcome `json:"units"`
	Succeeded    int           `json:"succeeded"`
	Partial      int           `json:"partial"`
	Failed       int           `json:"failed"`
	TotalCostUSD float64       `json:"total_cost_usd"`
	Cancelled    bool          `json:"cancelled"`
}

// Run executes the sweep. Pipelines that fail validation are recorded as
// failed for every document without incurring any cost. Cancellation stops
// launching new units; in-flight units finish (or time out) and their
// results persist. The returned error reports infrastructure problems
// (persistence), never individual unit failures.
func (r *Runner) Run(ctx context.Context, sweep Sweep) (*Manifest, error) {
	runID := sweep.RunID
	if runID == "" {
		runID = NewRunID()
	}
	manifest := &Manifest{RunID: runID, Started: time.Now().UTC()}

	// Bookkeeping writes ignore cancellation: a cancelled sweep still gets
	// its run row and keeps every result produced before the cut.
	persistCtx := context.WithoutCancel(ctx)
	if r.store != nil {
		if err := r.store.CreateRun(persistCtx, &store.Run{ID: runID, Plan: sweep.Plan}); err != nil {
			return nil, err
		}
	}
	r.logger.Info("run started",
		"run_id", runID,
		"pipelines", len(sweep.Pipelines),
		"documents", len(sweep.Entries),
		"concurrency", r.concurrency)

	// Validation is per pipeline, before any document: a misconfigured
	// pipeline fails every unit up front and never reaches a tool.
	var valid []*pipeline.Definition
	var mu sync.Mutex
	for _, def := range sweep.Pipelines {
		if err := r.exec.Validate(def); err != nil {
			r.logger.Warn("pipeline rejected", "pipeline", def.Name, "error", err)
			for _, entry := range sweep.Entries {
				manifest.Units = append(manifest.Units, UnitOutcome{
					Pipeline: def.Name,
					DocID:    entry.Document.ID,
					Status:   UnitFailed,
					Error:    err.Error(),
				})
			}
			continue
		}
		valid = append(valid, def)
	}

	// A full semaphore parks queued units in their goroutines; cancellation
	// (or a persistence error) releases them without starting the work.
	eg, gctx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, r.concurrency)

	for _, def := range valid {
		for _, entry := range sweep.Entries {
			eg.Go(func() error {
				select {
				case sem <- struct{}{}:
					defer func() { <-sem }()
				case <-gctx.Done():
					// never started; not a manifest unit
					return nil
				}
				if gctx.Err() != nil {
					return nil
				}

				outcome, err := r.runUnit(gctx, runID, def, entry)
				if err != nil {
					return err
				}
				mu.Lock()
				manifest.Units = append(manifest.Units, *outcome)
				mu.Unlock()
				return nil
			})
		}
	}

	runErr := eg.Wait()
	manifest.Finished = time.Now().UTC()
	manifest.Cancelled = ctx.Err() != nil

	sort.Slice(manifest.Units, func(i, j int) bool {
		if manifest.Units[i].Pipeline != manifest.Units[j].Pipeline {
			return manifest.Units[i].Pipeline < manifest.Units[j].Pipeline
		}
		return manifest.Units[i].DocID < manifest.Units[j].DocID
	})
	for _, u := range manifest.Units {
		manifest.TotalCostUSD += u.CostUSD
		switch u.Status {
		case UnitSucceeded:
			manifest.Succeeded++
		case UnitPartial:
			manifest.Partial++
		default:
			manifest.Failed++
		}
	}

	if r.store != nil {
		status := store.RunStatusCompleted
		switch {
		case runErr != nil:
			status = store.RunStatusFailed
		case manifest.Cancelled:
			status = store.RunStatusCancelled
		}
		if err := r.store.FinishRun(persistCtx, runID, status); err != nil {
			r.logger.Error("failed to finish run", "run_id", runID, "error", err)
		}
	}

	r.logger.Info("run finished",
		"run_id", runID,
		"succeeded", manifest.Succeeded,
		"partial", manifest.Partial,
		"failed", manifest.Failed,
		"total_cost_usd", manifest.TotalCostUSD,
		"cancelled", manifest.Cancelled)
	return manifest, runErr
}

// runUnit executes, persists, and scores one (pipeline, document) pair.
func (r *Runner) runUnit(ctx context.Context, runID string, def *pipeline.Definition, entry corpus.Entry) (*UnitOutcome, error) {
	outcome := &UnitOutcome{Pipeline: def.Name, DocID: entry.Document.ID}

	pr, err := r.exec.Execute(ctx, def, entry.Document)
	if err != nil {
		// validation ran already, so this is unexpected; record, don't abort
		outcome.Status = UnitFailed
		outcome.Error = err.Error()
		return outcome, nil
	}

	outcome.Status = unitStatus(pr)
	outcome.CostUSD = pr.TotalCostUSD
	outcome.Latency = pr.TotalLatency
	for _, sr := range pr.Stages {
		outcome.StageStatus = append(outcome.StageStatus, string(sr.Status))
	}

	persistCtx := context.WithoutCancel(ctx)
	if r.store != nil {
		if err := r.store.SavePipelineResult(persistCtx, runID, pr); err != nil {
			return nil, err
		}
	}

	if r.suite != nil && entry.GroundTruth != nil {
		results, skipped, err := r.suite.Score(pr, entry.GroundTruth)
		if err != nil {
			outcome.Error = err.Error()
			r.logger.Warn("scoring failed",
				"pipeline", def.Name, "doc_id", entry.Document.ID, "error", err)
			return outcome, nil
		}
		outcome.Metrics = len(results)
		outcome.Skipped = len(skipped)
		if r.store != nil {
			if err := r.store.SaveMetricResults(persistCtx, runID, results); err != nil {
				return nil, err
			}
			if err := r.store.SaveMetricSkips(persistCtx, runID, def.Name, entry.Document.ID, skipped); err != nil {
				return nil, err
			}
		}
	}
	return outcome, nil
}

func unitStatus(pr *executor.PipelineResult) string {
	if pr.Success {
		return UnitSucceeded
	}
	for _, sr := range pr.Stages {
		if sr.Status == executor.StatusOK {
			return UnitPartial
		}
	}
	return UnitFailed
}
