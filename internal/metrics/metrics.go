// Package metrics scores pipeline outputs against ground truth along six
// accuracy dimensions: text, layout, table structure, formula markup,
// reading order, and reading-unit grouping quality.
package metrics

import (
	"errors"

	"github.com/docbench/docbench/internal/corpus"
	"github.com/docbench/docbench/internal/tools"
)

// ErrUndefined marks a metric that does not apply to a document (e.g. the
// table metric on a document whose ground truth has no tables). It is a
// documented exclusion from aggregation, never a score of zero.
var ErrUndefined = errors.New("metric undefined for document")

// Diagnostic is an optional per-block annotation attached to a result.
type Diagnostic struct {
	BlockID string  `json:"block_id,omitempty"`
	Note    string  `json:"note,omitempty"`
	Score   float64 `json:"score"`
}

// Result is one provider's scores for one (pipeline, document) pair. Scores
// maps named scalars (e.g. "ned", "cer", "wer") to values; lower-is-better
// or higher-is-better is a property of the individual scalar.
type Result struct {
	Metric      string             `json:"metric"`
	DocID       string             `json:"doc_id"`
	Pipeline    string             `json:"pipeline"`
	Scores      map[string]float64 `json:"scores"`
	Diagnostics []Diagnostic       `json:"diagnostics,omitempty"`
}

// Provider scores one accuracy dimension. Implementations are pure: no IO,
// no state mutation, deterministic for identical inputs.
type Provider interface {
	// Name returns the metric identifier (e.g. "text", "layout").
	Name() string

	// Score compares a pipeline's final output against ground truth.
	// Returns ErrUndefined when the dimension does not apply to this
	// document.
	Score(pred *tools.StageOutput, gt *corpus.GroundTruth) (*Result, error)
}

// blocksOf is nil-safe access to a stage output's blocks. A pipeline whose
// every stage failed has no final output; metrics score that as an empty
// prediction, not a panic.
func blocksOf(pred *tools.StageOutput) []corpus.Block {
	if pred == nil {
		return nil
	}
	return pred.Blocks
}
