package tools

import (
	"context"
	"strings"
	"time"

	"github.com/docbench/docbench/internal/corpus"
)

// StageOutput is the structured partial result a tool produces: the block
// list, optional reading units (as indices into Blocks), and the raw text
// the backend emitted when it works in markdown.
type StageOutput struct {
	Blocks   []corpus.Block `json:"blocks"`
	Units    [][]int        `json:"units,omitempty"`
	Markdown string         `json:"markdown,omitempty"`
}

// PlainText concatenates block text in ordering-index order, one block per
// line. Falls back to the raw markdown when the tool produced no blocks.
func (o *StageOutput) PlainText() string {
	if o == nil {
		return ""
	}
	if len(o.Blocks) == 0 {
		return o.Markdown
	}

	blocks := make([]corpus.Block, len(o.Blocks))
	copy(blocks, o.Blocks)
	for i := 1; i < len(blocks); i++ {
		for j := i; j > 0 && blocks[j].Order < blocks[j-1].Order; j-- {
			blocks[j], blocks[j-1] = blocks[j-1], blocks[j]
		}
	}

	var parts []string
	for _, b := range blocks {
		if b.Text != "" {
			parts = append(parts, b.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// Input is what a stage consumes: the document, plus the prior stage's
// output when the stage declares one (nil when reading the raw document).
type Input struct {
	Document corpus.Document
	Prior    *StageOutput
}

// Result is one tool invocation's outcome. CostUSD is whatever the tool's
// own backend accounting reports; callers never estimate it. A failed
// invocation still returns a Result so cost already incurred is not lost.
type Result struct {
	Output        *StageOutput  `json:"output,omitempty"`
	CostUSD       float64       `json:"cost_usd"`
	ExecutionTime time.Duration `json:"execution_time"`
}

// Tool is the single capability contract every backend implements. The
// execution engine depends only on this interface, never on a concrete
// backend.
type Tool interface {
	// Name returns the tool identifier (e.g. "pdftext", "vlm").
	Name() string

	// ValidateConfig rejects unrecognized or ill-typed options. Called
	// before any stage runs so bad configuration never incurs cost.
	ValidateConfig(config map[string]any) error

	// Process runs the tool over the input with the given configuration.
	// On failure the returned Result may still carry partial cost.
	Process(ctx context.Context, input Input, config map[string]any) (*Result, error)
}
