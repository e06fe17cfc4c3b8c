// Package report turns aggregated run results into CLI-facing output:
// CEL-filtered row selection, a terminal table, and CSV export.
package report

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/docbench/docbench/internal/aggregate"
)

var (
	celEnv     *cel.Env
	celEnvErr  error
	celEnvOnce sync.Once
)

// filterEnv returns the shared CEL environment. It declares a single `row`
// variable holding the report row under evaluation.
func filterEnv() (*cel.Env, error) {
	celEnvOnce.Do(func() {
		celEnv, celEnvErr = cel.NewEnv(
			cel.Variable("row", cel.DynType),
		)
	})
	return celEnv, celEnvErr
}

// Filter selects report rows with a CEL expression.
//
// The expression sees one variable, `row`, whose fields match the CSV/JSON
// column names:
//   - row.pipeline == "marker" && row.doc_type == "academic"
//   - row.metric == "text.ned" && row.mean > 0.2
//   - row.metric.startsWith("table.")
//
// An empty expression matches every row.
type Filter struct {
	expr string
	prg  cel.Program
}

// NewFilter compiles a CEL filter expression. The program is built once and
// reused for every row.
func NewFilter(expr string) (*Filter, error) {
	if expr == "" {
		return &Filter{}, nil
	}

	env, err := filterEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to build filter environment: %w", err)
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("invalid filter expression: %w", issues.Err())
	}

	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to build filter program: %w", err)
	}

	return &Filter{expr: expr, prg: prg}, nil
}

// Match evaluates the filter against one row.
func (f *Filter) Match(row aggregate.Row) (bool, error) {
	if f.prg == nil {
		return true, nil
	}

	out, _, err := f.prg.Eval(rowInput(row))
	if err != nil {
		return false, fmt.Errorf("filter eval error: %w", err)
	}

	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("filter expression must return a boolean, got %T", out.Value())
	}

	return result, nil
}

// Apply returns the rows the filter selects, in input order.
func (f *Filter) Apply(rows []aggregate.Row) ([]aggregate.Row, error) {
	if f.prg == nil {
		return rows, nil
	}

	selected := make([]aggregate.Row, 0, len(rows))
	for _, row := range rows {
		ok, err := f.Match(row)
		if err != nil {
			return nil, err
		}
		if ok {
			selected = append(selected, row)
		}
	}
	return selected, nil
}

// rowInput exposes a row to CEL under its serialized column names.
func rowInput(row aggregate.Row) map[string]any {
	return map[string]any{
		"row": map[string]any{
			"pipeline":              row.Pipeline,
			"doc_type":              row.DocType,
			"metric":                row.Metric,
			"count":                 row.Count,
			"mean":                  row.Mean,
			"median":                row.Median,
			"min":                   row.Min,
			"max":                   row.Max,
			"documents":             row.Documents,
			"total_cost_usd":        row.TotalCostUSD,
			"total_latency_seconds": row.TotalLatencySeconds,
		},
	}
}
