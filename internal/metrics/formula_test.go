package metrics

import (
	"errors"
	"math"
	"testing"

	"github.com/docbench/docbench/internal/corpus"
	"github.com/docbench/docbench/internal/tools"
)

func formulaGT(markups ...string) *corpus.GroundTruth {
	gt := &corpus.GroundTruth{DocID: "doc-1"}
	for i, markup := range markups {
		id := string(rune('a' + i))
		gt.Blocks = append(gt.Blocks, corpus.Block{ID: id, Type: corpus.BlockFormula, Text: markup})
		gt.ReadingOrder = append(gt.ReadingOrder, id)
	}
	return gt
}

func formulaOutput(markups ...string) *tools.StageOutput {
	out := &tools.StageOutput{}
	for i, markup := range markups {
		out.Blocks = append(out.Blocks, corpus.Block{Type: corpus.BlockFormula, Text: markup, Order: i})
	}
	return out
}

func TestFormulaMetric(t *testing.T) {
	m := NewFormulaMetric()

	t.Run("identical markup", func(t *testing.T) {
		result, err := m.Score(formulaOutput(`E = mc^2`), formulaGT(`E = mc^2`))
		if err != nil {
			t.Fatalf("Score() error = %v", err)
		}
		if result.Scores["ned"] != 0 {
			t.Errorf("ned = %f, want 0", result.Scores["ned"])
		}
	})

	t.Run("near miss", func(t *testing.T) {
		result, err := m.Score(formulaOutput(`e=mc2`), formulaGT(`e=mc^2`))
		if err != nil {
			t.Fatalf("Score() error = %v", err)
		}
		// one deletion over six reference characters
		if math.Abs(result.Scores["ned"]-1.0/6.0) > 1e-9 {
			t.Errorf("ned = %f, want %f", result.Scores["ned"], 1.0/6.0)
		}
	})

	t.Run("missing prediction scores max", func(t *testing.T) {
		result, err := m.Score(formulaOutput(`x+y`), formulaGT(`x+y`, `a-b`))
		if err != nil {
			t.Fatalf("Score() error = %v", err)
		}
		// first exact (0), second missing (1)
		if math.Abs(result.Scores["ned"]-0.5) > 1e-9 {
			t.Errorf("ned = %f, want 0.5", result.Scores["ned"])
		}
	})

	t.Run("pairs follow ordering index", func(t *testing.T) {
		out := &tools.StageOutput{
			Blocks: []corpus.Block{
				{Type: corpus.BlockFormula, Text: `a-b`, Order: 1},
				{Type: corpus.BlockFormula, Text: `x+y`, Order: 0},
			},
		}
		result, err := m.Score(out, formulaGT(`x+y`, `a-b`))
		if err != nil {
			t.Fatalf("Score() error = %v", err)
		}
		if result.Scores["ned"] != 0 {
			t.Errorf("ned = %f, want 0 after sorting by order", result.Scores["ned"])
		}
	})

	t.Run("no ground-truth formulas undefined", func(t *testing.T) {
		if _, err := m.Score(formulaOutput(`x`), fourBlockGT()); !errors.Is(err, ErrUndefined) {
			t.Errorf("error = %v, want ErrUndefined", err)
		}
	})

	t.Run("nil output scores max", func(t *testing.T) {
		result, err := m.Score(nil, formulaGT(`x+y`))
		if err != nil {
			t.Fatalf("Score() error = %v", err)
		}
		if result.Scores["ned"] != 1 {
			t.Errorf("ned = %f, want 1", result.Scores["ned"])
		}
	})
}
