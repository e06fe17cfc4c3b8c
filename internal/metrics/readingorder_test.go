package metrics

import (
	"errors"
	"math"
	"testing"

	"github.com/docbench/docbench/internal/corpus"
	"github.com/docbench/docbench/internal/tools"
)

// reorderedOutput predicts fourBlockGT's blocks with the given ordering
// indexes, slice position i carrying orders[i].
func reorderedOutput(orders ...int) *tools.StageOutput {
	out := matchingOutput()
	for i := range out.Blocks {
		out.Blocks[i].Order = orders[i]
	}
	return out
}

func TestReadingOrderMetric(t *testing.T) {
	m := NewReadingOrderMetric(LayoutConfig{})

	t.Run("perfect order", func(t *testing.T) {
		result, err := m.Score(matchingOutput(), fourBlockGT())
		if err != nil {
			t.Fatalf("Score() error = %v", err)
		}
		if result.Scores["ned"] != 0 {
			t.Errorf("ned = %f, want 0", result.Scores["ned"])
		}
	})

	t.Run("reversed order scores max", func(t *testing.T) {
		result, err := m.Score(reorderedOutput(3, 2, 1, 0), fourBlockGT())
		if err != nil {
			t.Fatalf("Score() error = %v", err)
		}
		if result.Scores["ned"] != 1 {
			t.Errorf("ned = %f, want 1", result.Scores["ned"])
		}
	})

	t.Run("adjacent swap", func(t *testing.T) {
		result, err := m.Score(reorderedOutput(1, 0, 2, 3), fourBlockGT())
		if err != nil {
			t.Fatalf("Score() error = %v", err)
		}
		// two substitutions over four reference positions
		if math.Abs(result.Scores["ned"]-0.5) > 1e-9 {
			t.Errorf("ned = %f, want 0.5", result.Scores["ned"])
		}
	})

	t.Run("unmatched prediction is omitted", func(t *testing.T) {
		out := matchingOutput()
		out.Blocks = append(out.Blocks,
			predBlock(corpus.BlockParagraph, box(400, 400), "stray", -1))
		result, err := m.Score(out, fourBlockGT())
		if err != nil {
			t.Fatalf("Score() error = %v", err)
		}
		if result.Scores["ned"] != 0 {
			t.Errorf("ned = %f, want 0 with stray block omitted", result.Scores["ned"])
		}
	})

	t.Run("missing block penalized as deletion", func(t *testing.T) {
		out := matchingOutput()
		out.Blocks = out.Blocks[:3]
		result, err := m.Score(out, fourBlockGT())
		if err != nil {
			t.Fatalf("Score() error = %v", err)
		}
		if math.Abs(result.Scores["ned"]-0.25) > 1e-9 {
			t.Errorf("ned = %f, want 0.25", result.Scores["ned"])
		}
	})

	t.Run("nil output scores max", func(t *testing.T) {
		result, err := m.Score(nil, fourBlockGT())
		if err != nil {
			t.Fatalf("Score() error = %v", err)
		}
		if result.Scores["ned"] != 1 {
			t.Errorf("ned = %f, want 1", result.Scores["ned"])
		}
	})

	t.Run("no reading order undefined", func(t *testing.T) {
		gt := fourBlockGT()
		gt.ReadingOrder = nil
		if _, err := m.Score(matchingOutput(), gt); !errors.Is(err, ErrUndefined) {
			t.Errorf("error = %v, want ErrUndefined", err)
		}
	})
}
