package metrics

import (
	"errors"
	"math"
	"testing"

	"github.com/docbench/docbench/internal/corpus"
	"github.com/docbench/docbench/internal/tools"
)

func tableGT(grids ...*corpus.TableGrid) *corpus.GroundTruth {
	gt := &corpus.GroundTruth{DocID: "doc-1"}
	for i, g := range grids {
		id := string(rune('a' + i))
		gt.Blocks = append(gt.Blocks, tableBlock(id, g))
		gt.ReadingOrder = append(gt.ReadingOrder, id)
	}
	return gt
}

func tableOutput(grids ...*corpus.TableGrid) *tools.StageOutput {
	out := &tools.StageOutput{}
	for i, g := range grids {
		b := tableBlock("", g)
		b.Order = i
		out.Blocks = append(out.Blocks, b)
	}
	return out
}

func TestTableMetric(t *testing.T) {
	m := NewTableMetric()

	refGrid := tableGrid(
		[]string{"Name", "Value"},
		[]string{"alpha", "1"},
		[]string{"beta", "2"},
	)

	t.Run("identity scores one", func(t *testing.T) {
		result, err := m.Score(tableOutput(refGrid), tableGT(refGrid))
		if err != nil {
			t.Fatalf("Score() error = %v", err)
		}
		if result.Scores["teds"] != 1.0 {
			t.Errorf("teds = %f, want 1.0", result.Scores["teds"])
		}
	})

	t.Run("empty prediction is floor, never negative", func(t *testing.T) {
		result, err := m.Score(&tools.StageOutput{}, tableGT(refGrid))
		if err != nil {
			t.Fatalf("Score() error = %v", err)
		}
		if result.Scores["teds"] != 0 {
			t.Errorf("teds = %f, want 0", result.Scores["teds"])
		}
	})

	t.Run("cell text earns partial credit", func(t *testing.T) {
		pred := tableGrid(
			[]string{"Name", "Value"},
			[]string{"alphx", "1"}, // one character off
			[]string{"beta", "2"},
		)

		result, err := m.Score(tableOutput(pred), tableGT(refGrid))
		if err != nil {
			t.Fatalf("Score() error = %v", err)
		}
		// One cell relabel at cost 1/5 across a 10-node tree
		want := 1.0 - (0.2 / 10.0)
		if math.Abs(result.Scores["teds"]-want) > 1e-9 {
			t.Errorf("teds = %f, want %f", result.Scores["teds"], want)
		}
	})

	t.Run("missing row costs its nodes", func(t *testing.T) {
		pred := tableGrid(
			[]string{"Name", "Value"},
			[]string{"alpha", "1"},
		)

		result, err := m.Score(tableOutput(pred), tableGT(refGrid))
		if err != nil {
			t.Fatalf("Score() error = %v", err)
		}
		// Reference tree has 10 nodes; the missing row inserts 3
		want := 1.0 - (3.0 / 10.0)
		if math.Abs(result.Scores["teds"]-want) > 1e-9 {
			t.Errorf("teds = %f, want %f", result.Scores["teds"], want)
		}
	})

	t.Run("span mismatch is a full relabel", func(t *testing.T) {
		gtGrid := &corpus.TableGrid{Rows: [][]corpus.TableCell{
			{{Text: "merged", ColSpan: 2}},
			{{Text: "x"}, {Text: "y"}},
		}}
		predGrid := &corpus.TableGrid{Rows: [][]corpus.TableCell{
			{{Text: "merged"}}, // span lost
			{{Text: "x"}, {Text: "y"}},
		}}

		result, err := m.Score(tableOutput(predGrid), tableGT(gtGrid))
		if err != nil {
			t.Fatalf("Score() error = %v", err)
		}
		// 6-node trees, one full-cost relabel
		want := 1.0 - (1.0 / 6.0)
		if math.Abs(result.Scores["teds"]-want) > 1e-9 {
			t.Errorf("teds = %f, want %f", result.Scores["teds"], want)
		}
	})

	t.Run("no ground-truth tables undefined", func(t *testing.T) {
		gt := fourBlockGT()
		if _, err := m.Score(tableOutput(refGrid), gt); !errors.Is(err, ErrUndefined) {
			t.Errorf("error = %v, want ErrUndefined", err)
		}
	})

	t.Run("greedy pairing is content-based", func(t *testing.T) {
		gridA := tableGrid([]string{"apples", "10"})
		gridB := tableGrid([]string{"bananas", "20"})

		// Predicted tables arrive in the opposite order
		result, err := m.Score(tableOutput(gridB, gridA), tableGT(gridA, gridB))
		if err != nil {
			t.Fatalf("Score() error = %v", err)
		}
		if result.Scores["teds"] != 1.0 {
			t.Errorf("teds = %f, want 1.0 (each table finds its twin)", result.Scores["teds"])
		}
	})

	t.Run("extra ground-truth table drags the mean", func(t *testing.T) {
		result, err := m.Score(tableOutput(refGrid), tableGT(refGrid, refGrid))
		if err != nil {
			t.Fatalf("Score() error = %v", err)
		}
		// One perfect match, one unmatched: mean of 1.0 and 0.0
		if math.Abs(result.Scores["teds"]-0.5) > 1e-9 {
			t.Errorf("teds = %f, want 0.5", result.Scores["teds"])
		}
	})
}

func TestTedsTree(t *testing.T) {
	t.Run("node count", func(t *testing.T) {
		tree := treeFromGrid(tableGrid([]string{"a", "b"}, []string{"c", "d"}))
		// 4 cells + 2 rows + root
		if tree.size() != 7 {
			t.Errorf("size = %d, want 7", tree.size())
		}
	})

	t.Run("empty grid", func(t *testing.T) {
		tree := treeFromGrid(nil)
		if tree.size() != 0 {
			t.Errorf("size = %d, want 0", tree.size())
		}
	})

	t.Run("distance symmetry", func(t *testing.T) {
		t1 := treeFromGrid(tableGrid([]string{"a", "b"}, []string{"c", "d"}))
		t2 := treeFromGrid(tableGrid([]string{"a", "b"}))

		d12 := tedsDistance(t1, t2)
		d21 := tedsDistance(t2, t1)
		if d12 != d21 {
			t.Errorf("distance not symmetric: %f vs %f", d12, d21)
		}
		if d12 != 3 {
			t.Errorf("distance = %f, want 3 (row + two cells)", d12)
		}
	})

	t.Run("identical trees zero distance", func(t *testing.T) {
		grid := tableGrid([]string{"x"}, []string{"y"})
		if d := tedsDistance(treeFromGrid(grid), treeFromGrid(grid)); d != 0 {
			t.Errorf("distance = %f, want 0", d)
		}
	})
}
