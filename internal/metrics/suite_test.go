package metrics

import (
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/docbench/docbench/internal/corpus"
	"github.com/docbench/docbench/internal/executor"
	"github.com/docbench/docbench/internal/tools"
)

// richGT covers every accuracy dimension: prose, a table, a formula,
// reading order, and reading units.
func richGT() *corpus.GroundTruth {
	grid := tableGrid([]string{"name", "count"}, []string{"alpha", "10"})
	table := tableBlock("t1", grid)
	table.Box = box(0, 40)
	return &corpus.GroundTruth{
		DocID: "doc-1",
		Blocks: []corpus.Block{
			gtBlock("a", corpus.BlockHeading, box(0, 0), "Overview"),
			gtBlock("b", corpus.BlockParagraph, box(0, 20), "body text"),
			table,
			gtBlock("f1", corpus.BlockFormula, box(0, 60), "E = mc^2"),
		},
		ReadingOrder: []string{"a", "b", "t1", "f1"},
		ReadingUnits: [][]string{{"a", "b"}, {"t1", "f1"}},
	}
}

func richResult() *executor.PipelineResult {
	grid := tableGrid([]string{"name", "count"}, []string{"alpha", "10"})
	out := &tools.StageOutput{
		Blocks: []corpus.Block{
			predBlock(corpus.BlockHeading, box(0, 0), "Overview", 0),
			predBlock(corpus.BlockParagraph, box(0, 20), "body text", 1),
			{Type: corpus.BlockTable, Box: box(0, 40), Text: "table", Table: grid, Order: 2},
			predBlock(corpus.BlockFormula, box(0, 60), "E = mc^2", 3),
		},
		Units: [][]int{{0, 1}, {2, 3}},
	}
	return &executor.PipelineResult{
		DocID:       "doc-1",
		DocType:     "academic",
		Pipeline:    "solo-mock",
		FinalOutput: out,
		Success:     true,
	}
}

type failingProvider struct{}

func (failingProvider) Name() string { return "boom" }

func (failingProvider) Score(*tools.StageOutput, *corpus.GroundTruth) (*Result, error) {
	return nil, fmt.Errorf("synthetic provider failure")
}

func TestSuite_Score(t *testing.T) {
	t.Run("all dimensions scored", func(t *testing.T) {
		s := NewSuite(SuiteConfig{})
		results, skipped, err := s.Score(richResult(), richGT())
		if err != nil {
			t.Fatalf("Score() error = %v", err)
		}
		if len(skipped) != 0 {
			t.Fatalf("skipped = %v, want none", skipped)
		}
		if len(results) != 6 {
			t.Fatalf("results = %d, want 6", len(results))
		}
		for _, r := range results {
			if r.DocID != "doc-1" || r.Pipeline != "solo-mock" {
				t.Errorf("result %s stamped %s/%s, want doc-1/solo-mock", r.Metric, r.DocID, r.Pipeline)
			}
		}
		byName := make(map[string]*Result, len(results))
		for _, r := range results {
			byName[r.Metric] = r
		}
		if got := byName["text"].Scores["ned"]; got != 0 {
			t.Errorf("text ned = %f, want 0", got)
		}
		if got := byName["table"].Scores["teds"]; got != 1 {
			t.Errorf("table teds = %f, want 1", got)
		}
		if got := byName["reading_order"].Scores["ned"]; got != 0 {
			t.Errorf("reading_order ned = %f, want 0", got)
		}
	})

	t.Run("undefined dimensions skipped", func(t *testing.T) {
		s := NewSuite(SuiteConfig{})
		pr := &executor.PipelineResult{
			DocID:       "doc-1",
			Pipeline:    "solo-mock",
			FinalOutput: matchingOutput(),
			Success:     true,
		}
		results, skipped, err := s.Score(pr, fourBlockGT())
		if err != nil {
			t.Fatalf("Score() error = %v", err)
		}
		if len(results) != 4 {
			t.Errorf("results = %d, want 4", len(results))
		}
		if len(skipped) != 2 {
			t.Fatalf("skipped = %d, want 2 (table, formula)", len(skipped))
		}
		for _, sk := range skipped {
			if sk.Metric != "table" && sk.Metric != "formula" {
				t.Errorf("skipped %q, want only table and formula", sk.Metric)
			}
			if !sk.Undefined {
				t.Errorf("skipped %q marked as failure, want undefined", sk.Metric)
			}
		}
	})

	t.Run("document mismatch fails fast", func(t *testing.T) {
		s := NewSuite(SuiteConfig{})
		pr := richResult()
		pr.DocID = "doc-2"
		results, skipped, err := s.Score(pr, richGT())
		if !errors.Is(err, corpus.ErrGroundTruthMismatch) {
			t.Fatalf("Score() error = %v, want ErrGroundTruthMismatch", err)
		}
		if results != nil || skipped != nil {
			t.Errorf("got results %v skipped %v, want none on mismatch", results, skipped)
		}
	})

	t.Run("provider failure recorded as skip", func(t *testing.T) {
		s := NewSuite(SuiteConfig{Providers: []Provider{failingProvider{}, NewTextMetric()}})
		results, skipped, err := s.Score(richResult(), richGT())
		if err != nil {
			t.Fatalf("Score() error = %v", err)
		}
		if len(results) != 1 || results[0].Metric != "text" {
			t.Fatalf("results = %v, want just text", results)
		}
		if len(skipped) != 1 {
			t.Fatalf("skipped = %d, want 1", len(skipped))
		}
		if skipped[0].Metric != "boom" || skipped[0].Undefined {
			t.Errorf("skipped = %+v, want boom as hard failure", skipped[0])
		}
	})
}

func TestSuite_Providers(t *testing.T) {
	s := NewSuite(SuiteConfig{})
	want := []string{"text", "layout", "table", "formula", "reading_order", "reading_unit"}
	if got := s.Providers(); !reflect.DeepEqual(got, want) {
		t.Errorf("Providers() = %v, want %v", got, want)
	}
}
