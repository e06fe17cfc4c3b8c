package executor

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/docbench/docbench/internal/corpus"
	"github.com/docbench/docbench/internal/pipeline"
	"github.com/docbench/docbench/internal/tools"
)

func newMock(name string) *tools.MockTool {
	m := tools.NewMockTool()
	m.ToolName = name
	m.Latency = time.Millisecond
	return m
}

func testDoc() corpus.Document {
	return corpus.Document{ID: "doc-1", Pages: 3, Type: "academic"}
}

// captureTool records the inputs it was invoked with.
type captureTool struct {
	*tools.MockTool
	inputs []tools.Input
}

func (c *captureTool) Process(ctx context.Context, input tools.Input, config map[string]any) (*tools.Result, error) {
	c.inputs = append(c.inputs, input)
	return c.MockTool.Process(ctx, input, config)
}

func TestExecute(t *testing.T) {
	t.Run("all stages succeed", func(t *testing.T) {
		reg := tools.NewRegistry()
		reg.Register(newMock("extract"))
		reg.Register(newMock("refine"))

		e := New(Config{Registry: reg})
		def := &pipeline.Definition{
			Name: "two-stage",
			Stages: []pipeline.StageSpec{
				{Name: "extract", Tool: "extract"},
				{Name: "refine", Tool: "refine"},
			},
		}

		result, err := e.Execute(context.Background(), def, testDoc())
		if err != nil {
			t.Fatalf("Execute() error = %v", err)
		}
		if len(result.Stages) != len(def.Stages) {
			t.Fatalf("got %d stage results, want %d", len(result.Stages), len(def.Stages))
		}
		if !result.Success {
			t.Error("Success = false, want true")
		}
		for i, sr := range result.Stages {
			if sr.Status != StatusOK {
				t.Errorf("stage %d status = %s, want ok", i, sr.Status)
			}
		}
		if result.FinalOutput == nil {
			t.Fatal("FinalOutput = nil, want last stage output")
		}
		if result.DocID != "doc-1" || result.DocType != "academic" || result.Pipeline != "two-stage" {
			t.Errorf("result identity = %s/%s/%s", result.DocID, result.DocType, result.Pipeline)
		}
		if math.Abs(result.TotalCostUSD-0.002) > 1e-9 {
			t.Errorf("TotalCostUSD = %f, want 0.002", result.TotalCostUSD)
		}
		if result.TotalLatency <= 0 {
			t.Error("TotalLatency should be positive")
		}
	})

	t.Run("failure skips the rest", func(t *testing.T) {
		first := newMock("first")
		second := newMock("second")
		second.ShouldFail = true
		third := newMock("third")

		reg := tools.NewRegistry()
		reg.Register(first)
		reg.Register(second)
		reg.Register(third)

		e := New(Config{Registry: reg})
		def := &pipeline.Definition{
			Name: "three-stage",
			Stages: []pipeline.StageSpec{
				{Name: "a", Tool: "first"},
				{Name: "b", Tool: "second"},
				{Name: "c", Tool: "third"},
			},
		}

		result, err := e.Execute(context.Background(), def, testDoc())
		if err != nil {
			t.Fatalf("Execute() error = %v", err)
		}
		if result.Success {
			t.Error("Success = true, want false")
		}
		wantStatus := []StageStatus{StatusOK, StatusFailed, StatusSkipped}
		for i, sr := range result.Stages {
			if sr.Status != wantStatus[i] {
				t.Errorf("stage %d status = %s, want %s", i, sr.Status, wantStatus[i])
			}
		}
		if result.Stages[1].ErrorKind != KindFailure {
			t.Errorf("ErrorKind = %s, want failure", result.Stages[1].ErrorKind)
		}
		if result.Stages[1].Error == "" {
			t.Error("failed stage should record detail")
		}
		// Skipped stage never ran
		if third.RequestCount() != 0 {
			t.Errorf("skipped tool invoked %d times", third.RequestCount())
		}
		if result.Stages[2].CostUSD != 0 || result.Stages[2].Latency != 0 {
			t.Error("skipped stage should carry zero cost and latency")
		}
		// Final output is the last successful stage's
		if result.FinalOutput == nil || result.FinalOutput.PlainText() != "mock output" {
			t.Error("FinalOutput should be stage a's output")
		}
	})

	t.Run("timeout records partial cost", func(t *testing.T) {
		fast := newMock("fast")
		slow := newMock("slow")
		slow.Latency = 500 * time.Millisecond
		slow.PartialCost = 0.0003
		post := newMock("post")

		reg := tools.NewRegistry()
		reg.Register(fast)
		reg.Register(slow)
		reg.Register(post)

		e := New(Config{Registry: reg, StageTimeout: 50 * time.Millisecond})
		def := &pipeline.Definition{
			Name: "timeout-case",
			Stages: []pipeline.StageSpec{
				{Name: "s1", Tool: "fast"},
				{Name: "s2", Tool: "slow"},
				{Name: "s3", Tool: "post"},
			},
		}

		result, err := e.Execute(context.Background(), def, testDoc())
		if err != nil {
			t.Fatalf("Execute() error = %v", err)
		}
		wantStatus := []StageStatus{StatusOK, StatusFailed, StatusSkipped}
		for i, sr := range result.Stages {
			if sr.Status != wantStatus[i] {
				t.Errorf("stage %d status = %s, want %s", i, sr.Status, wantStatus[i])
			}
		}
		if result.Stages[1].ErrorKind != KindTimeout {
			t.Errorf("ErrorKind = %s, want timeout", result.Stages[1].ErrorKind)
		}
		// Total cost = stage 1 cost + stage 2 partial cost
		want := 0.001 + 0.0003
		if math.Abs(result.TotalCostUSD-want) > 1e-9 {
			t.Errorf("TotalCostUSD = %f, want %f", result.TotalCostUSD, want)
		}
	})

	t.Run("prior output flows to next stage", func(t *testing.T) {
		first := newMock("first")
		capture := &captureTool{MockTool: newMock("second")}

		reg := tools.NewRegistry()
		reg.Register(first)
		reg.Register(capture)

		e := New(Config{Registry: reg})
		def := &pipeline.Definition{
			Name: "chained",
			Stages: []pipeline.StageSpec{
				{Name: "a", Tool: "first"},
				{Name: "b", Tool: "second"},
			},
		}

		if _, err := e.Execute(context.Background(), def, testDoc()); err != nil {
			t.Fatalf("Execute() error = %v", err)
		}
		if len(capture.inputs) != 1 {
			t.Fatalf("second stage invoked %d times, want 1", len(capture.inputs))
		}
		if capture.inputs[0].Prior == nil {
			t.Fatal("second stage should receive first stage's output")
		}
		if capture.inputs[0].Prior.PlainText() != "mock output" {
			t.Errorf("prior text = %q", capture.inputs[0].Prior.PlainText())
		}
	})

	t.Run("declared document input gets no prior", func(t *testing.T) {
		first := newMock("first")
		capture := &captureTool{MockTool: newMock("second")}

		reg := tools.NewRegistry()
		reg.Register(first)
		reg.Register(capture)

		e := New(Config{Registry: reg})
		def := &pipeline.Definition{
			Name: "parallel-read",
			Stages: []pipeline.StageSpec{
				{Name: "a", Tool: "first"},
				{Name: "b", Tool: "second", Input: pipeline.InputDocument},
			},
		}

		if _, err := e.Execute(context.Background(), def, testDoc()); err != nil {
			t.Fatalf("Execute() error = %v", err)
		}
		if capture.inputs[0].Prior != nil {
			t.Error("stage reading the document should get nil prior")
		}
	})

	t.Run("deterministic structure", func(t *testing.T) {
		reg := tools.NewRegistry()
		reg.Register(newMock("first"))
		failing := newMock("second")
		failing.ShouldFail = true
		reg.Register(failing)

		e := New(Config{Registry: reg})
		def := &pipeline.Definition{
			Name: "repeat",
			Stages: []pipeline.StageSpec{
				{Name: "a", Tool: "first"},
				{Name: "b", Tool: "second"},
			},
		}

		r1, err := e.Execute(context.Background(), def, testDoc())
		if err != nil {
			t.Fatalf("Execute() error = %v", err)
		}
		r2, err := e.Execute(context.Background(), def, testDoc())
		if err != nil {
			t.Fatalf("Execute() error = %v", err)
		}
		for i := range r1.Stages {
			if r1.Stages[i].Status != r2.Stages[i].Status {
				t.Errorf("stage %d status differs across runs", i)
			}
		}
		if r1.Success != r2.Success || r1.TotalCostUSD != r2.TotalCostUSD {
			t.Error("result structure differs across identical runs")
		}
	})
}

func TestExecuteConfigErrors(t *testing.T) {
	t.Run("unknown tool fails fast", func(t *testing.T) {
		mock := newMock("known")
		reg := tools.NewRegistry()
		reg.Register(mock)

		e := New(Config{Registry: reg})
		def := &pipeline.Definition{
			Name: "bad-tool",
			Stages: []pipeline.StageSpec{
				{Name: "a", Tool: "known"},
				{Name: "b", Tool: "missing"},
			},
		}

		result, err := e.Execute(context.Background(), def, testDoc())
		if err == nil {
			t.Fatal("expected configuration error")
		}
		var cfgErr *ConfigError
		if !errors.As(err, &cfgErr) {
			t.Fatalf("error type = %T, want *ConfigError", err)
		}
		if result != nil {
			t.Error("configuration error should not yield a result")
		}
		// Fails before any stage runs, so no cost incurred
		if mock.RequestCount() != 0 {
			t.Errorf("tool invoked %d times before config check", mock.RequestCount())
		}
	})

	t.Run("unrecognized stage option fails fast", func(t *testing.T) {
		reg := tools.NewRegistry()
		reg.Register(newMock("m"))

		e := New(Config{Registry: reg})
		def := &pipeline.Definition{
			Name: "bad-option",
			Stages: []pipeline.StageSpec{
				{Name: "a", Tool: "m", Config: map[string]any{"no_such_option": 1}},
			},
		}

		_, err := e.Execute(context.Background(), def, testDoc())
		var cfgErr *ConfigError
		if !errors.As(err, &cfgErr) {
			t.Fatalf("error = %v, want *ConfigError", err)
		}
	})

	t.Run("invalid definition fails fast", func(t *testing.T) {
		e := New(Config{Registry: tools.NewRegistry()})
		def := &pipeline.Definition{Name: "empty"}

		if _, err := e.Execute(context.Background(), def, testDoc()); err == nil {
			t.Fatal("expected error for definition without stages")
		}
	})
}

func TestStageError(t *testing.T) {
	cause := errors.New("connection refused")
	err := &StageError{Stage: "ocr", Kind: KindFailure, Err: cause}

	if !errors.Is(err, cause) {
		t.Error("StageError should unwrap to its cause")
	}
	if err.Error() != "stage ocr failure: connection refused" {
		t.Errorf("Error() = %q", err.Error())
	}
}
