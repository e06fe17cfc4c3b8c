package runner

import (
	"context"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/docbench/docbench/internal/corpus"
	"github.com/docbench/docbench/internal/executor"
	"github.com/docbench/docbench/internal/metrics"
	"github.com/docbench/docbench/internal/pipeline"
	"github.com/docbench/docbench/internal/store"
	"github.com/docbench/docbench/internal/tools"
)

// boxedMock emits one positioned paragraph so layout matching has geometry
// to work with.
func boxedMock() *tools.MockTool {
	return &tools.MockTool{
		ToolName: "mock",
		Latency:  time.Millisecond,
		CostUSD:  0.001,
		Output: &tools.StageOutput{
			Blocks: []corpus.Block{
				{Type: corpus.BlockParagraph, Box: corpus.Box{W: 10, H: 10}, Text: "mock output", Order: 0},
			},
			Units: [][]int{{0}},
		},
	}
}

func gtFor(docID string) *corpus.GroundTruth {
	return &corpus.GroundTruth{
		DocID: docID,
		Blocks: []corpus.Block{
			{ID: "a", Type: corpus.BlockParagraph, Box: corpus.Box{W: 10, H: 10}, Text: "mock output"},
		},
		ReadingOrder: []string{"a"},
		ReadingUnits: [][]string{{"a"}},
	}
}

func entryFor(docID string) corpus.Entry {
	return corpus.Entry{
		Document:    corpus.Document{ID: docID, Path: docID + ".pdf", Pages: 1, Type: "academic"},
		GroundTruth: gtFor(docID),
	}
}

func soloDef() *pipeline.Definition {
	return &pipeline.Definition{
		Name:   "solo",
		Stages: []pipeline.StageSpec{{Name: "extract", Tool: "mock"}},
	}
}

func duoDef() *pipeline.Definition {
	return &pipeline.Definition{
		Name: "duo",
		Stages: []pipeline.StageSpec{
			{Name: "extract", Tool: "mock"},
			{Name: "refine", Tool: "mock"},
		},
	}
}

func newTestRunner(t *testing.T, concurrency int) (*Runner, *store.Store) {
	t.Helper()
	reg := tools.NewRegistry()
	reg.Register(boxedMock())

	st, err := store.Open(":memory:", nil)
	if err != nil {
		t.Fatalf("store.Open() error = %v", err)
	}
	t.Cleanup(func() { st.Close() })

	r := New(Config{
		Executor:    executor.New(executor.Config{Registry: reg, StageTimeout: 5 * time.Second}),
		Suite:       metrics.NewSuite(metrics.SuiteConfig{}),
		Store:       st,
		Concurrency: concurrency,
	})
	return r, st
}

func TestRun(t *testing.T) {
	t.Run("full sweep", func(t *testing.T) {
		r, st := newTestRunner(t, 2)
		ctx := context.Background()

		manifest, err := r.Run(ctx, Sweep{
			Plan:      "plans/test.yaml",
			Pipelines: []*pipeline.Definition{soloDef(), duoDef()},
			Entries:   []corpus.Entry{entryFor("d1"), entryFor("d2")},
		})
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		if len(manifest.Units) != 4 {
			t.Fatalf("units = %d, want 4", len(manifest.Units))
		}
		if manifest.Succeeded != 4 || manifest.Partial != 0 || manifest.Failed != 0 {
			t.Errorf("succeeded/partial/failed = %d/%d/%d, want 4/0/0",
				manifest.Succeeded, manifest.Partial, manifest.Failed)
		}
		if manifest.Cancelled {
			t.Error("Cancelled = true, want false")
		}

		// deterministic unit ordering: pipeline, then document
		wantOrder := []string{"duo/d1", "duo/d2", "solo/d1", "solo/d2"}
		for i, u := range manifest.Units {
			if got := u.Pipeline + "/" + u.DocID; got != wantOrder[i] {
				t.Errorf("units[%d] = %s, want %s", i, got, wantOrder[i])
			}
		}

		duo := manifest.Units[0]
		if len(duo.StageStatus) != 2 || duo.StageStatus[0] != "ok" || duo.StageStatus[1] != "ok" {
			t.Errorf("duo stage statuses = %v, want [ok ok]", duo.StageStatus)
		}
		// text, layout, reading_order, reading_unit score; table and
		// formula are undefined for this ground truth
		if duo.Metrics != 4 || duo.Skipped != 2 {
			t.Errorf("duo metrics/skipped = %d/%d, want 4/2", duo.Metrics, duo.Skipped)
		}
		if manifest.TotalCostUSD <= 0 {
			t.Errorf("TotalCostUSD = %f, want > 0", manifest.TotalCostUSD)
		}

		// persisted state
		run, err := st.GetRun(ctx, manifest.RunID)
		if err != nil {
			t.Fatalf("GetRun() error = %v", err)
		}
		if run.Status != store.RunStatusCompleted {
			t.Errorf("run status = %q, want completed", run.Status)
		}
		if run.Plan != "plans/test.yaml" {
			t.Errorf("run plan = %q, want plans/test.yaml", run.Plan)
		}
		prs, err := st.ListPipelineResults(ctx, manifest.RunID)
		if err != nil {
			t.Fatalf("ListPipelineResults() error = %v", err)
		}
		if len(prs) != 4 {
			t.Errorf("persisted pipeline results = %d, want 4", len(prs))
		}
		mrs, err := st.ListMetricResults(ctx, manifest.RunID)
		if err != nil {
			t.Fatalf("ListMetricResults() error = %v", err)
		}
		if len(mrs) != 16 {
			t.Errorf("persisted metric results = %d, want 16", len(mrs))
		}
		sks, err := st.ListMetricSkips(ctx, manifest.RunID)
		if err != nil {
			t.Fatalf("ListMetricSkips() error = %v", err)
		}
		if len(sks) != 8 {
			t.Errorf("persisted metric skips = %d, want 8", len(sks))
		}
	})

	t.Run("invalid pipeline fails without executing", func(t *testing.T) {
		r, st := newTestRunner(t, 2)
		ctx := context.Background()

		broken := &pipeline.Definition{
			Name:   "broken",
			Stages: []pipeline.StageSpec{{Name: "extract", Tool: "teleport"}},
		}
		manifest, err := r.Run(ctx, Sweep{
			Pipelines: []*pipeline.Definition{broken, soloDef()},
			Entries:   []corpus.Entry{entryFor("d1"), entryFor("d2")},
		})
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		if manifest.Failed != 2 || manifest.Succeeded != 2 {
			t.Errorf("failed/succeeded = %d/%d, want 2/2", manifest.Failed, manifest.Succeeded)
		}
		for _, u := range manifest.Units {
			if u.Pipeline != "broken" {
				continue
			}
			if u.Status != UnitFailed {
				t.Errorf("broken/%s status = %q, want failed", u.DocID, u.Status)
			}
			if u.Error == "" {
				t.Errorf("broken/%s has no error detail", u.DocID)
			}
			if u.CostUSD != 0 {
				t.Errorf("broken/%s cost = %f, want 0 before any stage", u.DocID, u.CostUSD)
			}
		}

		// only the valid pipeline persisted results
		prs, err := st.ListPipelineResults(ctx, manifest.RunID)
		if err != nil {
			t.Fatalf("ListPipelineResults() error = %v", err)
		}
		if len(prs) != 2 {
			t.Errorf("persisted pipeline results = %d, want 2", len(prs))
		}
	})

	t.Run("partial and failed outcomes", func(t *testing.T) {
		r, _ := newTestRunner(t, 2)
		ctx := context.Background()

		failSecond := &pipeline.Definition{
			Name: "fail-second",
			Stages: []pipeline.StageSpec{
				{Name: "extract", Tool: "mock"},
				{Name: "refine", Tool: "mock", Config: map[string]any{"fail": true}},
			},
		}
		failFirst := &pipeline.Definition{
			Name: "fail-first",
			Stages: []pipeline.StageSpec{
				{Name: "extract", Tool: "mock", Config: map[string]any{"fail": true}},
				{Name: "refine", Tool: "mock"},
			},
		}
		manifest, err := r.Run(ctx, Sweep{
			Pipelines: []*pipeline.Definition{failSecond, failFirst},
			Entries:   []corpus.Entry{entryFor("d1")},
		})
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}

		byName := make(map[string]UnitOutcome)
		for _, u := range manifest.Units {
			byName[u.Pipeline] = u
		}
		if got := byName["fail-second"]; got.Status != UnitPartial {
			t.Errorf("fail-second status = %q, want partial", got.Status)
		}
		if got := byName["fail-first"]; got.Status != UnitFailed {
			t.Errorf("fail-first status = %q, want failed", got.Status)
		}
		if got := byName["fail-first"]; len(got.StageStatus) != 2 ||
			got.StageStatus[0] != "failed" || got.StageStatus[1] != "skipped" {
			t.Errorf("fail-first stage statuses = %v, want [failed skipped]", got.StageStatus)
		}
		if manifest.Partial != 1 || manifest.Failed != 1 {
			t.Errorf("partial/failed = %d/%d, want 1/1", manifest.Partial, manifest.Failed)
		}
	})

	t.Run("cancelled before start", func(t *testing.T) {
		r, st := newTestRunner(t, 2)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		manifest, err := r.Run(ctx, Sweep{
			Pipelines: []*pipeline.Definition{soloDef()},
			Entries:   []corpus.Entry{entryFor("d1"), entryFor("d2")},
		})
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		if !manifest.Cancelled {
			t.Error("Cancelled = false, want true")
		}
		if len(manifest.Units) != 0 {
			t.Errorf("units = %d, want 0 when cancelled before start", len(manifest.Units))
		}
		run, err := st.GetRun(context.Background(), manifest.RunID)
		if err != nil {
			t.Fatalf("GetRun() error = %v", err)
		}
		if run.Status != store.RunStatusCancelled {
			t.Errorf("run status = %q, want cancelled", run.Status)
		}
	})

	t.Run("without store or suite", func(t *testing.T) {
		reg := tools.NewRegistry()
		reg.Register(boxedMock())
		r := New(Config{
			Executor: executor.New(executor.Config{Registry: reg}),
		})
		manifest, err := r.Run(context.Background(), Sweep{
			Pipelines: []*pipeline.Definition{soloDef()},
			Entries:   []corpus.Entry{entryFor("d1")},
		})
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		if manifest.Succeeded != 1 {
			t.Errorf("succeeded = %d, want 1", manifest.Succeeded)
		}
		if manifest.Units[0].Metrics != 0 {
			t.Errorf("metrics = %d, want 0 without a suite", manifest.Units[0].Metrics)
		}
	})

	t.Run("ground truth mismatch recorded on unit", func(t *testing.T) {
		r, _ := newTestRunner(t, 1)
		entry := corpus.Entry{
			Document:    corpus.Document{ID: "d1", Pages: 1, Type: "academic"},
			GroundTruth: gtFor("other-doc"),
		}
		manifest, err := r.Run(context.Background(), Sweep{
			Pipelines: []*pipeline.Definition{soloDef()},
			Entries:   []corpus.Entry{entry},
		})
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		u := manifest.Units[0]
		if u.Error == "" {
			t.Error("unit error empty, want mismatch detail")
		}
		if u.Metrics != 0 {
			t.Errorf("metrics = %d, want 0 on mismatch", u.Metrics)
		}
	})
}

// gateMock counts concurrent invocations to verify the pool bound.
type gateMock struct {
	*tools.MockTool
	mu       sync.Mutex
	inFlight int
	maxSeen  int
}

func (g *gateMock) Process(ctx context.Context, input tools.Input, config map[string]any) (*tools.Result, error) {
	g.mu.Lock()
	g.inFlight++
	if g.inFlight > g.maxSeen {
		g.maxSeen = g.inFlight
	}
	g.mu.Unlock()
	defer func() {
		g.mu.Lock()
		g.inFlight--
		g.mu.Unlock()
	}()
	return g.MockTool.Process(ctx, input, config)
}

func TestRun_ConcurrencyBound(t *testing.T) {
	gate := &gateMock{MockTool: boxedMock()}
	gate.Latency = 20 * time.Millisecond
	reg := tools.NewRegistry()
	reg.Register(gate)

	r := New(Config{
		Executor:    executor.New(executor.Config{Registry: reg}),
		Concurrency: 2,
	})

	entries := []corpus.Entry{
		entryFor("d1"), entryFor("d2"), entryFor("d3"),
		entryFor("d4"), entryFor("d5"), entryFor("d6"),
	}
	manifest, err := r.Run(context.Background(), Sweep{
		Pipelines: []*pipeline.Definition{soloDef()},
		Entries:   entries,
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if manifest.Succeeded != 6 {
		t.Errorf("succeeded = %d, want 6", manifest.Succeeded)
	}

	gate.mu.Lock()
	maxSeen := gate.maxSeen
	gate.mu.Unlock()
	if maxSeen > 2 {
		t.Errorf("max concurrent invocations = %d, want <= 2", maxSeen)
	}
}

func TestNewRunID(t *testing.T) {
	pattern := regexp.MustCompile(`^\d{8}-\d{6}-[0-9a-f]{8}$`)
	a, b := NewRunID(), NewRunID()
	if !pattern.MatchString(a) {
		t.Errorf("NewRunID() = %q, want timestamp-uuid8 shape", a)
	}
	if a == b {
		t.Errorf("NewRunID() returned duplicate %q", a)
	}
}
