package aggregate

import (
	"math"
	"testing"
	"time"

	"github.com/docbench/docbench/internal/executor"
	"github.com/docbench/docbench/internal/metrics"
)

func metricResult(pipeline, docID, metric string, scores map[string]float64) *metrics.Result {
	return &metrics.Result{
		Metric:   metric,
		DocID:    docID,
		Pipeline: pipeline,
		Scores:   scores,
	}
}

func pipelineResult(pipeline, docID, docType string, costUSD float64, latency time.Duration, success bool) *executor.PipelineResult {
	return &executor.PipelineResult{
		DocID:        docID,
		DocType:      docType,
		Pipeline:     pipeline,
		TotalCostUSD: costUSD,
		TotalLatency: latency,
		Success:      success,
	}
}

// threeDocInput: one pipeline over three academic/scanned documents with
// text scores on all three and a table score on the first only.
func threeDocInput() Input {
	return Input{
		RunID: "20260823-120000-abcd1234",
		Runs: []*executor.PipelineResult{
			pipelineResult("marker", "d1", "academic", 0.010, 2*time.Second, true),
			pipelineResult("marker", "d2", "academic", 0.020, 3*time.Second, true),
			pipelineResult("marker", "d3", "scanned", 0.040, 5*time.Second, false),
		},
		Results: []*metrics.Result{
			metricResult("marker", "d1", "text", map[string]float64{"ned": 0.1}),
			metricResult("marker", "d2", "text", map[string]float64{"ned": 0.2}),
			metricResult("marker", "d3", "text", map[string]float64{"ned": 0.6}),
			metricResult("marker", "d1", "table", map[string]float64{"teds": 0.9}),
		},
	}
}

func pipelineByName(t *testing.T, r *Report, name string) *PipelineReport {
	t.Helper()
	for _, pr := range r.Pipelines {
		if pr.Pipeline == name {
			return pr
		}
	}
	t.Fatalf("report has no pipeline %q", name)
	return nil
}

func TestBuild(t *testing.T) {
	t.Run("means and medians", func(t *testing.T) {
		report := Build(threeDocInput())
		pr := pipelineByName(t, report, "marker")

		ned := pr.Scores["text.ned"]
		if ned == nil {
			t.Fatalf("text.ned missing from %v", pr.Scores)
		}
		if ned.Count != 3 {
			t.Errorf("text.ned count = %d, want 3", ned.Count)
		}
		if math.Abs(ned.Mean-0.3) > 1e-9 {
			t.Errorf("text.ned mean = %f, want 0.3", ned.Mean)
		}
		if math.Abs(ned.Median-0.2) > 1e-9 {
			t.Errorf("text.ned median = %f, want 0.2", ned.Median)
		}
	})

	t.Run("undefined metric excluded from its denominator only", func(t *testing.T) {
		report := Build(threeDocInput())
		pr := pipelineByName(t, report, "marker")

		teds := pr.Scores["table.teds"]
		if teds == nil {
			t.Fatalf("table.teds missing from %v", pr.Scores)
		}
		// only d1 had a table
		if teds.Count != 1 {
			t.Errorf("table.teds count = %d, want 1", teds.Count)
		}
		if teds.Mean != 0.9 {
			t.Errorf("table.teds mean = %f, want 0.9", teds.Mean)
		}
		if pr.Documents != 3 {
			t.Errorf("Documents = %d, want 3 despite partial table coverage", pr.Documents)
		}
		if got := pr.Scores["text.ned"].Count; got != 3 {
			t.Errorf("text.ned count = %d, want 3", got)
		}
	})

	t.Run("cost latency and outcome totals", func(t *testing.T) {
		report := Build(threeDocInput())
		pr := pipelineByName(t, report, "marker")

		if math.Abs(pr.TotalCostUSD-0.070) > 1e-9 {
			t.Errorf("TotalCostUSD = %f, want 0.070", pr.TotalCostUSD)
		}
		if pr.TotalLatency != 10*time.Second {
			t.Errorf("TotalLatency = %v, want 10s", pr.TotalLatency)
		}
		if pr.Succeeded != 2 || pr.Failed != 1 {
			t.Errorf("Succeeded/Failed = %d/%d, want 2/1", pr.Succeeded, pr.Failed)
		}
	})

	t.Run("doc type breakdown", func(t *testing.T) {
		report := Build(threeDocInput())
		pr := pipelineByName(t, report, "marker")

		academic := pr.ByDocType["academic"]
		if academic == nil {
			t.Fatalf("no academic breakdown: %v", pr.ByDocType)
		}
		if academic.Documents != 2 {
			t.Errorf("academic documents = %d, want 2", academic.Documents)
		}
		if math.Abs(academic.Scores["text.ned"].Mean-0.15) > 1e-9 {
			t.Errorf("academic text.ned mean = %f, want 0.15", academic.Scores["text.ned"].Mean)
		}
		if math.Abs(academic.TotalCostUSD-0.030) > 1e-9 {
			t.Errorf("academic cost = %f, want 0.030", academic.TotalCostUSD)
		}

		scanned := pr.ByDocType["scanned"]
		if scanned == nil {
			t.Fatalf("no scanned breakdown: %v", pr.ByDocType)
		}
		if scanned.Documents != 1 {
			t.Errorf("scanned documents = %d, want 1", scanned.Documents)
		}
		if math.Abs(scanned.Scores["text.ned"].Mean-0.6) > 1e-9 {
			t.Errorf("scanned text.ned mean = %f, want 0.6", scanned.Scores["text.ned"].Mean)
		}
	})

	t.Run("rebuild with one document fewer is exact", func(t *testing.T) {
		full := Build(threeDocInput())
		if math.Abs(pipelineByName(t, full, "marker").Scores["text.ned"].Mean-0.3) > 1e-9 {
			t.Fatalf("full mean = %f, want 0.3", pipelineByName(t, full, "marker").Scores["text.ned"].Mean)
		}

		in := threeDocInput()
		in.Runs = in.Runs[:2]
		in.Results = in.Results[:2]
		reduced := Build(in)
		pr := pipelineByName(t, reduced, "marker")
		if pr.Scores["text.ned"].Count != 2 {
			t.Errorf("reduced count = %d, want 2", pr.Scores["text.ned"].Count)
		}
		if math.Abs(pr.Scores["text.ned"].Mean-0.15) > 1e-9 {
			t.Errorf("reduced mean = %f, want exactly 0.15", pr.Scores["text.ned"].Mean)
		}
		if pr.Documents != 2 {
			t.Errorf("reduced documents = %d, want 2", pr.Documents)
		}
	})

	t.Run("pipelines sorted by name", func(t *testing.T) {
		in := threeDocInput()
		in.Runs = append(in.Runs,
			pipelineResult("alpha", "d1", "academic", 0.001, time.Second, true))
		in.Results = append(in.Results,
			metricResult("alpha", "d1", "text", map[string]float64{"ned": 0.5}))

		report := Build(in)
		if len(report.Pipelines) != 2 {
			t.Fatalf("pipelines = %d, want 2", len(report.Pipelines))
		}
		if report.Pipelines[0].Pipeline != "alpha" || report.Pipelines[1].Pipeline != "marker" {
			t.Errorf("order = %s, %s; want alpha, marker",
				report.Pipelines[0].Pipeline, report.Pipelines[1].Pipeline)
		}
	})

	t.Run("metric results without pipeline results", func(t *testing.T) {
		report := Build(Input{
			Results: []*metrics.Result{
				metricResult("orphan", "d9", "text", map[string]float64{"ned": 0.4}),
			},
		})
		pr := pipelineByName(t, report, "orphan")
		if pr.Documents != 0 {
			t.Errorf("documents = %d, want 0 without pipeline results", pr.Documents)
		}
		if pr.Scores["text.ned"].Mean != 0.4 {
			t.Errorf("text.ned mean = %f, want 0.4", pr.Scores["text.ned"].Mean)
		}
		if pr.ByDocType["unknown"] == nil {
			t.Errorf("expected unknown doc type bucket, got %v", pr.ByDocType)
		}
	})

	t.Run("empty input", func(t *testing.T) {
		report := Build(Input{RunID: "r1"})
		if report.RunID != "r1" {
			t.Errorf("RunID = %q, want r1", report.RunID)
		}
		if len(report.Pipelines) != 0 {
			t.Errorf("pipelines = %d, want 0", len(report.Pipelines))
		}
	})
}

func TestReportRows(t *testing.T) {
	report := Build(threeDocInput())
	rows := report.Rows()

	// all group first, then academic, then scanned; score keys sorted
	want := []struct {
		docType string
		metric  string
	}{
		{"all", "table.teds"},
		{"all", "text.ned"},
		{"academic", "table.teds"},
		{"academic", "text.ned"},
		{"scanned", "text.ned"},
	}
	if len(rows) != len(want) {
		t.Fatalf("rows = %d, want %d: %+v", len(rows), len(want), rows)
	}
	for i, w := range want {
		if rows[i].DocType != w.docType || rows[i].Metric != w.metric {
			t.Errorf("rows[%d] = %s/%s, want %s/%s",
				i, rows[i].DocType, rows[i].Metric, w.docType, w.metric)
		}
		if rows[i].Pipeline != "marker" {
			t.Errorf("rows[%d].Pipeline = %q, want marker", i, rows[i].Pipeline)
		}
	}

	if rows[1].Count != 3 || math.Abs(rows[1].Mean-0.3) > 1e-9 {
		t.Errorf("all text.ned row = %+v, want count 3 mean 0.3", rows[1])
	}
	if math.Abs(rows[0].TotalCostUSD-0.070) > 1e-9 {
		t.Errorf("all row cost = %f, want 0.070", rows[0].TotalCostUSD)
	}
	if math.Abs(rows[4].TotalLatencySeconds-5.0) > 1e-9 {
		t.Errorf("scanned latency seconds = %f, want 5", rows[4].TotalLatencySeconds)
	}
}
