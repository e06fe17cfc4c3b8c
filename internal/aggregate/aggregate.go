// Package aggregate folds per-document metric results and execution
// cost/latency into per-pipeline statistics, overall and broken down by
// document type. Reports are rebuilt from the full input set on every call;
// nothing is cached between runs.
package aggregate

import (
	"sort"
	"time"

	"github.com/docbench/docbench/internal/executor"
	"github.com/docbench/docbench/internal/metrics"
)

// docTypeAll groups every document regardless of type.
const docTypeAll = "all"

// docTypeUnknown groups documents whose type was never recorded.
const docTypeUnknown = "unknown"

// Input is everything a report is built from: scored metric results plus the
// pipeline results that carry cost, latency, and document identity.
type Input struct {
	RunID   string
	Results []*metrics.Result
	Runs    []*executor.PipelineResult
}

// Report is the aggregate view of one run: per-pipeline statistics, overall
// and per document type.
type Report struct {
	RunID       string            `json:"run_id,omitempty"`
	GeneratedAt time.Time         `json:"generated_at"`
	Pipelines   []*PipelineReport `json:"pipelines"`
}

// PipelineReport aggregates one pipeline across the whole corpus.
type PipelineReport struct {
	Pipeline     string                    `json:"pipeline"`
	Documents    int                       `json:"documents"`
	Succeeded    int                       `json:"succeeded"`
	Failed       int                       `json:"failed"`
	TotalCostUSD float64                   `json:"total_cost_usd"`
	TotalLatency time.Duration             `json:"total_latency"`
	Scores       map[string]*ScoreStats    `json:"scores"`
	ByDocType    map[string]*DocTypeReport `json:"by_doc_type"`
}

// DocTypeReport is a pipeline's aggregate over one document type.
type DocTypeReport struct {
	DocType      string                 `json:"doc_type"`
	Documents    int                    `json:"documents"`
	TotalCostUSD float64                `json:"total_cost_usd"`
	TotalLatency time.Duration          `json:"total_latency"`
	Scores       map[string]*ScoreStats `json:"scores"`
}

// scoreKey flattens a metric's scalar into a single report column, e.g.
// "text.ned" or "layout.detection".
func scoreKey(metric, scalar string) string {
	return metric + "." + scalar
}

// pipelineAccum collects raw samples for one pipeline before statistics.
type pipelineAccum struct {
	report  *PipelineReport
	samples map[string][]float64            // score key -> samples
	byType  map[string]map[string][]float64 // doc type -> score key -> samples
	docs    map[string]bool                 // distinct doc ids
	typeDoc map[string]map[string]bool      // doc type -> distinct doc ids
}

// Build computes the aggregate report for a run. Grouping is by pipeline,
// then document type; each score's statistics cover only the documents where
// the metric was defined.
func Build(in Input) *Report {
	accums := make(map[string]*pipelineAccum)
	accum := func(pipeline string) *pipelineAccum {
		a, ok := accums[pipeline]
		if !ok {
			a = &pipelineAccum{
				report: &PipelineReport{
					Pipeline:  pipeline,
					Scores:    make(map[string]*ScoreStats),
					ByDocType: make(map[string]*DocTypeReport),
				},
				samples: make(map[string][]float64),
				byType:  make(map[string]map[string][]float64),
				docs:    make(map[string]bool),
				typeDoc: make(map[string]map[string]bool),
			}
			accums[pipeline] = a
		}
		return a
	}

	// Pipeline results carry document identity, success, cost, and latency.
	docTypes := make(map[string]string)
	for _, pr := range in.Runs {
		if pr == nil {
			continue
		}
		docType := pr.DocType
		if docType == "" {
			docType = docTypeUnknown
		}
		docTypes[pr.DocID] = docType

		a := accum(pr.Pipeline)
		a.docs[pr.DocID] = true
		if a.typeDoc[docType] == nil {
			a.typeDoc[docType] = make(map[string]bool)
		}
		a.typeDoc[docType][pr.DocID] = true

		a.report.TotalCostUSD += pr.TotalCostUSD
		a.report.TotalLatency += pr.TotalLatency
		if pr.Success {
			a.report.Succeeded++
		} else {
			a.report.Failed++
		}

		dt := a.docTypeReport(docType)
		dt.TotalCostUSD += pr.TotalCostUSD
		dt.TotalLatency += pr.TotalLatency
	}

	// Metric results contribute score samples, overall and per type.
	for _, r := range in.Results {
		if r == nil {
			continue
		}
		a := accum(r.Pipeline)
		docType, ok := docTypes[r.DocID]
		if !ok {
			docType = docTypeUnknown
		}
		for scalar, value := range r.Scores {
			key := scoreKey(r.Metric, scalar)
			a.samples[key] = append(a.samples[key], value)
			if a.byType[docType] == nil {
				a.byType[docType] = make(map[string][]float64)
			}
			a.byType[docType][key] = append(a.byType[docType][key], value)
		}
	}

	report := &Report{
		RunID:       in.RunID,
		GeneratedAt: time.Now().UTC(),
	}
	for _, a := range accums {
		a.report.Documents = len(a.docs)
		for key, samples := range a.samples {
			a.report.Scores[key] = summarize(samples)
		}
		for docType, keyed := range a.byType {
			dt := a.docTypeReport(docType)
			for key, samples := range keyed {
				dt.Scores[key] = summarize(samples)
			}
		}
		for docType, docs := range a.typeDoc {
			a.docTypeReport(docType).Documents = len(docs)
		}
		report.Pipelines = append(report.Pipelines, a.report)
	}
	sort.Slice(report.Pipelines, func(i, j int) bool {
		return report.Pipelines[i].Pipeline < report.Pipelines[j].Pipeline
	})
	return report
}

func (a *pipelineAccum) docTypeReport(docType string) *DocTypeReport {
	dt, ok := a.report.ByDocType[docType]
	if !ok {
		dt = &DocTypeReport{
			DocType: docType,
			Scores:  make(map[string]*ScoreStats),
		}
		a.report.ByDocType[docType] = dt
	}
	return dt
}

// Row is one flattened report line: a (pipeline, document type, score)
// triple with its statistics and the group's cost/latency totals. Rows are
// what filters and CSV export consume.
type Row struct {
	Pipeline            string  `json:"pipeline"`
	DocType             string  `json:"doc_type"`
	Metric              string  `json:"metric"`
	Count               int     `json:"count"`
	Mean                float64 `json:"mean"`
	Median              float64 `json:"median"`
	Min                 float64 `json:"min"`
	Max                 float64 `json:"max"`
	Documents           int     `json:"documents"`
	TotalCostUSD        float64 `json:"total_cost_usd"`
	TotalLatencySeconds float64 `json:"total_latency_seconds"`
}

// Rows flattens the report into deterministic row order: pipeline, then
// document type with the overall "all" group first, then score key.
func (r *Report) Rows() []Row {
	var rows []Row
	for _, pr := range r.Pipelines {
		rows = append(rows, groupRows(pr.Pipeline, docTypeAll, pr.Documents,
			pr.TotalCostUSD, pr.TotalLatency, pr.Scores)...)

		docTypes := make([]string, 0, len(pr.ByDocType))
		for docType := range pr.ByDocType {
			docTypes = append(docTypes, docType)
		}
		sort.Strings(docTypes)
		for _, docType := range docTypes {
			dt := pr.ByDocType[docType]
			rows = append(rows, groupRows(pr.Pipeline, docType, dt.Documents,
				dt.TotalCostUSD, dt.TotalLatency, dt.Scores)...)
		}
	}
	return rows
}

func groupRows(pipeline, docType string, documents int, costUSD float64,
	latency time.Duration, scores map[string]*ScoreStats) []Row {

	keys := make([]string, 0, len(scores))
	for key := range scores {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	rows := make([]Row, 0, len(keys))
	for _, key := range keys {
		s := scores[key]
		rows = append(rows, Row{
			Pipeline:            pipeline,
			DocType:             docType,
			Metric:              key,
			Count:               s.Count,
			Mean:                s.Mean,
			Median:              s.Median,
			Min:                 s.Min,
			Max:                 s.Max,
			Documents:           documents,
			TotalCostUSD:        costUSD,
			TotalLatencySeconds: latency.Seconds(),
		})
	}
	return rows
}
