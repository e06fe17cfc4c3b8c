package runner

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writePlan(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "plan.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write plan: %v", err)
	}
	return path
}

func TestLoadPlan(t *testing.T) {
	path := writePlan(t, `
corpus_dir: corpus
ground_truth_dir: ground_truth
pipelines_dir: pipelines
categories: [academic, scanned]
document_limit: 5
metrics: [text, layout]
concurrency: 2
stage_timeout_seconds: 60
`)

	plan, err := LoadPlan(path)
	if err != nil {
		t.Fatalf("LoadPlan() error = %v", err)
	}

	base := filepath.Dir(path)
	if want := filepath.Join(base, "corpus"); plan.CorpusDir != want {
		t.Errorf("CorpusDir = %s, want %s", plan.CorpusDir, want)
	}
	if want := filepath.Join(base, "ground_truth"); plan.GroundTruthDir != want {
		t.Errorf("GroundTruthDir = %s, want %s", plan.GroundTruthDir, want)
	}
	if want := filepath.Join(base, "pipelines"); plan.PipelinesDir != want {
		t.Errorf("PipelinesDir = %s, want %s", plan.PipelinesDir, want)
	}
	if len(plan.Categories) != 2 || plan.Categories[0] != "academic" {
		t.Errorf("Categories = %v, want [academic scanned]", plan.Categories)
	}
	if plan.DocumentLimit != 5 {
		t.Errorf("DocumentLimit = %d, want 5", plan.DocumentLimit)
	}
	if len(plan.Metrics) != 2 {
		t.Errorf("Metrics = %v, want [text layout]", plan.Metrics)
	}
	if plan.Concurrency != 2 {
		t.Errorf("Concurrency = %d, want 2", plan.Concurrency)
	}
	if plan.StageTimeoutSeconds != 60 {
		t.Errorf("StageTimeoutSeconds = %d, want 60", plan.StageTimeoutSeconds)
	}
}

func TestLoadPlan_AbsoluteAndEmptyPaths(t *testing.T) {
	path := writePlan(t, `
corpus_dir: /data/corpus
pipelines:
  - /abs/solo.yaml
  - relative.yaml
`)

	plan, err := LoadPlan(path)
	if err != nil {
		t.Fatalf("LoadPlan() error = %v", err)
	}

	if plan.CorpusDir != "/data/corpus" {
		t.Errorf("CorpusDir = %s, want /data/corpus unchanged", plan.CorpusDir)
	}
	if plan.GroundTruthDir != "" {
		t.Errorf("GroundTruthDir = %s, want empty (falls back later)", plan.GroundTruthDir)
	}
	if plan.Pipelines[0] != "/abs/solo.yaml" {
		t.Errorf("Pipelines[0] = %s, want /abs/solo.yaml unchanged", plan.Pipelines[0])
	}
	if want := filepath.Join(filepath.Dir(path), "relative.yaml"); plan.Pipelines[1] != want {
		t.Errorf("Pipelines[1] = %s, want %s", plan.Pipelines[1], want)
	}
}

func TestLoadPlan_Empty(t *testing.T) {
	plan, err := LoadPlan(writePlan(t, ""))
	if err != nil {
		t.Fatalf("LoadPlan() error = %v", err)
	}
	if plan.CorpusDir != "" || len(plan.Pipelines) != 0 || plan.Concurrency != 0 {
		t.Errorf("empty plan should leave every field zero, got %+v", plan)
	}
}

func TestLoadPlan_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"bad yaml", "corpus_dir: [unclosed", "failed to parse"},
		{"negative limit", "document_limit: -1", "document_limit"},
		{"negative concurrency", "concurrency: -2", "concurrency"},
		{"negative timeout", "stage_timeout_seconds: -5", "stage_timeout_seconds"},
		{"pipelines and dir", "pipelines_dir: p\npipelines: [a.yaml]", "mutually exclusive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadPlan(writePlan(t, tt.content))
			if err == nil {
				t.Fatal("LoadPlan() error = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadPlan_MissingFile(t *testing.T) {
	if _, err := LoadPlan(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("LoadPlan() error = nil, want error for missing file")
	}
}
