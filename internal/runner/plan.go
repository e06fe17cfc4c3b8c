package runner

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Plan is the declarative form of a sweep: where the corpus and pipeline
// definitions live, which documents to include, and how hard to push.
// Empty fields fall back to configuration and the home directory layout.
type Plan struct {
	CorpusDir           string   `yaml:"corpus_dir"`
	GroundTruthDir      string   `yaml:"ground_truth_dir"`
	PipelinesDir        string   `yaml:"pipelines_dir"`
	Pipelines           []string `yaml:"pipelines"`  // explicit definition files; empty = every file in pipelines_dir
	Categories          []string `yaml:"categories"` // document types to include; empty = all
	DocumentLimit       int      `yaml:"document_limit"`
	Metrics             []string `yaml:"metrics"` // metric names to score; empty = all
	Concurrency         int      `yaml:"concurrency"`
	StageTimeoutSeconds int      `yaml:"stage_timeout_seconds"`
}

// LoadPlan reads a plan from a YAML file. Relative paths in the plan,
// including pipeline file entries, resolve against the plan file's
// directory so a plan works regardless of the working directory.
func LoadPlan(path string) (*Plan, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan file: %w", err)
	}

	var plan Plan
	if err := yaml.Unmarshal(raw, &plan); err != nil {
		return nil, fmt.Errorf("failed to parse plan %s: %w", path, err)
	}
	if err := plan.validate(); err != nil {
		return nil, fmt.Errorf("invalid plan %s: %w", path, err)
	}

	base := filepath.Dir(path)
	plan.CorpusDir = resolvePath(base, plan.CorpusDir)
	plan.GroundTruthDir = resolvePath(base, plan.GroundTruthDir)
	plan.PipelinesDir = resolvePath(base, plan.PipelinesDir)
	for i, p := range plan.Pipelines {
		plan.Pipelines[i] = resolvePath(base, p)
	}
	return &plan, nil
}

func (p *Plan) validate() error {
	if p.DocumentLimit < 0 {
		return fmt.Errorf("document_limit must not be negative")
	}
	if p.Concurrency < 0 {
		return fmt.Errorf("concurrency must not be negative")
	}
	if p.StageTimeoutSeconds < 0 {
		return fmt.Errorf("stage_timeout_seconds must not be negative")
	}
	if len(p.Pipelines) > 0 && p.PipelinesDir != "" {
		return fmt.Errorf("pipelines and pipelines_dir are mutually exclusive")
	}
	return nil
}

func resolvePath(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}
