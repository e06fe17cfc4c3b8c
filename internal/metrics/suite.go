package metrics

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/docbench/docbench/internal/corpus"
	"github.com/docbench/docbench/internal/executor"
)

// SkippedMetric records one metric excluded for a (pipeline, document)
// pair: either a documented exclusion (the dimension does not apply) or a
// computation error. Skipped metrics never enter aggregation.
type SkippedMetric struct {
	Metric    string `json:"metric"`
	Reason    string `json:"reason"`
	Undefined bool   `json:"undefined"`
}

// SuiteConfig configures a scoring suite.
type SuiteConfig struct {
	Providers []Provider // default: DefaultProviders()
	Logger    *slog.Logger
}

// Suite runs every metric provider over a pipeline result.
type Suite struct {
	providers []Provider
	logger    *slog.Logger
}

// DefaultProviders returns all six accuracy dimensions with default
// thresholds.
func DefaultProviders() []Provider {
	return ConfiguredProviders(LayoutConfig{})
}

// ConfiguredProviders returns all six accuracy dimensions with the given
// matching thresholds applied to the position-sensitive metrics.
func ConfiguredProviders(cfg LayoutConfig) []Provider {
	return []Provider{
		NewTextMetric(),
		NewLayoutMetric(cfg),
		NewTableMetric(),
		NewFormulaMetric(),
		NewReadingOrderMetric(cfg),
		NewReadingUnitMetric(cfg),
	}
}

// NewSuite creates a scoring suite.
func NewSuite(cfg SuiteConfig) *Suite {
	providers := cfg.Providers
	if len(providers) == 0 {
		providers = DefaultProviders()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Suite{
		providers: providers,
		logger:    logger.With("component", "metrics"),
	}
}

// Providers returns the suite's provider names in order.
func (s *Suite) Providers() []string {
	names := make([]string, len(s.providers))
	for i, p := range s.providers {
		names[i] = p.Name()
	}
	return names
}

// Score runs every provider over one pipeline result. A document/ground
// truth identity mismatch fails fast instead of scoring zero. Per-metric
// problems are returned as skips, not errors.
func (s *Suite) Score(pr *executor.PipelineResult, gt *corpus.GroundTruth) ([]*Result, []SkippedMetric, error) {
	if pr.DocID != gt.DocID {
		return nil, nil, fmt.Errorf("%w: result document %q scored against ground truth %q",
			corpus.ErrGroundTruthMismatch, pr.DocID, gt.DocID)
	}

	var results []*Result
	var skipped []SkippedMetric
	for _, p := range s.providers {
		r, err := p.Score(pr.FinalOutput, gt)
		if err != nil {
			if errors.Is(err, ErrUndefined) {
				s.logger.Debug("metric undefined",
					"metric", p.Name(), "pipeline", pr.Pipeline, "doc_id", pr.DocID)
				skipped = append(skipped, SkippedMetric{Metric: p.Name(), Reason: err.Error(), Undefined: true})
				continue
			}
			s.logger.Warn("metric computation failed",
				"metric", p.Name(), "pipeline", pr.Pipeline, "doc_id", pr.DocID, "error", err)
			skipped = append(skipped, SkippedMetric{Metric: p.Name(), Reason: err.Error()})
			continue
		}
		r.DocID = pr.DocID
		r.Pipeline = pr.Pipeline
		results = append(results, r)
	}
	return results, skipped, nil
}
