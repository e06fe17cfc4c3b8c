package metrics

import (
	"github.com/docbench/docbench/internal/corpus"
	"github.com/docbench/docbench/internal/tools"
)

// LayoutConfig configures the layout metric.
type LayoutConfig struct {
	MinIoU float64 // minimum IoU for a match (default 0.5)
}

// LayoutMetric scores block detection and classification. Predicted blocks
// are assigned to ground-truth blocks greedily by IoU; unmatched predictions
// are false positives, unmatched ground truth false negatives.
//
//	detection:               matched / (matched + FP + FN)
//	classification_accuracy: matched pairs with equal type tags / matched
//	precision, recall:       standard detection ratios
type LayoutMetric struct {
	minIoU float64
}

// NewLayoutMetric creates the layout accuracy provider.
func NewLayoutMetric(cfg LayoutConfig) *LayoutMetric {
	minIoU := cfg.MinIoU
	if minIoU <= 0 {
		minIoU = defaultMinIoU
	}
	return &LayoutMetric{minIoU: minIoU}
}

func (m *LayoutMetric) Name() string {
	return "layout"
}

func (m *LayoutMetric) Score(pred *tools.StageOutput, gt *corpus.GroundTruth) (*Result, error) {
	if len(gt.Blocks) == 0 {
		return nil, ErrUndefined
	}
	predBlocks := blocksOf(pred)

	matches := matchBlocks(predBlocks, gt.Blocks, m.minIoU)
	matched := len(matches)
	fp := len(predBlocks) - matched
	fn := len(gt.Blocks) - matched

	typeCorrect := 0
	diagnostics := make([]Diagnostic, 0, len(gt.Blocks))
	byGT := gtToPred(matches)
	iouByGT := make(map[int]float64, matched)
	for _, match := range matches {
		iouByGT[match.GT] = match.IoU
		if predBlocks[match.Pred].Type == gt.Blocks[match.GT].Type {
			typeCorrect++
		}
	}
	for j, g := range gt.Blocks {
		if _, ok := byGT[j]; ok {
			diagnostics = append(diagnostics, Diagnostic{BlockID: g.ID, Score: iouByGT[j]})
		} else {
			diagnostics = append(diagnostics, Diagnostic{BlockID: g.ID, Note: "missed"})
		}
	}

	detection := float64(matched) / float64(matched+fp+fn)

	clsAccuracy := 0.0
	if matched > 0 {
		clsAccuracy = float64(typeCorrect) / float64(matched)
	}
	precision := 0.0
	if len(predBlocks) > 0 {
		precision = float64(matched) / float64(len(predBlocks))
	}
	recall := float64(matched) / float64(len(gt.Blocks))

	return &Result{
		Metric: m.Name(),
		Scores: map[string]float64{
			"detection":               detection,
			"classification_accuracy": clsAccuracy,
			"precision":               precision,
			"recall":                  recall,
		},
		Diagnostics: diagnostics,
	}, nil
}

var _ Provider = (*LayoutMetric)(nil)
