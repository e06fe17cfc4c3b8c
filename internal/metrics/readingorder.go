package metrics

import (
	"sort"

	"github.com/docbench/docbench/internal/corpus"
	"github.com/docbench/docbench/internal/tools"
)

// ReadingOrderMetric scores the order blocks are read in. Both orders are
// reduced to sequences of ground-truth ids: the predicted sequence lists
// the matched counterpart of each predicted block in predicted order, with
// unmatched predictions omitted rather than inserted as novel symbols. The
// score is the normalized edit distance between the sequences. A perfect
// extraction in the right order scores 0.
type ReadingOrderMetric struct {
	minIoU float64
}

// NewReadingOrderMetric creates the reading-order provider. The IoU
// threshold mirrors the layout metric's matching.
func NewReadingOrderMetric(cfg LayoutConfig) *ReadingOrderMetric {
	minIoU := cfg.MinIoU
	if minIoU <= 0 {
		minIoU = defaultMinIoU
	}
	return &ReadingOrderMetric{minIoU: minIoU}
}

func (m *ReadingOrderMetric) Name() string {
	return "reading_order"
}

func (m *ReadingOrderMetric) Score(pred *tools.StageOutput, gt *corpus.GroundTruth) (*Result, error) {
	if len(gt.ReadingOrder) == 0 {
		return nil, ErrUndefined
	}

	predBlocks := blocksOf(pred)
	byPred := predToGT(matchBlocks(predBlocks, gt.Blocks, m.minIoU))

	// Predicted blocks in their declared order, reduced to matched
	// ground-truth ids.
	order := make([]int, len(predBlocks))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return predBlocks[order[a]].Order < predBlocks[order[b]].Order
	})

	predSeq := make([]string, 0, len(byPred))
	for _, i := range order {
		if gtIdx, ok := byPred[i]; ok {
			predSeq = append(predSeq, gt.Blocks[gtIdx].ID)
		}
	}

	dist := editDistance(predSeq, gt.ReadingOrder)
	ned := min(float64(dist)/float64(len(gt.ReadingOrder)), 1)

	return &Result{
		Metric: m.Name(),
		Scores: map[string]float64{"ned": ned},
	}, nil
}

var _ Provider = (*ReadingOrderMetric)(nil)
