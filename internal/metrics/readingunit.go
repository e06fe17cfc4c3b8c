package metrics

import (
	"github.com/docbench/docbench/internal/corpus"
	"github.com/docbench/docbench/internal/tools"
)

// ReadingUnitMetric scores how well predicted reading units reproduce the
// ground-truth partition of blocks:
//
//	fragmentation:     per ground-truth unit, how many predicted units its
//	                   blocks landed in (1 = unsplit), averaged
//	incorrect_merge:   fraction of predicted units spanning more than one
//	                   ground-truth unit (0 = none merged)
//	grouping_accuracy: fraction of matched-block pairs whose co-membership
//	                   agrees between prediction and ground truth
//
// Pairs involving unmatched blocks are excluded from the accuracy
// denominator. Undefined when the ground truth has no units, the prediction
// carries none, or nothing matched.
type ReadingUnitMetric struct {
	minIoU float64
}

// NewReadingUnitMetric creates the reading-unit quality provider.
func NewReadingUnitMetric(cfg LayoutConfig) *ReadingUnitMetric {
	minIoU := cfg.MinIoU
	if minIoU <= 0 {
		minIoU = defaultMinIoU
	}
	return &ReadingUnitMetric{minIoU: minIoU}
}

func (m *ReadingUnitMetric) Name() string {
	return "reading_unit"
}

func (m *ReadingUnitMetric) Score(pred *tools.StageOutput, gt *corpus.GroundTruth) (*Result, error) {
	if len(gt.ReadingUnits) == 0 {
		return nil, ErrUndefined
	}
	if pred == nil || len(pred.Units) == 0 {
		return nil, ErrUndefined
	}
	predBlocks := pred.Blocks

	byID := gt.BlockByID()
	gtUnitOf := make(map[int]int)
	for ui, unit := range gt.ReadingUnits {
		for _, id := range unit {
			if bi, ok := byID[id]; ok {
				gtUnitOf[bi] = ui
			}
		}
	}
	predUnitOf := make(map[int]int)
	for ui, unit := range pred.Units {
		for _, bi := range unit {
			if bi >= 0 && bi < len(predBlocks) {
				predUnitOf[bi] = ui
			}
		}
	}

	matches := matchBlocks(predBlocks, gt.Blocks, m.minIoU)
	if len(matches) == 0 {
		return nil, ErrUndefined
	}
	byGT := gtToPred(matches)
	byPred := predToGT(matches)

	// A matched predicted block outside every predicted unit counts as its
	// own singleton unit.
	predUnit := func(pi int) int {
		if u, ok := predUnitOf[pi]; ok {
			return u
		}
		return len(pred.Units) + pi
	}

	// Fragmentation, over ground-truth units with at least one matched block
	assessed := 0
	fragSum := 0.0
	diagnostics := make([]Diagnostic, 0, len(gt.ReadingUnits))
	for _, unit := range gt.ReadingUnits {
		spread := make(map[int]bool)
		for _, id := range unit {
			bi, ok := byID[id]
			if !ok {
				continue
			}
			pi, ok := byGT[bi]
			if !ok {
				continue
			}
			spread[predUnit(pi)] = true
		}
		if len(spread) == 0 {
			continue
		}
		assessed++
		fragSum += float64(len(spread))
		if len(unit) > 0 {
			diagnostics = append(diagnostics, Diagnostic{BlockID: unit[0], Score: float64(len(spread))})
		}
	}

	// Incorrect merges, over predicted units
	merges := 0
	for _, unit := range pred.Units {
		spread := make(map[int]bool)
		for _, pi := range unit {
			gi, ok := byPred[pi]
			if !ok {
				continue
			}
			if u, inUnit := gtUnitOf[gi]; inUnit {
				spread[u] = true
			}
		}
		if len(spread) > 1 {
			merges++
		}
	}

	// Pairwise grouping agreement over matched blocks in ground-truth units
	type member struct{ gtUnit, predUnit int }
	var members []member
	for gi := range gt.Blocks {
		ui, inUnit := gtUnitOf[gi]
		if !inUnit {
			continue
		}
		pi, ok := byGT[gi]
		if !ok {
			continue
		}
		members = append(members, member{gtUnit: ui, predUnit: predUnit(pi)})
	}
	agree, total := 0, 0
	for a := 0; a < len(members); a++ {
		for b := a + 1; b < len(members); b++ {
			total++
			sameGT := members[a].gtUnit == members[b].gtUnit
			samePred := members[a].predUnit == members[b].predUnit
			if sameGT == samePred {
				agree++
			}
		}
	}

	scores := map[string]float64{
		"incorrect_merge": float64(merges) / float64(len(pred.Units)),
	}
	if assessed > 0 {
		scores["fragmentation"] = fragSum / float64(assessed)
	}
	if total > 0 {
		scores["grouping_accuracy"] = float64(agree) / float64(total)
	}

	return &Result{
		Metric:      m.Name(),
		Scores:      scores,
		Diagnostics: diagnostics,
	}, nil
}

var _ Provider = (*ReadingUnitMetric)(nil)
