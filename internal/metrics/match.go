package metrics

import (
	"sort"

	"github.com/docbench/docbench/internal/corpus"
)

// defaultMinIoU is the minimum overlap for a predicted block to count as a
// match for a ground-truth block.
const defaultMinIoU = 0.5

// Match pairs a predicted block with a ground-truth block.
type Match struct {
	Pred int     // index into predicted blocks
	GT   int     // index into ground-truth blocks
	IoU  float64
}

// matchBlocks assigns predicted blocks to ground-truth blocks greedily,
// highest IoU first, one-to-one, dropping candidates under minIoU. Equal
// IoU values are broken by ground-truth insertion order (earliest wins),
// then by predicted order, so the assignment is fully deterministic.
func matchBlocks(pred, gt []corpus.Block, minIoU float64) []Match {
	type candidate struct {
		pred int
		gt   int
		iou  float64
	}

	var candidates []candidate
	for i, p := range pred {
		for j, g := range gt {
			if iou := p.Box.IoU(g.Box); iou >= minIoU && iou > 0 {
				candidates = append(candidates, candidate{pred: i, gt: j, iou: iou})
			}
		}
	}

	sort.Slice(candidates, func(a, b int) bool {
		ca, cb := candidates[a], candidates[b]
		if ca.iou != cb.iou {
			return ca.iou > cb.iou
		}
		if ca.gt != cb.gt {
			return ca.gt < cb.gt
		}
		return ca.pred < cb.pred
	})

	predTaken := make(map[int]bool, len(pred))
	gtTaken := make(map[int]bool, len(gt))
	var matches []Match
	for _, c := range candidates {
		if predTaken[c.pred] || gtTaken[c.gt] {
			continue
		}
		predTaken[c.pred] = true
		gtTaken[c.gt] = true
		matches = append(matches, Match{Pred: c.pred, GT: c.gt, IoU: c.iou})
	}
	return matches
}

// predToGT reindexes matches as predicted-index → ground-truth-index.
func predToGT(matches []Match) map[int]int {
	m := make(map[int]int, len(matches))
	for _, match := range matches {
		m[match.Pred] = match.GT
	}
	return m
}

// gtToPred reindexes matches as ground-truth-index → predicted-index.
func gtToPred(matches []Match) map[int]int {
	m := make(map[int]int, len(matches))
	for _, match := range matches {
		m[match.GT] = match.Pred
	}
	return m
}
