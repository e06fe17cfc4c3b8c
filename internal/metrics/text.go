package metrics

import (
	"strings"

	"github.com/docbench/docbench/internal/corpus"
	"github.com/docbench/docbench/internal/tools"
)

// TextMetric scores extracted text against the ground-truth reading-order
// text. It reports three error rates, all 0 for a perfect extraction:
//
//	ned: character edit distance / reference length, clamped to [0,1]
//	cer: character edit distance / reference characters (unclamped)
//	wer: word edit distance / reference words (unclamped)
type TextMetric struct{}

// NewTextMetric creates the text accuracy provider.
func NewTextMetric() *TextMetric {
	return &TextMetric{}
}

func (m *TextMetric) Name() string {
	return "text"
}

func (m *TextMetric) Score(pred *tools.StageOutput, gt *corpus.GroundTruth) (*Result, error) {
	predNorm := normalizeText(pred.PlainText())
	refNorm := normalizeText(gt.PlainText())

	predRunes := []rune(predNorm)
	refRunes := []rune(refNorm)
	charDist := editDistance(predRunes, refRunes)

	predWords := strings.Fields(predNorm)
	refWords := strings.Fields(refNorm)
	wordDist := editDistance(predWords, refWords)

	return &Result{
		Metric: m.Name(),
		Scores: map[string]float64{
			"ned": clampedRate(charDist, len(refRunes), len(predRunes)),
			"cer": rate(charDist, len(refRunes), len(predRunes)),
			"wer": rate(wordDist, len(refWords), len(predWords)),
		},
	}, nil
}

// rate divides distance by reference length. An empty reference rates 0
// against an empty prediction and 1 against anything else.
func rate(dist, refLen, predLen int) float64 {
	if refLen == 0 {
		if predLen == 0 {
			return 0
		}
		return 1
	}
	return float64(dist) / float64(refLen)
}

func clampedRate(dist, refLen, predLen int) float64 {
	return min(rate(dist, refLen, predLen), 1)
}

var _ Provider = (*TextMetric)(nil)
