package metrics

import (
	"sort"

	"github.com/docbench/docbench/internal/corpus"
	"github.com/docbench/docbench/internal/tools"
)

// FormulaMetric scores formula extraction as normalized edit distance over
// markup text, with the same normalization as the text metric. Formulas are
// paired positionally: the i-th predicted formula against the i-th
// ground-truth formula, missing predictions scoring the maximum distance.
// Documents without ground-truth formulas are undefined for this dimension.
type FormulaMetric struct{}

// NewFormulaMetric creates the formula accuracy provider.
func NewFormulaMetric() *FormulaMetric {
	return &FormulaMetric{}
}

func (m *FormulaMetric) Name() string {
	return "formula"
}

func (m *FormulaMetric) Score(pred *tools.StageOutput, gt *corpus.GroundTruth) (*Result, error) {
	var gtFormulas []corpus.Block
	for _, b := range gt.Blocks {
		if b.Type == corpus.BlockFormula {
			gtFormulas = append(gtFormulas, b)
		}
	}
	if len(gtFormulas) == 0 {
		return nil, ErrUndefined
	}

	var predFormulas []corpus.Block
	for _, b := range blocksOf(pred) {
		if b.Type == corpus.BlockFormula {
			predFormulas = append(predFormulas, b)
		}
	}
	sort.SliceStable(predFormulas, func(i, j int) bool {
		return predFormulas[i].Order < predFormulas[j].Order
	})

	diagnostics := make([]Diagnostic, 0, len(gtFormulas))
	sum := 0.0
	for i, gtFormula := range gtFormulas {
		ned := 1.0
		if i < len(predFormulas) {
			ned = normalizedEditDistance(predFormulas[i].Text, gtFormula.Text)
		}
		sum += ned
		diagnostics = append(diagnostics, Diagnostic{BlockID: gtFormula.ID, Score: ned})
	}

	return &Result{
		Metric:      m.Name(),
		Scores:      map[string]float64{"ned": sum / float64(len(gtFormulas))},
		Diagnostics: diagnostics,
	}, nil
}

var _ Provider = (*FormulaMetric)(nil)
