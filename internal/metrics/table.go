package metrics

import (
	"sort"

	"github.com/docbench/docbench/internal/corpus"
	"github.com/docbench/docbench/internal/tools"
)

// TableMetric scores table structure recognition with TEDS (Tree Edit
// Distance Similarity). Each table becomes a tree (root → rows → cells with
// span attributes); TEDS = 1 − dist/max(|T1|,|T2|), clamped at 0. Cell
// relabeling costs the normalized text edit distance between contents, so
// near-miss cell text earns partial credit.
//
// Each ground-truth table greedily claims the unused predicted table that
// scores highest against it, ground-truth order first. Documents whose
// ground truth has no tables are undefined for this dimension.
type TableMetric struct{}

// NewTableMetric creates the table accuracy provider.
func NewTableMetric() *TableMetric {
	return &TableMetric{}
}

func (m *TableMetric) Name() string {
	return "table"
}

func (m *TableMetric) Score(pred *tools.StageOutput, gt *corpus.GroundTruth) (*Result, error) {
	gtTables := gt.Tables()
	if len(gtTables) == 0 {
		return nil, ErrUndefined
	}

	var predTrees []*tedsTree
	for _, b := range blocksOf(pred) {
		if b.Type == corpus.BlockTable && b.Table != nil {
			predTrees = append(predTrees, treeFromGrid(b.Table))
		}
	}

	used := make([]bool, len(predTrees))
	diagnostics := make([]Diagnostic, 0, len(gtTables))
	sum := 0.0
	for _, gtTable := range gtTables {
		gtTree := treeFromGrid(gtTable.Table)

		// An unmatched ground-truth table scores against the empty tree:
		// the minimum achievable, never negative.
		best := -1
		bestScore := tedsScore(&tedsTree{}, gtTree)
		for pi, pt := range predTrees {
			if used[pi] {
				continue
			}
			if s := tedsScore(pt, gtTree); s > bestScore {
				best = pi
				bestScore = s
			}
		}
		if best >= 0 {
			used[best] = true
		}
		sum += bestScore
		diagnostics = append(diagnostics, Diagnostic{BlockID: gtTable.ID, Score: bestScore})
	}

	return &Result{
		Metric:      m.Name(),
		Scores:      map[string]float64{"teds": sum / float64(len(gtTables))},
		Diagnostics: diagnostics,
	}, nil
}

var _ Provider = (*TableMetric)(nil)

// Tree edit distance (Zhang-Shasha) over table trees

type nodeKind byte

const (
	kindTable nodeKind = 'T'
	kindRow   nodeKind = 'R'
	kindCell  nodeKind = 'C'
)

type tedsLabel struct {
	kind             nodeKind
	text             string // normalized cell content
	rowSpan, colSpan int
}

// tedsTree holds a table tree in postorder form: labels and leftmost-leaf
// descendants are 1-based, keyroots ascending. The zero value is the empty
// tree.
type tedsTree struct {
	labels   []tedsLabel
	lld      []int
	keyroots []int
}

func (t *tedsTree) size() int {
	if len(t.labels) == 0 {
		return 0
	}
	return len(t.labels) - 1
}

// treeFromGrid builds the postorder table tree: cells of a row, then the
// row; rows in order, then the root.
func treeFromGrid(grid *corpus.TableGrid) *tedsTree {
	t := &tedsTree{
		labels: []tedsLabel{{}}, // index 0 unused
		lld:    []int{0},
	}
	if grid == nil {
		return &tedsTree{}
	}

	for _, row := range grid.Rows {
		rowStart := len(t.labels)
		for _, cell := range row {
			t.labels = append(t.labels, tedsLabel{
				kind:    kindCell,
				text:    normalizeText(cell.Text),
				rowSpan: effSpan(cell.RowSpan),
				colSpan: effSpan(cell.ColSpan),
			})
			t.lld = append(t.lld, len(t.labels)-1)
		}
		t.labels = append(t.labels, tedsLabel{kind: kindRow})
		if len(row) == 0 {
			t.lld = append(t.lld, len(t.labels)-1)
		} else {
			t.lld = append(t.lld, rowStart)
		}
	}

	// Root's leftmost leaf is node 1: the first cell, or the root itself
	// for a rowless table.
	t.labels = append(t.labels, tedsLabel{kind: kindTable})
	t.lld = append(t.lld, 1)

	t.keyroots = computeKeyroots(t.lld, t.size())
	return t
}

func effSpan(s int) int {
	if s < 1 {
		return 1
	}
	return s
}

// computeKeyroots returns, for each distinct leftmost-leaf value, the
// highest postorder node carrying it.
func computeKeyroots(lld []int, n int) []int {
	highest := make(map[int]int, n)
	for i := 1; i <= n; i++ {
		highest[lld[i]] = i
	}
	ks := make([]int, 0, len(highest))
	for _, i := range highest {
		ks = append(ks, i)
	}
	sort.Ints(ks)
	return ks
}

// relabelCost prices turning one node into another. Structural nodes of the
// same kind are free; differing kinds or differing spans cost a full unit;
// cell content costs its symmetric normalized edit distance.
func relabelCost(a, b tedsLabel) float64 {
	if a.kind != b.kind {
		return 1
	}
	if a.kind != kindCell {
		return 0
	}
	if a.rowSpan != b.rowSpan || a.colSpan != b.colSpan {
		return 1
	}
	ra := []rune(a.text)
	rb := []rune(b.text)
	longest := max(len(ra), len(rb))
	if longest == 0 {
		return 0
	}
	return float64(editDistance(ra, rb)) / float64(longest)
}

// tedsDistance is the Zhang-Shasha tree edit distance with unit insert and
// delete costs.
func tedsDistance(t1, t2 *tedsTree) float64 {
	n1, n2 := t1.size(), t2.size()
	if n1 == 0 {
		return float64(n2)
	}
	if n2 == 0 {
		return float64(n1)
	}

	td := make([][]float64, n1+1)
	for i := range td {
		td[i] = make([]float64, n2+1)
	}
	fd := make([][]float64, n1+1)
	for i := range fd {
		fd[i] = make([]float64, n2+1)
	}

	for _, i := range t1.keyroots {
		for _, j := range t2.keyroots {
			li, lj := t1.lld[i], t2.lld[j]

			fd[li-1][lj-1] = 0
			for di := li; di <= i; di++ {
				fd[di][lj-1] = fd[di-1][lj-1] + 1
			}
			for dj := lj; dj <= j; dj++ {
				fd[li-1][dj] = fd[li-1][dj-1] + 1
			}

			for di := li; di <= i; di++ {
				for dj := lj; dj <= j; dj++ {
					if t1.lld[di] == li && t2.lld[dj] == lj {
						fd[di][dj] = min(
							fd[di-1][dj]+1,
							fd[di][dj-1]+1,
							fd[di-1][dj-1]+relabelCost(t1.labels[di], t2.labels[dj]))
						td[di][dj] = fd[di][dj]
					} else {
						fd[di][dj] = min(
							fd[di-1][dj]+1,
							fd[di][dj-1]+1,
							fd[t1.lld[di]-1][t2.lld[dj]-1]+td[di][dj])
					}
				}
			}
		}
	}
	return td[n1][n2]
}

// tedsScore converts tree distance into similarity in [0,1].
func tedsScore(pred, gt *tedsTree) float64 {
	n := max(pred.size(), gt.size())
	if n == 0 {
		return 1
	}
	return max(0, 1-tedsDistance(pred, gt)/float64(n))
}
