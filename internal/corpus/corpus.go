package corpus

import (
	"fmt"
	"strings"
)

// BlockType classifies a content block within a document.
type BlockType string

const (
	BlockParagraph BlockType = "paragraph"
	BlockHeading   BlockType = "heading"
	BlockTable     BlockType = "table"
	BlockFormula   BlockType = "formula"
	BlockFigure    BlockType = "figure"
	BlockList      BlockType = "list"
)

// KnownBlockTypes lists every block type a pipeline may emit.
var KnownBlockTypes = []BlockType{
	BlockParagraph, BlockHeading, BlockTable, BlockFormula, BlockFigure, BlockList,
}

// Valid reports whether t is one of the known block types.
func (t BlockType) Valid() bool {
	for _, k := range KnownBlockTypes {
		if t == k {
			return true
		}
	}
	return false
}

// Box is an axis-aligned bounding box in page coordinates.
// W and H are extents, not corner coordinates.
type Box struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Area returns the box area, never negative.
func (b Box) Area() float64 {
	if b.W <= 0 || b.H <= 0 {
		return 0
	}
	return b.W * b.H
}

// Intersection returns the area shared by b and other.
func (b Box) Intersection(other Box) float64 {
	x1 := max(b.X, other.X)
	y1 := max(b.Y, other.Y)
	x2 := min(b.X+b.W, other.X+other.W)
	y2 := min(b.Y+b.H, other.Y+other.H)
	if x2 <= x1 || y2 <= y1 {
		return 0
	}
	return (x2 - x1) * (y2 - y1)
}

// IoU returns the intersection-over-union ratio of b and other in [0,1].
func (b Box) IoU(other Box) float64 {
	inter := b.Intersection(other)
	if inter == 0 {
		return 0
	}
	union := b.Area() + other.Area() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

// TableCell is one cell of a table grid. Spans default to 1.
type TableCell struct {
	Text    string `json:"text"`
	RowSpan int    `json:"row_span,omitempty"`
	ColSpan int    `json:"col_span,omitempty"`
}

// TableGrid is a table as rows of cells, in visual order.
type TableGrid struct {
	Rows [][]TableCell `json:"rows"`
}

// CellCount returns the total number of cells across all rows.
func (g *TableGrid) CellCount() int {
	if g == nil {
		return 0
	}
	n := 0
	for _, row := range g.Rows {
		n += len(row)
	}
	return n
}

// Block is one structural element of a document: a paragraph, heading,
// table, formula, figure, or list item, with its page geometry and content.
// Ground-truth blocks carry stable IDs; predicted blocks may leave ID empty
// and are addressed by slice index.
type Block struct {
	ID    string     `json:"id,omitempty"`
	Type  BlockType  `json:"type"`
	Box   Box        `json:"box"`
	Text  string     `json:"text,omitempty"`
	Table *TableGrid `json:"table,omitempty"` // set when Type == BlockTable
	Order int        `json:"order"`           // ordering index within the document
}

// Document identifies one corpus input. Immutable once loaded.
type Document struct {
	ID    string `json:"id"`
	Path  string `json:"path"`
	Pages int    `json:"pages"`
	Type  string `json:"doc_type"` // category tag: academic, scanned, financial, ...
}

// GroundTruth is the verified reference structure for one document.
type GroundTruth struct {
	DocID        string     `json:"doc_id"`
	DocType      string     `json:"doc_type,omitempty"`
	Blocks       []Block    `json:"blocks"`
	ReadingOrder []string   `json:"reading_order"` // permutation of block IDs
	ReadingUnits [][]string `json:"reading_units"` // partition of block IDs into coherent groups
}

// BlockByID builds an ID -> block index lookup.
func (gt *GroundTruth) BlockByID() map[string]int {
	m := make(map[string]int, len(gt.Blocks))
	for i, b := range gt.Blocks {
		m[b.ID] = i
	}
	return m
}

// Tables returns the table blocks in document order.
func (gt *GroundTruth) Tables() []Block {
	var tables []Block
	for _, b := range gt.Blocks {
		if b.Type == BlockTable {
			tables = append(tables, b)
		}
	}
	return tables
}

// PlainText concatenates block text in reading order, one block per line.
// Blocks absent from the reading order are appended in document order.
func (gt *GroundTruth) PlainText() string {
	byID := gt.BlockByID()
	seen := make(map[string]bool, len(gt.ReadingOrder))

	var parts []string
	for _, id := range gt.ReadingOrder {
		idx, ok := byID[id]
		if !ok {
			continue
		}
		seen[id] = true
		if t := gt.Blocks[idx].Text; t != "" {
			parts = append(parts, t)
		}
	}
	for _, b := range gt.Blocks {
		if seen[b.ID] {
			continue
		}
		if b.Text != "" {
			parts = append(parts, b.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// Validate checks internal consistency: block IDs are unique and non-empty,
// reading order and reading units reference only known IDs, and no block
// appears in more than one reading unit.
func (gt *GroundTruth) Validate() error {
	if gt.DocID == "" {
		return fmt.Errorf("ground truth missing doc_id")
	}

	ids := make(map[string]bool, len(gt.Blocks))
	for i, b := range gt.Blocks {
		if b.ID == "" {
			return fmt.Errorf("block %d has no id", i)
		}
		if ids[b.ID] {
			return fmt.Errorf("duplicate block id %q", b.ID)
		}
		ids[b.ID] = true
		if !b.Type.Valid() {
			return fmt.Errorf("block %q has unknown type %q", b.ID, b.Type)
		}
		if b.Type == BlockTable && b.Table == nil {
			return fmt.Errorf("table block %q has no cell grid", b.ID)
		}
	}

	for _, id := range gt.ReadingOrder {
		if !ids[id] {
			return fmt.Errorf("reading order references unknown block %q", id)
		}
	}

	inUnit := make(map[string]bool)
	for ui, unit := range gt.ReadingUnits {
		if len(unit) == 0 {
			return fmt.Errorf("reading unit %d is empty", ui)
		}
		for _, id := range unit {
			if !ids[id] {
				return fmt.Errorf("reading unit %d references unknown block %q", ui, id)
			}
			if inUnit[id] {
				return fmt.Errorf("block %q appears in multiple reading units", id)
			}
			inUnit[id] = true
		}
	}

	return nil
}
