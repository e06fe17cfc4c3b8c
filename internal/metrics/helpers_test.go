package metrics

import (
	"github.com/docbench/docbench/internal/corpus"
	"github.com/docbench/docbench/internal/tools"
)

// box returns a 10x10 box at the given origin.
func box(x, y float64) corpus.Box {
	return corpus.Box{X: x, Y: y, W: 10, H: 10}
}

func gtBlock(id string, t corpus.BlockType, b corpus.Box, text string) corpus.Block {
	return corpus.Block{ID: id, Type: t, Box: b, Text: text}
}

func predBlock(t corpus.BlockType, b corpus.Box, text string, order int) corpus.Block {
	return corpus.Block{Type: t, Box: b, Text: text, Order: order}
}

// fourBlockGT is a document with four stacked blocks in two reading units.
func fourBlockGT() *corpus.GroundTruth {
	return &corpus.GroundTruth{
		DocID: "doc-1",
		Blocks: []corpus.Block{
			gtBlock("a", corpus.BlockHeading, box(0, 0), "Introduction"),
			gtBlock("b", corpus.BlockParagraph, box(0, 20), "first body"),
			gtBlock("c", corpus.BlockHeading, box(0, 40), "Methods"),
			gtBlock("d", corpus.BlockParagraph, box(0, 60), "second body"),
		},
		ReadingOrder: []string{"a", "b", "c", "d"},
		ReadingUnits: [][]string{{"a", "b"}, {"c", "d"}},
	}
}

// matchingOutput predicts fourBlockGT exactly: same boxes, types, text,
// order, and unit structure.
func matchingOutput() *tools.StageOutput {
	return &tools.StageOutput{
		Blocks: []corpus.Block{
			predBlock(corpus.BlockHeading, box(0, 0), "Introduction", 0),
			predBlock(corpus.BlockParagraph, box(0, 20), "first body", 1),
			predBlock(corpus.BlockHeading, box(0, 40), "Methods", 2),
			predBlock(corpus.BlockParagraph, box(0, 60), "second body", 3),
		},
		Units: [][]int{{0, 1}, {2, 3}},
	}
}

func tableGrid(rows ...[]string) *corpus.TableGrid {
	grid := &corpus.TableGrid{}
	for _, r := range rows {
		row := make([]corpus.TableCell, 0, len(r))
		for _, c := range r {
			row = append(row, corpus.TableCell{Text: c})
		}
		grid.Rows = append(grid.Rows, row)
	}
	return grid
}

func tableBlock(id string, grid *corpus.TableGrid) corpus.Block {
	return corpus.Block{ID: id, Type: corpus.BlockTable, Table: grid, Text: "table"}
}
