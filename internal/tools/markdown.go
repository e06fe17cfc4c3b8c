package tools

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"

	"github.com/docbench/docbench/internal/corpus"
)

// BlocksFromMarkdown parses markdown emitted by a tool backend into the
// block vocabulary. Headings open a new reading unit; everything up to the
// next heading joins that unit. Markdown carries no page geometry, so boxes
// stay zero; backends that know geometry set boxes themselves.
func BlocksFromMarkdown(source string) ([]corpus.Block, [][]int) {
	md := goldmark.New(goldmark.WithExtensions(extension.Table))
	src := []byte(source)
	doc := md.Parser().Parse(text.NewReader(src))

	var blocks []corpus.Block
	appendBlock := func(b corpus.Block) {
		b.Order = len(blocks)
		blocks = append(blocks, b)
	}

	for child := doc.FirstChild(); child != nil; child = child.NextSibling() {
		collectBlock(child, src, appendBlock)
	}

	return blocks, unitsByHeading(blocks)
}

func collectBlock(node ast.Node, source []byte, appendBlock func(corpus.Block)) {
	switch n := node.(type) {
	case *ast.Heading:
		appendBlock(corpus.Block{Type: corpus.BlockHeading, Text: inlineText(n, source)})

	case *ast.Paragraph:
		txt := inlineText(n, source)
		if markup, ok := formulaMarkup(txt); ok {
			appendBlock(corpus.Block{Type: corpus.BlockFormula, Text: markup})
			return
		}
		if txt != "" {
			appendBlock(corpus.Block{Type: corpus.BlockParagraph, Text: txt})
		}

	case *ast.List:
		var items []string
		for item := n.FirstChild(); item != nil; item = item.NextSibling() {
			if li, ok := item.(*ast.ListItem); ok {
				if t := inlineText(li, source); t != "" {
					items = append(items, t)
				}
			}
		}
		if len(items) > 0 {
			appendBlock(corpus.Block{Type: corpus.BlockList, Text: strings.Join(items, "\n")})
		}

	case *east.Table:
		grid := tableGridFromAST(n, source)
		appendBlock(corpus.Block{
			Type:  corpus.BlockTable,
			Text:  gridText(grid),
			Table: grid,
		})

	case *ast.FencedCodeBlock, *ast.CodeBlock:
		txt := linesText(node, source)
		if txt != "" {
			appendBlock(corpus.Block{Type: corpus.BlockParagraph, Text: txt})
		}

	case *ast.Blockquote:
		for inner := n.FirstChild(); inner != nil; inner = inner.NextSibling() {
			collectBlock(inner, source, appendBlock)
		}

	case *ast.HTMLBlock:
		raw := linesText(node, source)
		if grid, err := ParseHTMLTable(raw); err == nil && grid.CellCount() > 0 {
			appendBlock(corpus.Block{
				Type:  corpus.BlockTable,
				Text:  gridText(grid),
				Table: grid,
			})
		}
	}
}

// formulaMarkup detects display-math paragraphs ($$...$$) and returns the
// inner markup.
func formulaMarkup(txt string) (string, bool) {
	trimmed := strings.TrimSpace(txt)
	if len(trimmed) < 4 || !strings.HasPrefix(trimmed, "$$") || !strings.HasSuffix(trimmed, "$$") {
		return "", false
	}
	inner := strings.TrimSpace(trimmed[2 : len(trimmed)-2])
	if inner == "" {
		return "", false
	}
	return inner, true
}

// inlineText concatenates the text content of a node's inline children.
func inlineText(node ast.Node, source []byte) string {
	var sb strings.Builder
	var walk func(n ast.Node)
	walk = func(n ast.Node) {
		for child := n.FirstChild(); child != nil; child = child.NextSibling() {
			if t, ok := child.(*ast.Text); ok {
				sb.Write(t.Segment.Value(source))
				if t.SoftLineBreak() || t.HardLineBreak() {
					sb.WriteByte(' ')
				}
				continue
			}
			walk(child)
		}
	}
	walk(node)
	return strings.TrimSpace(sb.String())
}

// linesText reads a node's raw source lines (code blocks, HTML blocks).
func linesText(node ast.Node, source []byte) string {
	var sb strings.Builder
	lines := node.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		sb.Write(seg.Value(source))
	}
	return strings.TrimSpace(sb.String())
}

// tableGridFromAST converts a GFM table node into a cell grid. The header
// row becomes row 0.
func tableGridFromAST(table *east.Table, source []byte) *corpus.TableGrid {
	grid := &corpus.TableGrid{}
	for rowNode := table.FirstChild(); rowNode != nil; rowNode = rowNode.NextSibling() {
		switch rowNode.(type) {
		case *east.TableHeader, *east.TableRow:
		default:
			continue
		}
		var row []corpus.TableCell
		for cell := rowNode.FirstChild(); cell != nil; cell = cell.NextSibling() {
			if _, ok := cell.(*east.TableCell); !ok {
				continue
			}
			row = append(row, corpus.TableCell{Text: inlineText(cell, source)})
		}
		if len(row) > 0 {
			grid.Rows = append(grid.Rows, row)
		}
	}
	return grid
}

// gridText flattens a grid into row-per-line text for text-level scoring.
func gridText(grid *corpus.TableGrid) string {
	if grid == nil {
		return ""
	}
	var lines []string
	for _, row := range grid.Rows {
		cells := make([]string, 0, len(row))
		for _, c := range row {
			cells = append(cells, c.Text)
		}
		lines = append(lines, strings.Join(cells, " | "))
	}
	return strings.Join(lines, "\n")
}

// unitsByHeading groups block indices into reading units: a heading opens a
// unit that absorbs following blocks until the next heading. Content before
// the first heading forms its own unit.
func unitsByHeading(blocks []corpus.Block) [][]int {
	var units [][]int
	var current []int
	for i, b := range blocks {
		if b.Type == corpus.BlockHeading && len(current) > 0 {
			units = append(units, current)
			current = nil
		}
		current = append(current, i)
	}
	if len(current) > 0 {
		units = append(units, current)
	}
	return units
}
