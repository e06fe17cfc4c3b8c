package tools

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/docbench/docbench/internal/corpus"
)

// ParseHTMLTable extracts the first <table> in an HTML fragment as a cell
// grid, preserving rowspan/colspan attributes. Tool backends that emit HTML
// tables (marker-style services, VLM output) go through here so every table
// reaches scoring in the same grid form.
func ParseHTMLTable(fragment string) (*corpus.TableGrid, error) {
	doc, err := html.Parse(strings.NewReader(fragment))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	table := findNode(doc, atom.Table)
	if table == nil {
		return nil, fmt.Errorf("no <table> element in fragment")
	}

	grid := &corpus.TableGrid{}
	var walkRows func(*html.Node)
	walkRows = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == atom.Tr {
			row := cellsOfRow(n)
			if len(row) > 0 {
				grid.Rows = append(grid.Rows, row)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walkRows(c)
		}
	}
	walkRows(table)

	if len(grid.Rows) == 0 {
		return nil, fmt.Errorf("table has no rows")
	}
	return grid, nil
}

func cellsOfRow(tr *html.Node) []corpus.TableCell {
	var row []corpus.TableCell
	for c := tr.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		if c.DataAtom != atom.Td && c.DataAtom != atom.Th {
			continue
		}
		cell := corpus.TableCell{Text: nodeText(c)}
		if v := spanAttr(c, "rowspan"); v > 1 {
			cell.RowSpan = v
		}
		if v := spanAttr(c, "colspan"); v > 1 {
			cell.ColSpan = v
		}
		row = append(row, cell)
	}
	return row
}

func findNode(n *html.Node, target atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == target {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findNode(c, target); found != nil {
			return found
		}
	}
	return nil
}

func spanAttr(n *html.Node, key string) int {
	for _, a := range n.Attr {
		if a.Key == key {
			v, err := strconv.Atoi(strings.TrimSpace(a.Val))
			if err == nil && v > 0 {
				return v
			}
		}
	}
	return 0
}

// nodeText extracts all text from a node subtree.
func nodeText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			text := strings.TrimSpace(n.Data)
			if text != "" {
				if sb.Len() > 0 {
					sb.WriteByte(' ')
				}
				sb.WriteString(text)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}
