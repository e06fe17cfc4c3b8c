package tools

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/docbench/docbench/internal/corpus"
)

const PDFTextToolName = "pdftext"

// PDFTextTool extracts native text from a PDF's content streams, one
// paragraph block per page. No OCR, no network, no cost. Scanned documents
// come back empty; that is the measurement, not a failure.
type PDFTextTool struct {
	name string
}

// NewPDFTextTool creates the native-text extraction tool.
func NewPDFTextTool(name string) *PDFTextTool {
	if name == "" {
		name = PDFTextToolName
	}
	return &PDFTextTool{name: name}
}

// Name returns the tool identifier.
func (t *PDFTextTool) Name() string {
	return t.name
}

// ValidateConfig accepts max_pages to cap extraction on large documents.
func (t *PDFTextTool) ValidateConfig(config map[string]any) error {
	return checkRecognized(config, "max_pages")
}

// Process extracts text from the raw document. Prior-stage input is
// ignored: this tool always reads the PDF itself.
func (t *PDFTextTool) Process(ctx context.Context, input Input, config map[string]any) (*Result, error) {
	start := time.Now()

	f, err := os.Open(input.Document.Path)
	if err != nil {
		return &Result{ExecutionTime: time.Since(start)}, fmt.Errorf("failed to open document: %w", err)
	}
	defer f.Close()

	conf := model.NewDefaultConfiguration()
	pdfCtx, err := api.ReadValidateAndOptimize(f, conf)
	if err != nil {
		return &Result{ExecutionTime: time.Since(start)}, fmt.Errorf("pdfcpu read: %w", err)
	}

	maxPages := optInt(config, "max_pages", 0)
	pageLimit := pdfCtx.PageCount
	if maxPages > 0 && maxPages < pageLimit {
		pageLimit = maxPages
	}

	output := &StageOutput{}
	for pageNr := 1; pageNr <= pageLimit; pageNr++ {
		if err := ctx.Err(); err != nil {
			return &Result{ExecutionTime: time.Since(start)}, err
		}
		pageText := extractPageText(pdfCtx, pageNr)
		if pageText == "" {
			continue
		}
		output.Blocks = append(output.Blocks, corpus.Block{
			Type:  corpus.BlockParagraph,
			Text:  pageText,
			Order: len(output.Blocks),
		})
	}

	return &Result{
		Output:        output,
		CostUSD:       0, // local extraction
		ExecutionTime: time.Since(start),
	}, nil
}

// extractPageText extracts text from a single page via its content stream.
func extractPageText(ctx *model.Context, pageNr int) string {
	r, err := pdfcpu.ExtractPageContent(ctx, pageNr)
	if err != nil {
		return ""
	}
	data, err := io.ReadAll(r)
	if err != nil || len(data) == 0 {
		return ""
	}
	return textFromContentStream(data)
}

// pdfStringRe matches PDF string literals in parentheses: (text here)
var pdfStringRe = regexp.MustCompile(`\(([^)]*)\)`)

// textFromContentStream parses content-stream text operators. Covers the
// common Tj/TJ/'/Td/TD/T* cases; exotic encodings fall out as empty text.
func textFromContentStream(data []byte) string {
	var sb strings.Builder

	lines := bytes.Split(data, []byte{'\n'})
	for _, line := range lines {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}

		switch {
		case bytes.HasSuffix(line, []byte("Tj")), bytes.HasSuffix(line, []byte("TJ")):
			for _, m := range pdfStringRe.FindAllSubmatch(line, -1) {
				sb.WriteString(decodePDFString(m[1]))
			}
		case bytes.HasSuffix(line, []byte("'")) && bytes.Contains(line, []byte("(")):
			for _, m := range pdfStringRe.FindAllSubmatch(line, -1) {
				if text := decodePDFString(m[1]); text != "" {
					sb.WriteByte('\n')
					sb.WriteString(text)
				}
			}
		case bytes.HasSuffix(line, []byte("Td")), bytes.HasSuffix(line, []byte("TD")):
			if sb.Len() > 0 {
				sb.WriteByte(' ')
			}
		case bytes.Equal(line, []byte("T*")):
			sb.WriteByte('\n')
		}
	}

	return collapseWhitespace(sb.String())
}

// decodePDFString handles basic PDF escape sequences, including octal.
func decodePDFString(raw []byte) string {
	var sb strings.Builder
	for i := 0; i < len(raw); i++ {
		if raw[i] != '\\' || i+1 >= len(raw) {
			sb.WriteByte(raw[i])
			continue
		}
		i++
		switch raw[i] {
		case 'n':
			sb.WriteByte('\n')
		case 'r':
			sb.WriteByte('\r')
		case 't':
			sb.WriteByte('\t')
		case '\\', '(', ')':
			sb.WriteByte(raw[i])
		default:
			if raw[i] >= '0' && raw[i] <= '7' {
				val := int(raw[i] - '0')
				for k := 0; k < 2 && i+1 < len(raw) && raw[i+1] >= '0' && raw[i+1] <= '7'; k++ {
					i++
					val = val*8 + int(raw[i]-'0')
				}
				sb.WriteByte(byte(val))
			} else {
				sb.WriteByte(raw[i])
			}
		}
	}
	return sb.String()
}

// collapseWhitespace normalizes runs of whitespace to single spaces,
// dropping non-printable runes.
func collapseWhitespace(text string) string {
	var sb strings.Builder
	prevSpace := false
	for _, r := range text {
		switch {
		case unicode.IsSpace(r):
			if !prevSpace && sb.Len() > 0 {
				sb.WriteByte(' ')
				prevSpace = true
			}
		case unicode.IsPrint(r):
			sb.WriteRune(r)
			prevSpace = false
		}
	}
	return strings.TrimSpace(sb.String())
}

// Verify interface
var _ Tool = (*PDFTextTool)(nil)
