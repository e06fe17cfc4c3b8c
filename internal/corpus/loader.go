package corpus

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Entry pairs a document with its ground truth.
type Entry struct {
	Document    Document
	GroundTruth *GroundTruth
}

// Loader reads documents and ground truth from a corpus layout:
//
//	<corpusDir>/<category>/<name>.pdf
//	<gtDir>/<category>/<name>.json
//
// The category directory name doubles as the document-type tag unless the
// ground truth declares its own.
type Loader struct {
	corpusDir string
	gtDir     string
	schema    *jsonschema.Schema
	logger    *slog.Logger
}

// NewLoader creates a loader rooted at the given corpus and ground-truth
// directories and compiles the ground-truth schema once.
func NewLoader(corpusDir, gtDir string, logger *slog.Logger) (*Loader, error) {
	if logger == nil {
		logger = slog.Default()
	}
	schema, err := compileGroundTruthSchema()
	if err != nil {
		return nil, err
	}
	return &Loader{
		corpusDir: corpusDir,
		gtDir:     gtDir,
		schema:    schema,
		logger:    logger.With("component", "corpus"),
	}, nil
}

// Categories returns the category directory names under the corpus root.
func (l *Loader) Categories() ([]string, error) {
	entries, err := os.ReadDir(l.corpusDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read corpus directory: %w", err)
	}

	var categories []string
	for _, e := range entries {
		if e.IsDir() {
			categories = append(categories, e.Name())
		}
	}
	sort.Strings(categories)
	return categories, nil
}

// Load reads documents from the given categories, at most limit per category
// (limit <= 0 means no limit). Categories may be nil to load everything.
// Documents without ground truth are skipped with a warning, not an error:
// a half-annotated corpus is still benchmarkable.
func (l *Loader) Load(categories []string, limit int) ([]Entry, error) {
	if len(categories) == 0 {
		all, err := l.Categories()
		if err != nil {
			return nil, err
		}
		categories = all
	}

	var out []Entry
	for _, category := range categories {
		entries, err := l.loadCategory(category, limit)
		if err != nil {
			return nil, fmt.Errorf("category %s: %w", category, err)
		}
		out = append(out, entries...)
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("no scorable documents found under %s", l.corpusDir)
	}
	return out, nil
}

func (l *Loader) loadCategory(category string, limit int) ([]Entry, error) {
	dir := filepath.Join(l.corpusDir, category)
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read category directory: %w", err)
	}

	var names []string
	for _, e := range dirEntries {
		if e.IsDir() {
			continue
		}
		if strings.HasSuffix(strings.ToLower(e.Name()), ".pdf") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var out []Entry
	for _, name := range names {
		if limit > 0 && len(out) >= limit {
			break
		}

		stem := strings.TrimSuffix(name, filepath.Ext(name))
		gtPath := filepath.Join(l.gtDir, category, stem+".json")
		raw, err := os.ReadFile(gtPath)
		if os.IsNotExist(err) {
			l.logger.Warn("no ground truth for document, skipping",
				"category", category, "doc", stem)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read ground truth %s: %w", gtPath, err)
		}

		gt, err := ParseGroundTruth(l.schema, raw)
		if err != nil {
			return nil, fmt.Errorf("ground truth %s: %w", gtPath, err)
		}
		if gt.DocID != stem {
			return nil, fmt.Errorf("%w: file %s declares doc_id %q",
				ErrGroundTruthMismatch, gtPath, gt.DocID)
		}

		docPath := filepath.Join(dir, name)
		pages, err := pageCount(docPath)
		if err != nil {
			return nil, fmt.Errorf("failed to get page count for %s: %w", docPath, err)
		}

		docType := gt.DocType
		if docType == "" {
			docType = category
		}

		out = append(out, Entry{
			Document: Document{
				ID:    stem,
				Path:  docPath,
				Pages: pages,
				Type:  docType,
			},
			GroundTruth: gt,
		})
	}

	return out, nil
}

func pageCount(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return api.PageCount(f, nil)
}
