package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/docbench/docbench/internal/api"
	"github.com/docbench/docbench/internal/corpus"
	"github.com/docbench/docbench/internal/executor"
	"github.com/docbench/docbench/internal/metrics"
	"github.com/docbench/docbench/internal/pipeline"
	"github.com/docbench/docbench/internal/runner"
	"github.com/docbench/docbench/internal/store"
	"github.com/docbench/docbench/internal/tools"
)

var (
	runPlanFile    string
	runCategories  []string
	runLimit       int
	runConcurrency int
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute a benchmark sweep",
	Long: `Execute a benchmark sweep: run every pipeline over every corpus document,
record per-stage cost and latency, and score the final outputs against
ground truth.

A plan file pins the sweep down (corpus and pipeline locations, categories,
document limits, metric subset, concurrency); anything the plan leaves out
falls back to configuration and the home directory layout. Flags override
both.

Progress is logged to stderr. The completion manifest is printed to stdout
in the --output format and written as JSON under the run's home directory.

Examples:
  docbench run                                # everything under ~/.docbench
  docbench run --plan plan.yaml               # sweep described by a plan
  docbench run --categories academic --limit 3
  docbench run --concurrency 8 -o json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		logger := newCLILogger()

		cm, err := getConfig()
		if err != nil {
			return err
		}
		conf := cm.Get()

		h, err := getHome()
		if err != nil {
			return err
		}
		paths := conf.ResolvePaths(h)

		plan := &runner.Plan{}
		if runPlanFile != "" {
			plan, err = runner.LoadPlan(runPlanFile)
			if err != nil {
				return err
			}
		}

		// Flags override the plan; the plan overrides config and home.
		corpusDir := firstNonEmpty(plan.CorpusDir, paths.CorpusDir)
		gtDir := firstNonEmpty(plan.GroundTruthDir, paths.GroundTruthDir)
		categories := runCategories
		if len(categories) == 0 {
			categories = plan.Categories
		}
		if len(categories) == 0 {
			categories = conf.Run.Categories
		}
		limit := runLimit
		if limit == 0 {
			limit = plan.DocumentLimit
		}
		if limit == 0 {
			limit = conf.Run.DocumentLimit
		}
		concurrency := runConcurrency
		if concurrency == 0 {
			concurrency = plan.Concurrency
		}
		if concurrency == 0 {
			concurrency = conf.Run.Concurrency
		}
		stageTimeout := plan.StageTimeoutSeconds
		if stageTimeout == 0 {
			stageTimeout = conf.Run.StageTimeoutSeconds
		}

		defs, err := loadPlanPipelines(plan, paths.PipelinesDir)
		if err != nil {
			return err
		}

		loader, err := corpus.NewLoader(corpusDir, gtDir, logger)
		if err != nil {
			return err
		}
		entries, err := loader.Load(categories, limit)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			return fmt.Errorf("no documents in corpus %s", corpusDir)
		}

		providers, err := selectProviders(plan.Metrics, conf.Metrics.MinIoU)
		if err != nil {
			return err
		}

		if err := os.MkdirAll(filepath.Dir(paths.StorePath), 0o755); err != nil {
			return fmt.Errorf("failed to create store directory: %w", err)
		}
		st, err := store.Open(paths.StorePath, logger)
		if err != nil {
			return err
		}
		defer st.Close()

		registry := tools.NewRegistryFromConfig(conf.ToRegistryConfig(), logger)
		r := runner.New(runner.Config{
			Executor: executor.New(executor.Config{
				Registry:     registry,
				StageTimeout: time.Duration(stageTimeout) * time.Second,
				Logger:       logger,
			}),
			Suite:       metrics.NewSuite(metrics.SuiteConfig{Providers: providers, Logger: logger}),
			Store:       st,
			Concurrency: concurrency,
			Logger:      logger,
		})

		manifest, err := r.Run(ctx, runner.Sweep{
			Plan:      runPlanFile,
			Pipelines: defs,
			Entries:   entries,
		})
		if err != nil {
			return err
		}

		if err := h.EnsureRunDir(manifest.RunID); err != nil {
			logger.Warn("failed to create run directory", "error", err)
		} else if err := writeManifest(h.ManifestPath(manifest.RunID), manifest); err != nil {
			logger.Warn("failed to write manifest", "error", err)
		} else {
			logger.Info("manifest written", "path", h.ManifestPath(manifest.RunID))
		}

		return api.Output(manifest)
	},
}

func init() {
	runCmd.Flags().StringVar(&runPlanFile, "plan", "", "Plan file describing the sweep")
	runCmd.Flags().StringSliceVar(&runCategories, "categories", nil, "Document categories to include (default: all)")
	runCmd.Flags().IntVar(&runLimit, "limit", 0, "Per-category document cap (0 = no cap)")
	runCmd.Flags().IntVar(&runConcurrency, "concurrency", 0, "Max concurrent (pipeline, document) units")

	rootCmd.AddCommand(runCmd)
}

// newCLILogger logs to stderr so structured command output owns stdout.
func newCLILogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// loadPlanPipelines loads the plan's explicit pipeline files, or every
// definition in the pipelines directory when the plan names none.
func loadPlanPipelines(plan *runner.Plan, fallbackDir string) ([]*pipeline.Definition, error) {
	if len(plan.Pipelines) > 0 {
		defs := make([]*pipeline.Definition, 0, len(plan.Pipelines))
		for _, path := range plan.Pipelines {
			def, err := pipeline.LoadFile(path)
			if err != nil {
				return nil, err
			}
			defs = append(defs, def)
		}
		return defs, nil
	}
	return pipeline.LoadDir(firstNonEmpty(plan.PipelinesDir, fallbackDir))
}

// selectProviders resolves a plan's metric names against the configured
// providers. An empty list selects every dimension.
func selectProviders(names []string, minIoU float64) ([]metrics.Provider, error) {
	all := metrics.ConfiguredProviders(metrics.LayoutConfig{MinIoU: minIoU})
	if len(names) == 0 {
		return all, nil
	}

	byName := make(map[string]metrics.Provider, len(all))
	known := make([]string, 0, len(all))
	for _, p := range all {
		byName[p.Name()] = p
		known = append(known, p.Name())
	}
	sort.Strings(known)

	selected := make([]metrics.Provider, 0, len(names))
	for _, name := range names {
		p, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("unknown metric %q (known: %s)", name, strings.Join(known, ", "))
		}
		selected = append(selected, p)
	}
	return selected, nil
}

func writeManifest(path string, manifest *runner.Manifest) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return api.OutputTo(f, api.OutputFormatJSON, manifest)
}
