package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/docbench/docbench/internal/api"
	"github.com/docbench/docbench/internal/corpus"
	"github.com/docbench/docbench/internal/metrics"
	"github.com/docbench/docbench/internal/store"
)

type scoreSummary struct {
	RunID   string   `json:"run_id"`
	Scored  int      `json:"scored"`
	Skipped int      `json:"skipped"`
	Missing []string `json:"missing,omitempty"` // doc ids without ground truth
}

var scoreCmd = &cobra.Command{
	Use:   "score [run-id]",
	Short: "Re-score a run's persisted outputs",
	Long: `Re-score a run: recompute every metric from the run's persisted pipeline
outputs against the current ground truth.

No tool is re-run, so re-scoring costs nothing. Use it after editing
ground-truth annotations or changing metric thresholds. Existing scores
for the run are replaced. Defaults to the most recent run.`,
	Args: cobra.MaximumNArgs(1),
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

		st, err := store.Open(paths.StorePath, logger)
		if err != nil {
			return err
		}
		defer st.Close()

		runID := ""
		if len(args) == 1 {
			runID = args[0]
		}
		if runID == "" || runID == "latest" {
			runID, err = st.LatestRunID(ctx)
			if err != nil {
				return err
			}
		}

		prs, err := st.ListPipelineResults(ctx, runID)
		if err != nil {
			return err
		}
		if len(prs) == 0 {
			return fmt.Errorf("run %s has no persisted pipeline results", runID)
		}

		loader, err := corpus.NewLoader(paths.CorpusDir, paths.GroundTruthDir, logger)
		if err != nil {
			return err
		}
		entries, err := loader.Load(nil, 0)
		if err != nil {
			return err
		}
		gtByDoc := make(map[string]*corpus.GroundTruth, len(entries))
		for _, e := range entries {
			gtByDoc[e.Document.ID] = e.GroundTruth
		}

		suite := metrics.NewSuite(metrics.SuiteConfig{
			Providers: metrics.ConfiguredProviders(metrics.LayoutConfig{MinIoU: conf.Metrics.MinIoU}),
			Logger:    logger,
		})

		if err := st.ClearScores(ctx, runID); err != nil {
			return err
		}

		summary := scoreSummary{RunID: runID}
		missing := make(map[string]bool)
		for _, pr := range prs {
			gt, ok := gtByDoc[pr.DocID]
			if !ok {
				missing[pr.DocID] = true
				continue
			}
			results, skips, err := suite.Score(pr, gt)
			if err != nil {
				return err
			}
			if err := st.SaveMetricResults(ctx, runID, results); err != nil {
				return err
			}
			if err := st.SaveMetricSkips(ctx, runID, pr.Pipeline, pr.DocID, skips); err != nil {
				return err
			}
			summary.Scored += len(results)
			summary.Skipped += len(skips)
		}
		for docID := range missing {
			summary.Missing = append(summary.Missing, docID)
		}
		sort.Strings(summary.Missing)

		return api.Output(summary)
	},
}

func init() {
	rootCmd.AddCommand(scoreCmd)
}
