package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/docbench/docbench/internal/aggregate"
	"github.com/docbench/docbench/internal/api"
	"github.com/docbench/docbench/internal/report"
	"github.com/docbench/docbench/internal/store"
)

var (
	reportFilter string
	reportCSV    string
	reportFull   bool
)

var reportCmd = &cobra.Command{
	Use:   "report [run-id]",
	Short: "Aggregate a run's scores into a report",
	Long: `Aggregate a run's persisted scores into per-pipeline statistics: score
mean/median/min/max per metric, document counts, total cost, and latency,
overall and per document type.

The default view is an aligned table of report rows. --filter selects rows
with a CEL expression over the row fields, --csv exports the rows, and
--full prints the complete nested report in the --output format.

Defaults to the most recent run.

Examples:
  docbench report
  docbench report 20260823-152233-1a2b3c4d
  docbench report --filter 'row.pipeline == "marker" && row.doc_type == "academic"'
  docbench report --csv scores.csv
  docbench report --full -o json`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		cm, err := getConfig()
		if err != nil {
			return err
		}

		h, err := getHome()
		if err != nil {
			return err
		}
		paths := cm.Get().ResolvePaths(h)

		st, err := store.Open(paths.StorePath, newCLILogger())
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

		runs, err := st.ListPipelineResults(ctx, runID)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			return fmt.Errorf("run %s has no persisted results", runID)
		}
		results, err := st.ListMetricResults(ctx, runID)
		if err != nil {
			return err
		}

		rep := aggregate.Build(aggregate.Input{RunID: runID, Results: results, Runs: runs})
		if reportFull {
			return api.Output(rep)
		}

		filter, err := report.NewFilter(reportFilter)
		if err != nil {
			return err
		}
		rows, err := filter.Apply(rep.Rows())
		if err != nil {
			return err
		}

		if reportCSV != "" {
			f, err := os.Create(reportCSV)
			if err != nil {
				return fmt.Errorf("failed to create csv file: %w", err)
			}
			defer f.Close()
			if err := report.WriteCSV(f, rows); err != nil {
				return err
			}
			fmt.Printf("Wrote %d rows to %s\n", len(rows), reportCSV)
			return nil
		}

		return report.WriteTable(os.Stdout, rows)
	},
}

func init() {
	reportCmd.Flags().StringVar(&reportFilter, "filter", "", "CEL expression selecting report rows")
	reportCmd.Flags().StringVar(&reportCSV, "csv", "", "Write report rows to a CSV file")
	reportCmd.Flags().BoolVar(&reportFull, "full", false, "Print the complete nested report")

	rootCmd.AddCommand(reportCmd)
}
