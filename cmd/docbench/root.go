package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/docbench/docbench/internal/api"
	"github.com/docbench/docbench/internal/config"
	"github.com/docbench/docbench/internal/home"
	"github.com/docbench/docbench/version"
)

var (
	cfgFile      string
	homeDir      string
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "docbench",
	Short: "Benchmark document-understanding pipelines against ground truth",
	Long: `Docbench runs document-understanding pipelines over a PDF corpus and
scores their output against ground-truth annotations.

A sweep executes every (pipeline, document) pair, records per-stage cost
and latency, and scores the final output across six accuracy dimensions:
text, layout, table structure, formulas, reading order, and reading units.
Results persist in a local SQLite store for re-scoring and reporting.`,
	Version: version.GitRelease,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.docbench/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "docbench home directory (default: ~/.docbench)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "yaml", "output format: yaml or json",
	)

	// Set output format before any command runs
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		api.SetOutputFormat(outputFormat)
	}

	rootCmd.AddCommand(versionCmd)
}

// getHome returns the home directory manager.
func getHome() (*home.Dir, error) {
	h, err := home.New(homeDir)
	if err != nil {
		return nil, err
	}
	if err := h.EnsureExists(); err != nil {
		return nil, fmt.Errorf("failed to create home directory: %w", err)
	}
	return h, nil
}

// getConfig loads configuration from --config, the working directory, or the
// home directory, in that order.
func getConfig() (*config.Manager, error) {
	return config.NewManager(cfgFile)
}
