package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/docbench/docbench/internal/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the docbench home directory and default config",
	Long: `Create the docbench home directory layout and write a default config file.

The layout is:
  ~/.docbench/corpus/<category>/*.pdf        benchmark documents
  ~/.docbench/ground_truth/<category>/*.json ground-truth annotations
  ~/.docbench/pipelines/*.yaml               pipeline definitions
  ~/.docbench/runs/<run-id>/                 exported run manifests
  ~/.docbench/docbench.db                    results database
  ~/.docbench/config.yaml                    configuration

Existing files are left alone unless --force is given.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := getHome()
		if err != nil {
			return err
		}

		if h.ConfigExists() && !initForce {
			fmt.Printf("Config already exists at %s (use --force to overwrite)\n", h.ConfigPath())
			return nil
		}
		if err := config.WriteDefault(h.ConfigPath()); err != nil {
			return err
		}

		fmt.Printf("Initialized docbench home at %s\n", h.Path())
		fmt.Printf("  Config:    %s\n", h.ConfigPath())
		fmt.Printf("  Corpus:    %s\n", h.CorpusPath())
		fmt.Printf("  Pipelines: %s\n", h.PipelinesPath())
		return nil
	},
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing config file")
	rootCmd.AddCommand(initCmd)
}
