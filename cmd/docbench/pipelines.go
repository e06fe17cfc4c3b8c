package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/docbench/docbench/internal/api"
	"github.com/docbench/docbench/internal/executor"
	"github.com/docbench/docbench/internal/pipeline"
	"github.com/docbench/docbench/internal/tools"
)

var pipelinesCmd = &cobra.Command{
	Use:   "pipelines",
	Short: "Pipeline definition commands",
}

type pipelineSummary struct {
	Name   string   `json:"name"`
	Stages []string `json:"stages"`
}

var pipelinesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List pipeline definitions",
	RunE: func(cmd *cobra.Command, args []string) error {
		cm, err := getConfig()
		if err != nil {
			return err
		}

		h, err := getHome()
		if err != nil {
			return err
		}
		paths := cm.Get().ResolvePaths(h)

		defs, err := pipeline.LoadDir(paths.PipelinesDir)
		if err != nil {
			return err
		}

		summaries := make([]pipelineSummary, 0, len(defs))
		for _, def := range defs {
			s := pipelineSummary{Name: def.Name}
			for _, stage := range def.Stages {
				s.Stages = append(s.Stages, fmt.Sprintf("%s (%s)", stage.Name, stage.Tool))
			}
			summaries = append(summaries, s)
		}
		return api.Output(summaries)
	},
}

var pipelinesValidateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Validate a pipeline definition",
	Long: `Validate a pipeline definition file: structure (unique stage names, input
references) and tool availability against the configured tool registry.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		def, err := pipeline.LoadFile(args[0])
		if err != nil {
			return err
		}

		cm, err := getConfig()
		if err != nil {
			return err
		}
		logger := newCLILogger()

		exec := executor.New(executor.Config{
			Registry: tools.NewRegistryFromConfig(cm.Get().ToRegistryConfig(), logger),
			Logger:   logger,
		})
		if err := exec.Validate(def); err != nil {
			return err
		}

		fmt.Printf("Pipeline %s is valid (%d stages)\n", def.Name, len(def.Stages))
		return nil
	},
}

func init() {
	pipelinesCmd.AddCommand(pipelinesListCmd)
	pipelinesCmd.AddCommand(pipelinesValidateCmd)
	rootCmd.AddCommand(pipelinesCmd)
}
