package endpoints

import (
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/docbench/docbench/internal/api"
	"github.com/docbench/docbench/internal/pipeline"
	"github.com/docbench/docbench/internal/svcctx"
)

// PipelineSummary is one pipeline definition as served by the API.
type PipelineSummary struct {
	Name   string   `json:"name"`
	Stages []string `json:"stages"` // "stage (tool)" per stage, in order
}

// ListPipelinesResponse is the response for listing pipeline definitions.
type ListPipelinesResponse struct {
	Dir       string            `json:"dir"`
	Pipelines []PipelineSummary `json:"pipelines"`
}

// ListPipelinesEndpoint handles GET /api/pipelines.
type ListPipelinesEndpoint struct{}

func (e *ListPipelinesEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/pipelines", e.handler
}

func (e *ListPipelinesEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		List pipeline definitions
//	@Description	List the pipeline definitions in the server's pipelines directory
//	@Tags			pipelines
//	@Produce		json
//	@Success		200	{object}	ListPipelinesResponse
//	@Failure		404	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Failure		503	{object}	ErrorResponse
//	@Router			/api/pipelines [get]
func (e *ListPipelinesEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	dir := svcctx.PipelinesDirFrom(r.Context())
	if dir == "" {
		writeError(w, http.StatusServiceUnavailable, "pipelines directory not configured")
		return
	}

	if _, err := os.Stat(dir); err != nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("pipelines directory %s not found", dir))
		return
	}

	defs, err := pipeline.LoadDir(dir)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := ListPipelinesResponse{Dir: dir}
	for _, def := range defs {
		summary := PipelineSummary{Name: def.Name}
		for _, s := range def.Stages {
			summary.Stages = append(summary.Stages, fmt.Sprintf("%s (%s)", s.Name, s.Tool))
		}
		resp.Pipelines = append(resp.Pipelines, summary)
	}

	writeJSON(w, http.StatusOK, resp)
}

func (e *ListPipelinesEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "pipelines",
		Short: "List the server's pipeline definitions",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client := api.NewClient(getServerURL())
			var resp ListPipelinesResponse
			if err := client.Get(ctx, "/api/pipelines", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}
