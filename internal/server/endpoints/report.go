package endpoints

import (
	"errors"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/docbench/docbench/internal/aggregate"
	"github.com/docbench/docbench/internal/api"
	"github.com/docbench/docbench/internal/store"
	"github.com/docbench/docbench/internal/svcctx"
)

// RunLatest is the run id alias resolving to the most recent run.
const RunLatest = "latest"

// ReportEndpoint handles GET /api/runs/{id}/report.
type ReportEndpoint struct{}

func (e *ReportEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/runs/{id}/report", e.handler
}

func (e *ReportEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Get run report
//	@Description	Aggregate a run's persisted scores into per-pipeline statistics. The id "latest" resolves to the most recent run.
//	@Tags			runs
//	@Produce		json
//	@Param			id	path		string	true	"Run ID or 'latest'"
//	@Success		200	{object}	aggregate.Report
//	@Failure		400	{object}	ErrorResponse
//	@Failure		404	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Failure		503	{object}	ErrorResponse
//	@Router			/api/runs/{id}/report [get]
func (e *ReportEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "run id is required")
		return
	}

	st := svcctx.StoreFrom(r.Context())
	if st == nil {
		writeError(w, http.StatusServiceUnavailable, "store not initialized")
		return
	}

	if id == RunLatest {
		latest, err := st.LatestRunID(r.Context())
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				writeError(w, http.StatusNotFound, "store has no runs")
				return
			}
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		id = latest
	}

	if _, err := st.GetRun(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "run not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	results, err := st.ListMetricResults(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	runs, err := st.ListPipelineResults(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	report := aggregate.Build(aggregate.Input{RunID: id, Results: results, Runs: runs})
	writeJSON(w, http.StatusOK, report)
}

func (e *ReportEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "report [run-id]",
		Short: "Get the aggregate report for a run",
		Long: `Get the aggregate report for a run.

Without a run id the most recent run is reported. Scores are grouped
per pipeline, overall and per document type.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := RunLatest
			if len(args) == 1 {
				id = args[0]
			}

			ctx := cmd.Context()
			client := api.NewClient(getServerURL())
			var resp aggregate.Report
			if err := client.Get(ctx, "/api/runs/"+id+"/report", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}
