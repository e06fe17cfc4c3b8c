package endpoints

import (
	"errors"
	"net/http"
	"sort"

	"github.com/spf13/cobra"

	"github.com/docbench/docbench/internal/api"
	"github.com/docbench/docbench/internal/corpus"
	"github.com/docbench/docbench/internal/store"
	"github.com/docbench/docbench/internal/svcctx"
)

// RescoreResponse summarizes a re-scoring pass.
type RescoreResponse struct {
	RunID   string   `json:"run_id"`
	Scored  int      `json:"scored"`
	Skipped int      `json:"skipped"`
	Missing []string `json:"missing,omitempty"` // doc ids without ground truth
}

// RescoreEndpoint handles POST /api/runs/{id}/rescore. It recomputes every
// metric from the run's persisted pipeline outputs against the current
// ground truth, without re-running any tool.
type RescoreEndpoint struct{}

func (e *RescoreEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/runs/{id}/rescore", e.handler
}

func (e *RescoreEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Re-score a run
//	@Description	Recompute metrics from persisted pipeline outputs against the current ground truth. No tool is re-run, so no cost is incurred.
//	@Tags			runs
//	@Produce		json
//	@Param			id	path		string	true	"Run ID or 'latest'"
//	@Success		200	{object}	RescoreResponse
//	@Failure		400	{object}	ErrorResponse
//	@Failure		404	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Failure		503	{object}	ErrorResponse
//	@Router			/api/runs/{id}/rescore [post]
func (e *RescoreEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "run id is required")
		return
	}

	st := svcctx.StoreFrom(r.Context())
	suite := svcctx.SuiteFrom(r.Context())
	loader := svcctx.CorpusFrom(r.Context())
	if st == nil || suite == nil || loader == nil {
		writeError(w, http.StatusServiceUnavailable, "rescoring services not initialized")
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

	prs, err := st.ListPipelineResults(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if len(prs) == 0 {
		writeError(w, http.StatusBadRequest, "run has no persisted pipeline results")
		return
	}

	entries, err := loader.Load(nil, 0)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	gtByDoc := make(map[string]*corpus.GroundTruth, len(entries))
	for _, entry := range entries {
		gtByDoc[entry.Document.ID] = entry.GroundTruth
	}

	if err := st.ClearScores(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := RescoreResponse{RunID: id}
	missing := make(map[string]bool)
	for _, pr := range prs {
		gt, ok := gtByDoc[pr.DocID]
		if !ok {
			missing[pr.DocID] = true
			continue
		}
		results, skips, err := suite.Score(pr, gt)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if err := st.SaveMetricResults(r.Context(), id, results); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if err := st.SaveMetricSkips(r.Context(), id, pr.Pipeline, pr.DocID, skips); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		resp.Scored += len(results)
		resp.Skipped += len(skips)
	}
	for docID := range missing {
		resp.Missing = append(resp.Missing, docID)
	}
	sort.Strings(resp.Missing)

	writeJSON(w, http.StatusOK, resp)
}

func (e *RescoreEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "rescore [run-id]",
		Short: "Re-score a run from its persisted outputs",
		Long: `Re-score a run against the current ground truth.

Persisted pipeline outputs are read back from the store; no tool is
re-run and no API cost is incurred. Useful after fixing ground truth
annotations or changing metric thresholds.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := RunLatest
			if len(args) == 1 {
				id = args[0]
			}

			ctx := cmd.Context()
			client := api.NewClient(getServerURL())
			var resp RescoreResponse
			if err := client.Post(ctx, "/api/runs/"+id+"/rescore", nil, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}
