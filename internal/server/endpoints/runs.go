package endpoints

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/docbench/docbench/internal/api"
	"github.com/docbench/docbench/internal/store"
	"github.com/docbench/docbench/internal/svcctx"
)

// ListRunsResponse is the response for listing runs.
type ListRunsResponse struct {
	Runs []*store.Run `json:"runs"`
}

// ListRunsEndpoint handles GET /api/runs.
type ListRunsEndpoint struct{}

func (e *ListRunsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/runs", e.handler
}

func (e *ListRunsEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		List runs
//	@Description	List benchmark runs, newest first
//	@Tags			runs
//	@Produce		json
//	@Param			limit	query		int	false	"Maximum number of runs to return"
//	@Success		200		{object}	ListRunsResponse
//	@Failure		500		{object}	ErrorResponse
//	@Failure		503		{object}	ErrorResponse
//	@Router			/api/runs [get]
func (e *ListRunsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	st := svcctx.StoreFrom(r.Context())
	if st == nil {
		writeError(w, http.StatusServiceUnavailable, "store not initialized")
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	runs, err := st.ListRuns(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, ListRunsResponse{Runs: runs})
}

func (e *ListRunsEndpoint) Command(getServerURL func() string) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List benchmark runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client := api.NewClient(getServerURL())

			path := "/api/runs"
			if limit > 0 {
				params := url.Values{}
				params.Set("limit", strconv.Itoa(limit))
				path += "?" + params.Encode()
			}

			var resp ListRunsResponse
			if err := client.Get(ctx, path, &resp); err != nil {
				return err
			}

			return api.Output(resp)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of runs to return")
	return cmd
}

// GetRunResponse is the run row plus what was recorded under it.
type GetRunResponse struct {
	*store.Run

	Pipelines []string `json:"pipelines"`
	Documents int      `json:"documents"`
	Scored    int      `json:"scored"`
	Skipped   int      `json:"skipped"`
}

// GetRunEndpoint handles GET /api/runs/{id}.
type GetRunEndpoint struct{}

func (e *GetRunEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/runs/{id}", e.handler
}

func (e *GetRunEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Get run by ID
//	@Description	Get one run with pipeline, document, and score counts
//	@Tags			runs
//	@Produce		json
//	@Param			id	path		string	true	"Run ID"
//	@Success		200	{object}	GetRunResponse
//	@Failure		400	{object}	ErrorResponse
//	@Failure		404	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Failure		503	{object}	ErrorResponse
//	@Router			/api/runs/{id} [get]
func (e *GetRunEndpoint) handler(w http.ResponseWriter, r *http.Request) {
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

	run, err := st.GetRun(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "run not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := GetRunResponse{Run: run}

	prs, err := st.ListPipelineResults(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	pipelines := make(map[string]bool)
	docs := make(map[string]bool)
	for _, pr := range prs {
		pipelines[pr.Pipeline] = true
		docs[pr.DocID] = true
	}
	for p := range pipelines {
		resp.Pipelines = append(resp.Pipelines, p)
	}
	sort.Strings(resp.Pipelines)
	resp.Documents = len(docs)

	mrs, err := st.ListMetricResults(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp.Scored = len(mrs)

	skips, err := st.ListMetricSkips(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp.Skipped = len(skips)

	writeJSON(w, http.StatusOK, resp)
}

func (e *GetRunEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Get a run by ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client := api.NewClient(getServerURL())
			var resp GetRunResponse
			if err := client.Get(ctx, "/api/runs/"+args[0], &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// DeleteRunEndpoint handles DELETE /api/runs/{id}.
type DeleteRunEndpoint struct{}

func (e *DeleteRunEndpoint) Route() (string, string, http.HandlerFunc) {
	return "DELETE", "/api/runs/{id}", e.handler
}

func (e *DeleteRunEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Delete run
//	@Description	Delete a run and all results recorded under it
//	@Tags			runs
//	@Produce		json
//	@Param			id	path		string	true	"Run ID"
//	@Success		200	{object}	map[string]bool
//	@Failure		400	{object}	ErrorResponse
//	@Failure		404	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Failure		503	{object}	ErrorResponse
//	@Router			/api/runs/{id} [delete]
func (e *DeleteRunEndpoint) handler(w http.ResponseWriter, r *http.Request) {
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

	if err := st.DeleteRun(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "run not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

func (e *DeleteRunEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a run and its results",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client := api.NewClient(getServerURL())
			if err := client.Delete(ctx, "/api/runs/"+args[0]); err != nil {
				return err
			}
			fmt.Printf("Deleted run %s\n", args[0])
			return nil
		},
	}
}
