package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/docbench/docbench/internal/executor"
	"github.com/docbench/docbench/internal/metrics"
)

// SavePipelineResult persists one pipeline result under a run. Saving the
// same (run, pipeline, document) again replaces the previous row, so
// partial results can be overwritten by a later complete execution.
func (s *Store) SavePipelineResult(ctx context.Context, runID string, pr *executor.PipelineResult) error {
	payload, err := json.Marshal(pr)
	if err != nil {
		return fmt.Errorf("failed to encode pipeline result: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO pipeline_results
			(run_id, pipeline, doc_id, doc_type, success, total_cost_usd, total_latency_us, result_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, pipeline, doc_id) DO UPDATE SET
			doc_type = excluded.doc_type,
			success = excluded.success,
			total_cost_usd = excluded.total_cost_usd,
			total_latency_us = excluded.total_latency_us,
			result_json = excluded.result_json,
			created_at = excluded.created_at`,
		runID, pr.Pipeline, pr.DocID, pr.DocType, pr.Success,
		pr.TotalCostUSD, pr.TotalLatency.Microseconds(), string(payload),
		time.Now().UTC().Unix())
	if err != nil {
		return fmt.Errorf("failed to save pipeline result %s/%s: %w", pr.Pipeline, pr.DocID, err)
	}
	return nil
}

// ListPipelineResults loads every pipeline result for a run, decoded back to
// the executor's type, ordered by pipeline then document.
func (s *Store) ListPipelineResults(ctx context.Context, runID string) ([]*executor.PipelineResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT result_json FROM pipeline_results
		WHERE run_id = ? ORDER BY pipeline, doc_id`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list pipeline results for run %s: %w", runID, err)
	}
	defer rows.Close()

	var results []*executor.PipelineResult
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var pr executor.PipelineResult
		if err := json.Unmarshal([]byte(payload), &pr); err != nil {
			return nil, fmt.Errorf("failed to decode pipeline result: %w", err)
		}
		results = append(results, &pr)
	}
	return results, rows.Err()
}

// GetPipelineResult loads one (pipeline, document) result for a run.
func (s *Store) GetPipelineResult(ctx context.Context, runID, pipeline, docID string) (*executor.PipelineResult, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, `
		SELECT result_json FROM pipeline_results
		WHERE run_id = ? AND pipeline = ? AND doc_id = ?`,
		runID, pipeline, docID).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("no result for %s/%s in run %s", pipeline, docID, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load pipeline result: %w", err)
	}
	var pr executor.PipelineResult
	if err := json.Unmarshal([]byte(payload), &pr); err != nil {
		return nil, fmt.Errorf("failed to decode pipeline result: %w", err)
	}
	return &pr, nil
}

// SaveMetricResults persists a batch of metric results in one transaction.
// Existing rows for the same (run, pipeline, document, metric) are replaced,
// which is what re-scoring wants.
func (s *Store) SaveMetricResults(ctx context.Context, runID string, results []*metrics.Result) error {
	if len(results) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin metric save: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO metric_results
			(run_id, pipeline, doc_id, metric, scores_json, diagnostics_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, pipeline, doc_id, metric) DO UPDATE SET
			scores_json = excluded.scores_json,
			diagnostics_json = excluded.diagnostics_json,
			created_at = excluded.created_at`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to prepare metric insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Unix()
	for _, r := range results {
		scores, err := json.Marshal(r.Scores)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to encode scores for %s: %w", r.Metric, err)
		}
		var diagnostics any
		if len(r.Diagnostics) > 0 {
			encoded, err := json.Marshal(r.Diagnostics)
			if err != nil {
				tx.Rollback()
				return fmt.Errorf("failed to encode diagnostics for %s: %w", r.Metric, err)
			}
			diagnostics = string(encoded)
		}
		if _, err := stmt.ExecContext(ctx, runID, r.Pipeline, r.DocID, r.Metric,
			string(scores), diagnostics, now); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to save metric result %s/%s/%s: %w", r.Pipeline, r.DocID, r.Metric, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit metric save: %w", err)
	}
	return nil
}

// ListMetricResults loads every metric result for a run, ordered by
// pipeline, document, metric.
func (s *Store) ListMetricResults(ctx context.Context, runID string) ([]*metrics.Result, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT pipeline, doc_id, metric, scores_json, diagnostics_json
		FROM metric_results WHERE run_id = ?
		ORDER BY pipeline, doc_id, metric`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list metric results for run %s: %w", runID, err)
	}
	defer rows.Close()

	var results []*metrics.Result
	for rows.Next() {
		var (
			r           metrics.Result
			scores      string
			diagnostics sql.NullString
		)
		if err := rows.Scan(&r.Pipeline, &r.DocID, &r.Metric, &scores, &diagnostics); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(scores), &r.Scores); err != nil {
			return nil, fmt.Errorf("failed to decode scores for %s: %w", r.Metric, err)
		}
		if diagnostics.Valid {
			if err := json.Unmarshal([]byte(diagnostics.String), &r.Diagnostics); err != nil {
				return nil, fmt.Errorf("failed to decode diagnostics for %s: %w", r.Metric, err)
			}
		}
		results = append(results, &r)
	}
	return results, rows.Err()
}

// SkipRecord is one persisted metric exclusion.
type SkipRecord struct {
	Pipeline  string `json:"pipeline"`
	DocID     string `json:"doc_id"`
	Metric    string `json:"metric"`
	Reason    string `json:"reason"`
	Undefined bool   `json:"undefined"`
}

// SaveMetricSkips records which metrics did not apply (or failed) for one
// (pipeline, document) pair.
func (s *Store) SaveMetricSkips(ctx context.Context, runID, pipeline, docID string, skips []metrics.SkippedMetric) error {
	if len(skips) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin skip save: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO metric_skips
			(run_id, pipeline, doc_id, metric, reason, undefined, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, pipeline, doc_id, metric) DO UPDATE SET
			reason = excluded.reason,
			undefined = excluded.undefined,
			created_at = excluded.created_at`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to prepare skip insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Unix()
	for _, sk := range skips {
		if _, err := stmt.ExecContext(ctx, runID, pipeline, docID,
			sk.Metric, sk.Reason, sk.Undefined, now); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to save metric skip %s/%s/%s: %w", pipeline, docID, sk.Metric, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit skip save: %w", err)
	}
	return nil
}

// ListMetricSkips loads the skip records for a run.
func (s *Store) ListMetricSkips(ctx context.Context, runID string) ([]SkipRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT pipeline, doc_id, metric, reason, undefined
		FROM metric_skips WHERE run_id = ?
		ORDER BY pipeline, doc_id, metric`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list metric skips for run %s: %w", runID, err)
	}
	defer rows.Close()

	var skips []SkipRecord
	for rows.Next() {
		var sk SkipRecord
		if err := rows.Scan(&sk.Pipeline, &sk.DocID, &sk.Metric, &sk.Reason, &sk.Undefined); err != nil {
			return nil, err
		}
		skips = append(skips, sk)
	}
	return skips, rows.Err()
}

// ClearScores removes every metric result and skip for a run. Re-scoring
// calls this before writing the fresh set so stale rows never linger.
func (s *Store) ClearScores(ctx context.Context, runID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin score clear: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM metric_results WHERE run_id = ?`, runID); err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to clear metric results: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM metric_skips WHERE run_id = ?`, runID); err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to clear metric skips: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit score clear: %w", err)
	}
	return nil
}
