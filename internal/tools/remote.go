package tools

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/google/uuid"

	"github.com/docbench/docbench/internal/corpus"
)

const (
	RemoteToolName        = "remote"
	remoteDefaultRetries  = 3
	remoteDefaultDelay    = 2 * time.Second
	remoteProcessEndpoint = "/v1/process"
)

// RemoteConfig holds configuration for a remote tool backend.
type RemoteConfig struct {
	Name       string
	BaseURL    string        // e.g. http://127.0.0.1:8831
	Timeout    time.Duration // per-request HTTP timeout
	MaxRetries int           // transport retries (5xx / connection errors)
	RetryDelay time.Duration // delay between retries
	CostUSD    float64       // flat per-document cost when the service reports none
	HTTPClient *http.Client  // optional (tests)
}

// RemoteTool calls a self-hosted document-processing service over HTTP.
// The service owns its cost accounting; when it reports none, a flat
// per-document estimate from configuration is used. Transport retries stay
// inside this backend, the execution engine never retries.
type RemoteTool struct {
	name       string
	baseURL    string
	maxRetries int
	retryDelay time.Duration
	costUSD    float64
	client     *http.Client
}

// NewRemoteTool creates an HTTP-backed tool client.
func NewRemoteTool(cfg RemoteConfig) *RemoteTool {
	if cfg.Name == "" {
		cfg.Name = RemoteToolName
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 300 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = remoteDefaultRetries
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = remoteDefaultDelay
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}

	return &RemoteTool{
		name:       cfg.Name,
		baseURL:    cfg.BaseURL,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		costUSD:    cfg.CostUSD,
		client:     client,
	}
}

// Name returns the tool identifier.
func (t *RemoteTool) Name() string {
	return t.name
}

// ValidateConfig accepts options forwarded to the service.
func (t *RemoteTool) ValidateConfig(config map[string]any) error {
	return checkRecognized(config, "use_llm", "mode", "langs")
}

// Process uploads the document (and prior output, when declared) to the
// service and converts its response into a stage output.
func (t *RemoteTool) Process(ctx context.Context, input Input, config map[string]any) (*Result, error) {
	start := time.Now()

	raw, err := os.ReadFile(input.Document.Path)
	if err != nil {
		return &Result{ExecutionTime: time.Since(start)}, fmt.Errorf("failed to read document: %w", err)
	}

	// One id per document, stable across retries, so the service can
	// de-duplicate replayed uploads.
	reqBody := remoteProcessRequest{
		RequestID:   uuid.NewString(),
		DocumentB64: base64.StdEncoding.EncodeToString(raw),
		Filename:    filepath.Base(input.Document.Path),
		Options:     remoteOptions(config),
		Prior:       input.Prior,
	}

	var resp *remoteProcessResponse
	err = retry.Do(
		func() error {
			var reqErr error
			resp, reqErr = t.doRequest(ctx, remoteProcessEndpoint, reqBody)
			return reqErr
		},
		retry.Context(ctx),
		retry.Attempts(uint(t.maxRetries)),
		retry.Delay(t.retryDelay),
		retry.RetryIf(func(err error) bool {
			// Retry transport failures and 5xx; a 4xx will not heal.
			var re *remoteError
			if errors.As(err, &re) {
				return re.StatusCode >= 500
			}
			return true
		}),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return &Result{ExecutionTime: time.Since(start)}, err
	}

	cost := resp.CostUSD
	if cost == 0 {
		cost = t.costUSD
	}

	if !resp.Success {
		return &Result{CostUSD: cost, ExecutionTime: time.Since(start)},
			fmt.Errorf("service reported failure: %s", resp.Error)
	}

	output := &StageOutput{
		Blocks:   resp.Blocks,
		Units:    resp.Units,
		Markdown: resp.Markdown,
	}
	if len(output.Blocks) == 0 && output.Markdown != "" {
		output.Blocks, output.Units = BlocksFromMarkdown(output.Markdown)
	}

	return &Result{
		Output:        output,
		CostUSD:       cost,
		ExecutionTime: time.Since(start),
	}, nil
}

// HealthURL returns the service health endpoint, used for readiness checks.
func (t *RemoteTool) HealthURL() string {
	return t.baseURL + "/health"
}

// doRequest makes one HTTP round trip to the service.
func (t *RemoteTool) doRequest(ctx context.Context, path string, body remoteProcessRequest) (*remoteProcessResponse, error) {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", t.baseURL+path, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", body.RequestID)

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &remoteError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	if err := validateServiceResponse(respBody); err != nil {
		return nil, err
	}

	var procResp remoteProcessResponse
	if err := json.Unmarshal(respBody, &procResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return &procResp, nil
}

func remoteOptions(config map[string]any) map[string]any {
	if len(config) == 0 {
		return nil
	}
	opts := make(map[string]any, len(config))
	for k, v := range config {
		opts[k] = v
	}
	return opts
}

// Remote service API types

type remoteProcessRequest struct {
	RequestID   string         `json:"request_id"`
	DocumentB64 string         `json:"document_b64"`
	Filename    string         `json:"filename"`
	Options     map[string]any `json:"options,omitempty"`
	Prior       *StageOutput   `json:"prior,omitempty"`
}

type remoteProcessResponse struct {
	Success  bool           `json:"success"`
	Markdown string         `json:"markdown,omitempty"`
	Blocks   []corpus.Block `json:"blocks,omitempty"`
	Units    [][]int        `json:"units,omitempty"`
	CostUSD  float64        `json:"cost_usd,omitempty"`
	Error    string         `json:"error,omitempty"`
}

type remoteError struct {
	StatusCode int
	Body       string
}

func (e *remoteError) Error() string {
	return fmt.Sprintf("service error (status %d): %s", e.StatusCode, e.Body)
}

// Verify interface
var _ Tool = (*RemoteTool)(nil)
