package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/docbench/docbench/internal/corpus"
)

const (
	VLMToolName     = "vlm"
	vlmDefaultModel = "gpt-4o-mini"

	// USD per 1M tokens. Overridable per backend in config when pricing moves.
	vlmDefaultInputCostPer1M  = 0.15
	vlmDefaultOutputCostPer1M = 0.60

	vlmMaxInputChars = 48000
)

// VLMConfig holds configuration for the vision/language-model backend.
type VLMConfig struct {
	Name            string
	APIKey          string
	Model           string
	BaseURL         string // optional (proxies, tests)
	Timeout         time.Duration
	MaxRetries      int // SDK transport retries
	InputCostPer1M  float64
	OutputCostPer1M float64
	HTTPClient      *http.Client // optional (tests)
}

// VLMTool structures document text into blocks using a chat model. The
// model reads extracted text (prior stage output, or native PDF text when
// first in the pipeline) and returns the block list as JSON. Cost is
// computed from reported token usage.
type VLMTool struct {
	name            string
	apiKey          string
	model           string
	baseURL         string
	inputCostPer1M  float64
	outputCostPer1M float64
	client          openai.Client
}

// NewVLMTool creates a VLM-backed structuring tool.
func NewVLMTool(cfg VLMConfig) *VLMTool {
	if cfg.Name == "" {
		cfg.Name = VLMToolName
	}
	if cfg.Model == "" {
		cfg.Model = vlmDefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 300 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.InputCostPer1M <= 0 {
		cfg.InputCostPer1M = vlmDefaultInputCostPer1M
	}
	if cfg.OutputCostPer1M <= 0 {
		cfg.OutputCostPer1M = vlmDefaultOutputCostPer1M
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &VLMTool{
		name:            cfg.Name,
		apiKey:          cfg.APIKey,
		model:           cfg.Model,
		baseURL:         cfg.BaseURL,
		inputCostPer1M:  cfg.InputCostPer1M,
		outputCostPer1M: cfg.OutputCostPer1M,
		client:          openai.NewClient(opts...),
	}
}

// Name returns the tool identifier.
func (t *VLMTool) Name() string {
	return t.name
}

// ValidateConfig accepts model/generation overrides.
func (t *VLMTool) ValidateConfig(config map[string]any) error {
	return checkRecognized(config, "model", "max_tokens", "temperature", "prompt")
}

// Process sends the document text to the model and parses the returned
// block structure.
func (t *VLMTool) Process(ctx context.Context, input Input, config map[string]any) (*Result, error) {
	start := time.Now()

	docText, err := t.documentText(input)
	if err != nil {
		return &Result{ExecutionTime: time.Since(start)}, err
	}
	if len(docText) > vlmMaxInputChars {
		docText = docText[:vlmMaxInputChars]
	}

	modelName := optString(config, "model", t.model)
	maxTokens := optInt(config, "max_tokens", 8192)
	temperature := optFloat(config, "temperature", 0)

	userPrompt := vlmUserPrompt(docText, optString(config, "prompt", ""))
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(modelName),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(vlmSystemPrompt),
			openai.UserMessage(userPrompt),
		},
		Temperature: openai.Float(temperature),
		MaxTokens:   openai.Int(int64(maxTokens)),
	}

	resp, err := t.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return &Result{ExecutionTime: time.Since(start)}, mapVLMError(err)
	}
	if len(resp.Choices) == 0 {
		return &Result{ExecutionTime: time.Since(start)}, fmt.Errorf("model returned no choices")
	}

	cost := t.costUSD(resp.Usage.PromptTokens, resp.Usage.CompletionTokens)

	output, err := parseBlocksJSON(resp.Choices[0].Message.Content)
	if err != nil {
		// The call was made and billed; keep the cost on the failure.
		return &Result{CostUSD: cost, ExecutionTime: time.Since(start)},
			fmt.Errorf("model output unusable: %w", err)
	}

	return &Result{
		Output:        output,
		CostUSD:       cost,
		ExecutionTime: time.Since(start),
	}, nil
}

// documentText resolves what the model reads: the prior stage's output, or
// the document's native text when this tool runs first.
func (t *VLMTool) documentText(input Input) (string, error) {
	if input.Prior != nil {
		if input.Prior.Markdown != "" {
			return input.Prior.Markdown, nil
		}
		return input.Prior.PlainText(), nil
	}

	f, err := os.Open(input.Document.Path)
	if err != nil {
		return "", fmt.Errorf("failed to open document: %w", err)
	}
	defer f.Close()

	conf := model.NewDefaultConfiguration()
	pdfCtx, err := api.ReadValidateAndOptimize(f, conf)
	if err != nil {
		return "", fmt.Errorf("pdfcpu read: %w", err)
	}

	var sb strings.Builder
	for pageNr := 1; pageNr <= pdfCtx.PageCount; pageNr++ {
		pageText := extractPageText(pdfCtx, pageNr)
		if pageText == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(pageText)
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("document has no extractable text")
	}
	return sb.String(), nil
}

func (t *VLMTool) costUSD(promptTokens, completionTokens int64) float64 {
	return float64(promptTokens)*(t.inputCostPer1M/1_000_000.0) +
		float64(completionTokens)*(t.outputCostPer1M/1_000_000.0)
}

const vlmSystemPrompt = `You analyze document text and return its structure as JSON.
Return ONLY a JSON object of this shape, no markdown fences, no commentary:
{"blocks":[{"type":"paragraph|heading|table|formula|figure|list","text":"...","order":0,
"table":{"rows":[[{"text":"..."}]]}}],"units":[[0,1],[2]]}
Rules: one block per structural element, in reading order; "order" is the
zero-based reading position; tables include their cell grid; formulas carry
their markup in "text"; "units" groups block indices into coherent reading
chunks.`

func vlmUserPrompt(docText, extra string) string {
	var sb strings.Builder
	sb.WriteString("Document text:\n\n")
	sb.WriteString(docText)
	if extra != "" {
		sb.WriteString("\n\nAdditional instruction: ")
		sb.WriteString(extra)
	}
	return sb.String()
}

// parseBlocksJSON decodes the model's block JSON, stripping code fences if
// the model ignored instructions.
func parseBlocksJSON(content string) (*StageOutput, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("empty model output")
	}
	if strings.HasPrefix(content, "```") {
		content = stripFences(content)
	}

	var parsed struct {
		Blocks []corpus.Block `json:"blocks"`
		Units  [][]int        `json:"units"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse block JSON: %w", err)
	}

	for i := range parsed.Blocks {
		if !parsed.Blocks[i].Type.Valid() {
			parsed.Blocks[i].Type = corpus.BlockParagraph
		}
	}
	for _, unit := range parsed.Units {
		for _, idx := range unit {
			if idx < 0 || idx >= len(parsed.Blocks) {
				return nil, fmt.Errorf("unit references block %d of %d", idx, len(parsed.Blocks))
			}
		}
	}

	return &StageOutput{Blocks: parsed.Blocks, Units: parsed.Units}, nil
}

func stripFences(content string) string {
	lines := strings.Split(strings.TrimSpace(content), "\n")
	if len(lines) < 2 {
		return content
	}
	lines = lines[1:]
	if strings.TrimSpace(lines[len(lines)-1]) == "```" {
		lines = lines[:len(lines)-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func mapVLMError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if apiErr.Message != "" {
			return fmt.Errorf("model API error (status %d): %s", apiErr.StatusCode, apiErr.Message)
		}
		return fmt.Errorf("model API error (status %d)", apiErr.StatusCode)
	}
	return err
}

// Verify interface
var _ Tool = (*VLMTool)(nil)
