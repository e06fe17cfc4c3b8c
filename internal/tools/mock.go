package tools

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/docbench/docbench/internal/corpus"
)

const MockToolName = "mock"

// MockTool is a Tool for testing. Behavior is configurable through struct
// fields and overridable per stage through recognized config options.
type MockTool struct {
	ToolName string

	// Configurable behavior
	Latency     time.Duration
	ShouldFail  bool
	FailAfter   int     // fail after N requests (0 = never)
	CostUSD     float64 // cost reported per invocation
	PartialCost float64 // cost reported when an invocation fails mid-flight
	Output      *StageOutput

	// State
	requestCount atomic.Int64
}

// NewMockTool creates a mock tool with sensible defaults: a single
// paragraph block and a small cost.
func NewMockTool() *MockTool {
	return &MockTool{
		ToolName: MockToolName,
		Latency:  5 * time.Millisecond,
		CostUSD:  0.001,
		Output: &StageOutput{
			Blocks: []corpus.Block{
				{Type: corpus.BlockParagraph, Text: "mock output", Order: 0},
			},
		},
	}
}

// Name returns the tool identifier.
func (m *MockTool) Name() string {
	return m.ToolName
}

// ValidateConfig accepts the mock's stage-level overrides.
func (m *MockTool) ValidateConfig(config map[string]any) error {
	return checkRecognized(config, "fail", "cost", "latency_ms", "text")
}

// Process simulates a tool invocation.
func (m *MockTool) Process(ctx context.Context, input Input, config map[string]any) (*Result, error) {
	start := time.Now()
	count := m.requestCount.Add(1)

	latency := m.Latency
	if ms := optInt(config, "latency_ms", 0); ms > 0 {
		latency = time.Duration(ms) * time.Millisecond
	}
	cost := optFloat(config, "cost", m.CostUSD)

	fail := m.ShouldFail || optBool(config, "fail", false)
	if !fail && m.FailAfter > 0 && int(count) > m.FailAfter {
		fail = true
	}
	if fail {
		return &Result{
			CostUSD:       m.PartialCost,
			ExecutionTime: time.Since(start),
		}, fmt.Errorf("mock tool %s configured to fail", m.ToolName)
	}

	// Simulate latency
	select {
	case <-time.After(latency):
	case <-ctx.Done():
		return &Result{
			CostUSD:       m.PartialCost,
			ExecutionTime: time.Since(start),
		}, ctx.Err()
	}

	output := m.Output
	if text := optString(config, "text", ""); text != "" {
		output = &StageOutput{
			Blocks: []corpus.Block{
				{Type: corpus.BlockParagraph, Text: text, Order: 0},
			},
		}
	}
	if output == nil {
		output = &StageOutput{}
	}

	return &Result{
		Output:        output,
		CostUSD:       cost,
		ExecutionTime: time.Since(start),
	}, nil
}

// RequestCount returns the number of invocations made.
func (m *MockTool) RequestCount() int64 {
	return m.requestCount.Load()
}

// Reset resets the invocation counter.
func (m *MockTool) Reset() {
	m.requestCount.Store(0)
}

// Verify interface
var _ Tool = (*MockTool)(nil)
