package corpus

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/ground_truth.json
var schemaFS embed.FS

// ErrGroundTruthMismatch reports predicted and reference data for
// incompatible documents. Callers must fail fast on it rather than score.
var ErrGroundTruthMismatch = errors.New("ground truth document mismatch")

// compileGroundTruthSchema compiles the embedded ground-truth schema.
func compileGroundTruthSchema() (*jsonschema.Schema, error) {
	raw, err := schemaFS.ReadFile("schemas/ground_truth.json")
	if err != nil {
		return nil, fmt.Errorf("failed to read ground truth schema: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("ground_truth.json", bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("failed to load ground truth schema: %w", err)
	}
	schema, err := compiler.Compile("ground_truth.json")
	if err != nil {
		return nil, fmt.Errorf("failed to compile ground truth schema: %w", err)
	}
	return schema, nil
}

// ParseGroundTruth validates raw JSON against the ground-truth schema,
// decodes it, and checks internal consistency.
func ParseGroundTruth(schema *jsonschema.Schema, raw []byte) (*GroundTruth, error) {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("invalid ground truth JSON: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("ground truth does not match schema: %w", err)
	}

	var gt GroundTruth
	if err := json.Unmarshal(raw, &gt); err != nil {
		return nil, fmt.Errorf("failed to decode ground truth: %w", err)
	}
	if err := gt.Validate(); err != nil {
		return nil, fmt.Errorf("inconsistent ground truth: %w", err)
	}
	return &gt, nil
}
