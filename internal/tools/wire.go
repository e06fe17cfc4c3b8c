package tools

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/stage_response.json
var schemaFS embed.FS

var (
	stageRespSchema     *jsonschema.Schema
	stageRespSchemaErr  error
	stageRespSchemaOnce sync.Once
)

// stageResponseSchema compiles the embedded service-response schema once.
func stageResponseSchema() (*jsonschema.Schema, error) {
	stageRespSchemaOnce.Do(func() {
		raw, err := schemaFS.ReadFile("schemas/stage_response.json")
		if err != nil {
			stageRespSchemaErr = fmt.Errorf("failed to read stage response schema: %w", err)
			return
		}
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("stage_response.json", bytes.NewReader(raw)); err != nil {
			stageRespSchemaErr = fmt.Errorf("failed to load stage response schema: %w", err)
			return
		}
		stageRespSchema, stageRespSchemaErr = compiler.Compile("stage_response.json")
	})
	return stageRespSchema, stageRespSchemaErr
}

// validateServiceResponse checks raw service JSON against the wire schema
// before it is decoded into typed structs. Block type tags, box geometry,
// and cell spans are enforced here so a misbehaving service fails its stage
// with a schema error instead of leaking malformed blocks into scoring.
func validateServiceResponse(raw []byte) error {
	schema, err := stageResponseSchema()
	if err != nil {
		return err
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("invalid service response JSON: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("service response does not match schema: %w", err)
	}
	return nil
}
