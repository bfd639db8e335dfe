// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fableforge Contributors

package rules

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/invopop/jsonschema"
	jschema "github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"
)

// Compiled schema is cached; the Go types it reflects are fixed at build time.
var (
	schemaOnce sync.Once
	schemaInst *jschema.Schema
	schemaErr  error
)

// GenerateSchema generates a JSON Schema from the TemplateConfig struct.
// Authors can point editors at it for completion and linting.
func GenerateSchema() ([]byte, error) {
	r := jsonschema.Reflector{
		DoNotReference: true,
	}
	schema := r.Reflect(&TemplateConfig{})

	schema.ID = jsonschema.ID(SchemaID())
	schema.Title = "Fableforge Ruleset"
	schema.Description = "Schema for ruleset (template config) documents"

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	return data, nil
}

// SchemaID returns the schema $id for ruleset documents.
func SchemaID() string {
	return "https://fableforge.dev/schemas/ruleset.schema.json"
}

// DecodeDocument validates a YAML or JSON ruleset document against the
// generated schema and decodes it into a TemplateConfig. Shape errors
// (wrong types, missing required fields) fail here; semantic defects
// (undefined variables, duplicate ids) are Validate's job.
func DecodeDocument(data []byte) (*TemplateConfig, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("ruleset document is empty")
	}

	// YAML is a superset of JSON, so a single decode path covers both.
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid document: %w", err)
	}
	jsonData := convertToJSONTypes(raw)

	sch, err := compiledSchema()
	if err != nil {
		return nil, fmt.Errorf("failed to compile ruleset schema: %w", err)
	}
	if err := sch.Validate(jsonData); err != nil {
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}

	// Round-trip through JSON so struct tags drive the decode.
	buf, err := json.Marshal(jsonData)
	if err != nil {
		return nil, fmt.Errorf("failed to re-encode document: %w", err)
	}
	var cfg TemplateConfig
	if err := json.Unmarshal(buf, &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode ruleset: %w", err)
	}
	return &cfg, nil
}

// compiledSchema returns the cached compiled schema, compiling it once.
func compiledSchema() (*jschema.Schema, error) {
	schemaOnce.Do(func() {
		schemaInst, schemaErr = compileSchema()
	})
	return schemaInst, schemaErr
}

func compileSchema() (*jschema.Schema, error) {
	schemaBytes, err := GenerateSchema()
	if err != nil {
		return nil, err
	}

	var schemaData any
	if err := json.Unmarshal(schemaBytes, &schemaData); err != nil {
		return nil, fmt.Errorf("failed to parse schema JSON: %w", err)
	}

	c := jschema.NewCompiler()
	if err := c.AddResource("ruleset.schema.json", schemaData); err != nil {
		return nil, fmt.Errorf("failed to add schema resource: %w", err)
	}
	sch, err := c.Compile("ruleset.schema.json")
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}
	return sch, nil
}

// convertToJSONTypes normalizes YAML-decoded values into the types the
// schema validator expects (map[string]any trees with JSON scalar types).
func convertToJSONTypes(v any) any {
	switch val := v.(type) {
	case map[string]any:
		result := make(map[string]any, len(val))
		for k, item := range val {
			result[k] = convertToJSONTypes(item)
		}
		return result
	case []any:
		result := make([]any, len(val))
		for i, item := range val {
			result[i] = convertToJSONTypes(item)
		}
		return result
	case int:
		return float64(val)
	case int64:
		return float64(val)
	case uint64:
		return float64(val)
	case float32:
		return float64(val)
	default:
		return val
	}
}
