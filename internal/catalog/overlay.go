package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// overlaySchema validates user-supplied pattern overlay files before any
// pattern reaches the catalog. Invalid overlays fail at startup, never
// mid-capture.
const overlaySchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["patterns"],
  "additionalProperties": false,
  "properties": {
    "patterns": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["name", "selector", "strategy", "tier"],
        "additionalProperties": false,
        "properties": {
          "name": {"type": "string", "minLength": 1},
          "selector": {"type": "string", "minLength": 1},
          "strategy": {
            "type": "string",
            "enum": [
              "class-name",
              "attribute-substring",
              "computed-style-predicate",
              "library-signature"
            ]
          },
          "tier": {"type": "integer", "minimum": 1, "maximum": 5},
          "hints": {
            "type": "object",
            "additionalProperties": false,
            "properties": {
              "branding": {"type": "boolean"},
              "chart_concept": {"type": "boolean"},
              "container_concept": {"type": "boolean"},
              "library_wrapper": {"type": "boolean"},
              "vector_primitive": {"type": "boolean"},
              "canvas_primitive": {"type": "boolean"}
            }
          }
        }
      }
    }
  }
}`

type overlayFile struct {
	Patterns []Pattern `json:"patterns"`
}

// LoadOverlay reads a JSON pattern overlay from path, validates it
// against the overlay schema, and appends its patterns to the catalog.
func (c *Catalog) LoadOverlay(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read pattern overlay: %w", err)
	}
	return c.loadOverlayBytes(path, data)
}

func (c *Catalog) loadOverlayBytes(name string, data []byte) error {
	schema, err := jsonschema.CompileString("overlay.schema.json", overlaySchema)
	if err != nil {
		return fmt.Errorf("failed to compile overlay schema: %w", err)
	}

	var raw any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return fmt.Errorf("overlay %s is not valid JSON: %w", name, err)
	}
	if err := schema.Validate(raw); err != nil {
		return fmt.Errorf("overlay %s failed schema validation: %w", name, err)
	}

	var of overlayFile
	if err := json.Unmarshal(data, &of); err != nil {
		return fmt.Errorf("failed to parse overlay %s: %w", name, err)
	}
	for _, p := range of.Patterns {
		if err := c.Add(p); err != nil {
			return fmt.Errorf("overlay %s: %w", name, err)
		}
	}
	return nil
}
