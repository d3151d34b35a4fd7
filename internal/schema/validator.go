// Package schema validates JSON payloads against study-defined schemas and
// generates data schemas from tag field definitions.
package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// FieldError describes one validation failure tied to a payload location.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Result is the outcome of validating a payload against a schema.
type Result struct {
	Valid  bool         `json:"valid"`
	Errors []FieldError `json:"errors,omitempty"`
}

// Validator checks a JSON payload against a JSON schema. Implementations are
// injected into the ingestion pipeline and the assignment engine rather than
// reached through shared state.
type Validator interface {
	Validate(payload, schemaDoc json.RawMessage) (*Result, error)
}

// JSONSchemaValidator is the default Validator, backed by a JSON Schema
// compiler. Compiled schemas are cached by document text.
type JSONSchemaValidator struct {
	mu       sync.Mutex
	compiled map[string]*jsonschema.Schema
}

// NewValidator returns a ready-to-use JSONSchemaValidator.
func NewValidator() *JSONSchemaValidator {
	return &JSONSchemaValidator{compiled: make(map[string]*jsonschema.Schema)}
}

// Validate checks payload against schemaDoc. Schema compilation failures and
// malformed payload JSON are returned as errors; payloads that merely violate
// the schema produce a Result with Valid=false and per-field errors.
func (v *JSONSchemaValidator) Validate(payload, schemaDoc json.RawMessage) (*Result, error) {
	compiled, err := v.compile(schemaDoc)
	if err != nil {
		return nil, err
	}

	decoder := json.NewDecoder(bytes.NewReader(payload))
	decoder.UseNumber()
	var value any
	if err := decoder.Decode(&value); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}

	if err := compiled.Validate(value); err != nil {
		var ve *jsonschema.ValidationError
		if errors.As(err, &ve) {
			return &Result{Valid: false, Errors: flattenErrors(ve)}, nil
		}
		return nil, fmt.Errorf("validate payload: %w", err)
	}
	return &Result{Valid: true}, nil
}

func (v *JSONSchemaValidator) compile(schemaDoc json.RawMessage) (*jsonschema.Schema, error) {
	key := string(schemaDoc)

	v.mu.Lock()
	defer v.mu.Unlock()
	if compiled, ok := v.compiled[key]; ok {
		return compiled, nil
	}

	compiled, err := jsonschema.CompileString("schema.json", key)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	v.compiled[key] = compiled
	return compiled, nil
}

// flattenErrors walks the validation error tree and keeps the leaves, which
// carry the most specific instance locations.
func flattenErrors(ve *jsonschema.ValidationError) []FieldError {
	if len(ve.Causes) == 0 {
		return []FieldError{{Field: instanceField(ve.InstanceLocation), Message: ve.Message}}
	}
	var out []FieldError
	for _, cause := range ve.Causes {
		out = append(out, flattenErrors(cause)...)
	}
	return out
}

func instanceField(location string) string {
	if location == "" || location == "/" {
		return "(root)"
	}
	return location
}
