package tooling

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	invopopSchema "github.com/invopop/jsonschema"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// inputReflector turns a tool's input struct into an inline object schema.
// Fields are required unless tagged omitempty; unknown keys are rejected.
var inputReflector = invopopSchema.Reflector{
	AllowAdditionalProperties: false,
	DoNotReference:            true,
}

// encodeSchema is swapped in tests.
var encodeSchema = func(v any) ([]byte, error) {
	return json.MarshalIndent(v, "", "  ")
}

// GenerateSchema describes input as a JSON Schema document. It returns ""
// if the schema cannot be encoded, which every validation then rejects.
func GenerateSchema(input any) string {
	raw, err := encodeSchema(inputReflector.Reflect(input))
	if err != nil {
		return ""
	}
	return string(raw)
}

// compiled holds *jsonschema.Schema values keyed by their source text.
// Tool definitions never change at runtime, so each is compiled once.
var compiled sync.Map

func compileSchema(source string) (*jsonschema.Schema, error) {
	if s, ok := compiled.Load(source); ok {
		return s.(*jsonschema.Schema), nil
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("tool-input.json", strings.NewReader(source)); err != nil {
		return nil, err
	}
	s, err := c.Compile("tool-input.json")
	if err != nil {
		return nil, err
	}
	compiled.Store(source, s)
	return s, nil
}

// ValidateAgainstSchema checks tool arguments against a schema produced by
// GenerateSchema.
func ValidateAgainstSchema(args json.RawMessage, schema string) error {
	s, err := compileSchema(schema)
	if err != nil {
		return fmt.Errorf("invalid schema: %w", err)
	}
	var doc any
	if err := json.Unmarshal(args, &doc); err != nil {
		return fmt.Errorf("invalid JSON input: %w", err)
	}
	if err := s.Validate(doc); err != nil {
		return fmt.Errorf("arguments do not match schema: %w", err)
	}
	return nil
}

// unmarshalFunc is swapped in tests.
var unmarshalFunc = json.Unmarshal

// decodeInput fills v from already validated arguments. Missing arguments
// decode as an empty object.
func decodeInput(args json.RawMessage, v any) error {
	if len(args) == 0 {
		args = json.RawMessage(`{}`)
	}
	if err := unmarshalFunc(args, v); err != nil {
		return fmt.Errorf("failed to parse input: %w", err)
	}
	return nil
}
