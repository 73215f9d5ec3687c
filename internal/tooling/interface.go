package tooling

import (
	"context"
	"encoding/json"

	"gitpilot/internal/domain"
)

// ToolDefinition and ToolResult are re-exported.
type ToolDefinition = domain.ToolDefinition
type ToolResult = domain.ToolResult

// SchemaTool is a tool whose input is described by a JSON Schema generated from
// a Go struct via invopop/jsonschema. The dispatcher passes Definition() to the
// reasoning service and validates returned arguments before calling Call().
type SchemaTool interface {
	// Name returns the unique tool name used in function-calling (e.g. "read_file").
	Name() string
	// Description returns a human-readable description for the model.
	Description() string
	// Definition returns the JSON Schema string for the tool's input struct.
	Definition() string
	// Call executes the tool with already-validated JSON arguments.
	// Failures are returned as errors; the dispatcher turns them into data.
	Call(ctx context.Context, args json.RawMessage) (*domain.ToolResult, error)
}
