package brain

import (
	"context"
	"fmt"
	"log/slog"

	"gitpilot/internal/domain"
	"gitpilot/internal/tooling"
)

// ToolDispatcher connects the brain to SchemaTool implementations.
// It formats tool definitions for the function-calling API and validates
// model-supplied arguments against each tool's schema before execution.
// Execute is total: every failure comes back as an error payload.
type ToolDispatcher struct {
	registry *tooling.ToolRegistry
	logger   *slog.Logger
}

// NewToolDispatcher creates a dispatcher backed by the given registry.
// Panics if registry is nil.
func NewToolDispatcher(registry *tooling.ToolRegistry) *ToolDispatcher {
	if registry == nil {
		panic("tool_dispatcher: registry must not be nil")
	}
	return &ToolDispatcher{registry: registry, logger: slog.Default()}
}

// SetLogger replaces the dispatcher's logger. Nil is ignored.
func (d *ToolDispatcher) SetLogger(l *slog.Logger) {
	if l != nil {
		d.logger = l
	}
}

// FormatToolsForLLM returns the tool catalog in registration order, ready to
// be translated into a provider's function-calling request.
func (d *ToolDispatcher) FormatToolsForLLM() []domain.ToolDefinition {
	return d.registry.Definitions()
}

// Execute runs one tool call. Unknown names, schema violations, tool errors
// and panics all become a ToolResult with Error set; it never fails.
func (d *ToolDispatcher) Execute(ctx context.Context, call domain.ToolCall) (result domain.ToolResult) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("tool panicked", "tool", call.Name, "panic", r)
			result = domain.ToolResult{Error: fmt.Sprintf("tool %s failed: %v", call.Name, r)}
		}
	}()

	tool, err := d.registry.Get(call.Name)
	if err != nil {
		return domain.ToolResult{Error: "Unknown tool: " + call.Name}
	}

	args := call.ArgumentsJSON()
	if err := tooling.ValidateAgainstSchema(args, tool.Definition()); err != nil {
		return domain.ToolResult{Error: fmt.Sprintf("invalid arguments for %s: %v", call.Name, err)}
	}

	res, err := tool.Call(ctx, args)
	if err != nil {
		d.logger.Debug("tool returned error", "tool", call.Name, "error", err)
		return domain.ToolResult{Error: err.Error()}
	}
	if res == nil {
		return domain.ToolResult{}
	}
	return *res
}
