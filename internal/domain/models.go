package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// =============================================================================
// Core Configuration
// =============================================================================

type Config struct {
	Agent      AgentConfig `json:"agent" yaml:"agent" toml:"agent"`
	Infra      InfraConfig `json:"infra" yaml:"infra" toml:"infra"`
	Retry      RetryConfig `json:"retry" yaml:"retry" toml:"retry"`
	Transcript string      `json:"transcript,omitempty" yaml:"transcript,omitempty" toml:"transcript,omitempty"` // JSONL audit trail path; empty disables
}

// RetryConfig controls retry behaviour for reasoning-service calls.
type RetryConfig struct {
	MaxRetries     int `json:"maxRetries" yaml:"maxRetries" toml:"maxRetries"`             // Maximum retry attempts (0 = no retries)
	InitialBackoff int `json:"initialBackoff" yaml:"initialBackoff" toml:"initialBackoff"` // Initial backoff in milliseconds
	MaxBackoff     int `json:"maxBackoff" yaml:"maxBackoff" toml:"maxBackoff"`             // Maximum backoff in milliseconds
	Multiplier     int `json:"multiplier" yaml:"multiplier" toml:"multiplier"`             // Backoff multiplier (e.g. 2 for exponential doubling)
}

type AgentConfig struct {
	Provider  string           `json:"provider" yaml:"provider" toml:"provider"` // "gemini" | "openai" | "anthropic" | "openrouter" | "ollama"
	Model     string           `json:"model" yaml:"model" toml:"model"`
	MaxTurns  int              `json:"maxTurns" yaml:"maxTurns" toml:"maxTurns"` // 0 = unbounded
	DryRun    bool             `json:"dryRun" yaml:"dryRun" toml:"dryRun"`
	Fallbacks []FallbackConfig `json:"fallbacks,omitempty" yaml:"fallbacks,omitempty" toml:"fallbacks,omitempty"`
}

// FallbackConfig describes an alternative reasoning service tried when the primary fails.
type FallbackConfig struct {
	Provider string `json:"provider" yaml:"provider" toml:"provider"`
	Model    string `json:"model" yaml:"model" toml:"model"`
}

type InfraConfig struct {
	LogFormat string `json:"logFormat" yaml:"logFormat" toml:"logFormat"` // "json" | "text"
	LogLevel  string `json:"logLevel" yaml:"logLevel" toml:"logLevel"`
	LogFile   string `json:"logFile,omitempty" yaml:"logFile,omitempty" toml:"logFile,omitempty"`
}

// =============================================================================
// Conversation Protocol
// =============================================================================

type TurnRole string

const (
	RoleSystem TurnRole = "system"
	RoleUser   TurnRole = "user"
	RoleModel  TurnRole = "model"
	RoleTool   TurnRole = "tool"
)

// Turn is one entry of a conversation: a system or user message, a model
// response (text and/or tool calls), or the result of one tool call.
type Turn struct {
	ID        string        `json:"id"`
	Role      TurnRole      `json:"role"`
	Text      string        `json:"text,omitempty"`
	ToolCalls []ToolCall    `json:"toolCalls,omitempty"`
	Response  *ToolResponse `json:"response,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

// ToolCall is a tool invocation requested by the reasoning service.
type ToolCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
	// Signature is an opaque provider token (Gemini thoughtSignature) that
	// must be sent back unchanged with the call on later turns.
	Signature string `json:"signature,omitempty"`
}

// ArgumentsJSON encodes the arguments for schema validation and display.
// A nil map encodes as an empty object.
func (c ToolCall) ArgumentsJSON() json.RawMessage {
	if len(c.Arguments) == 0 {
		return json.RawMessage(`{}`)
	}
	data, err := json.Marshal(c.Arguments)
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return data
}

// ToolResponse pairs a tool result with the call that produced it.
type ToolResponse struct {
	CallID string     `json:"callId"`
	Name   string     `json:"name"`
	Result ToolResult `json:"result"`
}

// =============================================================================
// Tooling
// =============================================================================

type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"input_schema"`
}

// ToolResult is either a success payload (Data: a string, []string or map) or
// an error payload (Error non-empty). Tools never hand raw Go errors to the
// reasoning service; the dispatcher converts them into Error.
type ToolResult struct {
	Data     any               `json:"data,omitempty"`
	Error    string            `json:"error,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// IsError reports whether the result carries an error payload.
func (r ToolResult) IsError() bool { return r.Error != "" }

// Content is the value handed back to the reasoning service.
func (r ToolResult) Content() any {
	if r.IsError() {
		return map[string]string{"error": r.Error}
	}
	return r.Data
}

// Text renders Content as a string: strings pass through, everything else is JSON.
func (r ToolResult) Text() string {
	c := r.Content()
	if s, ok := c.(string); ok {
		return s
	}
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Sprintf("%v", c)
	}
	return string(data)
}

// =============================================================================
// Reasoning Service Exchange
// =============================================================================

// ChatRequest is what the loop hands to the reasoning service each turn.
type ChatRequest struct {
	Turns []Turn
	Tools []ToolDefinition
}

// ModelResponse is either terminal text (no ToolCalls) or one or more tool
// calls to be executed in order.
type ModelResponse struct {
	Text      string
	ToolCalls []ToolCall
}
