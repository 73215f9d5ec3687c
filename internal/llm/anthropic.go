package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"gitpilot/internal/domain"
)

const anthropicAPIBase = "https://api.anthropic.com/v1/messages"

// anthropicMaxTokens caps each completion; the API requires a value.
const anthropicMaxTokens = 4096

// AnthropicModel calls the Anthropic Messages API with tool use.
type AnthropicModel struct {
	apiKey      string
	model       string
	client      *http.Client
	version     string
	baseURL     string
	marshalFunc func(v interface{}) ([]byte, error) // for testing
}

// NewAnthropicModel returns an Anthropic-backed ChatModel.
func NewAnthropicModel(apiKey, model string) *AnthropicModel {
	if model == "" {
		model = "claude-3-5-haiku-latest"
	}
	return &AnthropicModel{
		apiKey:      apiKey,
		model:       model,
		client:      &http.Client{},
		version:     "2023-06-01",
		baseURL:     anthropicAPIBase,
		marshalFunc: json.Marshal,
	}
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	System    string             `json:"system,omitempty"`
	Messages  []anthropicMessage `json:"messages"`
	Tools     []anthropicTool    `json:"tools,omitempty"`
}

type anthropicMessage struct {
	Role    string           `json:"role"`
	Content []anthropicBlock `json:"content"`
}

type anthropicBlock struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   string          `json:"content,omitempty"`
	IsError   bool            `json:"is_error,omitempty"`
}

type anthropicTool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

type anthropicResponse struct {
	Content    []anthropicBlock `json:"content"`
	StopReason string           `json:"stop_reason"`
}

// Complete implements domain.ChatModel.
func (p *AnthropicModel) Complete(ctx context.Context, req domain.ChatRequest) (*domain.ModelResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := p.marshalFunc(buildAnthropicRequest(p.model, req))
	if err != nil {
		return nil, fmt.Errorf("anthropic marshal: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL, bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("anthropic request: %w", err)
	}
	httpReq.Header.Set("x-api-key", p.apiKey)
	httpReq.Header.Set("anthropic-version", p.version)
	httpReq.Header.Set("Content-Type", "application/json")
	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("anthropic do: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, apiError("anthropic", resp)
	}
	var out anthropicResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("anthropic decode: %w", err)
	}

	result := &domain.ModelResponse{}
	var text strings.Builder
	for _, block := range out.Content {
		switch block.Type {
		case "text":
			text.WriteString(block.Text)
		case "tool_use":
			result.ToolCalls = append(result.ToolCalls, domain.ToolCall{
				ID:        block.ID,
				Name:      block.Name,
				Arguments: decodeArguments(string(block.Input)),
			})
		}
	}
	result.Text = text.String()
	return result, nil
}

// buildAnthropicRequest maps the conversation onto alternating user and
// assistant messages. Tool results travel as tool_result blocks in a user
// message; consecutive results share one message.
func buildAnthropicRequest(model string, req domain.ChatRequest) anthropicRequest {
	system, turns := splitSystem(req.Turns)
	out := anthropicRequest{Model: model, MaxTokens: anthropicMaxTokens, System: system}

	appendBlocks := func(role string, blocks ...anthropicBlock) {
		if n := len(out.Messages); n > 0 && out.Messages[n-1].Role == role {
			out.Messages[n-1].Content = append(out.Messages[n-1].Content, blocks...)
			return
		}
		out.Messages = append(out.Messages, anthropicMessage{Role: role, Content: blocks})
	}

	for _, t := range turns {
		switch t.Role {
		case domain.RoleUser:
			appendBlocks("user", anthropicBlock{Type: "text", Text: t.Text})
		case domain.RoleModel:
			var blocks []anthropicBlock
			if t.Text != "" {
				blocks = append(blocks, anthropicBlock{Type: "text", Text: t.Text})
			}
			for _, c := range t.ToolCalls {
				blocks = append(blocks, anthropicBlock{Type: "tool_use", ID: c.ID, Name: c.Name, Input: c.ArgumentsJSON()})
			}
			if len(blocks) > 0 {
				appendBlocks("assistant", blocks...)
			}
		case domain.RoleTool:
			if t.Response == nil {
				continue
			}
			appendBlocks("user", anthropicBlock{
				Type:      "tool_result",
				ToolUseID: t.Response.CallID,
				Content:   t.Response.Result.Text(),
				IsError:   t.Response.Result.IsError(),
			})
		}
	}

	for _, def := range req.Tools {
		out.Tools = append(out.Tools, anthropicTool{
			Name:        def.Name,
			Description: def.Description,
			InputSchema: schemaMap(def.InputSchema, "$schema", "$id"),
		})
	}
	return out
}

var _ domain.ChatModel = (*AnthropicModel)(nil)
