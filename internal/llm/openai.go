package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"gitpilot/internal/domain"
)

const (
	openAIAPIBase     = "https://api.openai.com/v1/chat/completions"
	openRouterAPIBase = "https://openrouter.ai/api/v1/chat/completions"
)

// OpenAIModel calls an OpenAI-compatible Chat Completions API with tools.
// OpenRouter speaks the same protocol and reuses this type.
type OpenAIModel struct {
	name        string // provider name used in errors
	apiKey      string
	model       string
	client      *http.Client
	baseURL     string
	headers     map[string]string
	marshalFunc func(v interface{}) ([]byte, error) // for testing
}

// NewOpenAIModel returns an OpenAI-backed ChatModel.
func NewOpenAIModel(apiKey, model string) *OpenAIModel {
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &OpenAIModel{
		name:        "openai",
		apiKey:      apiKey,
		model:       model,
		client:      &http.Client{},
		baseURL:     openAIAPIBase,
		marshalFunc: json.Marshal,
	}
}

// NewOpenRouterModel returns an OpenRouter-backed ChatModel.
func NewOpenRouterModel(apiKey, model string) *OpenAIModel {
	m := NewOpenAIModel(apiKey, model)
	m.name = "openrouter"
	m.baseURL = openRouterAPIBase
	m.headers = map[string]string{"X-Title": "gitpilot"}
	return m
}

type openAIRequest struct {
	Model    string          `json:"model"`
	Messages []openAIMessage `json:"messages"`
	Tools    []openAITool    `json:"tools,omitempty"`
}

type openAIMessage struct {
	Role       string           `json:"role"`
	Content    *string          `json:"content"`
	ToolCalls  []openAIToolCall `json:"tool_calls,omitempty"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
}

type openAIToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type openAITool struct {
	Type     string         `json:"type"`
	Function openAIFunction `json:"function"`
}

type openAIFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

type openAIResponse struct {
	Choices []struct {
		Message      openAIMessage `json:"message"`
		FinishReason string        `json:"finish_reason"`
	} `json:"choices"`
}

// Complete implements domain.ChatModel.
func (p *OpenAIModel) Complete(ctx context.Context, req domain.ChatRequest) (*domain.ModelResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := p.marshalFunc(buildOpenAIRequest(p.model, req))
	if err != nil {
		return nil, fmt.Errorf("%s marshal: %w", p.name, err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL, bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%s request: %w", p.name, err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	for k, v := range p.headers {
		httpReq.Header.Set(k, v)
	}
	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%s do: %w", p.name, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, apiError(p.name, resp)
	}
	var out openAIResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%s decode: %w", p.name, err)
	}
	if len(out.Choices) == 0 {
		return nil, fmt.Errorf("%s: no choices in response", p.name)
	}

	msg := out.Choices[0].Message
	result := &domain.ModelResponse{}
	if msg.Content != nil {
		result.Text = *msg.Content
	}
	for _, tc := range msg.ToolCalls {
		result.ToolCalls = append(result.ToolCalls, domain.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: decodeArguments(tc.Function.Arguments),
		})
	}
	return result, nil
}

func buildOpenAIRequest(model string, req domain.ChatRequest) openAIRequest {
	out := openAIRequest{Model: model}
	for _, t := range req.Turns {
		switch t.Role {
		case domain.RoleSystem, domain.RoleUser:
			text := t.Text
			out.Messages = append(out.Messages, openAIMessage{Role: string(t.Role), Content: &text})
		case domain.RoleModel:
			msg := openAIMessage{Role: "assistant"}
			if t.Text != "" || len(t.ToolCalls) == 0 {
				text := t.Text
				msg.Content = &text
			}
			for _, c := range t.ToolCalls {
				var tc openAIToolCall
				tc.ID = c.ID
				tc.Type = "function"
				tc.Function.Name = c.Name
				tc.Function.Arguments = string(c.ArgumentsJSON())
				msg.ToolCalls = append(msg.ToolCalls, tc)
			}
			out.Messages = append(out.Messages, msg)
		case domain.RoleTool:
			if t.Response == nil {
				continue
			}
			content := t.Response.Result.Text()
			out.Messages = append(out.Messages, openAIMessage{
				Role:       "tool",
				Content:    &content,
				ToolCallID: t.Response.CallID,
			})
		}
	}
	for _, def := range req.Tools {
		out.Tools = append(out.Tools, openAITool{
			Type: "function",
			Function: openAIFunction{
				Name:        def.Name,
				Description: def.Description,
				Parameters:  schemaMap(def.InputSchema, "$schema", "$id"),
			},
		})
	}
	return out
}

var _ domain.ChatModel = (*OpenAIModel)(nil)
