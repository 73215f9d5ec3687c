package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"gitpilot/internal/domain"
)

// JSONMarshaller interface for testing
type JSONMarshaller interface {
	Marshal(v interface{}) ([]byte, error)
}

// defaultMarshaller uses json.Marshal
type defaultMarshaller struct{}

func (m *defaultMarshaller) Marshal(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

// OllamaModel calls a local Ollama server's /api/chat endpoint with tools.
type OllamaModel struct {
	model      string
	client     *http.Client
	baseURL    string
	marshaller JSONMarshaller
}

// NewOllamaModel returns an Ollama-backed ChatModel. An empty baseURL uses
// the default local server.
func NewOllamaModel(model, baseURL string) *OllamaModel {
	if model == "" {
		model = "llama3.1"
	}
	if baseURL == "" {
		baseURL = "http://localhost:11434/api"
	}
	return &OllamaModel{
		model:      model,
		client:     &http.Client{},
		baseURL:    baseURL,
		marshaller: &defaultMarshaller{},
	}
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Tools    []openAITool    `json:"tools,omitempty"`
	Stream   bool            `json:"stream"`
}

type ollamaMessage struct {
	Role      string           `json:"role"`
	Content   string           `json:"content"`
	ToolCalls []ollamaToolCall `json:"tool_calls,omitempty"`
	ToolName  string           `json:"tool_name,omitempty"`
}

type ollamaToolCall struct {
	Function struct {
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments"`
	} `json:"function"`
}

type ollamaChatResponse struct {
	Message *ollamaMessage `json:"message"`
	Done    bool           `json:"done"`
}

// Complete implements domain.ChatModel.
func (p *OllamaModel) Complete(ctx context.Context, req domain.ChatRequest) (*domain.ModelResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := p.marshaller.Marshal(buildOllamaRequest(p.model, req))
	if err != nil {
		return nil, fmt.Errorf("ollama marshal: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat", bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("ollama request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("ollama do: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, apiError("ollama", resp)
	}
	var out ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("ollama decode: %w", err)
	}
	if out.Message == nil {
		return nil, fmt.Errorf("ollama: response missing message")
	}

	result := &domain.ModelResponse{Text: out.Message.Content}
	for _, tc := range out.Message.ToolCalls {
		result.ToolCalls = append(result.ToolCalls, domain.ToolCall{
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return result, nil
}

func buildOllamaRequest(model string, req domain.ChatRequest) ollamaChatRequest {
	out := ollamaChatRequest{Model: model}
	for _, t := range req.Turns {
		switch t.Role {
		case domain.RoleSystem, domain.RoleUser:
			out.Messages = append(out.Messages, ollamaMessage{Role: string(t.Role), Content: t.Text})
		case domain.RoleModel:
			msg := ollamaMessage{Role: "assistant", Content: t.Text}
			for _, c := range t.ToolCalls {
				var tc ollamaToolCall
				tc.Function.Name = c.Name
				tc.Function.Arguments = c.Arguments
				if tc.Function.Arguments == nil {
					tc.Function.Arguments = map[string]any{}
				}
				msg.ToolCalls = append(msg.ToolCalls, tc)
			}
			out.Messages = append(out.Messages, msg)
		case domain.RoleTool:
			if t.Response == nil {
				continue
			}
			out.Messages = append(out.Messages, ollamaMessage{
				Role:     "tool",
				Content:  t.Response.Result.Text(),
				ToolName: t.Response.Name,
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

var _ domain.ChatModel = (*OllamaModel)(nil)
