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

const geminiAPIBase = "https://generativelanguage.googleapis.com/v1beta/models"

// DefaultGeminiModel is used when no model is configured.
const DefaultGeminiModel = "gemini-2.0-flash"

// GeminiModel calls the Google Gemini generateContent API with function calling.
type GeminiModel struct {
	apiKey      string
	model       string
	client      *http.Client
	baseURL     string
	marshalFunc func(v interface{}) ([]byte, error) // for testing
}

// NewGeminiModel returns a Gemini-backed ChatModel.
func NewGeminiModel(apiKey, model string) *GeminiModel {
	if model == "" {
		model = DefaultGeminiModel
	}
	return &GeminiModel{
		apiKey:      apiKey,
		model:       model,
		client:      &http.Client{},
		baseURL:     geminiAPIBase,
		marshalFunc: json.Marshal,
	}
}

type geminiRequest struct {
	SystemInstruction *geminiContent  `json:"systemInstruction,omitempty"`
	Contents          []geminiContent `json:"contents"`
	Tools             []geminiTool    `json:"tools,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text             string                  `json:"text,omitempty"`
	FunctionCall     *geminiFunctionCall     `json:"functionCall,omitempty"`
	FunctionResponse *geminiFunctionResponse `json:"functionResponse,omitempty"`
	ThoughtSignature string                  `json:"thoughtSignature,omitempty"`
}

type geminiFunctionCall struct {
	ID   string         `json:"id,omitempty"`
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

type geminiFunctionResponse struct {
	ID       string         `json:"id,omitempty"`
	Name     string         `json:"name"`
	Response map[string]any `json:"response"`
}

type geminiTool struct {
	FunctionDeclarations []geminiFunctionDeclaration `json:"functionDeclarations"`
}

type geminiFunctionDeclaration struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Parameters  any    `json:"parameters,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback,omitempty"`
}

// Complete implements domain.ChatModel.
func (p *GeminiModel) Complete(ctx context.Context, req domain.ChatRequest) (*domain.ModelResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := p.marshalFunc(buildGeminiRequest(req))
	if err != nil {
		return nil, fmt.Errorf("gemini marshal: %w", err)
	}
	url := fmt.Sprintf("%s/%s:generateContent", p.baseURL, p.model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("gemini request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", p.apiKey)
	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("gemini do: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, apiError("gemini", resp)
	}
	var out geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("gemini decode: %w", err)
	}
	if len(out.Candidates) == 0 {
		if out.PromptFeedback != nil && out.PromptFeedback.BlockReason != "" {
			return nil, fmt.Errorf("gemini: prompt blocked: %s", out.PromptFeedback.BlockReason)
		}
		return nil, fmt.Errorf("gemini: no candidates in response")
	}

	result := &domain.ModelResponse{}
	var text strings.Builder
	for _, part := range out.Candidates[0].Content.Parts {
		if part.FunctionCall != nil {
			result.ToolCalls = append(result.ToolCalls, domain.ToolCall{
				ID:        part.FunctionCall.ID,
				Name:      part.FunctionCall.Name,
				Arguments: part.FunctionCall.Args,
				Signature: part.ThoughtSignature,
			})
			continue
		}
		text.WriteString(part.Text)
	}
	result.Text = text.String()
	return result, nil
}

// buildGeminiRequest maps the conversation onto Gemini contents. Consecutive
// tool results are grouped into one user content, as the API expects.
func buildGeminiRequest(req domain.ChatRequest) geminiRequest {
	system, turns := splitSystem(req.Turns)
	out := geminiRequest{}
	if system != "" {
		out.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: system}}}
	}

	for _, t := range turns {
		switch t.Role {
		case domain.RoleUser:
			out.Contents = append(out.Contents, geminiContent{Role: "user", Parts: []geminiPart{{Text: t.Text}}})
		case domain.RoleModel:
			var parts []geminiPart
			if t.Text != "" {
				parts = append(parts, geminiPart{Text: t.Text})
			}
			for _, c := range t.ToolCalls {
				parts = append(parts, geminiPart{
					FunctionCall:     &geminiFunctionCall{Name: c.Name, Args: c.Arguments},
					ThoughtSignature: c.Signature,
				})
			}
			if len(parts) == 0 {
				parts = []geminiPart{{Text: ""}}
			}
			out.Contents = append(out.Contents, geminiContent{Role: "model", Parts: parts})
		case domain.RoleTool:
			if t.Response == nil {
				continue
			}
			part := geminiPart{FunctionResponse: &geminiFunctionResponse{
				Name:     t.Response.Name,
				Response: map[string]any{"result": t.Response.Result.Content()},
			}}
			if n := len(out.Contents); n > 0 && isFunctionResponseContent(out.Contents[n-1]) {
				out.Contents[n-1].Parts = append(out.Contents[n-1].Parts, part)
				continue
			}
			out.Contents = append(out.Contents, geminiContent{Role: "user", Parts: []geminiPart{part}})
		}
	}

	if len(req.Tools) > 0 {
		decls := make([]geminiFunctionDeclaration, 0, len(req.Tools))
		for _, def := range req.Tools {
			decl := geminiFunctionDeclaration{Name: def.Name, Description: def.Description}
			schema := sanitizeSchema(schemaMap(def.InputSchema)).(map[string]any)
			if hasProperties(schema) {
				decl.Parameters = schema
			}
			decls = append(decls, decl)
		}
		out.Tools = []geminiTool{{FunctionDeclarations: decls}}
	}
	return out
}

func isFunctionResponseContent(c geminiContent) bool {
	return c.Role == "user" && len(c.Parts) > 0 && c.Parts[0].FunctionResponse != nil
}

var _ domain.ChatModel = (*GeminiModel)(nil)
