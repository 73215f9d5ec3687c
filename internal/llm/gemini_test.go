package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"gitpilot/internal/domain"
)

func newTestGemini(t *testing.T, status int, body string) (*GeminiModel, *capturedRequest) {
	server, captured := newFakeServer(t, status, body)
	p := NewGeminiModel("test-key", "gemini-test")
	p.baseURL = server.URL
	p.client = server.Client()
	return p, captured
}

func TestNewGeminiModel_WhenModelEmpty_ShouldUseDefault(t *testing.T) {
	p := NewGeminiModel("key", "")
	if p.model != DefaultGeminiModel {
		t.Errorf("expected default model, got %q", p.model)
	}
}

func TestGeminiModel_Complete_ShouldSendFunctionCallingRequest(t *testing.T) {
	p, captured := newTestGemini(t, 200, `{"candidates":[{"content":{"role":"model","parts":[{"text":"done"}]}}]}`)

	if _, err := p.Complete(context.Background(), sampleRequest()); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if captured.Path != "/gemini-test:generateContent" {
		t.Errorf("unexpected path %q", captured.Path)
	}
	if captured.Header.Get("x-goog-api-key") != "test-key" {
		t.Error("expected API key header")
	}
	body := captured.Body
	if path(body, "systemInstruction", "parts", 0, "text") != "You are gitpilot." {
		t.Errorf("unexpected system instruction %v", body["systemInstruction"])
	}
	contents := body["contents"].([]any)
	if len(contents) != 3 {
		t.Fatalf("expected user, model and grouped function responses, got %d contents", len(contents))
	}
	if path(contents, 1, "role") != "model" || path(contents, 1, "parts", 0, "functionCall", "name") != "run_git_command" {
		t.Errorf("unexpected model content %v", contents[1])
	}
	if path(contents, 1, "parts", 0, "functionCall", "args", "command") != "status" {
		t.Errorf("expected call args, got %v", contents[1])
	}
	if path(contents, 2, "role") != "user" || len(path(contents, 2, "parts").([]any)) != 2 {
		t.Errorf("expected both responses grouped in one user content, got %v", contents[2])
	}
	if path(contents, 2, "parts", 0, "functionResponse", "response", "result") != "clean" {
		t.Errorf("unexpected function response %v", contents[2])
	}
	if path(contents, 2, "parts", 1, "functionResponse", "response", "result", "error") != "boom" {
		t.Errorf("expected error payload in function response, got %v", contents[2])
	}

	decl0 := path(body, "tools", 0, "functionDeclarations", 0).(map[string]any)
	params := decl0["parameters"].(map[string]any)
	if _, ok := params["$schema"]; ok {
		t.Error("expected $schema stripped")
	}
	if _, ok := params["additionalProperties"]; ok {
		t.Error("expected additionalProperties stripped")
	}
	decl1 := path(body, "tools", 0, "functionDeclarations", 1).(map[string]any)
	if _, ok := decl1["parameters"]; ok {
		t.Error("expected parameters omitted for a tool without properties")
	}
}

func TestGeminiModel_Complete_WhenFunctionCall_ShouldReturnToolCalls(t *testing.T) {
	p, _ := newTestGemini(t, 200, `{"candidates":[{"content":{"role":"model","parts":[
		{"text":"Let me look."},
		{"functionCall":{"name":"list_files","args":{"path":"."}}}
	]}}]}`)

	resp, err := p.Complete(context.Background(), domain.ChatRequest{})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Text != "Let me look." {
		t.Errorf("unexpected text %q", resp.Text)
	}
	if len(resp.ToolCalls) != 1 || resp.ToolCalls[0].Name != "list_files" || resp.ToolCalls[0].Arguments["path"] != "." {
		t.Errorf("unexpected tool calls %+v", resp.ToolCalls)
	}
}

func TestGeminiModel_Complete_ShouldEchoThoughtSignatureOnLaterTurns(t *testing.T) {
	first, _ := newTestGemini(t, 200, `{"candidates":[{"content":{"role":"model","parts":[
		{"functionCall":{"name":"list_files","args":{"path":"."}},"thoughtSignature":"c2lnLTE="}]}}]}`)
	resp, err := first.Complete(context.Background(), domain.ChatRequest{Turns: []domain.Turn{{Role: domain.RoleUser, Text: "ls"}}})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if len(resp.ToolCalls) != 1 || resp.ToolCalls[0].Signature != "c2lnLTE=" {
		t.Fatalf("expected signature captured, got %+v", resp.ToolCalls)
	}

	second, captured := newTestGemini(t, 200, `{"candidates":[{"content":{"role":"model","parts":[{"text":"ok"}]}}]}`)
	req := domain.ChatRequest{Turns: []domain.Turn{
		{Role: domain.RoleUser, Text: "ls"},
		{Role: domain.RoleModel, ToolCalls: resp.ToolCalls},
		{Role: domain.RoleTool, Response: &domain.ToolResponse{Name: "list_files", Result: domain.ToolResult{Data: []string{"a.txt"}}}},
	}}
	if _, err := second.Complete(context.Background(), req); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got := path(captured.Body, "contents", 1, "parts", 0, "thoughtSignature"); got != "c2lnLTE=" {
		t.Errorf("expected signature echoed on the functionCall part, got %v", got)
	}
}

func TestGeminiModel_Complete_WhenNoSignature_ShouldOmitField(t *testing.T) {
	p, captured := newTestGemini(t, 200, `{"candidates":[{"content":{"role":"model","parts":[{"text":"done"}]}}]}`)
	if _, err := p.Complete(context.Background(), sampleRequest()); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	part := path(captured.Body, "contents", 1, "parts", 0).(map[string]any)
	if _, ok := part["thoughtSignature"]; ok {
		t.Errorf("expected no thoughtSignature key, got %v", part)
	}
}

func TestGeminiModel_Complete_WhenAPIError_ShouldReturnAPIError(t *testing.T) {
	p, _ := newTestGemini(t, 429, `{"error":{"message":"quota"}}`)

	_, err := p.Complete(context.Background(), domain.ChatRequest{})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode() != http.StatusTooManyRequests || !strings.Contains(apiErr.Body, "quota") {
		t.Errorf("unexpected api error %+v", apiErr)
	}
}

func TestGeminiModel_Complete_WhenNoCandidates_ShouldReturnError(t *testing.T) {
	p, _ := newTestGemini(t, 200, `{"candidates":[]}`)
	if _, err := p.Complete(context.Background(), domain.ChatRequest{}); err == nil {
		t.Fatal("expected error for empty candidates")
	}
}

func TestGeminiModel_Complete_WhenPromptBlocked_ShouldNameReason(t *testing.T) {
	p, _ := newTestGemini(t, 200, `{"candidates":[],"promptFeedback":{"blockReason":"SAFETY"}}`)
	_, err := p.Complete(context.Background(), domain.ChatRequest{})
	if err == nil || !strings.Contains(err.Error(), "SAFETY") {
		t.Fatalf("expected block reason, got %v", err)
	}
}

func TestGeminiModel_Complete_WhenInvalidJSON_ShouldReturnError(t *testing.T) {
	p, _ := newTestGemini(t, 200, `not json`)
	_, err := p.Complete(context.Background(), domain.ChatRequest{})
	if err == nil || !strings.Contains(err.Error(), "gemini decode") {
		t.Fatalf("expected decode error, got %v", err)
	}
}

func TestGeminiModel_Complete_WhenContextCanceled_ShouldReturnError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewGeminiModel("key", "m").Complete(ctx, domain.ChatRequest{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestGeminiModel_Complete_WhenMarshalFails_ShouldReturnError(t *testing.T) {
	p := NewGeminiModel("key", "m")
	p.marshalFunc = func(v interface{}) ([]byte, error) { return nil, fmt.Errorf("marshal error") }
	_, err := p.Complete(context.Background(), domain.ChatRequest{})
	if err == nil || !strings.Contains(err.Error(), "gemini marshal") {
		t.Fatalf("expected marshal error, got %v", err)
	}
}

func TestGeminiModel_Complete_WhenInvalidURL_ShouldReturnError(t *testing.T) {
	p := NewGeminiModel("key", "m")
	p.baseURL = "://bad-url"
	_, err := p.Complete(context.Background(), domain.ChatRequest{})
	if err == nil || !strings.Contains(err.Error(), "gemini request") {
		t.Fatalf("expected request error, got %v", err)
	}
}

func TestGeminiModel_Complete_WhenServerUnreachable_ShouldReturnError(t *testing.T) {
	p := NewGeminiModel("key", "m")
	p.baseURL = "http://127.0.0.1:1"
	_, err := p.Complete(context.Background(), domain.ChatRequest{})
	if err == nil || !strings.Contains(err.Error(), "gemini do") {
		t.Fatalf("expected transport error, got %v", err)
	}
}
