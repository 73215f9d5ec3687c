package llm

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"gitpilot/internal/domain"
)

// capturedRequest is what a fake server saw.
type capturedRequest struct {
	Path   string
	Header http.Header
	Body   map[string]any
}

// newFakeServer replies with status and body and records the request.
func newFakeServer(t *testing.T, status int, body string) (*httptest.Server, *capturedRequest) {
	t.Helper()
	captured := &capturedRequest{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.Path = r.URL.Path
		captured.Header = r.Header.Clone()
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &captured.Body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server, captured
}

// sampleRequest is a conversation that has gone through one tool round trip.
func sampleRequest() domain.ChatRequest {
	return domain.ChatRequest{
		Turns: []domain.Turn{
			{Role: domain.RoleSystem, Text: "You are gitpilot."},
			{Role: domain.RoleUser, Text: "show status"},
			{Role: domain.RoleModel, ToolCalls: []domain.ToolCall{
				{ID: "call-1", Name: "run_git_command", Arguments: map[string]any{"command": "status"}},
				{ID: "call-2", Name: "get_current_directory"},
			}},
			{Role: domain.RoleTool, Response: &domain.ToolResponse{CallID: "call-1", Name: "run_git_command", Result: domain.ToolResult{Data: "clean"}}},
			{Role: domain.RoleTool, Response: &domain.ToolResponse{CallID: "call-2", Name: "get_current_directory", Result: domain.ToolResult{Error: "boom"}}},
		},
		Tools: []domain.ToolDefinition{
			{
				Name:        "run_git_command",
				Description: "Runs git",
				InputSchema: json.RawMessage(`{"$schema":"https://json-schema.org/draft/2020-12/schema","type":"object","properties":{"command":{"type":"string"}},"additionalProperties":false,"required":["command"]}`),
			},
			{
				Name:        "get_current_directory",
				Description: "Returns cwd",
				InputSchema: json.RawMessage(`{"$schema":"https://json-schema.org/draft/2020-12/schema","type":"object","properties":{},"additionalProperties":false}`),
			},
		},
	}
}

// path walks nested maps and slices in decoded JSON.
func path(v any, keys ...any) any {
	for _, k := range keys {
		switch key := k.(type) {
		case string:
			m, ok := v.(map[string]any)
			if !ok {
				return nil
			}
			v = m[key]
		case int:
			s, ok := v.([]any)
			if !ok || key >= len(s) {
				return nil
			}
			v = s[key]
		}
	}
	return v
}
