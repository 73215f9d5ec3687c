package llm

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"gitpilot/internal/domain"
)

// maxErrorBody bounds how much of a failed response body is echoed into errors.
const maxErrorBody = 512

// APIError is a non-2xx response from a reasoning service.
type APIError struct {
	Provider string
	Status   string
	Code     int
	Body     string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s api: %s", e.Provider, e.Status)
	}
	return fmt.Sprintf("%s api: %s: %s", e.Provider, e.Status, e.Body)
}

// StatusCode lets retry.IsRetryable classify the failure.
func (e *APIError) StatusCode() int { return e.Code }

// apiError reads a bounded prefix of a failed response body into an APIError.
func apiError(provider string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &APIError{
		Provider: provider,
		Status:   resp.Status,
		Code:     resp.StatusCode,
		Body:     strings.TrimSpace(string(body)),
	}
}

// schemaMap decodes a tool input schema into a generic map. Top-level keys
// listed in drop are removed. Invalid or empty schemas yield an empty object.
func schemaMap(raw json.RawMessage, drop ...string) map[string]any {
	out := map[string]any{}
	if len(raw) == 0 {
		return map[string]any{"type": "object", "properties": map[string]any{}}
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return map[string]any{"type": "object", "properties": map[string]any{}}
	}
	for _, k := range drop {
		delete(out, k)
	}
	return out
}

// sanitizeSchema strips keywords the Gemini OpenAPI subset rejects, at every
// nesting level.
func sanitizeSchema(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			switch k {
			case "$schema", "$id", "additionalProperties":
				continue
			}
			out[k] = sanitizeSchema(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = sanitizeSchema(val)
		}
		return out
	default:
		return v
	}
}

// hasProperties reports whether an object schema declares at least one property.
func hasProperties(schema map[string]any) bool {
	props, ok := schema["properties"].(map[string]any)
	return ok && len(props) > 0
}

// splitSystem separates system turns (joined) from the rest of the conversation.
func splitSystem(turns []domain.Turn) (string, []domain.Turn) {
	var system []string
	rest := make([]domain.Turn, 0, len(turns))
	for _, t := range turns {
		if t.Role == domain.RoleSystem {
			system = append(system, t.Text)
			continue
		}
		rest = append(rest, t)
	}
	return strings.Join(system, "\n\n"), rest
}

// decodeArguments parses a JSON-encoded argument string. Malformed JSON yields
// nil arguments; the dispatcher then reports the missing fields to the model.
func decodeArguments(raw string) map[string]any {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil
	}
	return args
}
