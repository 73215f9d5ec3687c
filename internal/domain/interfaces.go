package domain

import "context"

// ChatModel is the reasoning service: given the conversation so far and the
// tool catalog, it returns either tool calls or terminal text.
// Implementations may be Gemini, OpenAI, Anthropic, Ollama, or test stubs.
type ChatModel interface {
	Complete(ctx context.Context, req ChatRequest) (*ModelResponse, error)
}

// Tokenizer counts tokens in a string for conversation size reporting.
type Tokenizer interface {
	// CountTokens returns the number of tokens in the given text.
	CountTokens(text string) (int, error)
}

// TranscriptStore records conversation turns for audit. It is write-only:
// nothing recorded is ever loaded back into a run.
type TranscriptStore interface {
	// Append serializes a Turn and appends it as a single line.
	Append(turn Turn) error
}
