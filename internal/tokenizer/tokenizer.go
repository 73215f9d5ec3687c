package tokenizer

import (
	"fmt"
	"strings"

	tiktoken "github.com/pkoukk/tiktoken-go"

	"gitpilot/internal/domain"
)

// DefaultEncoding is used when no encoding is configured.
const DefaultEncoding = "cl100k_base"

// getEncoding is swapped in tests; the real loader may download the BPE ranks.
var getEncoding = tiktoken.GetEncoding

// TikToken wraps tiktoken-go to implement domain.Tokenizer.
type TikToken struct {
	encoding *tiktoken.Tiktoken
}

// NewTikToken creates a new TikToken tokenizer with the given encoding name.
// Common encodings: "cl100k_base" (GPT-4/3.5), "o200k_base" (GPT-4o).
// Returns an error if the encoding is not recognized.
func NewTikToken(encodingName string) (*TikToken, error) {
	if encodingName == "" {
		encodingName = DefaultEncoding
	}
	enc, err := getEncoding(encodingName)
	if err != nil {
		return nil, fmt.Errorf("tokenizer: load encoding %q: %w", encodingName, err)
	}
	return &TikToken{encoding: enc}, nil
}

// CountTokens returns the number of tokens in the given text.
func (t *TikToken) CountTokens(text string) (int, error) {
	if text == "" {
		return 0, nil
	}
	tokens := t.encoding.Encode(text, nil, nil)
	return len(tokens), nil
}

// CountTurns estimates the size of a conversation: every turn's text, tool
// call names and arguments, and tool result payloads. The figure is an
// approximation since providers add their own framing.
func CountTurns(tok domain.Tokenizer, turns []domain.Turn) (int, error) {
	total := 0
	for _, turn := range turns {
		n, err := tok.CountTokens(turnText(turn))
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}

func turnText(turn domain.Turn) string {
	var sb strings.Builder
	sb.WriteString(turn.Text)
	for _, c := range turn.ToolCalls {
		sb.WriteString(c.Name)
		sb.Write(c.ArgumentsJSON())
	}
	if turn.Response != nil {
		sb.WriteString(turn.Response.Result.Text())
	}
	return sb.String()
}

var _ domain.Tokenizer = (*TikToken)(nil)
