package session

import "gitpilot/internal/domain"

// Conversation is the ordered, append-only turn history of one agent run.
// It is owned by a single run and discarded when the run ends.
type Conversation struct {
	turns []domain.Turn
}

// NewConversation returns an empty conversation.
func NewConversation() *Conversation {
	return &Conversation{}
}

// Append adds turns to the end of the conversation.
func (c *Conversation) Append(turns ...domain.Turn) {
	c.turns = append(c.turns, turns...)
}

// Turns returns a copy of the history so callers cannot rewrite it.
func (c *Conversation) Turns() []domain.Turn {
	out := make([]domain.Turn, len(c.turns))
	copy(out, c.turns)
	return out
}

// Len returns the number of turns.
func (c *Conversation) Len() int { return len(c.turns) }

// Last returns the most recent turn, or false when the conversation is empty.
func (c *Conversation) Last() (domain.Turn, bool) {
	if len(c.turns) == 0 {
		return domain.Turn{}, false
	}
	return c.turns[len(c.turns)-1], true
}
