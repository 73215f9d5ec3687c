package session

import (
	"testing"

	"gitpilot/internal/domain"
)

func TestConversation_Append_ShouldKeepOrder(t *testing.T) {
	c := NewConversation()
	c.Append(domain.Turn{ID: "1", Role: domain.RoleSystem})
	c.Append(domain.Turn{ID: "2", Role: domain.RoleUser}, domain.Turn{ID: "3", Role: domain.RoleModel})

	if c.Len() != 3 {
		t.Fatalf("expected 3 turns, got %d", c.Len())
	}
	for i, want := range []string{"1", "2", "3"} {
		if got := c.Turns()[i].ID; got != want {
			t.Errorf("turn %d: expected %s, got %s", i, want, got)
		}
	}
}

func TestConversation_Turns_ShouldReturnCopy(t *testing.T) {
	c := NewConversation()
	c.Append(domain.Turn{ID: "original"})

	turns := c.Turns()
	turns[0].ID = "mutated"

	if c.Turns()[0].ID != "original" {
		t.Error("expected history to be unaffected by caller mutation")
	}
}

func TestConversation_Last(t *testing.T) {
	c := NewConversation()
	if _, ok := c.Last(); ok {
		t.Error("expected no last turn on empty conversation")
	}
	c.Append(domain.Turn{ID: "a"}, domain.Turn{ID: "b"})
	last, ok := c.Last()
	if !ok || last.ID != "b" {
		t.Errorf("expected last turn b, got %+v (%v)", last, ok)
	}
}
