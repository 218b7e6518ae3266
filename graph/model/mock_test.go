package model

import (
	"context"
	"errors"
	"testing"
)

func TestMockChatModel(t *testing.T) {
	ctx := context.Background()

	t.Run("responses consumed in order, last repeats", func(t *testing.T) {
		m := &MockChatModel{Responses: []ChatOut{{Text: "one"}, {Text: "two"}}}
		for _, want := range []string{"one", "two", "two"} {
			out, err := m.Chat(ctx, []Message{{Role: RoleUser, Content: "x"}}, nil)
			if err != nil {
				t.Fatalf("Chat() error = %v", err)
			}
			if out.Text != want {
				t.Errorf("Text = %q, want %q", out.Text, want)
			}
		}
		if m.CallCount() != 3 {
			t.Errorf("CallCount() = %d, want 3", m.CallCount())
		}
	})

	t.Run("recorded calls are snapshots", func(t *testing.T) {
		m := &MockChatModel{}
		msgs := []Message{{Role: RoleUser, Content: "original"}}
		if _, err := m.Chat(ctx, msgs, nil); err != nil {
			t.Fatalf("Chat() error = %v", err)
		}
		msgs[0].Content = "mutated"
		if got := m.Call(0)[0].Content; got != "original" {
			t.Errorf("recorded call = %q, caller mutation leaked", got)
		}
	})

	t.Run("scripted error", func(t *testing.T) {
		m := &MockChatModel{Err: errors.New("down")}
		if _, err := m.Chat(ctx, nil, nil); err == nil {
			t.Fatal("Chat() error = nil, want scripted error")
		}
	})
}
