package tui

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
)

func TestInputField_SubmitTrimsAndResets(t *testing.T) {
	f := NewInputField()
	f, _ = f.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("  next  ")})

	_, cmd := f.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd == nil {
		t.Fatal("expected submit command")
	}
	msg, ok := cmd().(PromptSubmittedMsg)
	if !ok {
		t.Fatalf("got %T, want PromptSubmittedMsg", cmd())
	}
	if msg.Text != "next" {
		t.Errorf("Text = %q, want %q", msg.Text, "next")
	}
	if f.Value() != "" {
		t.Errorf("input not reset: %q", f.Value())
	}
}

func TestInputField_EmptySubmitIgnored(t *testing.T) {
	f := NewInputField()
	f, _ = f.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("   ")})

	if _, cmd := f.Update(tea.KeyMsg{Type: tea.KeyEnter}); cmd != nil {
		t.Error("blank input should not submit")
	}
}
