package tui

import (
	"errors"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ShayCichocki/craft/internal/llm"
	"github.com/ShayCichocki/craft/pkg/models"
)

func testTree() *models.TaskNode {
	return &models.TaskNode{ID: "1", Title: "Counter app", Children: []*models.TaskNode{
		{ID: "1-1", Title: "Install toolchain"},
		{ID: "1-2", Title: "Write contract"},
	}}
}

func send(m *RunModel, msgs ...tea.Msg) {
	for _, msg := range msgs {
		m.Update(msg)
	}
}

func TestRunModel_LeafLifecycle(t *testing.T) {
	root := testTree()
	m := NewRunModel(root, RunOptions{})
	leaf := root.Children[0]

	send(m,
		tea.WindowSizeMsg{Width: 100, Height: 40},
		LeafStartMsg{ID: leaf.ID, Title: leaf.Title},
		EventMsg{Event: llm.TextEvent("Installing Rust", false)},
	)
	view := m.View()
	for _, want := range []string{"0/2 leaves", "Install toolchain", "Installing Rust", "Running Install toolchain"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}

	calls := []models.ToolCall{{Name: "install_rust", HumanText: "Install Rust 1.85.0"}}
	send(m,
		EventMsg{Event: llm.ToolCallEvent(calls)},
		LeafDoneMsg{ID: leaf.ID, Status: models.TaskStatusDone, Final: llm.ToolCallEvent(calls)},
		ToolResultMsg{Call: calls[0], Success: true},
	)
	view = m.View()
	for _, want := range []string{"1/2 leaves", "Tool calls:", "install_rust", "Install Rust 1.85.0", "✓"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
	if m.tools[0].result == nil || !*m.tools[0].result {
		t.Error("tool result not recorded")
	}
}

func TestRunModel_ErrorEvent(t *testing.T) {
	root := testTree()
	m := NewRunModel(root, RunOptions{})
	leaf := root.Children[1]

	send(m,
		LeafStartMsg{ID: leaf.ID, Title: leaf.Title},
		EventMsg{Event: llm.ErrorEvent(errors.New("LLM API request failed: 503 Service Unavailable"))},
		LeafDoneMsg{ID: leaf.ID, Status: models.TaskStatusFailed},
	)

	view := m.View()
	if !strings.Contains(view, "error: LLM API request failed") || !strings.Contains(view, "✗") {
		t.Errorf("view:\n%s", view)
	}
	if !strings.Contains(view, "0/2 leaves") {
		t.Errorf("failed leaf counted as done:\n%s", view)
	}
}

func TestRunModel_RunDone(t *testing.T) {
	tests := []struct {
		name string
		msg  RunDoneMsg
		want string
	}{
		{"complete", RunDoneMsg{}, "Run complete"},
		{"stopped", RunDoneMsg{Stopped: true}, "Run stopped"},
		{"failed", RunDoneMsg{Err: errors.New("boom")}, "Run failed: boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewRunModel(testTree(), RunOptions{})
			send(m, tt.msg)
			if !m.Done() {
				t.Error("Done = false")
			}
			if !strings.Contains(m.View(), tt.want) {
				t.Errorf("view missing %q", tt.want)
			}
		})
	}
}

func TestRunModel_StopAndQuit(t *testing.T) {
	stops := 0
	m := NewRunModel(testTree(), RunOptions{OnStop: func() { stops++ }})

	send(m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("s")})
	if stops != 1 || !strings.Contains(m.View(), "Stopping") {
		t.Errorf("stops = %d", stops)
	}

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatal("q should quit")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q did not return tea.Quit")
	}
	if stops != 1 {
		t.Errorf("stop requested %d times, want 1", stops)
	}
}

func TestRunModel_InteractivePrompt(t *testing.T) {
	var prompts []string
	stops := 0
	m := NewRunModel(testTree(), RunOptions{
		Interactive: true,
		OnPrompt:    func(text string) { prompts = append(prompts, text) },
		OnStop:      func() { stops++ },
	})

	// Typing q and s goes to the input instead of quitting.
	send(m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")}, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("s")})
	if stops != 0 || m.input.Value() != "qs" {
		t.Fatalf("stops = %d, input = %q", stops, m.input.Value())
	}

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd == nil {
		t.Fatal("enter produced no command")
	}
	send(m, cmd())
	if len(prompts) != 1 || prompts[0] != "qs" {
		t.Errorf("prompts = %v", prompts)
	}
	if m.input.Value() != "" {
		t.Error("input not reset")
	}
	if !strings.Contains(m.View(), "> qs") {
		t.Error("submitted prompt not echoed")
	}
}

func TestRunModel_CountsCompletedLeaves(t *testing.T) {
	root := testTree()
	root.Children[0].Completed = true
	m := NewRunModel(root, RunOptions{})
	if !strings.Contains(m.View(), "1/2 leaves") {
		t.Error("completed leaf not counted")
	}
}

func TestRunModel_IgnoresTreeChangesAfterCreation(t *testing.T) {
	root := testTree()
	m := NewRunModel(root, RunOptions{})
	leaf := root.Children[0]

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			leaf.Status = models.TaskStatusFailed
			leaf.Completed = i%2 == 0
			leaf.Title = "renamed"
		}
	}()
	for i := 0; i < 100; i++ {
		_ = m.View()
	}
	wg.Wait()

	view := m.View()
	if strings.Contains(view, "renamed") || strings.Contains(view, "✗") || !strings.Contains(view, "0/2 leaves") {
		t.Errorf("view reflects the live tree:\n%s", view)
	}

	send(m, LeafDoneMsg{ID: leaf.ID, Status: models.TaskStatusDone})
	if !strings.Contains(m.View(), "1/2 leaves") {
		t.Error("done message not counted")
	}
}
