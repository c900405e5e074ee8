package llm

import "github.com/ShayCichocki/craft/pkg/models"

// EventType discriminates the kinds of events produced for one request.
type EventType string

const (
	// EventText is a plain text fragment.
	EventText EventType = "text"
	// EventToolCall is a parsed tool-call batch. It is always final.
	EventToolCall EventType = "tool_call"
	// EventError is a terminal failure. It is always final.
	EventError EventType = "error"
)

// Event is one element of a response stream. A stream produces any number of
// non-final text events followed by exactly one final event.
type Event struct {
	Type      EventType         `json:"type"`
	Text      string            `json:"text,omitempty"`
	ToolCalls []models.ToolCall `json:"toolCalls,omitempty"`
	Err       error             `json:"-"`
	Final     bool              `json:"isComplete"`
}

// TextEvent creates a text event.
func TextEvent(text string, final bool) Event {
	return Event{Type: EventText, Text: text, Final: final}
}

// ToolCallEvent creates the terminal tool-call event.
func ToolCallEvent(calls []models.ToolCall) Event {
	if calls == nil {
		calls = []models.ToolCall{}
	}
	return Event{Type: EventToolCall, ToolCalls: calls, Final: true}
}

// ErrorEvent creates a terminal error event. Text carries the error message.
func ErrorEvent(err error) Event {
	return Event{Type: EventError, Text: err.Error(), Err: err, Final: true}
}
