package llm

import (
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

const toolCallInstructions = `First, output a message for the user describing what you are going to do.
Then, on a separate line starting with "TOOL_CALL:", output the JSON array of tool calls.
Do not mix them together. Each tool call has the shape
{"name": "<tool>", "args": {...}, "text": "<message for the user>"}.

Example:

I will now install Linera SDK version v0.14.1 for you.

TOOL_CALL:
[
  {
    "name": "install_linera_sdk",
    "args": {"version": "v0.14.1", "withExamples": false},
    "text": "I will now install Linera SDK version v0.14.1 for you."
  }
]`

// ToolCallSystemPrompt appends the tool-call protocol and the available tools
// to role.
func ToolCallSystemPrompt(role string, tools []openai.Tool) string {
	var sb strings.Builder
	if role = strings.TrimSpace(role); role != "" {
		sb.WriteString(role)
		sb.WriteString("\n\n")
	}
	sb.WriteString(toolCallInstructions)

	if len(tools) > 0 {
		sb.WriteString("\n\nAvailable tools:\n")
		for _, t := range tools {
			if t.Function == nil {
				continue
			}
			fmt.Fprintf(&sb, "- %s: %s\n", t.Function.Name, t.Function.Description)
		}
	}
	return sb.String()
}
