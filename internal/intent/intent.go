// Package intent classifies a user message with one structured model call.
package intent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ShayCichocki/craft/internal/llm"
)

// Suggested actions the model may pick from.
const (
	ActionRefactor = "refactor"
	ActionExplain  = "explain"
	ActionGenerate = "generate"
	ActionDebug    = "debug"
	ActionOptimize = "optimize"
)

var knownActions = map[string]bool{
	ActionRefactor: true,
	ActionExplain:  true,
	ActionGenerate: true,
	ActionDebug:    true,
	ActionOptimize: true,
}

// Intent is the classification of one user message.
type Intent struct {
	RawText           string  `json:"rawText"`
	Description       string  `json:"intentDescription"`
	IsContextRelevant bool    `json:"isContextRelevant"`
	Confidence        float64 `json:"confidence"`
	// SuggestedAction is one of the Action constants, or empty.
	SuggestedAction string `json:"suggestedAction,omitempty"`
	// RequestNextTask is set when the user asks to run the next task.
	RequestNextTask bool `json:"requestNextTask"`
}

const analystRole = "You are an expert at analyzing user intent. Please provide the most accurate analysis possible."

const analysisPrompt = `Analyze the following user input and provide a structured JSON response.

User Input:
%q

Context:
%q

Requirements:
1. Identify the user's primary intent from the input
2. Determine if this intent is relevant to the provided context (true/false)
3. Estimate confidence level (0-1) of your intent classification
4. If applicable, suggest an action type from: 'refactor', 'explain', 'generate', 'debug', 'optimize', or leave empty
5. Provide a brief description of the identified intent
6. Set requestNextTask when the user asks to continue with or run the next task

Return ONLY a valid JSON object with this exact structure:
{
  "rawText": "the user input",
  "intentDescription": "User wants to improve the efficiency of a function through refactoring",
  "isContextRelevant": true,
  "confidence": 0.9,
  "suggestedAction": "refactor",
  "requestNextTask": false
}`

// Completer sends single-shot structured requests.
type Completer interface {
	CompleteJSON(ctx context.Context, req llm.Request, target any) error
}

// Analyzer classifies user messages.
type Analyzer struct {
	llm Completer
}

// NewAnalyzer creates an analyzer.
func NewAnalyzer(c Completer) *Analyzer {
	return &Analyzer{llm: c}
}

// Analyze classifies input against the surrounding context text, which may
// be empty.
func (a *Analyzer) Analyze(ctx context.Context, input, contextText string) (*Intent, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, errors.New("input is empty")
	}

	var in Intent
	req := llm.Request{System: analystRole, Prompt: fmt.Sprintf(analysisPrompt, input, contextText)}
	if err := a.llm.CompleteJSON(ctx, req, &in); err != nil {
		return nil, fmt.Errorf("analyze intent: %w", err)
	}

	in.normalize(input)
	return &in, nil
}

func (in *Intent) normalize(input string) {
	if strings.TrimSpace(in.RawText) == "" {
		in.RawText = input
	}
	switch {
	case in.Confidence < 0:
		in.Confidence = 0
	case in.Confidence > 1:
		in.Confidence = 1
	}
	action := strings.ToLower(strings.TrimSpace(in.SuggestedAction))
	if !knownActions[action] {
		action = ""
	}
	in.SuggestedAction = action
}
