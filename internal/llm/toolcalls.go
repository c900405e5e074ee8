package llm

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ShayCichocki/craft/pkg/models"
)

// ToolPolicy decides what happens to tool calls that are not on the allow-list.
type ToolPolicy string

const (
	// ToolPolicyDrop removes unsupported calls and keeps the rest of the batch.
	ToolPolicyDrop ToolPolicy = "drop"
	// ToolPolicyReject turns the whole batch into an error.
	ToolPolicyReject ToolPolicy = "reject"
)

// ParseToolPolicy parses a policy name. Empty selects ToolPolicyDrop.
func ParseToolPolicy(s string) (ToolPolicy, error) {
	switch ToolPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", ToolPolicyDrop:
		return ToolPolicyDrop, nil
	case ToolPolicyReject:
		return ToolPolicyReject, nil
	default:
		return "", fmt.Errorf("unknown tool policy %q (want drop or reject)", s)
	}
}

// toolFilter applies the allow-list. A nil allow-list accepts every name.
type toolFilter struct {
	allowed map[string]bool
	policy  ToolPolicy
}

func newToolFilter(allowed []string, policy ToolPolicy) toolFilter {
	f := toolFilter{policy: policy}
	if len(allowed) > 0 {
		f.allowed = make(map[string]bool, len(allowed))
		for _, name := range allowed {
			f.allowed[name] = true
		}
	}
	return f
}

func (f toolFilter) apply(calls []models.ToolCall, log zerolog.Logger) ([]models.ToolCall, error) {
	if f.allowed == nil {
		return calls, nil
	}

	kept := make([]models.ToolCall, 0, len(calls))
	var unsupported []string
	for _, c := range calls {
		if f.allowed[c.Name] {
			kept = append(kept, c)
			continue
		}
		unsupported = append(unsupported, c.Name)
	}
	if len(unsupported) == 0 {
		return kept, nil
	}

	if f.policy == ToolPolicyReject {
		return nil, &UnsupportedToolError{Names: unsupported}
	}
	log.Warn().Strs("tools", unsupported).Msg("dropping unsupported tool calls")
	return kept, nil
}

// rawToolCall accepts the shapes models produce for a tool call:
// {name, args, text}, {name, arguments, text} and
// {function: {name, arguments}, text}.
type rawToolCall struct {
	Name      string          `json:"name"`
	Args      json.RawMessage `json:"args"`
	Arguments json.RawMessage `json:"arguments"`
	Text      string          `json:"text"`
	Function  *struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	} `json:"function"`
}

// ParseToolCalls decodes a batch written in the format the model uses after
// ToolCallMarker. No allow-list is applied.
func ParseToolCalls(payload string) ([]models.ToolCall, error) {
	return parseToolCalls(payload)
}

// parseToolCalls parses the payload collected after the marker.
func parseToolCalls(payload string) ([]models.ToolCall, error) {
	payload = StripCodeFences(payload)
	if payload == "" {
		return nil, &ProtocolParseError{What: "tool calls", Err: errors.New("empty payload")}
	}

	var raws []rawToolCall
	if err := json.Unmarshal([]byte(payload), &raws); err != nil {
		return nil, &ProtocolParseError{What: "tool calls", Err: err}
	}

	calls := make([]models.ToolCall, 0, len(raws))
	for i, raw := range raws {
		call, err := raw.normalize()
		if err != nil {
			return nil, &ProtocolParseError{What: "tool calls", Err: fmt.Errorf("call %d: %w", i, err)}
		}
		calls = append(calls, call)
	}
	return calls, nil
}

func (r rawToolCall) normalize() (models.ToolCall, error) {
	name := strings.TrimSpace(r.Name)
	args := r.Args
	if len(args) == 0 {
		args = r.Arguments
	}
	if r.Function != nil {
		if name == "" {
			name = strings.TrimSpace(r.Function.Name)
		}
		if len(args) == 0 {
			args = r.Function.Arguments
		}
	}
	if name == "" {
		return models.ToolCall{}, errors.New("missing name")
	}

	parsed, err := decodeArguments(args)
	if err != nil {
		return models.ToolCall{}, fmt.Errorf("%s arguments: %w", name, err)
	}
	return models.ToolCall{Name: name, Arguments: parsed, HumanText: r.Text}, nil
}

// decodeArguments accepts an object or a JSON string holding an object.
func decodeArguments(raw json.RawMessage) (map[string]any, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return map[string]any{}, nil
	}

	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		if strings.TrimSpace(s) == "" {
			return map[string]any{}, nil
		}
		raw = json.RawMessage(s)
	}

	args := map[string]any{}
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, err
	}
	return args, nil
}

// StripCodeFences removes a surrounding markdown code fence and trims space.
func StripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		// Drop the language tag line.
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
