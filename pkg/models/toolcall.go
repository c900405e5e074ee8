package models

import "strings"

// ToolCall is a single tool invocation requested by the model.
type ToolCall struct {
	// Name identifies the tool. It must be on the allow-list to be executed.
	Name string `json:"name" yaml:"name"`
	// Arguments are the tool parameters.
	Arguments map[string]any `json:"arguments" yaml:"arguments"`
	// HumanText is a user facing description of the action.
	HumanText string `json:"text,omitempty" yaml:"text,omitempty"`
}

// StringArg returns a string argument, or def if it is missing or not a string.
func (c ToolCall) StringArg(key, def string) string {
	v, ok := c.Arguments[key]
	if !ok {
		return def
	}
	s, ok := v.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

// BoolArg returns a boolean argument, or def if it is missing or not a bool.
func (c ToolCall) BoolArg(key string, def bool) bool {
	v, ok := c.Arguments[key]
	if !ok {
		return def
	}
	switch b := v.(type) {
	case bool:
		return b
	case string:
		switch strings.ToLower(b) {
		case "true":
			return true
		case "false":
			return false
		}
	}
	return def
}
