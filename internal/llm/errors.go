package llm

import (
	"fmt"
	"strings"
)

// ConfigurationError is returned before any request is made when a required
// setting is missing.
type ConfigurationError struct {
	// Setting is the name of the missing setting (e.g. "modelUrl").
	Setting string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("LLM API configuration is missing: %s", e.Setting)
}

// TransportError reports a non-success HTTP status or a network failure.
// Requests are never retried.
type TransportError struct {
	StatusCode int
	Status     string
	// Body holds the start of the error response body, if any.
	Body string
	Err  error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		msg := fmt.Sprintf("LLM API request failed: %s", e.Status)
		if e.Body != "" {
			msg += ": " + e.Body
		}
		return msg
	}
	return fmt.Sprintf("LLM API request failed: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ProtocolParseError reports a payload that could not be decoded.
type ProtocolParseError struct {
	// What names the payload, e.g. "tool calls" or "completion".
	What string
	Err  error
}

func (e *ProtocolParseError) Error() string {
	return fmt.Sprintf("failed to parse %s from LLM response: %v", e.What, e.Err)
}

func (e *ProtocolParseError) Unwrap() error {
	return e.Err
}

// UnsupportedToolError reports tool calls whose names are not on the allow-list.
type UnsupportedToolError struct {
	Names []string
}

func (e *UnsupportedToolError) Error() string {
	return fmt.Sprintf("unsupported tool calls: %s", strings.Join(e.Names, ", "))
}
