package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// CompleteJSON sends req in single-shot mode and decodes the JSON value found
// in the response into target.
func (c *Client) CompleteJSON(ctx context.Context, req Request, target any) error {
	text, err := c.Complete(ctx, req)
	if err != nil {
		return err
	}
	if err := DecodeJSON(text, target); err != nil {
		c.log.Debug().Err(err).Str("response", truncate(text, 500)).Msg("structured response rejected")
		return err
	}
	return nil
}

// DecodeJSON extracts the outermost JSON object or array from text and
// decodes it into target. Near-JSON (trailing commas, single quotes, missing
// brackets) is repaired before giving up.
func DecodeJSON(text string, target any) error {
	body := extractJSON(StripCodeFences(text))
	if body == "" {
		return &ProtocolParseError{What: "JSON", Err: fmt.Errorf("no JSON found in response: %s", truncate(text, 200))}
	}

	err := json.Unmarshal([]byte(body), target)
	if err == nil {
		return nil
	}

	repaired, repairErr := jsonrepair.JSONRepair(body)
	if repairErr != nil {
		return &ProtocolParseError{What: "JSON", Err: err}
	}
	if err := json.Unmarshal([]byte(repaired), target); err != nil {
		return &ProtocolParseError{What: "JSON", Err: err}
	}
	return nil
}

// extractJSON returns text from the first '{' or '[' to the last matching
// closer. If no closer follows, the rest of the text is returned for repair.
func extractJSON(text string) string {
	start := strings.IndexAny(text, "{[")
	if start == -1 {
		return ""
	}

	closer := "}"
	if text[start] == '[' {
		closer = "]"
	}
	end := strings.LastIndex(text, closer)
	if end <= start {
		return strings.TrimSpace(text[start:])
	}
	return text[start : end+1]
}
