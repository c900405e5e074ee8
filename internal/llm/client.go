// Package llm talks to chat-completion endpoints and decodes their responses
// into text and tool-call events.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
)

// Provider selects the wire protocol used to reach the model.
type Provider string

const (
	// ProviderOpenAI is any OpenAI-compatible chat-completions endpoint.
	ProviderOpenAI Provider = "openai"
	// ProviderAnthropic is the Anthropic Messages API, directly or via Bedrock.
	ProviderAnthropic Provider = "anthropic"
)

const defaultMaxTokens = 4096

// Settings holds the connection parameters for a Client.
type Settings struct {
	Provider Provider
	// URL is the full chat-completions endpoint for ProviderOpenAI, or an
	// optional base URL override for ProviderAnthropic.
	URL   string
	Token string
	Model string
	// MaxTokens caps the response length. Zero selects a default.
	MaxTokens int

	// Bedrock routes ProviderAnthropic through AWS Bedrock.
	Bedrock    bool
	AWSRegion  string
	AWSProfile string

	// AllowedTools is the tool-call allow-list. Empty accepts every name.
	AllowedTools []string
	ToolPolicy   ToolPolicy

	// HTTPClient is used for ProviderOpenAI. Nil selects http.DefaultClient.
	HTTPClient *http.Client
}

// Request is one system/user prompt pair.
type Request struct {
	System string
	Prompt string
	// Tools is sent as the request's tools field when non-empty.
	Tools []openai.Tool
}

// Client sends requests to the configured model.
type Client struct {
	settings Settings
	http     *http.Client
	filter   toolFilter
	log      zerolog.Logger
}

// NewClient creates a client. Settings are validated per request so that a
// missing endpoint or token surfaces as a ConfigurationError at call time.
func NewClient(settings Settings, log zerolog.Logger) *Client {
	if settings.Provider == "" {
		settings.Provider = ProviderOpenAI
	}
	if settings.MaxTokens <= 0 {
		settings.MaxTokens = defaultMaxTokens
	}
	if settings.ToolPolicy == "" {
		settings.ToolPolicy = ToolPolicyDrop
	}
	httpClient := settings.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Client{
		settings: settings,
		http:     httpClient,
		filter:   newToolFilter(settings.AllowedTools, settings.ToolPolicy),
		log:      log.With().Str("component", "llm").Str("provider", string(settings.Provider)).Logger(),
	}
}

// Settings returns the client's settings.
func (c *Client) Settings() Settings {
	return c.settings
}

// validate checks the settings required before any network call.
func (c *Client) validate() error {
	switch c.settings.Provider {
	case ProviderOpenAI:
		if strings.TrimSpace(c.settings.URL) == "" {
			return &ConfigurationError{Setting: "modelUrl"}
		}
		if strings.TrimSpace(c.settings.Token) == "" {
			return &ConfigurationError{Setting: "apiToken"}
		}
	case ProviderAnthropic:
		if !c.settings.Bedrock && strings.TrimSpace(c.settings.Token) == "" {
			return &ConfigurationError{Setting: "apiToken"}
		}
	default:
		return &ConfigurationError{Setting: fmt.Sprintf("provider (unknown %q)", c.settings.Provider)}
	}
	return nil
}

// Stream sends req in streaming mode. Only configuration problems are
// returned as errors; transport failures arrive as the stream's terminal
// error event.
func (c *Client) Stream(ctx context.Context, req Request) (*Stream, error) {
	if err := c.validate(); err != nil {
		return nil, err
	}

	if c.settings.Provider == ProviderAnthropic {
		return c.streamAnthropic(ctx, req), nil
	}

	resp, err := c.post(ctx, req, true)
	if err != nil {
		c.log.Debug().Err(err).Msg("stream request failed")
		return newErrorStream(err), nil
	}
	return newStream(newFrameReader(resp.Body, c.log), c.filter, c.log), nil
}

// Complete sends req in single-shot mode and returns the response text with
// any surrounding code fence removed.
func (c *Client) Complete(ctx context.Context, req Request) (string, error) {
	if err := c.validate(); err != nil {
		return "", err
	}

	if c.settings.Provider == ProviderAnthropic {
		text, err := c.completeAnthropic(ctx, req)
		if err != nil {
			return "", err
		}
		return StripCodeFences(text), nil
	}

	resp, err := c.post(ctx, req, false)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var out openai.ChatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", &ProtocolParseError{What: "completion", Err: err}
	}
	if len(out.Choices) == 0 {
		return "", &ProtocolParseError{What: "completion", Err: fmt.Errorf("no choices in response")}
	}
	return StripCodeFences(out.Choices[0].Message.Content), nil
}

// post issues the chat-completions request. A non-2xx status is returned as
// a TransportError with the body closed.
func (c *Client) post(ctx context.Context, req Request, stream bool) (*http.Response, error) {
	body := openai.ChatCompletionRequest{
		Model:     c.settings.Model,
		MaxTokens: c.settings.MaxTokens,
		Stream:    stream,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.System},
			{Role: openai.ChatMessageRoleUser, Content: req.Prompt},
		},
	}
	if len(req.Tools) > 0 {
		body.Tools = req.Tools
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.settings.URL, bytes.NewReader(payload))
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.settings.Token)
	if stream {
		httpReq.Header.Set("Accept", "text/event-stream")
	}

	c.log.Debug().Str("url", c.settings.URL).Str("model", c.settings.Model).Bool("stream", stream).Msg("sending request")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &TransportError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       strings.TrimSpace(string(snippet)),
		}
	}
	return resp, nil
}
