package llm

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/bedrock"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"
	"github.com/aws/aws-sdk-go-v2/config"
)

// bedrockModels maps Anthropic model names to Bedrock cross-region
// inference profiles.
var bedrockModels = map[anthropic.Model]string{
	anthropic.ModelClaudeSonnet4_20250514:         "us.anthropic.claude-sonnet-4-20250514-v1:0",
	anthropic.Model("claude-sonnet-4-5-20250929"): "us.anthropic.claude-sonnet-4-5-20250929-v1:0",
	anthropic.Model("claude-haiku-4-5-20251001"):  "us.anthropic.claude-haiku-4-5-20251001-v1:0",
	anthropic.ModelClaude3_5Haiku20241022:         "us.anthropic.claude-3-5-haiku-20241022-v1:0",
}

func (c *Client) anthropicClient(ctx context.Context) anthropic.Client {
	var opts []option.RequestOption

	if c.settings.Bedrock {
		var loadOpts []func(*config.LoadOptions) error
		if c.settings.AWSRegion != "" {
			loadOpts = append(loadOpts, config.WithRegion(c.settings.AWSRegion))
		}
		if c.settings.AWSProfile != "" {
			loadOpts = append(loadOpts, config.WithSharedConfigProfile(c.settings.AWSProfile))
		}
		opts = append(opts, bedrock.WithLoadDefaultConfig(ctx, loadOpts...))
	} else {
		opts = append(opts, option.WithAPIKey(c.settings.Token))
		if c.settings.URL != "" {
			opts = append(opts, option.WithBaseURL(c.settings.URL))
		}
	}

	return anthropic.NewClient(opts...)
}

func (c *Client) anthropicModel() anthropic.Model {
	model := anthropic.Model(c.settings.Model)
	if model == "" {
		model = anthropic.Model("claude-sonnet-4-5-20250929")
	}
	if c.settings.Bedrock {
		if mapped, ok := bedrockModels[model]; ok {
			return anthropic.Model(mapped)
		}
	}
	return model
}

func (c *Client) anthropicParams(req Request) anthropic.MessageNewParams {
	params := anthropic.MessageNewParams{
		Model:     c.anthropicModel(),
		MaxTokens: int64(c.settings.MaxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	if len(req.Tools) > 0 {
		// Tool calls travel in the text after the marker.
		c.log.Debug().Int("tools", len(req.Tools)).Msg("native tool definitions not sent to anthropic")
	}
	return params
}

func (c *Client) streamAnthropic(ctx context.Context, req Request) *Stream {
	client := c.anthropicClient(ctx)
	c.log.Debug().Str("model", string(c.anthropicModel())).Msg("sending streaming request")
	stream := client.Messages.NewStreaming(ctx, c.anthropicParams(req))
	return newStream(&anthropicSource{stream: stream}, c.filter, c.log)
}

func (c *Client) completeAnthropic(ctx context.Context, req Request) (string, error) {
	client := c.anthropicClient(ctx)
	resp, err := client.Messages.New(ctx, c.anthropicParams(req))
	if err != nil {
		return "", &TransportError{Err: fmt.Errorf("anthropic messages: %w", err)}
	}

	var result strings.Builder
	for _, block := range resp.Content {
		if variant, ok := block.AsAny().(anthropic.TextBlock); ok {
			result.WriteString(variant.Text)
		}
	}
	return result.String(), nil
}

// anthropicSource yields the text deltas of a Messages stream.
type anthropicSource struct {
	stream *ssestream.Stream[anthropic.MessageStreamEventUnion]
}

func (a *anthropicSource) Next() (string, error) {
	for a.stream.Next() {
		event := a.stream.Current()
		switch ev := event.AsAny().(type) {
		case anthropic.ContentBlockDeltaEvent:
			if delta, ok := ev.Delta.AsAny().(anthropic.TextDelta); ok && delta.Text != "" {
				return delta.Text, nil
			}
		case anthropic.MessageStopEvent:
			return "", io.EOF
		}
	}
	if err := a.stream.Err(); err != nil {
		return "", &TransportError{Err: err}
	}
	return "", io.EOF
}

func (a *anthropicSource) Close() error {
	return a.stream.Close()
}
