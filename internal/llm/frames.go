package llm

import (
	"bufio"
	"encoding/json"
	"io"
	"strings"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
)

const (
	frameScannerInitialBuffer = 64 * 1024
	frameScannerMaxBuffer     = 4 * 1024 * 1024
)

// deltaSource yields text deltas of one response. Next returns io.EOF once
// the response is complete.
type deltaSource interface {
	Next() (string, error)
	Close() error
}

// frameReader reads OpenAI-compatible "data:" frames from an SSE body.
type frameReader struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	log     zerolog.Logger
	done    bool
}

func newFrameReader(body io.ReadCloser, log zerolog.Logger) *frameReader {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, frameScannerInitialBuffer), frameScannerMaxBuffer)
	return &frameReader{body: body, scanner: scanner, log: log}
}

// Next returns the content of the next frame that carries text.
// Frames that are not JSON or lack choices[0].delta.content are skipped.
func (r *frameReader) Next() (string, error) {
	if r.done {
		return "", io.EOF
	}

	for r.scanner.Scan() {
		line := strings.TrimSpace(r.scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}

		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" {
			continue
		}
		if payload == "[DONE]" {
			r.done = true
			return "", io.EOF
		}

		var chunk openai.ChatCompletionStreamResponse
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			r.log.Debug().Err(err).Str("payload", truncate(payload, 200)).Msg("skipping malformed frame")
			continue
		}
		if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" {
			continue
		}
		return chunk.Choices[0].Delta.Content, nil
	}

	r.done = true
	if err := r.scanner.Err(); err != nil {
		return "", &TransportError{Err: err}
	}
	return "", io.EOF
}

func (r *frameReader) Close() error {
	r.done = true
	return r.body.Close()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
