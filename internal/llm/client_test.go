package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
)

func sseServer(t *testing.T, status int, frames ...string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if status != http.StatusOK {
			http.Error(w, "upstream unavailable", status)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		for _, f := range frames {
			fmt.Fprintf(w, "%s\n\n", f)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func textFrame(s string) string {
	b, _ := json.Marshal(map[string]any{
		"choices": []any{map[string]any{"delta": map[string]any{"content": s}}},
	})
	return "data: " + string(b)
}

func testClient(url, token string) *Client {
	return NewClient(Settings{URL: url, Token: token, Model: "test-model"}, zerolog.Nop())
}

func TestClientStream_HelloWorld(t *testing.T) {
	srv, _ := sseServer(t, http.StatusOK,
		`data: {"choices":[{"delta":{"content":"Hello "}}]}`,
		`data: {"choices":[{"delta":{"content":"world"}}]}`,
		`data: [DONE]`,
	)

	s, err := testClient(srv.URL, "tok").Stream(context.Background(), Request{System: "role", Prompt: "hi"})
	if err != nil {
		t.Fatalf("Stream failed: %v", err)
	}
	events, err := Collect(s)
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}

	want := []Event{TextEvent("Hello ", false), TextEvent("world", false), TextEvent("", true)}
	if len(events) != len(want) {
		t.Fatalf("got %d events, want %d: %+v", len(events), len(want), events)
	}
	for i := range want {
		if events[i].Type != want[i].Type || events[i].Text != want[i].Text || events[i].Final != want[i].Final {
			t.Errorf("event %d = %+v, want %+v", i, events[i], want[i])
		}
	}
}

func TestClientStream_MissingConfiguration(t *testing.T) {
	srv, hits := sseServer(t, http.StatusOK, `data: [DONE]`)

	tests := []struct {
		name    string
		url     string
		token   string
		setting string
	}{
		{"missing token", srv.URL, "", "apiToken"},
		{"missing url", "", "tok", "modelUrl"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := testClient(tt.url, tt.token)

			s, err := c.Stream(context.Background(), Request{Prompt: "hi"})
			if s != nil {
				t.Error("expected nil stream")
			}
			var cerr *ConfigurationError
			if !errors.As(err, &cerr) {
				t.Fatalf("Stream error = %v, want ConfigurationError", err)
			}
			if cerr.Setting != tt.setting {
				t.Errorf("Setting = %q, want %q", cerr.Setting, tt.setting)
			}

			if _, err := c.Complete(context.Background(), Request{Prompt: "hi"}); !errors.As(err, &cerr) {
				t.Errorf("Complete error = %v, want ConfigurationError", err)
			}
		})
	}

	if n := hits.Load(); n != 0 {
		t.Errorf("server received %d requests, want 0", n)
	}
}

func TestClientStream_NonSuccessStatus(t *testing.T) {
	srv, hits := sseServer(t, http.StatusServiceUnavailable)

	s, err := testClient(srv.URL, "tok").Stream(context.Background(), Request{Prompt: "hi"})
	if err != nil {
		t.Fatalf("Stream failed: %v", err)
	}
	events, err := Collect(s)
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}

	if len(events) != 1 {
		t.Fatalf("got %d events, want 1: %+v", len(events), events)
	}
	ev := events[0]
	if ev.Type != EventError || !ev.Final {
		t.Fatalf("event = %+v, want final error", ev)
	}
	var terr *TransportError
	if !errors.As(ev.Err, &terr) {
		t.Fatalf("error %v is not a TransportError", ev.Err)
	}
	if terr.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("StatusCode = %d", terr.StatusCode)
	}
	if !strings.Contains(ev.Text, "503 Service Unavailable") {
		t.Errorf("error text %q lacks status", ev.Text)
	}
	if n := hits.Load(); n != 1 {
		t.Errorf("server received %d requests, want exactly 1 (no retry)", n)
	}
}

func TestClientStream_ConnectFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	s, err := testClient(url, "tok").Stream(context.Background(), Request{Prompt: "hi"})
	if err != nil {
		t.Fatalf("Stream failed: %v", err)
	}
	events, _ := Collect(s)
	if len(events) != 1 || events[0].Type != EventError {
		t.Fatalf("events = %+v, want one error", events)
	}
	var terr *TransportError
	if !errors.As(events[0].Err, &terr) {
		t.Errorf("error %v is not a TransportError", events[0].Err)
	}
}

func TestClientStream_SkipsMalformedFrames(t *testing.T) {
	srv, _ := sseServer(t, http.StatusOK,
		`: keep-alive comment`,
		`event: ping`,
		`data: not-json`,
		`data: {"choices":[]}`,
		`data: {"id":"x"}`,
		textFrame("kept"),
		`data: [DONE]`,
	)

	s, err := testClient(srv.URL, "tok").Stream(context.Background(), Request{Prompt: "hi"})
	if err != nil {
		t.Fatalf("Stream failed: %v", err)
	}
	events, _ := Collect(s)
	if got := joinText(events); got != "kept" {
		t.Errorf("text = %q, want %q", got, "kept")
	}
	if last := events[len(events)-1]; last.Type != EventText || !last.Final {
		t.Errorf("last event = %+v", last)
	}
}

func TestClientStream_DoneEndsToolCallCollection(t *testing.T) {
	srv, _ := sseServer(t, http.StatusOK,
		textFrame("Installing.\n"),
		textFrame("TOOL_CALL:\n"),
		textFrame(`[{"name":"install_protoc","args":{},"text":"protoc"}]`),
		`data: [DONE]`,
		textFrame("trailing garbage"),
	)

	s, err := testClient(srv.URL, "tok").Stream(context.Background(), Request{Prompt: "hi"})
	if err != nil {
		t.Fatalf("Stream failed: %v", err)
	}
	events, _ := Collect(s)
	last := events[len(events)-1]
	if last.Type != EventToolCall {
		t.Fatalf("last event = %+v, want tool_call", last)
	}
	if len(last.ToolCalls) != 1 || last.ToolCalls[0].Name != "install_protoc" {
		t.Errorf("calls = %+v", last.ToolCalls)
	}
}

func TestClientStream_RequestBody(t *testing.T) {
	var got openai.ChatCompletionRequest
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	tools := []openai.Tool{{
		Type:     openai.ToolTypeFunction,
		Function: &openai.FunctionDefinition{Name: "install_rust", Description: "Install Rust"},
	}}
	s, err := testClient(srv.URL, "secret").Stream(context.Background(), Request{System: "sys", Prompt: "usr", Tools: tools})
	if err != nil {
		t.Fatalf("Stream failed: %v", err)
	}
	if _, err := Collect(s); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}

	if auth != "Bearer secret" {
		t.Errorf("Authorization = %q", auth)
	}
	if got.Model != "test-model" || !got.Stream {
		t.Errorf("model/stream = %q/%v", got.Model, got.Stream)
	}
	if len(got.Messages) != 2 ||
		got.Messages[0].Role != openai.ChatMessageRoleSystem || got.Messages[0].Content != "sys" ||
		got.Messages[1].Role != openai.ChatMessageRoleUser || got.Messages[1].Content != "usr" {
		t.Errorf("messages = %+v", got.Messages)
	}
	if len(got.Tools) != 1 || got.Tools[0].Function == nil || got.Tools[0].Function.Name != "install_rust" {
		t.Errorf("tools = %+v", got.Tools)
	}
}

func TestClientComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req openai.ChatCompletionRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Stream {
			t.Error("single-shot request sent with stream=true")
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"choices":[{"message":{"role":"assistant","content":"`+"```json\\n{\\\"ok\\\":true}\\n```"+`"}}]}`)
	}))
	defer srv.Close()

	text, err := testClient(srv.URL, "tok").Complete(context.Background(), Request{Prompt: "hi"})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if text != `{"ok":true}` {
		t.Errorf("Complete = %q, want fence-stripped JSON", text)
	}
}

func TestClientComplete_NonSuccessStatus(t *testing.T) {
	srv, _ := sseServer(t, http.StatusUnauthorized)

	_, err := testClient(srv.URL, "tok").Complete(context.Background(), Request{Prompt: "hi"})
	var terr *TransportError
	if !errors.As(err, &terr) {
		t.Fatalf("Complete error = %v, want TransportError", err)
	}
	if terr.StatusCode != http.StatusUnauthorized {
		t.Errorf("StatusCode = %d", terr.StatusCode)
	}
}

func TestClientCompleteJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := openai.ChatCompletionResponse{Choices: []openai.ChatCompletionChoice{{
			Message: openai.ChatCompletionMessage{Content: "Here you go: {\"title\": \"Setup\", \"done\": false,}"},
		}}}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	var out struct {
		Title string `json:"title"`
		Done  bool   `json:"done"`
	}
	if err := testClient(srv.URL, "tok").CompleteJSON(context.Background(), Request{Prompt: "hi"}, &out); err != nil {
		t.Fatalf("CompleteJSON failed: %v", err)
	}
	if out.Title != "Setup" {
		t.Errorf("Title = %q", out.Title)
	}
}

func TestClientAnthropic_MissingToken(t *testing.T) {
	c := NewClient(Settings{Provider: ProviderAnthropic}, zerolog.Nop())
	_, err := c.Stream(context.Background(), Request{Prompt: "hi"})
	var cerr *ConfigurationError
	if !errors.As(err, &cerr) || cerr.Setting != "apiToken" {
		t.Errorf("Stream error = %v, want apiToken ConfigurationError", err)
	}
}

func TestClient_UnknownProvider(t *testing.T) {
	c := NewClient(Settings{Provider: "mystery", URL: "http://x", Token: "t"}, zerolog.Nop())
	_, err := c.Complete(context.Background(), Request{Prompt: "hi"})
	var cerr *ConfigurationError
	if !errors.As(err, &cerr) {
		t.Errorf("Complete error = %v, want ConfigurationError", err)
	}
}
