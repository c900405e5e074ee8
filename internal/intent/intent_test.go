package intent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ShayCichocki/craft/internal/llm"
)

type fakeCompleter struct {
	response string
	err      error
	req      llm.Request
}

func (f *fakeCompleter) CompleteJSON(_ context.Context, req llm.Request, target any) error {
	f.req = req
	if f.err != nil {
		return f.err
	}
	return llm.DecodeJSON(f.response, target)
}

func TestAnalyze(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     Intent
	}{
		{
			name: "full response",
			response: "```json\n" + `{"rawText":"make it faster","intentDescription":"Optimize the loop",
				"isContextRelevant":true,"confidence":0.8,"suggestedAction":"Optimize","requestNextTask":false}` + "\n```",
			want: Intent{RawText: "make it faster", Description: "Optimize the loop", IsContextRelevant: true, Confidence: 0.8, SuggestedAction: "optimize"},
		},
		{
			name:     "confidence clamped high",
			response: `{"intentDescription":"next","confidence":7,"requestNextTask":true}`,
			want:     Intent{RawText: "make it faster", Description: "next", Confidence: 1, RequestNextTask: true},
		},
		{
			name:     "confidence clamped low and unknown action dropped",
			response: `{"intentDescription":"?","confidence":-0.5,"suggestedAction":"deploy"}`,
			want:     Intent{RawText: "make it faster", Description: "?", Confidence: 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeCompleter{response: tt.response}
			got, err := NewAnalyzer(f).Analyze(context.Background(), "  make it faster ", "func slow() {}")
			if err != nil {
				t.Fatalf("Analyze failed: %v", err)
			}
			if *got != tt.want {
				t.Errorf("intent = %+v, want %+v", *got, tt.want)
			}
			if f.req.System != analystRole || !strings.Contains(f.req.Prompt, "func slow() {}") {
				t.Errorf("request = %+v", f.req)
			}
		})
	}
}

func TestAnalyze_Errors(t *testing.T) {
	if _, err := NewAnalyzer(&fakeCompleter{}).Analyze(context.Background(), "   ", ""); err == nil {
		t.Error("expected error for empty input")
	}

	cfgErr := &llm.ConfigurationError{Setting: "modelUrl"}
	_, err := NewAnalyzer(&fakeCompleter{err: cfgErr}).Analyze(context.Background(), "hi", "")
	var target *llm.ConfigurationError
	if !errors.As(err, &target) {
		t.Errorf("err = %v, want ConfigurationError", err)
	}

	_, err = NewAnalyzer(&fakeCompleter{response: "not json at all"}).Analyze(context.Background(), "hi", "")
	if err == nil {
		t.Error("expected error for unparseable response")
	}
}
