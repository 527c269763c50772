package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/Montinou/interview-companion-sub000/provider"
)

func fakeProvider(content string, err error) provider.RequestResponse[CompletionRequest, CompletionResponse] {
	return provider.Func("fake", func(_ context.Context, req CompletionRequest) (CompletionResponse, error) {
		if err != nil {
			return CompletionResponse{}, err
		}
		return CompletionResponse{Content: content, Model: "fake"}, nil
	})
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bare object", `{"a":1}`, `{"a":1}`},
		{"fenced", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"fenced no language", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"surrounding prose", "Here you go: {\"a\":1} hope that helps", `{"a":1}`},
		{"whitespace", "  {\"a\":1}  ", `{"a":1}`},
		{"no json at all", "sorry, I cannot", "sorry, I cannot"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractJSON(tt.in); got != tt.want {
				t.Errorf("ExtractJSON(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestCompleteStructured(t *testing.T) {
	p := fakeProvider("```json\n{\"escalate\":true,\"reason\":\"contradiction\"}\n```", nil)

	var out struct {
		Escalate bool   `json:"escalate"`
		Reason   string `json:"reason"`
	}
	if err := CompleteStructured(context.Background(), p, "system", "user", &out); err != nil {
		t.Fatalf("CompleteStructured: %v", err)
	}
	if !out.Escalate || out.Reason != "contradiction" {
		t.Errorf("parsed %+v, want escalate=true reason=contradiction", out)
	}
}

func TestCompleteStructuredUnparseable(t *testing.T) {
	p := fakeProvider("I am not JSON", nil)
	var out map[string]any
	if err := CompleteStructured(context.Background(), p, "s", "u", &out); err == nil {
		t.Error("want error for unparseable response")
	}
}

func TestCompletePropagatesError(t *testing.T) {
	wantErr := errors.New("backend down")
	p := fakeProvider("", wantErr)
	if _, err := Complete(context.Background(), p, "s", "u"); !errors.Is(err, wantErr) {
		t.Errorf("err = %v, want %v", err, wantErr)
	}
}
