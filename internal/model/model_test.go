package model

import (
	"errors"
	"fmt"
	"testing"

	ctxpkg "github.com/stupiduntilnot/cryptodesk/internal/context"
)

func TestRateLimitError_As(t *testing.T) {
	err := fmt.Errorf("answer: %w", &RateLimitError{Message: "quota exceeded"})

	var rl *RateLimitError
	if !errors.As(err, &rl) {
		t.Fatal("expected wrapped RateLimitError")
	}
	if rl.Message != "quota exceeded" {
		t.Fatalf("unexpected message: %q", rl.Message)
	}
}

func TestCompletionResponse_IsEmpty(t *testing.T) {
	cases := []struct {
		name string
		resp CompletionResponse
		want bool
	}{
		{"blank", CompletionResponse{Content: "  "}, true},
		{"marker", CompletionResponse{Content: EmptyResponse}, true},
		{"text", CompletionResponse{Content: "SAFE"}, false},
		{"tool call", CompletionResponse{ToolCalls: []ctxpkg.ToolCall{{Name: "x"}}}, false},
	}
	for _, c := range cases {
		if got := c.resp.IsEmpty(); got != c.want {
			t.Fatalf("%s: got %v want %v", c.name, got, c.want)
		}
	}
}
