package model

import (
	"context"
	"fmt"
	"strings"
	"time"

	ctxpkg "github.com/stupiduntilnot/cryptodesk/internal/context"
)

// Tool choice modes understood by chat-completions backends.
const (
	ToolChoiceAuto     = "auto"
	ToolChoiceRequired = "required"
	ToolChoiceNone     = "none"
)

// ToolSpec describes a function the model may call.
type ToolSpec struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// Request is one chat completion request.
type Request struct {
	Messages   []ctxpkg.Message
	Tools      []ToolSpec
	ToolChoice string
	MaxTokens  int
}

// CompletionResponse is the common response model for model providers.
type CompletionResponse struct {
	Content      string
	ToolCalls    []ctxpkg.ToolCall
	InputTokens  int
	OutputTokens int
}

// Provider is the model provider abstraction shared by the gate, the
// answerer and the summarizer.
type Provider interface {
	ChatCompletion(ctx context.Context, req Request) (CompletionResponse, error)
}

// EmptyResponse is the content reported when the backend answers with
// neither text nor tool calls.
const EmptyResponse = "(empty model response)"

// IsEmpty reports whether a response carries no usable text or tool calls.
func (r CompletionResponse) IsEmpty() bool {
	content := strings.TrimSpace(r.Content)
	return len(r.ToolCalls) == 0 && (content == "" || content == EmptyResponse)
}

// RateLimitError signals that the backend throttled the request.
type RateLimitError struct {
	Message    string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("model backend rate limited: %s", e.Message)
}
