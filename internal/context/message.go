package context

import "encoding/json"

// Chat roles understood by every backend.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is a model-agnostic chat message used across the request pipeline.
type Message struct {
	Role       string
	Content    string
	ToolCalls  []ToolCall
	ToolCallID string
	Name       string
}

// ToolCall is one function invocation requested by the model.
type ToolCall struct {
	ID        string
	Name      string
	Arguments json.RawMessage
}

// Turn is one role/content pair of a structured conversation history.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
