package tool

// Result is the output envelope for tool execution. Content is what the
// model sees.
type Result struct {
	OK             bool           `json:"ok"`
	Content        string         `json:"content"`
	TruncatedBytes bool           `json:"truncated_bytes"`
	Meta           map[string]any `json:"meta,omitempty"`
}
