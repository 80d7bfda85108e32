package context

import "strings"

// SummaryPreamble prefixes the running summary inside the composed prompt.
const SummaryPreamble = "Previous conversation summary:"

// StandardAssembler builds system + composed user prompt.
type StandardAssembler struct{}

// Assemble builds the final message list. The system message is omitted
// when empty.
func (a *StandardAssembler) Assemble(system string, summary string, userMsg string) []Message {
	messages := make([]Message, 0, 2)
	if strings.TrimSpace(system) != "" {
		messages = append(messages, Message{Role: RoleSystem, Content: system})
	}
	messages = append(messages, Message{Role: RoleUser, Content: ComposePrompt(summary, userMsg)})
	return messages
}

// ComposePrompt returns the raw message, preceded by a summary preamble when
// a prior summary is present.
func ComposePrompt(summary string, userMsg string) string {
	summary = strings.TrimSpace(summary)
	if summary == "" {
		return userMsg
	}
	return SummaryPreamble + " " + summary + "\n\n" + userMsg
}

// LatestContent returns the content of the most recent turn, or "" when
// turns is empty.
func LatestContent(turns []Turn) string {
	if len(turns) == 0 {
		return ""
	}
	return turns[len(turns)-1].Content
}
