package context

// Assembler combines system instructions, the running summary, and the
// current user message into a final message list.
type Assembler interface {
	Assemble(system string, summary string, userMsg string) []Message
}
