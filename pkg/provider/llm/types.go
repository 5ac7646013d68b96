package llm

// Role values used in conversation histories sent to providers.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single entry in the conversation history sent to an LLM.
type Message struct {
	// Role is one of RoleSystem, RoleUser, or RoleAssistant.
	Role string

	// Content is the textual content of the message.
	Content string

	// Name optionally identifies the speaker (the persona's display name) for
	// providers that support per-message author names. Multi-party histories
	// flattened into a single user message leave this empty.
	Name string
}
