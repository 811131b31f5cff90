package domain

// ChatMessage is the provider-agnostic chat message shape used by the relay
// and LLM integrations.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest is a single non-streaming completion sent upstream.
type CompletionRequest struct {
	Model     string
	MaxTokens int
	Messages  []ChatMessage
}
