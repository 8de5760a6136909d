package ai

import "context"

// ChatMessage is one turn of a chat completion request.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatGenerator produces a completion for a message history.
// All LLM providers (Gemini, OpenAI-compatible) implement this interface.
type ChatGenerator interface {
	Complete(ctx context.Context, messages []ChatMessage, maxTokens int, temperature float64) (string, error)
}
