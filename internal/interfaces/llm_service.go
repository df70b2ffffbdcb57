package interfaces

import "context"

// Message is one turn of an LLM conversation
type Message struct {
	Role    string // "system", "user", "assistant"
	Content string
}

// LLMService generates script text from a grounding conversation.
// Implementations must bound every call with a timeout and capped retry;
// failures propagate to the caller, which wraps them as GenerationError.
type LLMService interface {
	// Complete generates a completion for the conversation history
	Complete(ctx context.Context, messages []Message) (string, error)

	// HealthCheck verifies the service can handle requests
	HealthCheck(ctx context.Context) error

	// Provider returns the provider name for logging
	Provider() string

	Close() error
}
