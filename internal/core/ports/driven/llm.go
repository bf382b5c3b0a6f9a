package driven

import "context"

// LLMService is a chat-capable language model. It is nil-able: without one
// the classifier falls back to rules and answers degrade to templates.
type LLMService interface {
	// Generate completes a single prompt. Used for classification.
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)

	// Chat answers a conversation in one piece.
	Chat(ctx context.Context, messages []ChatMessage, opts ChatOptions) (string, error)

	// Stream answers a conversation incrementally. The channel is closed when
	// the answer ends; a chunk carrying Err is always the final one.
	// Cancelling ctx stops generation.
	Stream(ctx context.Context, messages []ChatMessage, opts ChatOptions) (<-chan StreamChunk, error)

	ModelName() string

	// Ping issues the cheapest request the provider supports.
	Ping(ctx context.Context) error

	Close() error
}

// StreamChunk is one text delta, or the error that ended a stream.
type StreamChunk struct {
	Content string
	Err     error
}

// Chat roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is one turn of a conversation.
type ChatMessage struct {
	Role    string
	Content string
}

// ChatOptions tunes a Chat or Stream call. Zero values leave the provider
// default in place.
type ChatOptions struct {
	MaxTokens   int
	Temperature float64
}

// GenerateOptions tunes a Generate call.
type GenerateOptions struct {
	MaxTokens   int
	Temperature float64
	// Stop ends generation at the first occurrence of any sequence.
	Stop []string
}
