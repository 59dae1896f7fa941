package llm

import "time"

// Message roles understood by every provider.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one role-tagged chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest describes one completion call. It is immutable per call;
// providers must not retain or modify it.
type CompletionRequest struct {
	// Messages is the ordered chat history to send.
	Messages []Message

	// System carries optional system instructions. Providers that support a
	// native system channel use it directly; others fold it into the prompt.
	System string

	// MaxTokens limits response length. 0 uses the provider default.
	MaxTokens int

	// Temperature controls randomness. nil uses the provider default.
	Temperature *float64

	// Timeout bounds the underlying transport call. 0 uses DefaultTimeout.
	Timeout time.Duration
}

// TokenUsage reports token consumption when the backend provides it.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// CompletionResponse is the uniform result of a non-streaming call.
type CompletionResponse struct {
	Content string
	Usage   *TokenUsage
}

// StreamEventType tags events on a provider stream.
type StreamEventType string

const (
	StreamText  StreamEventType = "text"
	StreamDone  StreamEventType = "done"
	StreamError StreamEventType = "error"
)

// StreamEvent is one element of a provider's event stream. A stream carries
// zero or more text events and terminates in exactly one done or error event.
type StreamEvent struct {
	Type  StreamEventType
	Text  string
	Usage *TokenUsage
	Err   error
}
