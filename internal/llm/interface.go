package llm

import (
	"context"
	"fmt"
	"time"
)

// DefaultTimeout bounds a single provider call when the request does not set
// its own. The overall pipeline defines no aggregate deadline; callers that
// want one must wrap the whole invocation.
const DefaultTimeout = 30 * time.Second

// Provider is the uniform contract over interchangeable LLM backends.
// Implementations carry no per-call mutable state and are safe for concurrent
// use by multiple generation sessions.
type Provider interface {
	// Name returns the provider identifier (e.g. "gemini", "openai").
	Name() string

	// Complete sends a completion request and returns the full response.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}

// StreamingProvider is implemented by backends that can deliver output
// incrementally.
type StreamingProvider interface {
	Provider

	// Stream sends a completion request and returns an ordered event channel.
	// The channel is closed after exactly one done or error event.
	Stream(ctx context.Context, req CompletionRequest) (<-chan StreamEvent, error)
}

// requestTimeout resolves the effective timeout for a request.
func requestTimeout(req CompletionRequest) time.Duration {
	if req.Timeout > 0 {
		return req.Timeout
	}
	return DefaultTimeout
}

// timeoutError builds the distinct timeout failure every provider reports
// instead of a generic transport error.
func timeoutError(provider string, d time.Duration) error {
	return fmt.Errorf("%s: timed out after %dms", provider, d.Milliseconds())
}
