package llm

import (
	"context"
	"fmt"
	"sync"
)

// Options selects and configures the active provider backend.
type Options struct {
	// Provider picks the backend: "claude-cli", "openai", "anthropic" or
	// "gemini".
	Provider string

	ClaudeBin string

	OpenAIKey      string
	OpenAIModel    string
	OpenAIEndpoint string

	AnthropicKey      string
	AnthropicModel    string
	AnthropicEndpoint string

	GeminiKey   string
	GeminiModel string
}

// New constructs the provider selected by opts.Provider. Unknown values fail
// here, at construction, not at first use.
func New(ctx context.Context, opts Options) (Provider, error) {
	switch opts.Provider {
	case "claude-cli":
		return NewClaudeCLI(opts.ClaudeBin), nil
	case "openai":
		if opts.OpenAIKey == "" {
			return nil, fmt.Errorf("llm: openai provider requires an API key")
		}
		return NewOpenAI(opts.OpenAIKey, opts.OpenAIModel, opts.OpenAIEndpoint), nil
	case "anthropic":
		if opts.AnthropicKey == "" {
			return nil, fmt.Errorf("llm: anthropic provider requires an API key")
		}
		return NewAnthropic(opts.AnthropicKey, opts.AnthropicModel, opts.AnthropicEndpoint), nil
	case "gemini":
		if opts.GeminiKey == "" {
			return nil, fmt.Errorf("llm: gemini provider requires an API key")
		}
		return NewGemini(ctx, opts.GeminiKey, opts.GeminiModel)
	default:
		return nil, fmt.Errorf("llm: unknown AI provider %q", opts.Provider)
	}
}

var (
	defaultMu       sync.Mutex
	defaultProvider Provider
)

// Default returns the process-wide provider, constructing it on first call.
// The cached instance is read-only after construction and safe for concurrent
// generation sessions.
func Default(ctx context.Context, opts Options) (Provider, error) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultProvider != nil {
		return defaultProvider, nil
	}
	p, err := New(ctx, opts)
	if err != nil {
		return nil, err
	}
	defaultProvider = p
	return p, nil
}

// ResetDefault clears the cached provider so the next Default call
// reconstructs it. Intended for reconfiguration and test isolation.
func ResetDefault() {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if c, ok := defaultProvider.(*Gemini); ok {
		c.Close()
	}
	defaultProvider = nil
}
