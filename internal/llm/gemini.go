package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const defaultGeminiModel = "gemini-2.0-flash"

// Gemini implements Provider using Google's Gemini models via the official
// SDK.
type Gemini struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

// NewGemini initializes a new Gemini client.
// apiKey should be provided from environment variables.
func NewGemini(ctx context.Context, apiKey, modelName string) (*Gemini, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	if modelName == "" {
		// Flash keeps latency and cost down for multi-call pipelines.
		modelName = defaultGeminiModel
	}
	model := client.GenerativeModel(modelName)

	// Force JSON responses: every pipeline step parses structured output.
	model.ResponseMIMEType = "application/json"

	return &Gemini{client: client, model: model}, nil
}

// Close cleans up the Gemini client resources.
func (p *Gemini) Close() {
	p.client.Close()
}

// Name returns the provider identifier.
func (p *Gemini) Name() string { return "gemini" }

// Complete sends the flattened conversation to Gemini and collects the text
// parts of the first candidate.
func (p *Gemini) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	timeout := requestTimeout(req)
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	model := p.model
	if req.Temperature != nil || req.MaxTokens > 0 {
		// GenerativeModel carries generation config; clone per call so the
		// shared provider stays read-only.
		clone := *p.model
		if req.Temperature != nil {
			clone.SetTemperature(float32(*req.Temperature))
		}
		if req.MaxTokens > 0 {
			clone.SetMaxOutputTokens(int32(req.MaxTokens))
		}
		model = &clone
	}

	// Appending system instructions directly to the prompt keeps context
	// binding per request, as with the CLI backend.
	prompt := flattenMessages(req.Messages)
	if sys := systemPrompt(req); sys != "" {
		prompt = sys + "\n\n" + prompt
	}

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, timeoutError(p.Name(), timeout)
		}
		return nil, fmt.Errorf("gemini: generate content: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, fmt.Errorf("gemini: API returned empty candidates")
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			text.WriteString(string(txt))
		}
	}
	if text.Len() == 0 {
		return nil, fmt.Errorf("gemini: API returned empty text parts")
	}

	out := &CompletionResponse{Content: text.String()}
	if resp.UsageMetadata != nil {
		out.Usage = &TokenUsage{
			PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
		}
	}
	return out, nil
}
