package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	openAIEndpoint     = "https://api.openai.com/v1/chat/completions"
	defaultOpenAIModel = "gpt-4o-mini"
)

// OpenAI calls the OpenAI chat completions endpoint, optionally streaming.
type OpenAI struct {
	apiKey     string
	model      string
	endpoint   string
	httpClient *http.Client
}

// NewOpenAI returns an OpenAI-backed provider. An empty model uses the
// package default; endpoint overrides exist for tests and proxies.
func NewOpenAI(apiKey, model, endpoint string) *OpenAI {
	if model == "" {
		model = defaultOpenAIModel
	}
	if endpoint == "" {
		endpoint = openAIEndpoint
	}
	// No client-level timeout: streaming calls outlive any fixed transport
	// timeout, the per-request context bounds each call instead.
	return &OpenAI{apiKey: apiKey, model: model, endpoint: endpoint, httpClient: &http.Client{}}
}

// Name returns the provider identifier.
func (p *OpenAI) Name() string { return "openai" }

// openAI wire schema. These types never leak past this adapter.
type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIStreamOptions struct {
	IncludeUsage bool `json:"include_usage"`
}

type openAIRequest struct {
	Model         string               `json:"model"`
	Messages      []openAIMessage      `json:"messages"`
	MaxTokens     int                  `json:"max_tokens,omitempty"`
	Temperature   *float64             `json:"temperature,omitempty"`
	Stream        bool                 `json:"stream,omitempty"`
	StreamOptions *openAIStreamOptions `json:"stream_options,omitempty"`
}

type openAIUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type openAIResponse struct {
	Choices []struct {
		Message      openAIMessage `json:"message"`
		FinishReason string        `json:"finish_reason"`
	} `json:"choices"`
	Usage *openAIUsage `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// openAIChunk is one streaming delta frame.
type openAIChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
	Usage *openAIUsage `json:"usage"`
}

func (p *OpenAI) buildMessages(req CompletionRequest) []openAIMessage {
	msgs := make([]openAIMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		msgs = append(msgs, openAIMessage{Role: RoleSystem, Content: req.System})
	}
	for _, m := range req.Messages {
		msgs = append(msgs, openAIMessage{Role: m.Role, Content: m.Content})
	}
	return msgs
}

func (p *OpenAI) post(ctx context.Context, body any) (*http.Response, error) {
	reqBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("openai: marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("openai: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	return p.httpClient.Do(httpReq)
}

// Complete sends a non-streaming chat completion request.
func (p *OpenAI) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	timeout := requestTimeout(req)
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := p.post(ctx, openAIRequest{
		Model:       p.model,
		Messages:    p.buildMessages(req),
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, timeoutError(p.Name(), timeout)
		}
		return nil, fmt.Errorf("openai: do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("openai: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("openai: api error: status=%d body=%s", resp.StatusCode, body)
	}

	var cr openAIResponse
	if err := json.Unmarshal(body, &cr); err != nil {
		return nil, fmt.Errorf("openai: unmarshal response: %w", err)
	}
	if cr.Error != nil {
		return nil, fmt.Errorf("openai: api error: %s", cr.Error.Message)
	}
	if len(cr.Choices) == 0 {
		return nil, fmt.Errorf("openai: API returned empty choices array (raw: %s)", body)
	}

	out := &CompletionResponse{Content: cr.Choices[0].Message.Content}
	if cr.Usage != nil {
		out.Usage = &TokenUsage{
			PromptTokens:     cr.Usage.PromptTokens,
			CompletionTokens: cr.Usage.CompletionTokens,
			TotalTokens:      cr.Usage.TotalTokens,
		}
	}
	return out, nil
}

// Stream sends a streaming chat completion request and converts the SSE
// frames into the uniform event sequence.
func (p *OpenAI) Stream(ctx context.Context, req CompletionRequest) (<-chan StreamEvent, error) {
	timeout := requestTimeout(req)
	ctx, cancel := context.WithTimeout(ctx, timeout)

	resp, err := p.post(ctx, openAIRequest{
		Model:         p.model,
		Messages:      p.buildMessages(req),
		MaxTokens:     req.MaxTokens,
		Temperature:   req.Temperature,
		Stream:        true,
		StreamOptions: &openAIStreamOptions{IncludeUsage: true},
	})
	if err != nil {
		cancel()
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, timeoutError(p.Name(), timeout)
		}
		return nil, fmt.Errorf("openai: do request: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("openai: api error: status=%d body=%s", resp.StatusCode, body)
	}

	ch := make(chan StreamEvent)
	go func() {
		defer close(ch)
		defer cancel()
		defer resp.Body.Close()

		// Sends race against the caller abandoning the channel; cancellation
		// must release the goroutine, not leave it blocked.
		send := func(ev StreamEvent) bool {
			select {
			case ch <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}

		var usage *TokenUsage
		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)

		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || !strings.HasPrefix(line, "data:") {
				continue
			}
			payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if payload == "[DONE]" {
				send(StreamEvent{Type: StreamDone, Usage: usage})
				return
			}

			var chunk openAIChunk
			if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
				// Malformed individual frames are skipped, never fatal.
				continue
			}
			if chunk.Usage != nil {
				usage = &TokenUsage{
					PromptTokens:     chunk.Usage.PromptTokens,
					CompletionTokens: chunk.Usage.CompletionTokens,
					TotalTokens:      chunk.Usage.TotalTokens,
				}
			}
			if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
				if !send(StreamEvent{Type: StreamText, Text: chunk.Choices[0].Delta.Content}) {
					return
				}
			}
		}

		if err := scanner.Err(); err != nil {
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				send(StreamEvent{Type: StreamError, Err: timeoutError(p.Name(), timeout)})
				return
			}
			send(StreamEvent{Type: StreamError, Err: fmt.Errorf("openai: read stream: %w", err)})
			return
		}
		// Stream ended without an explicit [DONE]; still terminate cleanly.
		send(StreamEvent{Type: StreamDone, Usage: usage})
	}()
	return ch, nil
}
