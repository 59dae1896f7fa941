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
	anthropicEndpoint     = "https://api.anthropic.com/v1/messages"
	anthropicVersion      = "2023-06-01"
	defaultAnthropicModel = "claude-3-5-haiku-latest"

	// Anthropic requires max_tokens; this is the cap when the request
	// does not set one.
	anthropicDefaultMaxTokens = 4096
)

// Anthropic calls the Anthropic messages endpoint, optionally streaming.
type Anthropic struct {
	apiKey     string
	model      string
	endpoint   string
	httpClient *http.Client
}

// NewAnthropic returns an Anthropic-backed provider.
func NewAnthropic(apiKey, model, endpoint string) *Anthropic {
	if model == "" {
		model = defaultAnthropicModel
	}
	if endpoint == "" {
		endpoint = anthropicEndpoint
	}
	return &Anthropic{apiKey: apiKey, model: model, endpoint: endpoint, httpClient: &http.Client{}}
}

// Name returns the provider identifier.
func (p *Anthropic) Name() string { return "anthropic" }

// anthropic wire schema. These types never leak past this adapter.
type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Messages    []anthropicMessage `json:"messages"`
	System      string             `json:"system,omitempty"`
	Temperature *float64           `json:"temperature,omitempty"`
	Stream      bool               `json:"stream,omitempty"`
}

type anthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string         `json:"stop_reason"`
	Usage      anthropicUsage `json:"usage"`
	Error      *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// anthropicStreamFrame covers the event shapes the stream can carry. Input
// tokens arrive on message_start, output tokens on message_delta — usage is
// assembled from both.
type anthropicStreamFrame struct {
	Type    string `json:"type"`
	Message *struct {
		Usage anthropicUsage `json:"usage"`
	} `json:"message"`
	Delta *struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
	Usage *anthropicUsage `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (p *Anthropic) buildRequest(req CompletionRequest, stream bool) anthropicRequest {
	out := anthropicRequest{
		Model:       p.model,
		MaxTokens:   req.MaxTokens,
		System:      req.System,
		Temperature: req.Temperature,
		Stream:      stream,
	}
	if out.MaxTokens <= 0 {
		out.MaxTokens = anthropicDefaultMaxTokens
	}
	for _, m := range req.Messages {
		if m.Role == RoleSystem {
			// The messages API carries system text on a dedicated field.
			if out.System == "" {
				out.System = m.Content
			} else {
				out.System += "\n\n" + m.Content
			}
			continue
		}
		out.Messages = append(out.Messages, anthropicMessage{Role: m.Role, Content: m.Content})
	}
	return out
}

func (p *Anthropic) post(ctx context.Context, body anthropicRequest) (*http.Response, error) {
	reqBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("anthropic: marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("anthropic: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", p.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)
	return p.httpClient.Do(httpReq)
}

// Complete sends a non-streaming messages request.
func (p *Anthropic) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	timeout := requestTimeout(req)
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := p.post(ctx, p.buildRequest(req, false))
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, timeoutError(p.Name(), timeout)
		}
		return nil, fmt.Errorf("anthropic: do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("anthropic: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("anthropic: api error: status=%d body=%s", resp.StatusCode, body)
	}

	var ar anthropicResponse
	if err := json.Unmarshal(body, &ar); err != nil {
		return nil, fmt.Errorf("anthropic: unmarshal response: %w", err)
	}
	if ar.Error != nil {
		return nil, fmt.Errorf("anthropic: api error: %s", ar.Error.Message)
	}

	var content strings.Builder
	for _, block := range ar.Content {
		if block.Type == "text" {
			content.WriteString(block.Text)
		}
	}
	return &CompletionResponse{
		Content: content.String(),
		Usage: &TokenUsage{
			PromptTokens:     ar.Usage.InputTokens,
			CompletionTokens: ar.Usage.OutputTokens,
			TotalTokens:      ar.Usage.InputTokens + ar.Usage.OutputTokens,
		},
	}, nil
}

// Stream sends a streaming messages request and converts the SSE frames into
// the uniform event sequence.
func (p *Anthropic) Stream(ctx context.Context, req CompletionRequest) (<-chan StreamEvent, error) {
	timeout := requestTimeout(req)
	ctx, cancel := context.WithTimeout(ctx, timeout)

	resp, err := p.post(ctx, p.buildRequest(req, true))
	if err != nil {
		cancel()
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, timeoutError(p.Name(), timeout)
		}
		return nil, fmt.Errorf("anthropic: do request: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("anthropic: api error: status=%d body=%s", resp.StatusCode, body)
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

		usage := &TokenUsage{}
		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)

		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || !strings.HasPrefix(line, "data:") {
				continue
			}
			payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))

			var frame anthropicStreamFrame
			if err := json.Unmarshal([]byte(payload), &frame); err != nil {
				continue // skip malformed frames
			}

			switch frame.Type {
			case "message_start":
				if frame.Message != nil {
					usage.PromptTokens = frame.Message.Usage.InputTokens
				}
			case "content_block_delta":
				if frame.Delta != nil && frame.Delta.Text != "" {
					if !send(StreamEvent{Type: StreamText, Text: frame.Delta.Text}) {
						return
					}
				}
			case "message_delta":
				if frame.Usage != nil {
					usage.CompletionTokens = frame.Usage.OutputTokens
				}
			case "error":
				msg := "unknown stream error"
				if frame.Error != nil {
					msg = frame.Error.Message
				}
				send(StreamEvent{Type: StreamError, Err: fmt.Errorf("anthropic: %s", msg)})
				return
			case "message_stop":
				usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
				send(StreamEvent{Type: StreamDone, Usage: usage})
				return
			}
		}

		if err := scanner.Err(); err != nil {
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				send(StreamEvent{Type: StreamError, Err: timeoutError(p.Name(), timeout)})
				return
			}
			send(StreamEvent{Type: StreamError, Err: fmt.Errorf("anthropic: read stream: %w", err)})
			return
		}
		usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
		send(StreamEvent{Type: StreamDone, Usage: usage})
	}()
	return ch, nil
}
