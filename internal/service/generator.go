// Package service backs the planner's collaborator interfaces with LLM calls.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"voyago/internal/jsonrepair"
	"voyago/internal/llm"
	"voyago/internal/planner"
)

// Per-call output budgets. Days are richer than the summary.
const (
	summaryMaxTokens = 2048
	dayMaxTokens     = 3072
	legacyMaxTokens  = 8192
)

// Generator implements the planner's SummaryService, DayService and
// LegacyPlanSource on top of an LLM provider. It is safe for concurrent use.
type Generator struct {
	provider llm.Provider

	mu    sync.Mutex
	tally llm.TokenUsage
}

// NewGenerator creates a Generator backed by the given provider.
func NewGenerator(provider llm.Provider) *Generator {
	return &Generator{provider: provider}
}

// ProviderName reports which backend the generator runs on.
func (g *Generator) ProviderName() string {
	return g.provider.Name()
}

// Usage returns the process-lifetime token totals across every call the
// generator has made. Per-run accounting goes through WithUsageTally.
func (g *Generator) Usage() llm.TokenUsage {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.tally
}

// UsageTally accumulates token usage for the calls made under one context.
// Safe for the concurrent calls a single run fans out.
type UsageTally struct {
	mu    sync.Mutex
	usage llm.TokenUsage
}

func (t *UsageTally) add(u llm.TokenUsage) {
	t.mu.Lock()
	t.usage.PromptTokens += u.PromptTokens
	t.usage.CompletionTokens += u.CompletionTokens
	t.usage.TotalTokens += u.TotalTokens
	t.mu.Unlock()
}

// Total returns the usage accumulated so far.
func (t *UsageTally) Total() llm.TokenUsage {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.usage
}

type usageTallyKey struct{}

// WithUsageTally attaches a fresh tally to ctx. Every generator call made
// under the returned context adds its token usage to the tally, so one run's
// accounting stays separate from the shared generator's lifetime totals.
func WithUsageTally(ctx context.Context) (context.Context, *UsageTally) {
	t := &UsageTally{}
	return context.WithValue(ctx, usageTallyKey{}, t), t
}

// GenerateSummary produces the plan overview and proposed day titles.
func (g *Generator) GenerateSummary(ctx context.Context, params planner.TripParams) (*planner.SummaryResult, error) {
	resp, err := g.complete(ctx, summaryPrompt(params), summaryMaxTokens)
	if err != nil {
		return nil, fmt.Errorf("summary: %w", err)
	}
	var res planner.SummaryResult
	if err := jsonrepair.RepairInto(resp.Content, &res); err != nil {
		return nil, fmt.Errorf("summary: unusable response: %w", err)
	}
	return &res, nil
}

// GenerateDay produces a single day of the itinerary.
func (g *Generator) GenerateDay(ctx context.Context, req planner.DayRequest) (*planner.ItineraryDay, error) {
	resp, err := g.complete(ctx, dayPrompt(req), dayMaxTokens)
	if err != nil {
		return nil, fmt.Errorf("day %d: %w", req.DayNumber, err)
	}
	var day planner.ItineraryDay
	if err := jsonrepair.RepairInto(resp.Content, &day); err != nil {
		return nil, fmt.Errorf("day %d: unusable response: %w", req.DayNumber, err)
	}
	if len(day.Timeline) == 0 {
		return nil, fmt.Errorf("day %d: response has no timeline", req.DayNumber)
	}
	return &day, nil
}

// ErrStreamingUnsupported is returned by StreamPlanText when the configured
// provider has no streaming transport.
var ErrStreamingUnsupported = errors.New("service: provider does not support streaming")

// StreamPlanText streams the whole-plan generation as raw text events.
func (g *Generator) StreamPlanText(ctx context.Context, params planner.TripParams) (<-chan llm.StreamEvent, error) {
	sp, ok := g.provider.(llm.StreamingProvider)
	if !ok {
		return nil, ErrStreamingUnsupported
	}
	return sp.Stream(ctx, llm.CompletionRequest{
		Messages:  []llm.Message{{Role: llm.RoleUser, Content: legacyPrompt(params)}},
		System:    plannerSystemPrompt,
		MaxTokens: legacyMaxTokens,
	})
}

// GeneratePlanText produces the whole plan as raw model text in one call, for
// the single-request pipeline. Parsing is left to the caller.
func (g *Generator) GeneratePlanText(ctx context.Context, params planner.TripParams) (string, error) {
	resp, err := g.complete(ctx, legacyPrompt(params), legacyMaxTokens)
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

func (g *Generator) complete(ctx context.Context, prompt string, maxTokens int) (*llm.CompletionResponse, error) {
	resp, err := g.provider.Complete(ctx, llm.CompletionRequest{
		Messages:  []llm.Message{{Role: llm.RoleUser, Content: prompt}},
		System:    plannerSystemPrompt,
		MaxTokens: maxTokens,
	})
	if err != nil {
		return nil, err
	}
	if resp.Usage != nil {
		g.mu.Lock()
		g.tally.PromptTokens += resp.Usage.PromptTokens
		g.tally.CompletionTokens += resp.Usage.CompletionTokens
		g.tally.TotalTokens += resp.Usage.TotalTokens
		g.mu.Unlock()
		if t, ok := ctx.Value(usageTallyKey{}).(*UsageTally); ok {
			t.add(*resp.Usage)
		}
	}
	return resp, nil
}
