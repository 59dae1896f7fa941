// Package metrics provides a per-session step timer used to diagnose where a
// generation run spends its time.
package metrics

import (
	"context"
	"sync"
	"time"
)

// Status of a recorded step.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// StepMetrics is one timing record. Records are append-only and never mutated
// after being recorded.
type StepMetrics struct {
	Step        string         `json:"step"`
	StartedAt   time.Time      `json:"startedAt"`
	CompletedAt time.Time      `json:"completedAt"`
	DurationMs  int64          `json:"durationMs"`
	Status      string         `json:"status"`
	Error       string         `json:"error,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// Category is the step name with a trailing "-<digits>" suffix stripped,
// so "day-1" and "day-2" both report as "day".
func (m StepMetrics) Category() string {
	return stepCategory(m.Step)
}

// CategorySummary aggregates durations for a step category.
type CategorySummary struct {
	Count        int   `json:"count"`
	TotalMs      int64 `json:"totalMs"`
	ErrorCount   int   `json:"errorCount"`
	SlowestMs    int64 `json:"slowestMs"`
	SlowestIndex int   `json:"-"`
}

// Collector accumulates StepMetrics for a single generation session.
// It is session-local and must not be shared across concurrent sessions; the
// mutex only covers the session's own prefetch/summary fan-out.
type Collector struct {
	mu      sync.Mutex
	records []StepMetrics
}

// NewCollector returns an empty session collector.
func NewCollector() *Collector {
	return &Collector{}
}

// Track runs fn, recording start/end timestamps and duration under the given
// step name. A failing step still records its duration and error message
// before the error is returned to the caller.
func (c *Collector) Track(ctx context.Context, step string, fn func(ctx context.Context) error) error {
	started := time.Now()
	err := fn(ctx)
	completed := time.Now()

	rec := StepMetrics{
		Step:        step,
		StartedAt:   started,
		CompletedAt: completed,
		DurationMs:  completed.Sub(started).Milliseconds(),
		Status:      StatusSuccess,
	}
	if err != nil {
		rec.Status = StatusError
		rec.Error = err.Error()
	}
	c.mu.Lock()
	c.records = append(c.records, rec)
	c.mu.Unlock()
	return err
}

// Records returns the accumulated records in call order.
func (c *Collector) Records() []StepMetrics {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]StepMetrics, len(c.records))
	copy(out, c.records)
	return out
}

// Summary aggregates durations by step category. The category is the step
// name with a trailing "-<digits>" suffix stripped, so "day-1" and "day-2"
// both aggregate under "day". Step names are relied on to never end in a
// numeric suffix for any other reason.
func (c *Collector) Summary() map[string]CategorySummary {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]CategorySummary)
	for i, rec := range c.records {
		cat := stepCategory(rec.Step)
		s := out[cat]
		s.Count++
		s.TotalMs += rec.DurationMs
		if rec.Status == StatusError {
			s.ErrorCount++
		}
		if rec.DurationMs >= s.SlowestMs {
			s.SlowestMs = rec.DurationMs
			s.SlowestIndex = i
		}
		out[cat] = s
	}
	return out
}

// stepCategory strips a trailing "-<digits>" suffix from a step name.
func stepCategory(step string) string {
	i := len(step)
	for i > 0 && step[i-1] >= '0' && step[i-1] <= '9' {
		i--
	}
	if i < len(step) && i > 1 && step[i-1] == '-' {
		return step[:i-1]
	}
	return step
}
