// Package usage tracks per-user monthly generation quota and logs what each
// generation run cost.
package usage

import (
	"errors"
	"time"
)

// ErrInsufficientTokens is returned when a user has no generations remaining for the current month.
var ErrInsufficientTokens = errors.New("insufficient tokens")

// DefaultTokens is the number of generations granted per month.
const DefaultTokens = 100

// GenerationRecord is one logged generation run.
type GenerationRecord struct {
	UID          string
	Destination  string
	Days         int
	Provider     string
	PromptTokens int
	OutputTokens int
	DurationMs   int64
	Status       string
	CreatedAt    time.Time
}
