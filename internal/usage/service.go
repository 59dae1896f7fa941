package usage

import (
	"context"
	"log"

	"voyago/internal/metrics"
)

// Service orchestrates generation quota and logging.
type Service struct {
	store *Store
}

// NewService creates a Service backed by the given Store.
func NewService(store *Store) *Service {
	return &Service{store: store}
}

// UseToken deducts one generation from the user's monthly allowance.
// If the user row does not exist yet it is initialised and the token is immediately consumed.
// Returns ErrInsufficientTokens when the quota for the current month is exhausted.
func (s *Service) UseToken(ctx context.Context, uid string) error {
	err := s.store.UseToken(ctx, uid)
	if err != ErrInsufficientTokens {
		return err
	}

	// Row may be missing: try to create it, then retry the deduction once.
	if initErr := s.store.EnsureUser(ctx, uid); initErr != nil {
		return initErr
	}
	return s.store.UseToken(ctx, uid)
}

// LogGeneration records a finished run. Logging failures are not propagated;
// a lost log line must never fail a generation the user already received.
func (s *Service) LogGeneration(ctx context.Context, rec GenerationRecord) {
	if err := s.store.LogGeneration(ctx, rec); err != nil {
		log.Printf("usage: failed to log generation for %q: %v", rec.UID, err)
	}
}

// LogSteps records the per-step timings of a finished run. Like LogGeneration
// it never propagates failures.
func (s *Service) LogSteps(ctx context.Context, sessionID, provider string, steps []metrics.StepMetrics) {
	if len(steps) == 0 {
		return
	}
	if err := s.store.LogSteps(ctx, sessionID, provider, steps); err != nil {
		log.Printf("usage: failed to log steps for session %q: %v", sessionID, err)
	}
}
