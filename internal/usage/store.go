package usage

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"voyago/internal/metrics"
)

// Store handles ai_usage and generation_log persistence.
type Store struct {
	db *pgxpool.Pool
}

// NewStore returns a Store backed by the given connection pool.
func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// UseToken atomically checks the monthly quota and deducts one token.
// It resets the counter to DefaultTokens when last_reset_month is behind the current month.
// Returns ErrInsufficientTokens when 0 rows are updated (quota exhausted or user absent).
func (s *Store) UseToken(ctx context.Context, uid string) error {
	now := time.Now().Format("2006-01")

	tag, err := s.db.Exec(ctx, `
		UPDATE ai_usage SET
			tokens_remaining = CASE WHEN last_reset_month != $1 THEN $2 - 1 ELSE tokens_remaining - 1 END,
			last_reset_month = $1
		WHERE uid = $3 AND (last_reset_month < $1 OR tokens_remaining > 0)
	`, now, DefaultTokens, uid)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrInsufficientTokens
	}
	return nil
}

// EnsureUser inserts a new ai_usage row for uid with the default token allowance.
// If the row already exists the insert is silently skipped (ON CONFLICT DO NOTHING).
func (s *Store) EnsureUser(ctx context.Context, uid string) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO ai_usage (uid, tokens_remaining, last_reset_month)
		VALUES ($1, $2, $3)
		ON CONFLICT (uid) DO NOTHING
	`, uid, DefaultTokens, time.Now().Format("2006-01"))
	return err
}

// LogGeneration appends one generation_log row.
func (s *Store) LogGeneration(ctx context.Context, rec GenerationRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO generation_log
			(uid, destination, days, provider, prompt_tokens, output_tokens, duration_ms, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, rec.UID, rec.Destination, rec.Days, rec.Provider,
		rec.PromptTokens, rec.OutputTokens, rec.DurationMs, rec.Status, rec.CreatedAt)
	return err
}

// LogSteps appends one generation_steps row per step record, all tied to the
// same session id. The first insert error aborts the batch.
func (s *Store) LogSteps(ctx context.Context, sessionID, provider string, steps []metrics.StepMetrics) error {
	for _, step := range steps {
		completed := step.CompletedAt
		if completed.IsZero() {
			completed = time.Now().UTC()
		}
		_, err := s.db.Exec(ctx, `
			INSERT INTO generation_steps (session_id, step, category, provider, duration_ms, status, error, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, sessionID, step.Step, step.Category(), provider,
			step.DurationMs, step.Status, step.Error, completed)
		if err != nil {
			return err
		}
	}
	return nil
}
