// README: Smoke-check cases; includes HTTP, DB, Redis, and SSE framing checks.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

type Runner struct {
	cfg   Config
	httpc *http.Client
	db    *pgxpool.Pool
	redis *redis.Client
}

type Result struct {
	Name    string
	Status  string
	Latency time.Duration
	Note    string
}

type TestCase struct {
	Name string
	Run  func(ctx context.Context, r *Runner) Result
}

func NewRunner(cfg Config) *Runner {
	return &Runner{
		cfg:   cfg,
		httpc: &http.Client{Timeout: 90 * time.Second},
	}
}

func (r *Runner) RunAll(ctx context.Context) []Result {
	if r.cfg.DSN != "" {
		if db, err := pgxpool.New(ctx, r.cfg.DSN); err == nil {
			r.db = db
		}
	}
	if r.cfg.RedisAddr != "" {
		r.redis = redis.NewClient(&redis.Options{Addr: r.cfg.RedisAddr})
	}

	tests := r.cases()
	results := make([]Result, 0, len(tests))

	for _, tc := range tests {
		res := tc.Run(ctx, r)
		results = append(results, res)
		fmt.Printf("%-7s %s", res.Status, tc.Name)
		if res.Latency > 0 {
			fmt.Printf(" (%s)", res.Latency)
		}
		if res.Note != "" {
			fmt.Printf(" - %s", res.Note)
		}
		fmt.Println()
	}

	if r.db != nil {
		r.db.Close()
	}
	if r.redis != nil {
		_ = r.redis.Close()
	}

	return results
}

func planRequestBody(days int) []byte {
	b, _ := json.Marshal(map[string]any{
		"destination": "Kyoto",
		"startDate":   time.Now().AddDate(0, 0, 30).Format("2006-01-02"),
		"days":        days,
	})
	return b
}

func (r *Runner) cases() []TestCase {
	base := r.cfg.BaseURL
	return []TestCase{
		{
			Name: "Env: Postgres connect",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.db == nil {
					return Result{Status: "SKIP", Note: "db not configured"}
				}
				ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
				defer cancel()
				if err := r.db.Ping(ctx); err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				return Result{Status: "PASS"}
			},
		},
		{
			Name: "Env: Redis connect",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.redis == nil {
					return Result{Status: "SKIP", Note: "redis not configured"}
				}
				ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
				defer cancel()
				if err := r.redis.Ping(ctx).Err(); err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				return Result{Status: "PASS"}
			},
		},
		{
			Name: "Migration: apply (optional)",
			Run: func(ctx context.Context, r *Runner) Result {
				if !r.cfg.ApplyMigration {
					return Result{Status: "SKIP", Note: "disabled"}
				}
				if r.db == nil {
					return Result{Status: "FAIL", Note: "db not configured"}
				}
				content, err := os.ReadFile(r.cfg.MigrationPath)
				if err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				for _, stmt := range strings.Split(string(content), ";") {
					stmt = strings.TrimSpace(stmt)
					if stmt == "" {
						continue
					}
					if _, err := r.db.Exec(ctx, stmt); err != nil {
						return Result{Status: "FAIL", Note: err.Error()}
					}
				}
				return Result{Status: "PASS"}
			},
		},
		{
			Name: "HTTP: health",
			Run: func(ctx context.Context, r *Runner) Result {
				started := time.Now()
				resp, err := r.get(ctx, base+"/health")
				if err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				defer resp.Body.Close()
				if resp.StatusCode != http.StatusOK {
					return Result{Status: "FAIL", Note: resp.Status}
				}
				return Result{Status: "PASS", Latency: time.Since(started)}
			},
		},
		{
			Name: "HTTP: health burst",
			Run: func(ctx context.Context, r *Runner) Result {
				var wg sync.WaitGroup
				errs := make(chan error, r.cfg.Concurrency)
				started := time.Now()
				for i := 0; i < r.cfg.Concurrency; i++ {
					wg.Add(1)
					go func() {
						defer wg.Done()
						resp, err := r.get(ctx, base+"/health")
						if err != nil {
							errs <- err
							return
						}
						resp.Body.Close()
						if resp.StatusCode != http.StatusOK {
							errs <- fmt.Errorf("status %d", resp.StatusCode)
						}
					}()
				}
				wg.Wait()
				close(errs)
				if err := <-errs; err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				return Result{Status: "PASS", Latency: time.Since(started)}
			},
		},
		{
			Name: "HTTP: legacy generate returns a plan",
			Run: func(ctx context.Context, r *Runner) Result {
				started := time.Now()
				resp, err := r.post(ctx, base+"/api/plans/generate/legacy", planRequestBody(2))
				if err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				defer resp.Body.Close()
				if resp.StatusCode != http.StatusOK {
					return Result{Status: "FAIL", Note: resp.Status}
				}
				var plan struct {
					Itinerary []json.RawMessage `json:"itinerary"`
				}
				if err := json.NewDecoder(resp.Body).Decode(&plan); err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				if len(plan.Itinerary) != 2 {
					return Result{Status: "FAIL", Note: fmt.Sprintf("%d days", len(plan.Itinerary))}
				}
				return Result{Status: "PASS", Latency: time.Since(started)}
			},
		},
		{
			Name: "HTTP: progressive generate streams SSE frames",
			Run: func(ctx context.Context, r *Runner) Result {
				started := time.Now()
				resp, err := r.post(ctx, base+"/api/plans/generate", planRequestBody(1))
				if err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				defer resp.Body.Close()
				if resp.StatusCode != http.StatusOK {
					return Result{Status: "FAIL", Note: resp.Status}
				}
				if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
					return Result{Status: "FAIL", Note: "content type " + ct}
				}
				body, err := io.ReadAll(resp.Body)
				if err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				text := string(body)
				if !strings.Contains(text, `"phase":"starting"`) {
					return Result{Status: "FAIL", Note: "no starting frame"}
				}
				if !strings.Contains(text, `"phase":"done"`) && !strings.Contains(text, `"phase":"error"`) {
					return Result{Status: "FAIL", Note: "stream not terminated"}
				}
				return Result{Status: "PASS", Latency: time.Since(started)}
			},
		},
		{
			Name: "Quota: exhausted user gets 429",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.db == nil {
					return Result{Status: "SKIP", Note: "db not configured"}
				}
				uid := fmt.Sprintf("bench%d", time.Now().UnixNano())
				_, err := r.db.Exec(ctx, `
					INSERT INTO ai_usage (uid, tokens_remaining, last_reset_month)
					VALUES ($1, 0, TO_CHAR(NOW(), 'YYYY-MM'))`, uid)
				if err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				req, err := http.NewRequestWithContext(ctx, http.MethodPost,
					base+"/api/plans/generate/legacy", bytes.NewReader(planRequestBody(1)))
				if err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				req.Header.Set("Content-Type", "application/json")
				req.Header.Set("X-User-ID", uid)
				resp, err := r.httpc.Do(req)
				if err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				defer resp.Body.Close()
				if resp.StatusCode != http.StatusTooManyRequests {
					return Result{Status: "FAIL", Note: resp.Status}
				}
				return Result{Status: "PASS"}
			},
		},
	}
}

func (r *Runner) get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	return r.httpc.Do(req)
}

func (r *Runner) post(ctx context.Context, url string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "bench")
	return r.httpc.Do(req)
}
