// README: End-to-end test against a running API; exercises legacy generation and the quota guard.
package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// TestLegacyGenerateAndQuotaGuard drives a deployed server: a fresh user can
// generate a plan, and a user with an exhausted quota is refused with 429.
// It skips unless VOYAGO_API_BASE_URL is set.
func TestLegacyGenerateAndQuotaGuard(t *testing.T) {
	baseURL := strings.TrimRight(os.Getenv("VOYAGO_API_BASE_URL"), "/")
	if baseURL == "" {
		t.Skip("VOYAGO_API_BASE_URL not set; skipping integration test")
	}
	dsn := os.Getenv("VOYAGO_TEST_DSN")
	if dsn == "" {
		dsn = os.Getenv("VOYAGO_DB_DSN")
	}
	if dsn == "" {
		t.Skip("no postgres DSN set; skipping integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	db, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(db.Close)

	client := &http.Client{Timeout: 90 * time.Second}
	uid := fmt.Sprintf("it%d", time.Now().UnixNano())

	body, _ := json.Marshal(map[string]any{
		"destination": "Kyoto",
		"startDate":   time.Now().AddDate(0, 0, 30).Format("2006-01-02"),
		"days":        1,
	})

	resp := doGenerate(t, ctx, client, baseURL, uid, body)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("first generate returned %s", resp.Status)
	}
	var plan struct {
		ID        string            `json:"id"`
		Itinerary []json.RawMessage `json:"itinerary"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&plan); err != nil {
		t.Fatalf("decode plan: %v", err)
	}
	if plan.ID == "" || len(plan.Itinerary) != 1 {
		t.Fatalf("unexpected plan: id=%q days=%d", plan.ID, len(plan.Itinerary))
	}

	// The run must be logged and a token consumed.
	var remaining int
	if err := db.QueryRow(ctx,
		"SELECT tokens_remaining FROM ai_usage WHERE uid = $1", uid).Scan(&remaining); err != nil {
		t.Fatalf("query ai_usage: %v", err)
	}
	if remaining >= 100 {
		t.Errorf("tokens_remaining = %d, want less than the monthly grant", remaining)
	}

	// Exhaust the quota, then expect a refusal.
	if _, err := db.Exec(ctx,
		"UPDATE ai_usage SET tokens_remaining = 0 WHERE uid = $1", uid); err != nil {
		t.Fatalf("exhaust quota: %v", err)
	}
	resp2 := doGenerate(t, ctx, client, baseURL, uid, body)
	defer resp2.Body.Close()
	if resp2.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("exhausted user got %s, want 429", resp2.Status)
	}
}

func doGenerate(t *testing.T, ctx context.Context, client *http.Client, baseURL, uid string, body []byte) *http.Response {
	t.Helper()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		baseURL+"/api/plans/generate/legacy", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", uid)
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	return resp
}
