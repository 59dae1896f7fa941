package places

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"voyago/internal/planner"
)

const cacheKeyPrefix = "voyago:places:"

// DefaultCacheTTL keeps prefetched places for a day; attractions don't move.
const DefaultCacheTTL = 24 * time.Hour

// Cache wraps a PlaceSource with a redis read-through cache. Cache failures
// fall through to the underlying source.
type Cache struct {
	next planner.PlaceSource
	rdb  *redis.Client
	ttl  time.Duration
}

// NewCache wraps next with a redis cache. A zero ttl uses DefaultCacheTTL.
func NewCache(next planner.PlaceSource, rdb *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cache{next: next, rdb: rdb, ttl: ttl}
}

// Prefetch returns cached places for the destination when present, otherwise
// delegates and stores the result.
func (c *Cache) Prefetch(ctx context.Context, destination string, prefs planner.Preferences) (*planner.PlacesData, error) {
	key := cacheKey(destination, prefs)

	val, err := c.rdb.Get(ctx, key).Result()
	if err == nil {
		var data planner.PlacesData
		if jsonErr := json.Unmarshal([]byte(val), &data); jsonErr == nil {
			return &data, nil
		}
		// Corrupt entry, refetch below.
	} else if err != redis.Nil {
		log.Printf("places: cache read failed for %q: %v", key, err)
	}

	data, err := c.next.Prefetch(ctx, destination, prefs)
	if err != nil {
		return nil, err
	}
	if b, jsonErr := json.Marshal(data); jsonErr == nil {
		if setErr := c.rdb.Set(ctx, key, b, c.ttl).Err(); setErr != nil {
			log.Printf("places: cache write failed for %q: %v", key, setErr)
		}
	}
	return data, nil
}

// cacheKey folds interests in so "museums in Kyoto" and plain "Kyoto" don't
// share an entry.
func cacheKey(destination string, prefs planner.Preferences) string {
	parts := []string{strings.ToLower(strings.TrimSpace(destination))}
	for _, in := range prefs.Interests {
		parts = append(parts, strings.ToLower(strings.TrimSpace(in)))
	}
	return cacheKeyPrefix + strings.Join(parts, ":")
}
