// Package places resolves real points of interest for a destination and
// links generated itinerary items back to them.
package places

import (
	"context"
	"fmt"
	"strings"

	"googlemaps.github.io/maps"

	"voyago/internal/planner"
)

// Searches per prefetch and result caps. Places below minRating are noise.
const (
	minRating       = 4.0
	maxPerQuery     = 12
	maxContextLines = 20
)

// Service handles interactions with Google Places API.
type Service struct {
	client *maps.Client
}

// NewService creates a Service with the given API Key.
func NewService(apiKey string) (*Service, error) {
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return &Service{client: client}, nil
}

// Prefetch searches attractions and restaurants for the destination and
// returns both the full records and a compact context block for prompting.
func (s *Service) Prefetch(ctx context.Context, destination string, prefs planner.Preferences) (*planner.PlacesData, error) {
	queries := prefetchQueries(destination, prefs)

	var full []planner.Place
	seen := make(map[string]bool)
	for _, q := range queries {
		results, err := s.textSearch(ctx, q.query, q.category)
		if err != nil {
			return nil, err
		}
		for _, p := range results {
			if seen[p.PlaceID] {
				continue
			}
			seen[p.PlaceID] = true
			full = append(full, p)
		}
	}

	return &planner.PlacesData{
		ForAI: ContextBlock(full),
		Full:  full,
	}, nil
}

type prefetchQuery struct {
	query    string
	category string
}

// prefetchQueries builds the search set, folding user interests into the
// attraction query.
func prefetchQueries(destination string, prefs planner.Preferences) []prefetchQuery {
	attractions := "top attractions in " + destination
	if len(prefs.Interests) > 0 {
		attractions = strings.Join(prefs.Interests, " ") + " " + attractions
	}
	return []prefetchQuery{
		{query: attractions, category: "attraction"},
		{query: "best restaurants in " + destination, category: "restaurant"},
	}
}

func (s *Service) textSearch(ctx context.Context, query, category string) ([]planner.Place, error) {
	resp, err := s.client.TextSearch(ctx, &maps.TextSearchRequest{
		Query:    query,
		Language: "en",
	})
	if err != nil {
		return nil, fmt.Errorf("places api error: %w", err)
	}

	var results []planner.Place
	for _, result := range resp.Results {
		if result.Rating < minRating {
			continue
		}
		results = append(results, planner.Place{
			PlaceID:  result.PlaceID,
			Name:     result.Name,
			Address:  result.FormattedAddress,
			Lat:      result.Geometry.Location.Lat,
			Lng:      result.Geometry.Location.Lng,
			Rating:   result.Rating,
			Category: category,
		})
		if len(results) >= maxPerQuery {
			break
		}
	}
	return results, nil
}

// ContextBlock renders places as the compact one-line-each context handed to
// the model during day generation.
func ContextBlock(full []planner.Place) string {
	var b strings.Builder
	for i, p := range full {
		if i >= maxContextLines {
			break
		}
		fmt.Fprintf(&b, "- %s (%.1f, %s): %s\n", p.Name, p.Rating, p.Category, p.Address)
	}
	return strings.TrimRight(b.String(), "\n")
}
