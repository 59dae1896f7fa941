package planner

import (
	"context"
	"time"
)

// PlaceSource fetches destination places before day generation starts.
type PlaceSource interface {
	Prefetch(ctx context.Context, destination string, prefs Preferences) (*PlacesData, error)
}

// SummaryResult is the plan-level overview plus the working day titles the
// summary step proposes for the rest of the run.
type SummaryResult struct {
	Summary       PlanSummary   `json:"summary"`
	Accommodation Accommodation `json:"accommodation,omitempty"`
	DayTitles     []string      `json:"dayTitles,omitempty"`
}

// SummaryService generates the plan summary. Its failure aborts the run.
type SummaryService interface {
	GenerateSummary(ctx context.Context, params TripParams) (*SummaryResult, error)
}

// DayRequest carries everything a single day's generation needs, including
// continuity context from the surrounding days.
type DayRequest struct {
	Trip           TripParams
	DayNumber      int
	Date           string
	DayTitle       string
	PreviousDay    string
	NextDayTitle   string
	PlacesContext  string
	TripHighlights []string
}

// DayService generates one itinerary day at a time.
type DayService interface {
	GenerateDay(ctx context.Context, req DayRequest) (*ItineraryDay, error)
}

// EnrichResult is the enriched itinerary plus link statistics.
type EnrichResult struct {
	Days  []ItineraryDay
	Stats PlaceStats
}

// Enricher links timeline entries to prefetched places.
type Enricher interface {
	Enrich(ctx context.Context, days []ItineraryDay, full []Place) (*EnrichResult, error)
}

// RouteEstimator reports driving time between two named locations.
type RouteEstimator interface {
	TravelEstimate(ctx context.Context, origin, destination string) (time.Duration, string, error)
}
