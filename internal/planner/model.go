// Package planner holds the trip plan data model and the progressive
// generation orchestrator that assembles a plan from its collaborators.
package planner

import (
	"fmt"
	"time"
)

// SectionStatus tracks a background-filled plan section.
type SectionStatus string

const (
	SectionIdle    SectionStatus = "idle"
	SectionLoading SectionStatus = "loading"
	SectionSuccess SectionStatus = "success"
	SectionError   SectionStatus = "error"
)

// PlaceConfidence grades how certain a timeline entry's place link is.
type PlaceConfidence string

const (
	ConfidenceExact PlaceConfidence = "exact"
	ConfidenceHigh  PlaceConfidence = "high"
	ConfidenceLow   PlaceConfidence = "low"
	ConfidenceNone  PlaceConfidence = "none"
)

// TripParams is the user's request for a plan.
type TripParams struct {
	Destination string      `json:"destination"`
	Origin      string      `json:"origin,omitempty"`
	StartDate   time.Time   `json:"startDate"`
	Days        int         `json:"days"`
	Travelers   int         `json:"travelers,omitempty"`
	Preferences Preferences `json:"preferences,omitempty"`
}

// Preferences refine what the generated days lean toward.
type Preferences struct {
	Pace      string   `json:"pace,omitempty"`
	Budget    string   `json:"budget,omitempty"`
	Interests []string `json:"interests,omitempty"`
}

// Place is a resolved point of interest from the prefetch step.
type Place struct {
	PlaceID  string  `json:"placeId"`
	Name     string  `json:"name"`
	Address  string  `json:"address,omitempty"`
	Lat      float64 `json:"lat,omitempty"`
	Lng      float64 `json:"lng,omitempty"`
	Rating   float32 `json:"rating,omitempty"`
	Category string  `json:"category,omitempty"`
}

// PlacesData is the prefetch result: a compact textual context for the model
// plus the full place records used later for enrichment.
type PlacesData struct {
	ForAI string  `json:"placesForAI"`
	Full  []Place `json:"fullPlaces"`
}

// PlaceRef links a timeline entry to a prefetched place.
type PlaceRef struct {
	PlaceID    string          `json:"placeId"`
	Name       string          `json:"name"`
	Lat        float64         `json:"lat,omitempty"`
	Lng        float64         `json:"lng,omitempty"`
	Confidence PlaceConfidence `json:"confidence"`
}

// TimelineEntry is one scheduled item within a day.
type TimelineEntry struct {
	ID       string    `json:"id"`
	Time     string    `json:"time"`
	Activity string    `json:"activity"`
	Location string    `json:"location,omitempty"`
	Notes    string    `json:"notes,omitempty"`
	Place    *PlaceRef `json:"place,omitempty"`
}

// Note is a per-day callout the model emits alongside the timeline.
type Note struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Meals names where the day eats.
type Meals struct {
	Breakfast string `json:"breakfast,omitempty"`
	Lunch     string `json:"lunch,omitempty"`
	Dinner    string `json:"dinner,omitempty"`
}

// DaySummary is the short recap carried forward as continuity context for the
// next day's generation.
type DaySummary struct {
	Headline       string   `json:"headline,omitempty"`
	MainActivities []string `json:"mainActivities,omitempty"`
}

// ItineraryDay is one generated day of the plan.
type ItineraryDay struct {
	Day            int             `json:"day"`
	Date           string          `json:"date"`
	Title          string          `json:"title"`
	Timeline       []TimelineEntry `json:"timeline"`
	Meals          Meals           `json:"meals,omitempty"`
	ImportantNotes []Note          `json:"importantNotes,omitempty"`
	Summary        DaySummary      `json:"summary,omitempty"`
}

// PlanSummary is the plan-level overview generated up front.
type PlanSummary struct {
	Title        string   `json:"title"`
	Description  string   `json:"description,omitempty"`
	Highlights   []string `json:"highlights,omitempty"`
	Days         int      `json:"days"`
	Nights       int      `json:"nights"`
	TotalDriving string   `json:"totalDriving,omitempty"`
}

// AccommodationSuggestion is one lodging option.
type AccommodationSuggestion struct {
	Name          string `json:"name"`
	Type          string `json:"type,omitempty"`
	Area          string `json:"area,omitempty"`
	PricePerNight string `json:"pricePerNight,omitempty"`
}

// Accommodation groups lodging suggestions for the whole trip.
type Accommodation struct {
	Suggestions []AccommodationSuggestion `json:"suggestions,omitempty"`
	TotalCost   string                    `json:"totalCost,omitempty"`
}

// Section is a background-filled list such as packing items or local tips.
type Section struct {
	Status SectionStatus `json:"status"`
	Items  []string      `json:"items,omitempty"`
}

// GenerationMeta records how the plan was produced.
type GenerationMeta struct {
	Provider      string    `json:"provider,omitempty"`
	GeneratedAt   time.Time `json:"generatedAt"`
	Regenerations int       `json:"regenerations"`
}

// PlaceStats reports how many timeline items the enrichment step linked.
type PlaceStats struct {
	TotalItems  int `json:"totalItems"`
	LinkedItems int `json:"linkedItems"`
}

// TripPlan is the assembled result of a generation run.
type TripPlan struct {
	ID            string         `json:"id"`
	Destination   string         `json:"destination"`
	Origin        string         `json:"origin,omitempty"`
	StartDate     string         `json:"startDate"`
	EndDate       string         `json:"endDate"`
	Travelers     int            `json:"travelers,omitempty"`
	Preferences   Preferences    `json:"preferences,omitempty"`
	Summary       PlanSummary    `json:"summary"`
	Itinerary     []ItineraryDay `json:"itinerary"`
	Accommodation Accommodation  `json:"accommodation,omitempty"`
	Documents     Section        `json:"documents"`
	Packing       Section        `json:"packing"`
	Tips          Section        `json:"tips"`
	Warnings      Section        `json:"warnings"`
	PlaceStats    *PlaceStats    `json:"placeStats,omitempty"`
	Generation    GenerationMeta `json:"generation"`
}

// dayDate formats the calendar date of day n (1-based) of a trip.
func dayDate(start time.Time, n int) string {
	return start.AddDate(0, 0, n-1).Format("2006-01-02")
}

// defaultDayTitle is the working title used until a real one is known.
func defaultDayTitle(n int) string {
	return fmt.Sprintf("Day %d", n)
}
