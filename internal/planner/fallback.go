package planner

import (
	"fmt"
	"time"
)

// MinimalDay builds the placeholder day used when a day's generation fails:
// a morning of exploration, lunch and dinner, all at the destination.
func MinimalDay(n int, date string, destination string) ItineraryDay {
	day := ItineraryDay{
		Day:   n,
		Date:  date,
		Title: defaultDayTitle(n),
		Timeline: []TimelineEntry{
			{Time: "09:00", Activity: "Explore " + destination, Location: destination},
			{Time: "13:00", Activity: "Lunch", Location: destination},
			{Time: "19:00", Activity: "Dinner", Location: destination},
		},
	}
	EnsureDayIDs(&day)
	return day
}

// MinimalPlan builds a whole-trip fallback plan out of minimal days. It is
// the plan of last resort and can always be constructed.
func MinimalPlan(params TripParams, provider string) *TripPlan {
	plan := newPlanShell(params, provider)
	plan.Summary = PlanSummary{
		Title:  fmt.Sprintf("Trip to %s", params.Destination),
		Days:   params.Days,
		Nights: nightsFor(params.Days),
	}
	for n := 1; n <= params.Days; n++ {
		plan.Itinerary = append(plan.Itinerary, MinimalDay(n, dayDate(params.StartDate, n), params.Destination))
	}
	EnsurePlanIDs(plan)
	return plan
}

// newPlanShell builds an empty plan carrying the request parameters, with all
// background sections idle and a zero regeneration counter.
func newPlanShell(params TripParams, provider string) *TripPlan {
	return &TripPlan{
		Destination: params.Destination,
		Origin:      params.Origin,
		StartDate:   dayDate(params.StartDate, 1),
		EndDate:     dayDate(params.StartDate, params.Days),
		Travelers:   params.Travelers,
		Preferences: params.Preferences,
		Documents:   Section{Status: SectionIdle},
		Packing:     Section{Status: SectionIdle},
		Tips:        Section{Status: SectionIdle},
		Warnings:    Section{Status: SectionIdle},
		Generation: GenerationMeta{
			Provider:    provider,
			GeneratedAt: time.Now().UTC(),
		},
	}
}

func nightsFor(days int) int {
	if days < 1 {
		return 0
	}
	return days - 1
}
