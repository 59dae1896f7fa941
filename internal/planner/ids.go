package planner

import "github.com/google/uuid"

// EnsureDayIDs assigns a fresh identifier to every timeline entry and note
// that lacks one. Existing identifiers are kept, so the call is idempotent.
func EnsureDayIDs(day *ItineraryDay) {
	for i := range day.Timeline {
		if day.Timeline[i].ID == "" {
			day.Timeline[i].ID = uuid.NewString()
		}
	}
	for i := range day.ImportantNotes {
		if day.ImportantNotes[i].ID == "" {
			day.ImportantNotes[i].ID = uuid.NewString()
		}
	}
}

// EnsurePlanIDs gives the plan and all of its days stable identifiers.
func EnsurePlanIDs(plan *TripPlan) {
	if plan.ID == "" {
		plan.ID = uuid.NewString()
	}
	for i := range plan.Itinerary {
		EnsureDayIDs(&plan.Itinerary[i])
	}
}
