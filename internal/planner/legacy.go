package planner

import (
	"context"
	"encoding/json"
	"log"
	"strings"

	"voyago/internal/jsonrepair"
)

// LegacyPlanSource produces the raw model text for a whole plan in one call.
type LegacyPlanSource interface {
	GeneratePlanText(ctx context.Context, params TripParams) (string, error)
}

// legacyPayload is the JSON shape the single-shot prompt asks the model for.
type legacyPayload struct {
	Summary       PlanSummary    `json:"summary"`
	Accommodation Accommodation  `json:"accommodation"`
	Days          []ItineraryDay `json:"days"`
}

// GenerateLegacy runs the old single-request pipeline: one completion for the
// entire plan, parsed and repaired. It never fails: on any provider, parse or
// repair error the caller receives the minimal plan instead.
func (o *Orchestrator) GenerateLegacy(ctx context.Context, src LegacyPlanSource, params TripParams) *TripPlan {
	if params.Days < 1 || params.Destination == "" {
		return MinimalPlan(params, o.deps.ProviderTag)
	}
	raw, err := src.GeneratePlanText(ctx, params)
	if err != nil {
		log.Printf("planner: legacy generation failed, using minimal plan: %v", err)
		return MinimalPlan(params, o.deps.ProviderTag)
	}
	return ParsePlanText(raw, params, o.deps.ProviderTag)
}

// ParsePlanText turns raw model output into a plan. Truncated or noisy JSON
// goes through repair first; when even repair fails, the minimal plan is
// returned so the caller always gets something renderable.
func ParsePlanText(raw string, params TripParams, provider string) *TripPlan {
	if strings.TrimSpace(raw) == "" {
		return MinimalPlan(params, provider)
	}
	var payload legacyPayload
	if err := jsonrepair.RepairInto(raw, &payload); err != nil {
		log.Printf("planner: plan text unrecoverable, using minimal plan: %v", err)
		return MinimalPlan(params, provider)
	}
	return assembleLegacy(payload, params, provider)
}

// assembleLegacy normalizes a decoded single-shot payload: contiguous day
// numbers, calendar dates, identifiers, and minimal days padding out any the
// model dropped.
func assembleLegacy(payload legacyPayload, params TripParams, provider string) *TripPlan {
	plan := newPlanShell(params, provider)
	plan.Summary = payload.Summary
	plan.Accommodation = payload.Accommodation
	if plan.Summary.Title == "" {
		plan.Summary.Title = "Trip to " + params.Destination
	}
	plan.Summary.Days = params.Days
	plan.Summary.Nights = nightsFor(params.Days)

	for n := 1; n <= params.Days; n++ {
		date := dayDate(params.StartDate, n)
		if n <= len(payload.Days) {
			day := payload.Days[n-1]
			day.Day = n
			day.Date = date
			if day.Title == "" {
				day.Title = defaultDayTitle(n)
			}
			if len(day.Timeline) == 0 {
				day = MinimalDay(n, date, params.Destination)
			}
			plan.Itinerary = append(plan.Itinerary, day)
			continue
		}
		plan.Itinerary = append(plan.Itinerary, MinimalDay(n, date, params.Destination))
	}
	EnsurePlanIDs(plan)
	return plan
}

// MarshalPlan renders a plan as indented JSON for logs and CLI output.
func MarshalPlan(plan *TripPlan) (string, error) {
	b, err := json.MarshalIndent(plan, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}
