package service

import (
	"fmt"
	"strings"

	"voyago/internal/planner"
)

const plannerSystemPrompt = `You are a travel planning assistant. Respond with a single JSON object and nothing else: no markdown fences, no commentary. Use realistic opening hours and travel times.`

// summaryPrompt asks for the plan-level overview plus a working title per day.
func summaryPrompt(params planner.TripParams) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Plan a %d-day trip to %s starting %s",
		params.Days, params.Destination, params.StartDate.Format("2006-01-02"))
	if params.Origin != "" {
		fmt.Fprintf(&b, " from %s", params.Origin)
	}
	if params.Travelers > 1 {
		fmt.Fprintf(&b, " for %d travelers", params.Travelers)
	}
	b.WriteString(".\n")
	writePreferences(&b, params.Preferences)
	fmt.Fprintf(&b, `
Return JSON with this shape:
{"summary": {"title": "...", "description": "...", "highlights": ["..."], "totalDriving": "..."},
 "accommodation": {"suggestions": [{"name": "...", "type": "...", "area": "...", "pricePerNight": "..."}], "totalCost": "..."},
 "dayTitles": [%d short titles, one per day]}`, params.Days)
	return b.String()
}

// dayPrompt asks for one full day, with continuity context from the previous
// day and the real places found for the destination.
func dayPrompt(req planner.DayRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Generate day %d of %d of a trip to %s. Date: %s. Theme: %s.\n",
		req.DayNumber, req.Trip.Days, req.Trip.Destination, req.Date, req.DayTitle)
	writePreferences(&b, req.Trip.Preferences)
	if req.PreviousDay != "" {
		fmt.Fprintf(&b, "The previous day covered: %s. Do not repeat those activities.\n", req.PreviousDay)
	}
	if req.NextDayTitle != "" {
		fmt.Fprintf(&b, "The next day will be: %s.\n", req.NextDayTitle)
	}
	if len(req.TripHighlights) > 0 {
		fmt.Fprintf(&b, "Trip highlights to spread across the days: %s.\n", strings.Join(req.TripHighlights, ", "))
	}
	if req.PlacesContext != "" {
		fmt.Fprintf(&b, "Prefer these verified places where they fit:\n%s\n", req.PlacesContext)
	}
	b.WriteString(`
Return JSON with this shape:
{"title": "...", "timeline": [{"time": "HH:MM", "activity": "...", "location": "...", "notes": "..."}],
 "meals": {"breakfast": "...", "lunch": "...", "dinner": "..."},
 "importantNotes": [{"text": "..."}],
 "summary": {"headline": "...", "mainActivities": ["..."]}}`)
	return b.String()
}

// legacyPrompt asks for the entire plan in one response.
func legacyPrompt(params planner.TripParams) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Create a complete %d-day itinerary for %s starting %s.\n",
		params.Days, params.Destination, params.StartDate.Format("2006-01-02"))
	writePreferences(&b, params.Preferences)
	b.WriteString(`
Return JSON with this shape:
{"summary": {"title": "...", "description": "...", "highlights": ["..."]},
 "accommodation": {"suggestions": [{"name": "...", "area": "..."}]},
 "days": [{"day": 1, "title": "...", "timeline": [{"time": "HH:MM", "activity": "...", "location": "..."}]}]}`)
	return b.String()
}

func writePreferences(b *strings.Builder, prefs planner.Preferences) {
	if prefs.Pace != "" {
		fmt.Fprintf(b, "Pace: %s.\n", prefs.Pace)
	}
	if prefs.Budget != "" {
		fmt.Fprintf(b, "Budget: %s.\n", prefs.Budget)
	}
	if len(prefs.Interests) > 0 {
		fmt.Fprintf(b, "Interests: %s.\n", strings.Join(prefs.Interests, ", "))
	}
}
