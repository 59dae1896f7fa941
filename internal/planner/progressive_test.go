package planner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

type fakePlaces struct {
	data  *PlacesData
	err   error
	calls int
}

func (f *fakePlaces) Prefetch(ctx context.Context, destination string, prefs Preferences) (*PlacesData, error) {
	f.calls++
	return f.data, f.err
}

type fakeSummary struct {
	res *SummaryResult
	err error
}

func (f *fakeSummary) GenerateSummary(ctx context.Context, params TripParams) (*SummaryResult, error) {
	return f.res, f.err
}

type fakeDays struct {
	failDays map[int]bool
	reqs     []DayRequest
}

func (f *fakeDays) GenerateDay(ctx context.Context, req DayRequest) (*ItineraryDay, error) {
	f.reqs = append(f.reqs, req)
	if f.failDays[req.DayNumber] {
		return nil, errors.New("model overloaded")
	}
	return &ItineraryDay{
		Title: fmt.Sprintf("Exploring, part %d", req.DayNumber),
		Timeline: []TimelineEntry{
			{Time: "10:00", Activity: fmt.Sprintf("Visit spot %d", req.DayNumber), Location: "Old Town"},
			{Time: "15:00", Activity: "Coffee break", Location: "River Cafe"},
		},
		Summary: DaySummary{MainActivities: []string{fmt.Sprintf("spot %d", req.DayNumber)}},
	}, nil
}

type fakeEnricher struct {
	err   error
	calls int
}

func (f *fakeEnricher) Enrich(ctx context.Context, days []ItineraryDay, full []Place) (*EnrichResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	total, linked := 0, 0
	for di := range days {
		for ti := range days[di].Timeline {
			total++
			days[di].Timeline[ti].Place = &PlaceRef{PlaceID: "p1", Name: full[0].Name, Confidence: ConfidenceHigh}
			linked++
		}
	}
	return &EnrichResult{Days: days, Stats: PlaceStats{TotalItems: total, LinkedItems: linked}}, nil
}

func testParams(days int) TripParams {
	return TripParams{
		Destination: "Kyoto",
		StartDate:   time.Date(2026, 4, 10, 0, 0, 0, 0, time.UTC),
		Days:        days,
		Travelers:   2,
	}
}

func testDeps(places *fakePlaces, summary *fakeSummary, daySvc *fakeDays, enr *fakeEnricher) Deps {
	deps := Deps{Summary: summary, Days: daySvc, ProviderTag: "test-provider"}
	if places != nil {
		deps.Places = places
	}
	if enr != nil {
		deps.Enricher = enr
	}
	return deps
}

func TestGenerate_HappyPath(t *testing.T) {
	places := &fakePlaces{data: &PlacesData{
		ForAI: "Kinkaku-ji (4.5, temple)",
		Full:  []Place{{PlaceID: "p1", Name: "Kinkaku-ji"}},
	}}
	summary := &fakeSummary{res: &SummaryResult{
		Summary:   PlanSummary{Title: "Four Days in Kyoto", Highlights: []string{"temples"}},
		DayTitles: []string{"Arrival and Gion", "Temples North"},
	}}
	daySvc := &fakeDays{}
	enr := &fakeEnricher{}

	o, err := NewOrchestrator(testDeps(places, summary, daySvc, enr))
	if err != nil {
		t.Fatalf("NewOrchestrator: %v", err)
	}

	var progresses []Progress
	res, err := o.Generate(context.Background(), testParams(3), func(p Progress) {
		progresses = append(progresses, p)
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	plan := res.Plan

	if len(plan.Itinerary) != 3 {
		t.Fatalf("expected 3 days, got %d", len(plan.Itinerary))
	}
	for i, day := range plan.Itinerary {
		if day.Day != i+1 {
			t.Errorf("day %d has number %d", i+1, day.Day)
		}
		want := time.Date(2026, 4, 10+i, 0, 0, 0, 0, time.UTC).Format("2006-01-02")
		if day.Date != want {
			t.Errorf("day %d date = %q, want %q", i+1, day.Date, want)
		}
		for _, e := range day.Timeline {
			if e.ID == "" {
				t.Errorf("day %d timeline entry %q has no id", day.Day, e.Activity)
			}
		}
	}

	// Third day had no proposed title.
	if got := daySvc.reqs[2].DayTitle; got != "Day 3" {
		t.Errorf("day 3 working title = %q, want %q", got, "Day 3")
	}
	if got := daySvc.reqs[1].PreviousDay; !strings.Contains(got, "spot 1") {
		t.Errorf("day 2 continuity context = %q, want it to mention spot 1", got)
	}
	if got := daySvc.reqs[0].PlacesContext; got != "Kinkaku-ji (4.5, temple)" {
		t.Errorf("places context = %q", got)
	}
	if got := daySvc.reqs[0].NextDayTitle; got != "Temples North" {
		t.Errorf("day 1 next-day title = %q, want %q", got, "Temples North")
	}
	if got := daySvc.reqs[2].NextDayTitle; got != "" {
		t.Errorf("final day next-day title = %q, want empty", got)
	}

	if plan.PlaceStats == nil || plan.PlaceStats.LinkedItems != 6 {
		t.Errorf("place stats = %+v, want 6 linked", plan.PlaceStats)
	}
	if plan.ID == "" {
		t.Error("plan has no id")
	}
	if plan.Generation.Provider != "test-provider" {
		t.Errorf("provider tag = %q", plan.Generation.Provider)
	}
	if plan.Generation.Regenerations != 0 {
		t.Errorf("regenerations = %d, want 0", plan.Generation.Regenerations)
	}
	if plan.Packing.Status != SectionIdle {
		t.Errorf("packing section status = %q, want idle", plan.Packing.Status)
	}

	// Phase order and monotone completed-day counter.
	completed := 0
	sawDone := false
	for _, p := range progresses {
		if p.CompletedDays < completed {
			t.Fatalf("completed days went backwards: %d after %d", p.CompletedDays, completed)
		}
		completed = p.CompletedDays
		if p.Phase == PhaseDone {
			sawDone = true
			if p.PartialPlan == nil || len(p.PartialPlan.Itinerary) != 3 {
				t.Error("done progress missing the final plan")
			}
		}
	}
	if !sawDone {
		t.Error("never saw the done phase")
	}
	if progresses[0].Phase != PhaseStarting {
		t.Errorf("first phase = %q, want starting", progresses[0].Phase)
	}

	// Step timings: prefetch, summary, three days, enrichment.
	steps := map[string]bool{}
	for _, s := range res.Steps {
		steps[s.Step] = true
	}
	for _, want := range []string{"prefetch", "summary", "day-1", "day-2", "day-3", "enrichment"} {
		if !steps[want] {
			t.Errorf("missing step record %q", want)
		}
	}
}

func TestGenerate_DayFailureUsesMinimalDay(t *testing.T) {
	summary := &fakeSummary{res: &SummaryResult{Summary: PlanSummary{Title: "Kyoto"}}}
	daySvc := &fakeDays{failDays: map[int]bool{2: true}}

	o, err := NewOrchestrator(testDeps(nil, summary, daySvc, nil))
	if err != nil {
		t.Fatalf("NewOrchestrator: %v", err)
	}
	res, err := o.Generate(context.Background(), testParams(3), nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if len(res.Plan.Itinerary) != 3 {
		t.Fatalf("expected 3 days, got %d", len(res.Plan.Itinerary))
	}
	day2 := res.Plan.Itinerary[1]
	if day2.Title != "Day 2" {
		t.Errorf("fallback day title = %q, want %q", day2.Title, "Day 2")
	}
	if len(day2.Timeline) != 3 {
		t.Fatalf("fallback day timeline has %d entries, want 3", len(day2.Timeline))
	}
	wantTimes := []string{"09:00", "13:00", "19:00"}
	for i, e := range day2.Timeline {
		if e.Time != wantTimes[i] {
			t.Errorf("fallback entry %d time = %q, want %q", i, e.Time, wantTimes[i])
		}
		if e.Location != "Kyoto" {
			t.Errorf("fallback entry %d location = %q, want Kyoto", i, e.Location)
		}
		if e.ID == "" {
			t.Errorf("fallback entry %d has no id", i)
		}
	}
	// Day 3 should still come from the service.
	if res.Plan.Itinerary[2].Title != "Exploring, part 3" {
		t.Errorf("day 3 title = %q", res.Plan.Itinerary[2].Title)
	}
}

func TestGenerate_SummaryFailureAborts(t *testing.T) {
	summary := &fakeSummary{err: errors.New("rate limited")}
	daySvc := &fakeDays{}

	o, err := NewOrchestrator(testDeps(nil, summary, daySvc, nil))
	if err != nil {
		t.Fatalf("NewOrchestrator: %v", err)
	}
	var last Progress
	_, err = o.Generate(context.Background(), testParams(2), func(p Progress) { last = p })
	if err == nil {
		t.Fatal("expected error from failed summary")
	}
	if !strings.Contains(err.Error(), "rate limited") {
		t.Errorf("error = %v, want wrapped cause", err)
	}
	if last.Phase != PhaseErrored {
		t.Errorf("last phase = %q, want error", last.Phase)
	}
	if len(daySvc.reqs) != 0 {
		t.Errorf("day service called %d times after fatal summary failure", len(daySvc.reqs))
	}
}

func TestGenerate_PrefetchFailureDegrades(t *testing.T) {
	places := &fakePlaces{err: errors.New("maps quota exceeded")}
	summary := &fakeSummary{res: &SummaryResult{Summary: PlanSummary{Title: "Kyoto"}}}
	daySvc := &fakeDays{}
	enr := &fakeEnricher{}

	o, err := NewOrchestrator(testDeps(places, summary, daySvc, enr))
	if err != nil {
		t.Fatalf("NewOrchestrator: %v", err)
	}
	res, err := o.Generate(context.Background(), testParams(2), nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if daySvc.reqs[0].PlacesContext != "" {
		t.Errorf("places context = %q, want empty after failed prefetch", daySvc.reqs[0].PlacesContext)
	}
	if enr.calls != 0 {
		t.Error("enrichment ran without prefetched places")
	}
	if res.Plan.PlaceStats != nil {
		t.Errorf("place stats = %+v, want nil", res.Plan.PlaceStats)
	}
}

func TestGenerate_EnrichmentFailureKeepsItinerary(t *testing.T) {
	places := &fakePlaces{data: &PlacesData{ForAI: "x", Full: []Place{{PlaceID: "p1", Name: "X"}}}}
	summary := &fakeSummary{res: &SummaryResult{Summary: PlanSummary{Title: "Kyoto"}}}
	daySvc := &fakeDays{}
	enr := &fakeEnricher{err: errors.New("matcher panic")}

	o, err := NewOrchestrator(testDeps(places, summary, daySvc, enr))
	if err != nil {
		t.Fatalf("NewOrchestrator: %v", err)
	}
	res, err := o.Generate(context.Background(), testParams(1), nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if res.Plan.PlaceStats != nil {
		t.Errorf("place stats = %+v, want nil after failed enrichment", res.Plan.PlaceStats)
	}
	if len(res.Plan.Itinerary) != 1 || len(res.Plan.Itinerary[0].Timeline) == 0 {
		t.Error("itinerary lost after failed enrichment")
	}
}

func TestGenerate_RejectsInvalidParams(t *testing.T) {
	summary := &fakeSummary{res: &SummaryResult{}}
	o, err := NewOrchestrator(testDeps(nil, summary, &fakeDays{}, nil))
	if err != nil {
		t.Fatalf("NewOrchestrator: %v", err)
	}
	if _, err := o.Generate(context.Background(), TripParams{Destination: "Kyoto", Days: 0}, nil); err == nil {
		t.Error("expected error for zero days")
	}
	if _, err := o.Generate(context.Background(), TripParams{Days: 2}, nil); err == nil {
		t.Error("expected error for missing destination")
	}
}

type fakeRoutes struct{ err error }

func (f *fakeRoutes) TravelEstimate(ctx context.Context, origin, destination string) (time.Duration, string, error) {
	if f.err != nil {
		return 0, "", f.err
	}
	return 2*time.Hour + 10*time.Minute, "180 km", nil
}

func TestGenerate_DrivingEstimateForOriginTrips(t *testing.T) {
	summary := &fakeSummary{res: &SummaryResult{Summary: PlanSummary{Title: "Kyoto"}}}
	deps := testDeps(nil, summary, &fakeDays{}, nil)
	deps.Routes = &fakeRoutes{}

	o, err := NewOrchestrator(deps)
	if err != nil {
		t.Fatalf("NewOrchestrator: %v", err)
	}

	params := testParams(1)
	params.Origin = "Osaka"
	res, err := o.Generate(context.Background(), params, nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got := res.Plan.Summary.TotalDriving; !strings.Contains(got, "180 km") {
		t.Errorf("total driving = %q, want distance included", got)
	}

	// No origin means no estimate call.
	res, err = o.Generate(context.Background(), testParams(1), nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if res.Plan.Summary.TotalDriving != "" {
		t.Errorf("total driving = %q, want empty without origin", res.Plan.Summary.TotalDriving)
	}
}

func TestEnsureDayIDs_Idempotent(t *testing.T) {
	day := ItineraryDay{
		Timeline:       []TimelineEntry{{Activity: "a"}, {ID: "keep-me", Activity: "b"}},
		ImportantNotes: []Note{{Text: "bring cash"}},
	}
	EnsureDayIDs(&day)
	if day.Timeline[0].ID == "" || day.ImportantNotes[0].ID == "" {
		t.Fatal("ids not assigned")
	}
	if day.Timeline[1].ID != "keep-me" {
		t.Errorf("existing id overwritten: %q", day.Timeline[1].ID)
	}
	first := day.Timeline[0].ID
	EnsureDayIDs(&day)
	if day.Timeline[0].ID != first {
		t.Error("EnsureDayIDs is not idempotent")
	}
}
