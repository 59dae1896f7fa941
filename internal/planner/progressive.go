package planner

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"voyago/internal/metrics"
)

// ProgressivePhase labels where a generation run currently is.
type ProgressivePhase string

const (
	PhaseStarting    ProgressivePhase = "starting"
	PhasePrefetching ProgressivePhase = "prefetching"
	PhaseSummary     ProgressivePhase = "summary"
	PhaseDay         ProgressivePhase = "day"
	PhaseEnriching   ProgressivePhase = "enriching"
	PhaseAssembling  ProgressivePhase = "assembling"
	PhaseDone        ProgressivePhase = "done"
	PhaseErrored     ProgressivePhase = "error"
)

// Progress is one progressive update. CompletedDays never decreases across
// the run, and PartialPlan always reflects everything generated so far.
type Progress struct {
	Phase         ProgressivePhase `json:"phase"`
	TotalDays     int              `json:"totalDays"`
	CurrentDay    int              `json:"currentDay,omitempty"`
	DayTitle      string           `json:"dayTitle,omitempty"`
	CompletedDays int              `json:"completedDays"`
	PartialPlan   *TripPlan        `json:"partialPlan,omitempty"`
	PlaceStats    *PlaceStats      `json:"placeStats,omitempty"`
	Err           error            `json:"-"`
	Message       string           `json:"message,omitempty"`
}

// Deps wires the orchestrator's collaborators. Places and Enricher are
// optional; Summary and Days are required.
type Deps struct {
	Places   PlaceSource
	Summary  SummaryService
	Days     DayService
	Enricher Enricher
	// Routes, when set, fills in the summary's driving estimate for trips
	// with a known origin.
	Routes RouteEstimator
	// ProviderTag names the backing AI provider in generation metadata.
	ProviderTag string
}

// Orchestrator runs the progressive plan generation pipeline.
type Orchestrator struct {
	deps Deps
}

// NewOrchestrator builds an orchestrator from its collaborators.
func NewOrchestrator(deps Deps) (*Orchestrator, error) {
	if deps.Summary == nil {
		return nil, fmt.Errorf("planner: summary service is required")
	}
	if deps.Days == nil {
		return nil, fmt.Errorf("planner: day service is required")
	}
	return &Orchestrator{deps: deps}, nil
}

// Result is a finished run: the plan plus the session's step timings.
type Result struct {
	Plan  *TripPlan
	Steps []metrics.StepMetrics
}

// Generate runs the full progressive pipeline. onProgress, when non-nil, is
// invoked synchronously for every phase transition and completed day. The
// only fatal collaborator failure is the summary step; prefetch, individual
// days and enrichment all degrade instead.
func (o *Orchestrator) Generate(ctx context.Context, params TripParams, onProgress func(Progress)) (*Result, error) {
	if params.Days < 1 {
		return nil, fmt.Errorf("planner: days must be at least 1, got %d", params.Days)
	}
	if params.Destination == "" {
		return nil, fmt.Errorf("planner: destination is required")
	}

	col := metrics.NewCollector()
	notify := func(p Progress) {
		p.TotalDays = params.Days
		if onProgress != nil {
			onProgress(p)
		}
	}

	notify(Progress{Phase: PhaseStarting})

	// Prefetch and summary run concurrently; neither depends on the other.
	var (
		placesData *PlacesData
		sumRes     *SummaryResult
		sumErr     error
	)
	notify(Progress{Phase: PhasePrefetching})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if o.deps.Places == nil {
			return
		}
		err := col.Track(ctx, "prefetch", func(ctx context.Context) error {
			pd, err := o.deps.Places.Prefetch(ctx, params.Destination, params.Preferences)
			if err != nil {
				return err
			}
			placesData = pd
			return nil
		})
		if err != nil {
			log.Printf("planner: places prefetch failed, continuing without places: %v", err)
		}
	}()

	sumErr = col.Track(ctx, "summary", func(ctx context.Context) error {
		res, err := o.deps.Summary.GenerateSummary(ctx, params)
		if err != nil {
			return err
		}
		sumRes = res
		return nil
	})
	wg.Wait()

	if sumErr != nil {
		err := fmt.Errorf("planner: summary generation failed: %w", sumErr)
		notify(Progress{Phase: PhaseErrored, Err: err, Message: err.Error()})
		return nil, err
	}

	plan := newPlanShell(params, o.deps.ProviderTag)
	plan.Summary = sumRes.Summary
	plan.Accommodation = sumRes.Accommodation
	if plan.Summary.Days == 0 {
		plan.Summary.Days = params.Days
	}
	if plan.Summary.Nights == 0 {
		plan.Summary.Nights = nightsFor(params.Days)
	}
	notify(Progress{Phase: PhaseSummary, PartialPlan: snapshot(plan)})

	placesContext := ""
	if placesData != nil {
		placesContext = placesData.ForAI
	}

	prevContext := ""
	for n := 1; n <= params.Days; n++ {
		if err := ctx.Err(); err != nil {
			notify(Progress{Phase: PhaseErrored, CompletedDays: n - 1, Err: err, Message: err.Error()})
			return nil, err
		}

		date := dayDate(params.StartDate, n)
		title := titleFor(sumRes.DayTitles, n)
		notify(Progress{
			Phase:         PhaseDay,
			CurrentDay:    n,
			DayTitle:      title,
			CompletedDays: n - 1,
			PartialPlan:   snapshot(plan),
		})

		// The final day has no lookahead title.
		nextTitle := ""
		if n < params.Days {
			nextTitle = titleFor(sumRes.DayTitles, n+1)
		}

		var day *ItineraryDay
		err := col.Track(ctx, fmt.Sprintf("day-%d", n), func(ctx context.Context) error {
			d, err := o.deps.Days.GenerateDay(ctx, DayRequest{
				Trip:           params,
				DayNumber:      n,
				Date:           date,
				DayTitle:       title,
				PreviousDay:    prevContext,
				NextDayTitle:   nextTitle,
				PlacesContext:  placesContext,
				TripHighlights: sumRes.Summary.Highlights,
			})
			if err != nil {
				return err
			}
			if d == nil {
				return fmt.Errorf("day service returned no day")
			}
			day = d
			return nil
		})
		if err != nil {
			log.Printf("planner: day %d generation failed, using minimal day: %v", n, err)
			fallback := MinimalDay(n, date, params.Destination)
			day = &fallback
		}

		day.Day = n
		day.Date = date
		if day.Title == "" {
			day.Title = title
		}
		EnsureDayIDs(day)
		plan.Itinerary = append(plan.Itinerary, *day)
		prevContext = continuityContext(*day)

		notify(Progress{
			Phase:         PhaseDay,
			CurrentDay:    n,
			DayTitle:      day.Title,
			CompletedDays: n,
			PartialPlan:   snapshot(plan),
		})
	}

	var stats *PlaceStats
	if o.deps.Enricher != nil && placesData != nil && len(placesData.Full) > 0 {
		notify(Progress{Phase: PhaseEnriching, CompletedDays: params.Days, PartialPlan: snapshot(plan)})
		err := col.Track(ctx, "enrichment", func(ctx context.Context) error {
			res, err := o.deps.Enricher.Enrich(ctx, plan.Itinerary, placesData.Full)
			if err != nil {
				return err
			}
			plan.Itinerary = res.Days
			s := res.Stats
			stats = &s
			return nil
		})
		if err != nil {
			log.Printf("planner: enrichment failed, keeping unenriched itinerary: %v", err)
		}
	}
	plan.PlaceStats = stats

	notify(Progress{Phase: PhaseAssembling, CompletedDays: params.Days, PartialPlan: snapshot(plan)})
	if o.deps.Routes != nil && params.Origin != "" && plan.Summary.TotalDriving == "" {
		if d, dist, err := o.deps.Routes.TravelEstimate(ctx, params.Origin, params.Destination); err != nil {
			log.Printf("planner: driving estimate failed: %v", err)
		} else {
			plan.Summary.TotalDriving = fmt.Sprintf("%s (%s) each way", d.Round(time.Minute), dist)
		}
	}
	EnsurePlanIDs(plan)
	notify(Progress{
		Phase:         PhaseDone,
		CompletedDays: params.Days,
		PartialPlan:   snapshot(plan),
		PlaceStats:    stats,
	})
	return &Result{Plan: plan, Steps: col.Records()}, nil
}

// titleFor returns the proposed title for day n, or the working default when
// the summary did not propose one.
func titleFor(titles []string, n int) string {
	if n >= 1 && n <= len(titles) && titles[n-1] != "" {
		return titles[n-1]
	}
	return defaultDayTitle(n)
}

// continuityContext condenses a finished day into the one-line context passed
// to the next day's generation.
func continuityContext(day ItineraryDay) string {
	s := day.Title
	acts := day.Summary.MainActivities
	if len(acts) == 0 {
		for i, e := range day.Timeline {
			if i >= 3 {
				break
			}
			acts = append(acts, e.Activity)
		}
	}
	for _, a := range acts {
		if a == "" {
			continue
		}
		s += "; " + a
	}
	return s
}

// snapshot copies the plan so progress consumers can hold it safely while
// the run keeps appending days.
func snapshot(plan *TripPlan) *TripPlan {
	cp := *plan
	cp.Itinerary = make([]ItineraryDay, len(plan.Itinerary))
	copy(cp.Itinerary, plan.Itinerary)
	return &cp
}
