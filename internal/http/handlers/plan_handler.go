// README: Trip plan generation handlers (progressive SSE, legacy, raw stream).
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"voyago/internal/http/middleware"
	"voyago/internal/llm"
	"voyago/internal/planner"
	"voyago/internal/service"
	"voyago/internal/usage"
)

// MaxTripDays caps how long a single generated trip can be.
const MaxTripDays = 14

// Planner is the slice of the orchestrator the handler needs.
type Planner interface {
	Generate(ctx context.Context, params planner.TripParams, onProgress func(planner.Progress)) (*planner.Result, error)
	GenerateLegacy(ctx context.Context, src planner.LegacyPlanSource, params planner.TripParams) *planner.TripPlan
}

type PlanHandler struct {
	planner   Planner
	generator *service.Generator
	usage     *usage.Service // nil disables quota and logging
}

func NewPlanHandler(p Planner, gen *service.Generator, usageSvc *usage.Service) *PlanHandler {
	return &PlanHandler{planner: p, generator: gen, usage: usageSvc}
}

type generatePlanReq struct {
	Destination string              `json:"destination"`
	Origin      string              `json:"origin"`
	StartDate   string              `json:"startDate"`
	Days        int                 `json:"days"`
	Travelers   int                 `json:"travelers"`
	Preferences planner.Preferences `json:"preferences"`
}

func (r generatePlanReq) toParams() (planner.TripParams, error) {
	var params planner.TripParams
	dest := strings.TrimSpace(r.Destination)
	if dest == "" {
		return params, fmt.Errorf("missing destination")
	}
	if r.Days < 1 || r.Days > MaxTripDays {
		return params, fmt.Errorf("days must be between 1 and %d", MaxTripDays)
	}
	start, err := time.Parse("2006-01-02", r.StartDate)
	if err != nil {
		return params, fmt.Errorf("invalid startDate, want YYYY-MM-DD")
	}
	return planner.TripParams{
		Destination: dest,
		Origin:      strings.TrimSpace(r.Origin),
		StartDate:   start,
		Days:        r.Days,
		Travelers:   r.Travelers,
		Preferences: r.Preferences,
	}, nil
}

// Generate handles POST /api/plans/generate. It streams progressive progress
// frames over SSE and ends with a done (or error) frame.
func (h *PlanHandler) Generate(c *gin.Context) {
	var req generatePlanReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	params, err := req.toParams()
	if err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}

	uid := middleware.CallerUID(c)
	if h.usage != nil {
		if err := h.usage.UseToken(c.Request.Context(), uid); err != nil {
			writeQuotaError(c, err)
			return
		}
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.WriteHeader(http.StatusOK)

	started := time.Now()
	ctx, tally := service.WithUsageTally(c.Request.Context())
	res, err := h.planner.Generate(ctx, params, func(p planner.Progress) {
		writeFrame(c, p)
	})

	status := "success"
	if err != nil {
		// The orchestrator already emitted the error frame.
		status = "error"
	}
	h.logRun(c.Request.Context(), uid, params, started, status, tally.Total())
	if h.usage != nil && res != nil && res.Plan != nil {
		h.usage.LogSteps(c.Request.Context(), res.Plan.ID, h.generator.ProviderName(), res.Steps)
	}
}

// GenerateLegacy handles POST /api/plans/generate/legacy: the old
// single-request pipeline. It always returns a plan.
func (h *PlanHandler) GenerateLegacy(c *gin.Context) {
	var req generatePlanReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	params, err := req.toParams()
	if err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}

	uid := middleware.CallerUID(c)
	if h.usage != nil {
		if err := h.usage.UseToken(c.Request.Context(), uid); err != nil {
			writeQuotaError(c, err)
			return
		}
	}

	started := time.Now()
	ctx, tally := service.WithUsageTally(c.Request.Context())
	plan := h.planner.GenerateLegacy(ctx, h.generator, params)
	h.logRun(c.Request.Context(), uid, params, started, "success", tally.Total())
	writeJSON(c, http.StatusOK, plan)
}

// streamFrame is the wire shape of raw-stream SSE frames.
type streamFrame struct {
	Type    string `json:"type"`
	Text    string `json:"text,omitempty"`
	Message string `json:"message,omitempty"`
}

// GenerateStream handles POST /api/plans/generate/stream: the whole-plan
// generation relayed as raw text frames while the model produces it.
func (h *PlanHandler) GenerateStream(c *gin.Context) {
	var req generatePlanReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	params, err := req.toParams()
	if err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}

	uid := middleware.CallerUID(c)
	if h.usage != nil {
		if err := h.usage.UseToken(c.Request.Context(), uid); err != nil {
			writeQuotaError(c, err)
			return
		}
	}

	events, err := h.generator.StreamPlanText(c.Request.Context(), params)
	if err != nil {
		if err == service.ErrStreamingUnsupported {
			writeError(c, http.StatusNotImplemented, err.Error())
			return
		}
		writeError(c, http.StatusBadGateway, "provider unavailable")
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.WriteHeader(http.StatusOK)

	started := time.Now()
	status := "success"
	var used llm.TokenUsage
	for ev := range events {
		switch ev.Type {
		case llm.StreamText:
			writeFrame(c, streamFrame{Type: "text", Text: ev.Text})
		case llm.StreamDone:
			if ev.Usage != nil {
				used = *ev.Usage
			}
			writeFrame(c, streamFrame{Type: "done"})
		case llm.StreamError:
			status = "error"
			writeFrame(c, streamFrame{Type: "error", Message: ev.Err.Error()})
		}
	}
	h.logRun(c.Request.Context(), uid, params, started, status, used)
}

// writeFrame emits one SSE data frame and flushes it to the client.
func writeFrame(c *gin.Context, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Printf("plan handler: marshal frame: %v", err)
		return
	}
	fmt.Fprintf(c.Writer, "data: %s\n\n", b)
	c.Writer.Flush()
}

func (h *PlanHandler) logRun(ctx context.Context, uid string, params planner.TripParams, started time.Time, status string, used llm.TokenUsage) {
	if h.usage == nil {
		return
	}
	h.usage.LogGeneration(ctx, usage.GenerationRecord{
		UID:          uid,
		Destination:  params.Destination,
		Days:         params.Days,
		Provider:     h.generator.ProviderName(),
		PromptTokens: used.PromptTokens,
		OutputTokens: used.CompletionTokens,
		DurationMs:   time.Since(started).Milliseconds(),
		Status:       status,
	})
}
