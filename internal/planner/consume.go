package planner

import (
	"net/http"

	"voyago/internal/stream"
)

// ConsumePlanStream reads a whole-plan generation stream, reporting phase
// progress, and parses the accumulated text into a plan. Transport and
// stream-level errors are returned; text that cannot be parsed even after
// repair falls back to the minimal plan.
func ConsumePlanStream(resp *http.Response, params TripParams, provider string, onProgress func(stream.GenerationProgress)) (*TripPlan, error) {
	c := stream.NewConsumer(onProgress)
	text, err := c.RunResponse(resp)
	if err != nil {
		return nil, err
	}
	return ParsePlanText(text, params, provider), nil
}
