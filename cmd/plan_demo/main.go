// README: Demo client; streams a plan from a running API and prints progress phases.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"time"

	"voyago/internal/planner"
	"voyago/internal/stream"
)

func main() {
	addr := flag.String("addr", "http://localhost:8080", "voyago api base URL")
	dest := flag.String("dest", "Kyoto", "destination")
	days := flag.Int("days", 3, "trip length in days")
	start := flag.String("start", time.Now().AddDate(0, 0, 14).Format("2006-01-02"), "start date (YYYY-MM-DD)")
	flag.Parse()

	body, err := json.Marshal(map[string]any{
		"destination": *dest,
		"startDate":   *start,
		"days":        *days,
	})
	if err != nil {
		log.Fatal(err)
	}

	req, err := http.NewRequest(http.MethodPost, *addr+"/api/plans/generate/stream", bytes.NewReader(body))
	if err != nil {
		log.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "plan-demo")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		log.Fatalf("api returned %s", resp.Status)
	}

	startDate, err := time.Parse("2006-01-02", *start)
	if err != nil {
		log.Fatal(err)
	}

	lastPhase := stream.Phase("")
	plan, err := planner.ConsumePlanStream(resp, planner.TripParams{
		Destination: *dest,
		StartDate:   startDate,
		Days:        *days,
	}, "api", func(p stream.GenerationProgress) {
		if p.Phase != lastPhase {
			lastPhase = p.Phase
			fmt.Printf("[%s] %d bytes\n", p.Phase, p.BytesReceived)
		}
	})
	if err != nil {
		log.Fatalf("stream failed: %v", err)
	}

	out, err := planner.MarshalPlan(plan)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(out)
}
