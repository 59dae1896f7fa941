// Package stream consumes a server-sent-event generation stream and turns it
// into UI-observable progress plus the final accumulated text.
package stream

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
)

// Phase is a coarse progress stage shown while a generation streams in.
type Phase string

const (
	PhaseConnecting  Phase = "connecting"
	PhaseAnalyzing   Phase = "analyzing"
	PhaseResearching Phase = "researching"
	PhaseCreating    Phase = "creating"
	PhaseCalculating Phase = "calculating"
	PhaseParsing     Phase = "parsing"
	PhaseDone        Phase = "done"
	PhaseError       Phase = "error"
)

// GenerationProgress is one progress notification. Content is the text
// accumulated so far; BytesReceived counts raw transport bytes.
type GenerationProgress struct {
	Phase         Phase
	Content       string
	BytesReceived int
	Err           error
}

// Phase thresholds over accumulated content length. This is a UX heuristic
// for showing plausible stage names while text streams in, not a correctness
// signal; the numbers are empirical.
const (
	analyzingBelow   = 500
	researchingBelow = 2000
	creatingBelow    = 8000
)

// PhaseForLength classifies progress purely from accumulated content length.
func PhaseForLength(n int) Phase {
	switch {
	case n < analyzingBelow:
		return PhaseAnalyzing
	case n < researchingBelow:
		return PhaseResearching
	case n < creatingBelow:
		return PhaseCreating
	default:
		return PhaseCalculating
	}
}

// framePayload is the JSON carried on each "data: " frame of the generation
// transport.
type framePayload struct {
	Type    string `json:"type"`
	Text    string `json:"text"`
	Message string `json:"message"`
}

const dataPrefix = "data: "

// Consumer reassembles an SSE byte stream into accumulated text, notifying
// onProgress at each step. A nil callback is allowed.
type Consumer struct {
	onProgress func(GenerationProgress)
}

// NewConsumer returns a consumer reporting to onProgress.
func NewConsumer(onProgress func(GenerationProgress)) *Consumer {
	return &Consumer{onProgress: onProgress}
}

func (c *Consumer) notify(p GenerationProgress) {
	if c.onProgress != nil {
		c.onProgress(p)
	}
}

// Run reads the stream to completion and returns the accumulated text.
// Frames are delimited by a blank line; an incomplete trailing frame is
// carried into the next read. Malformed frame payloads are skipped as benign
// framing artifacts. An error payload aborts with the carried message.
func (c *Consumer) Run(r io.Reader) (string, error) {
	c.notify(GenerationProgress{Phase: PhaseConnecting})

	var (
		acc      strings.Builder
		pending  []byte
		buf      = make([]byte, 4096)
		received int
	)

	processFrame := func(frame []byte) error {
		for _, line := range bytes.Split(frame, []byte("\n")) {
			text := strings.TrimRight(string(line), "\r")
			if !strings.HasPrefix(text, dataPrefix) {
				continue
			}
			var p framePayload
			if err := json.Unmarshal([]byte(strings.TrimPrefix(text, dataPrefix)), &p); err != nil {
				continue // benign framing artifact
			}
			switch p.Type {
			case "text":
				acc.WriteString(p.Text)
				c.notify(GenerationProgress{
					Phase:         PhaseForLength(acc.Len()),
					Content:       acc.String(),
					BytesReceived: received,
				})
			case "error":
				return fmt.Errorf("stream error: %s", p.Message)
			case "done":
				// Terminal marker; the read loop drains to EOF.
			}
		}
		return nil
	}

	for {
		n, readErr := r.Read(buf)
		if n > 0 {
			received += n
			pending = append(pending, buf[:n]...)
			for {
				idx := bytes.Index(pending, []byte("\n\n"))
				if idx < 0 {
					break
				}
				frame := pending[:idx]
				pending = pending[idx+2:]
				if err := processFrame(frame); err != nil {
					c.notify(GenerationProgress{Phase: PhaseError, Err: err})
					return "", err
				}
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			c.notify(GenerationProgress{Phase: PhaseError, Err: readErr})
			return "", readErr
		}
	}

	// A stream may end without a trailing blank line; flush the remainder.
	if len(bytes.TrimSpace(pending)) > 0 {
		if err := processFrame(pending); err != nil {
			c.notify(GenerationProgress{Phase: PhaseError, Err: err})
			return "", err
		}
	}

	c.notify(GenerationProgress{
		Phase:         PhaseParsing,
		Content:       acc.String(),
		BytesReceived: received,
	})
	return acc.String(), nil
}

// RunResponse consumes an HTTP response carrying either an event stream or a
// plain JSON body, returning the full text either way. The non-streaming
// fallback still walks the connecting/parsing progress steps so the caller
// sees the same shape.
func (c *Consumer) RunResponse(resp *http.Response) (string, error) {
	ct, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if ct == "text/event-stream" {
		return c.Run(resp.Body)
	}

	c.notify(GenerationProgress{Phase: PhaseConnecting})
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.notify(GenerationProgress{Phase: PhaseError, Err: err})
		return "", err
	}
	c.notify(GenerationProgress{Phase: PhaseParsing, Content: string(body), BytesReceived: len(body)})
	return string(body), nil
}
