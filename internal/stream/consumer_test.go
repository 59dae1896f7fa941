package stream

import (
	"io"
	"strings"
	"testing"
)

// chunkReader yields the input in deliberately awkward chunk sizes so frame
// boundaries land mid-read.
type chunkReader struct {
	data  string
	pos   int
	chunk int
}

func (r *chunkReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.data) {
		return 0, io.EOF
	}
	end := r.pos + r.chunk
	if end > len(r.data) {
		end = len(r.data)
	}
	n := copy(p, r.data[r.pos:end])
	r.pos += n
	return n, nil
}

func TestPhaseForLength(t *testing.T) {
	tests := []struct {
		n    int
		want Phase
	}{
		{0, PhaseAnalyzing},
		{499, PhaseAnalyzing},
		{500, PhaseResearching},
		{1999, PhaseResearching},
		{2000, PhaseCreating},
		{7999, PhaseCreating},
		{8000, PhaseCalculating},
		{100000, PhaseCalculating},
	}
	for _, tt := range tests {
		if got := PhaseForLength(tt.n); got != tt.want {
			t.Errorf("PhaseForLength(%d) = %s, want %s", tt.n, got, tt.want)
		}
	}
}

func TestConsumer_RunAccumulatesAcrossChunks(t *testing.T) {
	raw := `data: {"type":"text","text":"{\"title\":"}` + "\n\n" +
		`data: {"type":"text","text":"\"Porto\"}"}` + "\n\n" +
		"data: not-json-at-all\n\n" +
		`data: {"type":"done"}` + "\n\n"

	for _, chunk := range []int{1, 3, 7, len(raw)} {
		var progress []GenerationProgress
		c := NewConsumer(func(p GenerationProgress) { progress = append(progress, p) })

		got, err := c.Run(&chunkReader{data: raw, chunk: chunk})
		if err != nil {
			t.Fatalf("chunk=%d: Run() error = %v", chunk, err)
		}
		if got != `{"title":"Porto"}` {
			t.Errorf("chunk=%d: accumulated = %q", chunk, got)
		}

		if len(progress) < 3 {
			t.Fatalf("chunk=%d: too few progress notifications: %+v", chunk, progress)
		}
		if progress[0].Phase != PhaseConnecting {
			t.Errorf("chunk=%d: first phase = %s, want connecting", chunk, progress[0].Phase)
		}
		if last := progress[len(progress)-1]; last.Phase != PhaseParsing {
			t.Errorf("chunk=%d: last phase = %s, want parsing", chunk, last.Phase)
		}
	}
}

func TestConsumer_RunErrorEvent(t *testing.T) {
	raw := `data: {"type":"text","text":"partial plan"}` + "\n\n" +
		`data: {"type":"error","message":"model overloaded"}` + "\n\n"

	var phases []Phase
	c := NewConsumer(func(p GenerationProgress) { phases = append(phases, p.Phase) })

	_, err := c.Run(strings.NewReader(raw))
	if err == nil {
		t.Fatal("Run() error = nil, want stream error")
	}
	if !strings.Contains(err.Error(), "model overloaded") {
		t.Errorf("error = %v, want carried message", err)
	}
	if phases[len(phases)-1] != PhaseError {
		t.Errorf("last phase = %s, want error", phases[len(phases)-1])
	}
}

func TestConsumer_RunFlushesTrailingFrame(t *testing.T) {
	// No trailing blank line after the final frame.
	raw := `data: {"type":"text","text":"tail"}`

	c := NewConsumer(nil)
	got, err := c.Run(strings.NewReader(raw))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got != "tail" {
		t.Errorf("accumulated = %q, want tail", got)
	}
}

func TestConsumer_ProgressPhaseAdvancesWithLength(t *testing.T) {
	var b strings.Builder
	filler := strings.Repeat("x", 400)
	for i := 0; i < 6; i++ {
		b.WriteString(`data: {"type":"text","text":"` + filler + `"}` + "\n\n")
	}

	var phases []Phase
	c := NewConsumer(func(p GenerationProgress) { phases = append(phases, p.Phase) })
	if _, err := c.Run(strings.NewReader(b.String())); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	sawAnalyzing, sawResearching, sawCreating := false, false, false
	for _, p := range phases {
		switch p {
		case PhaseAnalyzing:
			sawAnalyzing = true
		case PhaseResearching:
			if !sawAnalyzing {
				t.Fatal("researching before analyzing")
			}
			sawResearching = true
		case PhaseCreating:
			if !sawResearching {
				t.Fatal("creating before researching")
			}
			sawCreating = true
		}
	}
	if !sawCreating {
		t.Errorf("phases never reached creating: %v", phases)
	}
}
