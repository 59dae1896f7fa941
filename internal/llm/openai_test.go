package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestOpenAI_Complete(t *testing.T) {
	var gotAuth string
	var gotBody openAIRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = w.Write([]byte(`{
			"choices": [{"message": {"role": "assistant", "content": "{\"ok\":true}"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 12, "completion_tokens": 7, "total_tokens": 19}
		}`))
	}))
	defer srv.Close()

	p := NewOpenAI("sk-test", "", srv.URL)
	resp, err := p.Complete(context.Background(), CompletionRequest{
		System:   "you plan trips",
		Messages: []Message{{Role: RoleUser, Content: "three days in Porto"}},
	})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}

	if gotAuth != "Bearer sk-test" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if len(gotBody.Messages) != 2 || gotBody.Messages[0].Role != RoleSystem {
		t.Errorf("wire messages = %+v, want system message first", gotBody.Messages)
	}
	if resp.Content != `{"ok":true}` {
		t.Errorf("Content = %q", resp.Content)
	}
	if resp.Usage == nil || resp.Usage.TotalTokens != 19 {
		t.Errorf("Usage = %+v, want total 19", resp.Usage)
	}
}

func TestOpenAI_CompleteNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error": {"message": "rate limited"}}`))
	}))
	defer srv.Close()

	p := NewOpenAI("sk-test", "", srv.URL)
	_, err := p.Complete(context.Background(), CompletionRequest{
		Messages: []Message{{Role: RoleUser, Content: "x"}},
	})
	if err == nil {
		t.Fatal("Complete() error = nil, want API error")
	}
	if !strings.Contains(err.Error(), "status=429") || !strings.Contains(err.Error(), "rate limited") {
		t.Errorf("error = %v, want status and body", err)
	}
}

func TestOpenAI_Stream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		frames := []string{
			`{"choices":[{"delta":{"content":"Day 1: "}}]}`,
			"this frame is not json at all",
			`{"choices":[{"delta":{"content":"Porto"}}]}`,
			`{"choices":[],"usage":{"prompt_tokens":10,"completion_tokens":5,"total_tokens":15}}`,
			"[DONE]",
		}
		for _, f := range frames {
			_, _ = fmt.Fprintf(w, "data: %s\n\n", f)
		}
	}))
	defer srv.Close()

	p := NewOpenAI("sk-test", "", srv.URL)
	ch, err := p.Stream(context.Background(), CompletionRequest{
		Messages: []Message{{Role: RoleUser, Content: "x"}},
	})
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}

	var text strings.Builder
	var done *StreamEvent
	for ev := range ch {
		switch ev.Type {
		case StreamText:
			text.WriteString(ev.Text)
		case StreamDone:
			e := ev
			done = &e
		case StreamError:
			t.Fatalf("unexpected error event: %v", ev.Err)
		}
	}

	if text.String() != "Day 1: Porto" {
		t.Errorf("accumulated text = %q, want %q", text.String(), "Day 1: Porto")
	}
	if done == nil {
		t.Fatal("stream did not terminate in a done event")
	}
	if done.Usage == nil || done.Usage.TotalTokens != 15 {
		t.Errorf("done usage = %+v, want total 15", done.Usage)
	}
}

// TestOpenAI_StreamCancelReleasesProducer verifies an abandoned stream shuts
// down once its context is cancelled instead of blocking forever on the next
// send.
func TestOpenAI_StreamCancelReleasesProducer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for i := 0; i < 500; i++ {
			_, _ = fmt.Fprint(w, `data: {"choices":[{"delta":{"content":"chunk"}}]}`+"\n\n")
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := NewOpenAI("sk-test", "", srv.URL)
	ch, err := p.Stream(ctx, CompletionRequest{
		Messages: []Message{{Role: RoleUser, Content: "x"}},
	})
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}

	<-ch
	cancel()
	assertStreamCloses(t, ch)
}

func TestAnthropic_StreamCancelReleasesProducer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for i := 0; i < 500; i++ {
			_, _ = fmt.Fprint(w, `data: {"type":"content_block_delta","delta":{"type":"text_delta","text":"chunk"}}`+"\n\n")
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := NewAnthropic("sk-ant", "", srv.URL)
	ch, err := p.Stream(ctx, CompletionRequest{
		Messages: []Message{{Role: RoleUser, Content: "x"}},
	})
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}

	<-ch
	cancel()
	assertStreamCloses(t, ch)
}

// assertStreamCloses expects ch to close shortly after its context was
// cancelled with no one draining it. The sleeps keep this test from acting as
// a ready receiver, so the producer must exit via the cancellation path; a
// couple of in-flight events may still land first.
func assertStreamCloses(t *testing.T, ch <-chan StreamEvent) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for extra := 0; ; {
		time.Sleep(20 * time.Millisecond)
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
			extra++
			if extra > 3 {
				t.Fatal("stream kept producing after cancel")
			}
		case <-deadline:
			t.Fatal("stream channel not closed after cancel")
		}
	}
}

func TestAnthropic_StreamAssemblesSplitUsage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		frames := []string{
			`{"type":"message_start","message":{"usage":{"input_tokens":40}}}`,
			`{"type":"content_block_delta","delta":{"type":"text_delta","text":"hello "}}`,
			`{"type":"content_block_delta","delta":{"type":"text_delta","text":"porto"}}`,
			`{"type":"message_delta","usage":{"output_tokens":9}}`,
			`{"type":"message_stop"}`,
		}
		for _, f := range frames {
			_, _ = fmt.Fprintf(w, "data: %s\n\n", f)
		}
	}))
	defer srv.Close()

	p := NewAnthropic("sk-ant", "", srv.URL)
	ch, err := p.Stream(context.Background(), CompletionRequest{
		Messages: []Message{{Role: RoleUser, Content: "x"}},
	})
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}

	var text strings.Builder
	var usage *TokenUsage
	for ev := range ch {
		switch ev.Type {
		case StreamText:
			text.WriteString(ev.Text)
		case StreamDone:
			usage = ev.Usage
		case StreamError:
			t.Fatalf("unexpected error event: %v", ev.Err)
		}
	}

	if text.String() != "hello porto" {
		t.Errorf("text = %q", text.String())
	}
	if usage == nil || usage.PromptTokens != 40 || usage.CompletionTokens != 9 || usage.TotalTokens != 49 {
		t.Errorf("usage = %+v, want 40/9/49", usage)
	}
}

func TestAnthropic_StreamErrorEvent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = fmt.Fprint(w, "data: {\"type\":\"content_block_delta\",\"delta\":{\"type\":\"text_delta\",\"text\":\"partial\"}}\n\n")
		_, _ = fmt.Fprint(w, "data: {\"type\":\"error\",\"error\":{\"message\":\"overloaded\"}}\n\n")
	}))
	defer srv.Close()

	p := NewAnthropic("sk-ant", "", srv.URL)
	ch, err := p.Stream(context.Background(), CompletionRequest{
		Messages: []Message{{Role: RoleUser, Content: "x"}},
	})
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}

	var last StreamEvent
	for ev := range ch {
		last = ev
	}
	if last.Type != StreamError {
		t.Fatalf("last event = %+v, want error", last)
	}
	if !strings.Contains(last.Err.Error(), "overloaded") {
		t.Errorf("error = %v, want carried message", last.Err)
	}
}
