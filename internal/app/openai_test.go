package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

type streamCollector struct {
	mu       sync.Mutex
	deltas   []string
	complete string
	done     bool
	err      error
}

func (c *streamCollector) handler() StreamHandler {
	return StreamHandler{
		OnDelta: func(delta string) {
			c.mu.Lock()
			c.deltas = append(c.deltas, delta)
			c.mu.Unlock()
		},
		OnComplete: func(full string) {
			c.mu.Lock()
			c.complete = full
			c.done = true
			c.mu.Unlock()
		},
		OnError: func(err error) {
			c.mu.Lock()
			c.err = err
			c.mu.Unlock()
		},
	}
}

func sseChunk(content string) string {
	payload, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{
			{"delta": map[string]string{"content": content}},
		},
	})
	return "data: " + string(payload) + "\n\n"
}

func TestOpenAIStreamForwardsDeltas(t *testing.T) {
	t.Parallel()

	var gotReq openAIRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, sseChunk("Hel"))
		fmt.Fprint(w, sseChunk("lo the"))
		fmt.Fprint(w, "data: not-json\n\n") // malformed frames are skipped
		fmt.Fprint(w, sseChunk("re!"))
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	client := NewOpenAIClient("test-key", "", srv.URL, 0, 0)
	col := &streamCollector{}
	if err := client.Stream(context.Background(), []ChatMessage{{Role: "user", Content: "hello"}}, col.handler()); err != nil {
		t.Fatalf("Stream: %v", err)
	}

	if !gotReq.Stream {
		t.Fatalf("request did not ask for streaming")
	}
	if gotReq.Model != "gpt-4o-mini" {
		t.Fatalf("model = %q, want default gpt-4o-mini", gotReq.Model)
	}
	if gotReq.Temperature != 0.7 || gotReq.MaxTokens != 1000 {
		t.Fatalf("sampling params = %v/%v, want defaults", gotReq.Temperature, gotReq.MaxTokens)
	}

	want := []string{"Hel", "lo the", "re!"}
	if len(col.deltas) != len(want) {
		t.Fatalf("deltas = %q, want %q", col.deltas, want)
	}
	for i := range want {
		if col.deltas[i] != want[i] {
			t.Fatalf("delta[%d] = %q, want %q", i, col.deltas[i], want[i])
		}
	}
	if col.complete != "Hello there!" {
		t.Fatalf("complete = %q, want %q", col.complete, "Hello there!")
	}
	if col.err != nil {
		t.Fatalf("OnError fired on a successful stream: %v", col.err)
	}
}

func TestOpenAIStreamHTTPErrorFailsOnce(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": {"message": "rate limited"}}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := NewOpenAIClient("test-key", "", srv.URL, 0, 0)
	col := &streamCollector{}
	err := client.Stream(context.Background(), nil, col.handler())
	if err == nil {
		t.Fatalf("Stream succeeded against a failing server")
	}
	if col.err == nil {
		t.Fatalf("OnError not delivered")
	}
	if col.done {
		t.Fatalf("OnComplete fired on a failed stream")
	}
	if !strings.Contains(err.Error(), "429") {
		t.Fatalf("error = %v, want status in message", err)
	}
}

func TestOpenAIStreamInBandError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, sseChunk("ok so far"))
		fmt.Fprint(w, `data: {"error": {"message": "context length exceeded"}}`+"\n\n")
	}))
	defer srv.Close()

	client := NewOpenAIClient("test-key", "", srv.URL, 0, 0)
	col := &streamCollector{}
	err := client.Stream(context.Background(), nil, col.handler())
	if err == nil || !strings.Contains(err.Error(), "context length exceeded") {
		t.Fatalf("error = %v, want the in-band stream error", err)
	}
	if col.done {
		t.Fatalf("OnComplete fired after an in-band error")
	}
}

func TestOpenAIStreamRequiresAPIKey(t *testing.T) {
	t.Parallel()

	client := NewOpenAIClient("", "", "http://example.invalid", 0, 0)
	col := &streamCollector{}
	if err := client.Stream(context.Background(), nil, col.handler()); err == nil {
		t.Fatalf("Stream succeeded without an API key")
	}
	if col.err == nil {
		t.Fatalf("OnError not delivered for missing key")
	}
}
