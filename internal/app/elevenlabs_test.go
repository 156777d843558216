package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestScribeTokenFetch(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if r.Header.Get("xi-api-key") != "xi-test" {
			t.Errorf("xi-api-key = %q", r.Header.Get("xi-api-key"))
		}
		json.NewEncoder(w).Encode(map[string]string{"token": "single-use-token"})
	}))
	defer srv.Close()

	creds := NewElevenLabsCredentials("xi-test")
	creds.TokenURL = srv.URL
	token, err := creds.Token(context.Background())
	if err != nil {
		t.Fatalf("Token: %v", err)
	}
	if token != "single-use-token" {
		t.Fatalf("token = %q", token)
	}
}

func TestScribeTokenRequiresAPIKey(t *testing.T) {
	t.Parallel()

	creds := NewElevenLabsCredentials("  ")
	_, err := creds.Token(context.Background())
	if !errors.Is(err, ErrCredentialUnavailable) {
		t.Fatalf("Token error = %v, want ErrCredentialUnavailable", err)
	}
}

func TestScribeTokenRejectedKey(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail": "invalid api key"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	creds := NewElevenLabsCredentials("xi-bad")
	creds.TokenURL = srv.URL
	_, err := creds.Token(context.Background())
	if err == nil || !strings.Contains(err.Error(), "401") {
		t.Fatalf("Token error = %v, want the 401 surfaced", err)
	}
}

// scriptSink records transcript events from a live channel.
type scriptSink struct {
	mu         sync.Mutex
	partials   []string
	committeds []string
	errs       []error
}

func (s *scriptSink) OnPartial(text string) {
	s.mu.Lock()
	s.partials = append(s.partials, text)
	s.mu.Unlock()
}

func (s *scriptSink) OnCommitted(text string) {
	s.mu.Lock()
	s.committeds = append(s.committeds, text)
	s.mu.Unlock()
}

func (s *scriptSink) OnChannelError(err error) {
	s.mu.Lock()
	s.errs = append(s.errs, err)
	s.mu.Unlock()
}

func (s *scriptSink) snapshot() (partials, committeds []string, errs int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.partials...), append([]string(nil), s.committeds...), len(s.errs)
}

func TestScribeChannelDispatchesTranscripts(t *testing.T) {
	t.Parallel()

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("model_id") != scribeModelID {
			t.Errorf("model_id = %q", r.URL.Query().Get("model_id"))
		}
		if r.URL.Query().Get("token") != "tok" {
			t.Errorf("token = %q", r.URL.Query().Get("token"))
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		// Session config arrives before any transcripts flow.
		var config map[string]any
		if err := conn.ReadJSON(&config); err != nil {
			t.Errorf("read session config: %v", err)
			return
		}
		if config["type"] != "session_config" {
			t.Errorf("first frame type = %v", config["type"])
		}

		conn.WriteJSON(scribeEvent{Type: "partial_transcript", Text: "hello wor"})
		conn.WriteJSON(scribeEvent{Type: "committed_transcript", Text: "hello world"})
		conn.WriteJSON(map[string]string{"type": "ignored_frame"})

		// Keep the connection open until the client closes it.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	dialer := NewScribeDialer()
	dialer.Endpoint = "ws" + strings.TrimPrefix(srv.URL, "http")

	sink := &scriptSink{}
	ch, err := dialer.Connect(context.Background(), "tok", MicrophoneOptions{EchoCancellation: true, NoiseSuppression: true}, sink)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer ch.Disconnect()

	deadline := time.Now().Add(2 * time.Second)
	for {
		partials, committeds, _ := sink.snapshot()
		if len(partials) == 1 && len(committeds) == 1 {
			if partials[0] != "hello wor" || committeds[0] != "hello world" {
				t.Fatalf("transcripts = %q / %q", partials, committeds)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("transcripts never arrived: %q / %q", partials, committeds)
		}
		time.Sleep(5 * time.Millisecond)
	}

	if !ch.IsConnected() {
		t.Fatalf("channel disconnected prematurely")
	}
	if err := ch.Disconnect(); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	if ch.IsConnected() {
		t.Fatalf("IsConnected = true after Disconnect")
	}

	// A second Disconnect is a no-op, and no channel error fires for a
	// deliberate local close.
	if err := ch.Disconnect(); err != nil {
		t.Fatalf("second Disconnect: %v", err)
	}
	_, _, errs := sink.snapshot()
	if errs != 0 {
		t.Fatalf("OnChannelError fired %d times for a local disconnect", errs)
	}
}

func TestScribeChannelServerDropFiresError(t *testing.T) {
	t.Parallel()

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		var config map[string]any
		conn.ReadJSON(&config)
		conn.Close() // drop without a close handshake
	}))
	defer srv.Close()

	dialer := NewScribeDialer()
	dialer.Endpoint = "ws" + strings.TrimPrefix(srv.URL, "http")

	sink := &scriptSink{}
	ch, err := dialer.Connect(context.Background(), "tok", MicrophoneOptions{}, sink)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		_, _, errs := sink.snapshot()
		if errs == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("OnChannelError never fired")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if ch.IsConnected() {
		t.Fatalf("channel still connected after server drop")
	}
}
