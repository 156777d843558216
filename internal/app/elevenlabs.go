package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const (
	defaultScribeTokenURL = "https://api.elevenlabs.io/v1/single-use-token/realtime_scribe"
	defaultScribeWSURL    = "wss://api.elevenlabs.io/v1/speech-to-text/realtime"
	scribeModelID         = "scribe_v2_realtime"
)

// ElevenLabsCredentials mints single-use realtime transcription tokens.
type ElevenLabsCredentials struct {
	APIKey   string
	TokenURL string
	HTTP     *http.Client
}

func NewElevenLabsCredentials(apiKey string) *ElevenLabsCredentials {
	return &ElevenLabsCredentials{
		APIKey:   apiKey,
		TokenURL: defaultScribeTokenURL,
		HTTP:     &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *ElevenLabsCredentials) Token(ctx context.Context) (Credential, error) {
	if strings.TrimSpace(c.APIKey) == "" {
		return "", ErrCredentialUnavailable
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.TokenURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("xi-api-key", c.APIKey)
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch scribe token: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", fmt.Errorf("fetch scribe token: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	var payload struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decode scribe token: %w", err)
	}
	if payload.Token == "" {
		return "", fmt.Errorf("scribe token response missing token")
	}
	return Credential(payload.Token), nil
}

// ScribeDialer opens realtime transcription channels against the ElevenLabs
// scribe websocket endpoint.
type ScribeDialer struct {
	Endpoint string
	Dialer   *websocket.Dialer
}

func NewScribeDialer() *ScribeDialer {
	return &ScribeDialer{
		Endpoint: defaultScribeWSURL,
		Dialer:   websocket.DefaultDialer,
	}
}

// scribeEvent is the server's transcript frame.
type scribeEvent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func (d *ScribeDialer) Connect(ctx context.Context, cred Credential, opts MicrophoneOptions, sink TranscriptSink) (Channel, error) {
	q := url.Values{}
	q.Set("model_id", scribeModelID)
	q.Set("token", string(cred))
	endpoint := d.Endpoint + "?" + q.Encode()

	dialer := d.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	conn, resp, err := dialer.DialContext(ctx, endpoint, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("dial scribe: %w", err)
	}

	config := map[string]any{
		"type": "session_config",
		"microphone": map[string]bool{
			"echo_cancellation": opts.EchoCancellation,
			"noise_suppression": opts.NoiseSuppression,
		},
	}
	if err := conn.WriteJSON(config); err != nil {
		conn.Close()
		return nil, fmt.Errorf("configure scribe session: %w", err)
	}

	ch := &scribeChannel{conn: conn}
	ch.connected.Store(true)
	go ch.readLoop(sink)
	return ch, nil
}

type scribeChannel struct {
	conn      *websocket.Conn
	connected atomic.Bool
}

func (c *scribeChannel) readLoop(sink TranscriptSink) {
	for {
		var ev scribeEvent
		if err := c.conn.ReadJSON(&ev); err != nil {
			if c.connected.CompareAndSwap(true, false) {
				c.conn.Close()
				sink.OnChannelError(err)
			}
			return
		}
		switch ev.Type {
		case "partial_transcript":
			sink.OnPartial(ev.Text)
		case "committed_transcript":
			sink.OnCommitted(ev.Text)
		}
	}
}

func (c *scribeChannel) Disconnect() error {
	if !c.connected.CompareAndSwap(true, false) {
		return nil
	}
	deadline := time.Now().Add(time.Second)
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	return c.conn.Close()
}

func (c *scribeChannel) IsConnected() bool { return c.connected.Load() }
