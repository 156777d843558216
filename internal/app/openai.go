package app

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// OpenAIClient streams chat completions over SSE.
type OpenAIClient struct {
	APIKey      string
	Model       string
	BaseURL     string
	MaxTokens   int
	Temperature float64
	HTTP        *http.Client
}

type openAIRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Stream      bool          `json:"stream"`
}

type openAIChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

func NewOpenAIClient(apiKey, model, baseURL string, maxTokens int, temperature float64) *OpenAIClient {
	if model == "" {
		model = "gpt-4o-mini"
	}
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1/chat/completions"
	}
	if maxTokens <= 0 {
		maxTokens = 1000
	}
	if temperature <= 0 {
		temperature = 0.7
	}
	return &OpenAIClient{
		APIKey:      apiKey,
		Model:       model,
		BaseURL:     baseURL,
		MaxTokens:   maxTokens,
		Temperature: temperature,
		HTTP:        &http.Client{Timeout: 120 * time.Second},
	}
}

// Stream issues the completion request and forwards each content delta in
// delivery order. Exactly one of OnComplete or OnError fires before Stream
// returns.
func (c *OpenAIClient) Stream(ctx context.Context, messages []ChatMessage, h StreamHandler) error {
	fail := func(err error) error {
		if h.OnError != nil {
			h.OnError(err)
		}
		return err
	}

	if strings.TrimSpace(c.APIKey) == "" {
		return fail(errors.New("openai api key is required"))
	}
	payload, err := json.Marshal(openAIRequest{
		Model:       c.Model,
		Messages:    messages,
		Temperature: c.Temperature,
		MaxTokens:   c.MaxTokens,
		Stream:      true,
	})
	if err != nil {
		return fail(err)
	}
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL, bytes.NewReader(payload))
	if err != nil {
		return fail(err)
	}
	request.Header.Set("Authorization", "Bearer "+c.APIKey)
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("Accept", "text/event-stream")

	resp, err := c.HTTP.Do(request)
	if err != nil {
		return fail(fmt.Errorf("chat request failed: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fail(fmt.Errorf("chat request failed: %s: %s", resp.Status, strings.TrimSpace(string(body))))
	}

	var full strings.Builder
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "[DONE]" {
			break
		}
		var chunk openAIChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			// A malformed frame is dropped rather than aborting the stream.
			continue
		}
		if chunk.Error != nil {
			return fail(fmt.Errorf("chat stream error: %s", chunk.Error.Message))
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		if delta := chunk.Choices[0].Delta.Content; delta != "" {
			full.WriteString(delta)
			if h.OnDelta != nil {
				h.OnDelta(delta)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return fail(fmt.Errorf("read chat stream: %w", err))
	}

	if h.OnComplete != nil {
		h.OnComplete(full.String())
	}
	return nil
}
