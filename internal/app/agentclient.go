package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const DefaultAgentBaseURL = "http://127.0.0.1:5001"

// AgentStatus is the external agent process's self-reported state. Once
// Running turns false the task is finished; Error carries the failure text
// if it did not succeed.
type AgentStatus struct {
	Running bool   `json:"running"`
	Goal    string `json:"goal,omitempty"`
	Error   string `json:"error,omitempty"`
}

// AgentClient talks to the external long-running agent process. Only the
// reported status matters here; the process's own behavior is its business.
type AgentClient interface {
	Start(ctx context.Context, goal string) error
	Status(ctx context.Context) (AgentStatus, error)
	Stop(ctx context.Context) error
	Health(ctx context.Context) (bool, error)
}

// HTTPAgentClient drives the agent server's HTTP control surface.
type HTTPAgentClient struct {
	BaseURL string
	HTTP    *http.Client
}

func NewHTTPAgentClient(baseURL string) *HTTPAgentClient {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultAgentBaseURL
	}
	return &HTTPAgentClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *HTTPAgentClient) Start(ctx context.Context, goal string) error {
	payload, err := json.Marshal(map[string]string{"goal": goal})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/agent/start", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("agent start request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		var body struct {
			Error string `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err == nil && body.Error != "" {
			return fmt.Errorf("agent rejected start: %s", body.Error)
		}
		return fmt.Errorf("agent rejected start: %s", resp.Status)
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}

func (c *HTTPAgentClient) Status(ctx context.Context) (AgentStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/agent/status", nil)
	if err != nil {
		return AgentStatus{}, err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return AgentStatus{}, fmt.Errorf("agent status request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return AgentStatus{}, fmt.Errorf("agent status: %s", resp.Status)
	}
	var status AgentStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return AgentStatus{}, fmt.Errorf("decode agent status: %w", err)
	}
	return status, nil
}

func (c *HTTPAgentClient) Stop(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/agent/stop", nil)
	if err != nil {
		return err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("agent stop request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("agent stop: %s", resp.Status)
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}

func (c *HTTPAgentClient) Health(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/health", nil)
	if err != nil {
		return false, err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false, nil
	}
	var body struct {
		Healthy bool `json:"healthy"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return false, err
	}
	return body.Healthy, nil
}
