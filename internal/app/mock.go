package app

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Mock collaborators used when no API keys are configured and by the TUI in
// demo runs. They keep every code path exercisable offline.

// MockChatStreamer streams a canned reply word by word.
type MockChatStreamer struct {
	// Reply overrides the generated response when non-empty.
	Reply string
	// Delay between deltas; zero streams as fast as the consumer applies.
	Delay time.Duration
}

func (m *MockChatStreamer) Stream(ctx context.Context, messages []ChatMessage, h StreamHandler) error {
	reply := m.Reply
	if reply == "" {
		last := ""
		for i := len(messages) - 1; i >= 0; i-- {
			if messages[i].Role == string(RoleUser) {
				last = messages[i].Content
				break
			}
		}
		reply = fmt.Sprintf("This is a mock response to %q. Configure an OpenAI API key to talk to the real service.", last)
	}

	var full strings.Builder
	for i, word := range strings.Fields(reply) {
		select {
		case <-ctx.Done():
			if h.OnError != nil {
				h.OnError(ctx.Err())
			}
			return ctx.Err()
		default:
		}
		delta := word
		if i > 0 {
			delta = " " + word
		}
		full.WriteString(delta)
		if h.OnDelta != nil {
			h.OnDelta(delta)
		}
		if m.Delay > 0 {
			time.Sleep(m.Delay)
		}
	}
	if h.OnComplete != nil {
		h.OnComplete(full.String())
	}
	return nil
}

// MockCredentialSource hands out a fixed token.
type MockCredentialSource struct{}

func (MockCredentialSource) Token(ctx context.Context) (Credential, error) {
	return Credential("mock-token"), nil
}

// MockDialer returns channels that transcribe nothing; Inject pushes
// scripted events into the most recent one.
type MockDialer struct {
	mu   sync.Mutex
	last *MockChannel
}

func (d *MockDialer) Connect(ctx context.Context, cred Credential, opts MicrophoneOptions, sink TranscriptSink) (Channel, error) {
	ch := &MockChannel{sink: sink, connected: true}
	d.mu.Lock()
	d.last = ch
	d.mu.Unlock()
	return ch, nil
}

func (d *MockDialer) Last() *MockChannel {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.last
}

type MockChannel struct {
	mu        sync.Mutex
	sink      TranscriptSink
	connected bool
}

func (c *MockChannel) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
	return nil
}

func (c *MockChannel) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *MockChannel) Partial(text string)   { c.sink.OnPartial(text) }
func (c *MockChannel) Committed(text string) { c.sink.OnCommitted(text) }
func (c *MockChannel) Fail(err error)        { c.sink.OnChannelError(err) }

// MockAgentClient pretends to run a task for a fixed number of status polls.
type MockAgentClient struct {
	// PollsUntilDone is how many status calls report running before the
	// task finishes successfully.
	PollsUntilDone int

	mu      sync.Mutex
	running bool
	goal    string
	polls   int
}

func (m *MockAgentClient) Start(ctx context.Context, goal string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.running = true
	m.goal = goal
	m.polls = 0
	return nil
}

func (m *MockAgentClient) Status(ctx context.Context) (AgentStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return AgentStatus{Running: false, Goal: m.goal}, nil
	}
	m.polls++
	if m.polls >= max(m.PollsUntilDone, 1) {
		m.running = false
	}
	return AgentStatus{Running: m.running, Goal: m.goal}, nil
}

func (m *MockAgentClient) Stop(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.running = false
	return nil
}

func (m *MockAgentClient) Health(ctx context.Context) (bool, error) { return true, nil }
