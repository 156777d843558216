package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultPollInterval is how often a running agent task's status is polled.
const DefaultPollInterval = 2000 * time.Millisecond

type AgentPhase int

const (
	AgentIdle AgentPhase = iota
	AgentStarting
	AgentRunning
)

func (p AgentPhase) String() string {
	switch p {
	case AgentStarting:
		return "starting"
	case AgentRunning:
		return "running"
	default:
		return "idle"
	}
}

// SupervisorHooks surface the task lifecycle. OnMessage carries a synthetic
// assistant message for the conversation timeline; OnPhase reports every
// phase transition.
type SupervisorHooks struct {
	OnMessage func(text string)
	OnPhase   func(phase AgentPhase)
}

// Supervisor starts, polls and terminates exactly one external long-running
// agent task at a time. Starting while a task is alive is rejected, never
// queued. A finished task (success or error) resets straight to idle, so an
// immediate restart succeeds.
type Supervisor struct {
	client AgentClient
	hooks  SupervisorHooks
	logger *zap.Logger

	pollInterval time.Duration
	serverHint   string

	mu         sync.Mutex
	phase      AgentPhase
	goal       string
	gen        uint64
	cancelPoll context.CancelFunc
}

func NewSupervisor(client AgentClient, hooks SupervisorHooks, logger *zap.Logger) *Supervisor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Supervisor{
		client:       client,
		hooks:        hooks,
		logger:       logger,
		pollInterval: DefaultPollInterval,
		serverHint:   DefaultAgentBaseURL,
	}
}

func (s *Supervisor) SetPollInterval(d time.Duration) {
	if d > 0 {
		s.pollInterval = d
	}
}

// SetServerHint names the agent server URL quoted in start-failure messages.
func (s *Supervisor) SetServerHint(url string) {
	if url != "" {
		s.serverHint = url
	}
}

func (s *Supervisor) Phase() AgentPhase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Start launches the agent with the given goal. Valid from idle only;
// otherwise ErrAgentBusy is returned and the running task is untouched.
// The goal announcement and any failure message are emitted through
// OnMessage; the returned error is informational for the caller's log.
func (s *Supervisor) Start(ctx context.Context, goal string) error {
	s.mu.Lock()
	if s.phase != AgentIdle {
		s.mu.Unlock()
		return ErrAgentBusy
	}
	s.phase = AgentStarting
	s.goal = goal
	s.gen++
	gen := s.gen
	s.mu.Unlock()

	s.emitPhase(AgentStarting)
	s.emitMessage(agentStartedText(goal))

	err := s.client.Start(ctx, goal)

	s.mu.Lock()
	if s.gen != gen {
		// Stopped while the start request was in flight; discard the result.
		s.mu.Unlock()
		return nil
	}
	if err != nil {
		s.phase = AgentIdle
		s.mu.Unlock()
		s.logger.Warn("agent start rejected", zap.String("goal", goal), zap.Error(err))
		s.emitMessage(agentStartFailedText(err, s.serverHint))
		s.emitPhase(AgentIdle)
		return err
	}
	pollCtx, cancel := context.WithCancel(context.Background())
	s.cancelPoll = cancel
	s.phase = AgentRunning
	s.mu.Unlock()

	s.logger.Info("agent task running", zap.String("goal", goal))
	s.emitPhase(AgentRunning)
	go s.poll(pollCtx, gen)
	return nil
}

// Stop requests external cancellation best-effort and returns the
// supervisor to idle regardless of the cancellation's own outcome. Valid
// from starting or running; a no-op when idle.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	if s.phase == AgentIdle {
		s.mu.Unlock()
		return
	}
	s.gen++
	if s.cancelPoll != nil {
		s.cancelPoll()
		s.cancelPoll = nil
	}
	s.phase = AgentIdle
	s.mu.Unlock()

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.client.Stop(ctx); err != nil {
			s.logger.Warn("agent stop request failed", zap.Error(err))
		}
	}()
	s.emitPhase(AgentIdle)
}

func (s *Supervisor) poll(ctx context.Context, gen uint64) {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		status, err := s.client.Status(ctx)

		s.mu.Lock()
		if s.gen != gen {
			s.mu.Unlock()
			return
		}
		if err != nil {
			// Status unreachable: give up on this task rather than leave the
			// supervisor stuck running with no path back to idle.
			s.phase = AgentIdle
			s.cancelPoll = nil
			s.mu.Unlock()
			s.logger.Warn("agent status poll failed", zap.Error(err))
			s.emitPhase(AgentIdle)
			return
		}
		if status.Running {
			s.mu.Unlock()
			continue
		}
		goal := s.goal
		if status.Goal != "" {
			goal = status.Goal
		}
		s.phase = AgentIdle
		s.cancelPoll = nil
		s.gen++
		s.mu.Unlock()

		if status.Error != "" {
			s.emitMessage(agentFailedText(status.Error))
		} else {
			s.emitMessage(agentCompletedText(goal))
		}
		s.emitPhase(AgentIdle)
		return
	}
}

func (s *Supervisor) emitMessage(text string) {
	if s.hooks.OnMessage != nil {
		s.hooks.OnMessage(text)
	}
}

func (s *Supervisor) emitPhase(phase AgentPhase) {
	if s.hooks.OnPhase != nil {
		s.hooks.OnPhase(phase)
	}
}

func agentStartedText(goal string) string {
	return fmt.Sprintf("🤖 Agent started with goal: %q\n\nThe agent is now executing your command autonomously. Check the terminal for detailed progress.", goal)
}

func agentCompletedText(goal string) string {
	return fmt.Sprintf("✅ Agent completed the goal: %q", goal)
}

func agentFailedText(errText string) string {
	return fmt.Sprintf("❌ Agent encountered an error: %s", errText)
}

func agentStartFailedText(err error, serverURL string) string {
	return fmt.Sprintf("❌ Failed to start agent: %s\n\nMake sure the agent server is running on %s", err, serverURL)
}
