package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// assistantErrorText is appended as a separate assistant message when a
// response stream fails mid-flight.
const assistantErrorText = "Sorry, I encountered an error. Please try again."

// ControllerDeps wires the controller's collaborators. Logger defaults to a
// nop logger, Frame to NopFrame; zero timing values take the defaults.
type ControllerDeps struct {
	Store       Store
	Chat        ChatStreamer
	Credentials CredentialSource
	Dialer      ChannelDialer
	Agent       AgentClient
	Frame       FrameController
	Logger      *zap.Logger

	AgentServerURL string
	SilenceTimeout time.Duration
	HandoffGrace   time.Duration
	PollInterval   time.Duration
}

// Controller owns the command bar's mutable state: the current conversation,
// the two capture-target field texts, the single outstanding response relay,
// and the agent-mode toggle. All user actions and all asynchronous component
// events funnel through it, and it publishes state changes to subscribers
// instead of assuming any re-render machinery.
//
// Controller methods release the internal lock before calling into
// collaborators, so component hooks may re-enter freely.
type Controller struct {
	store  Store
	chat   ChatStreamer
	router *CaptureRouter
	agent  *Supervisor
	frame  FrameController
	logger *zap.Logger

	mu          sync.Mutex
	currentID   string
	agentConvID string
	query       string
	compose     string
	loading     bool
	relay       *Relay
	agentMode   bool
	subs        []func(Event)
}

func NewController(deps ControllerDeps) *Controller {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	frame := deps.Frame
	if frame == nil {
		frame = NopFrame{}
	}

	c := &Controller{
		store:  deps.Store,
		chat:   deps.Chat,
		frame:  frame,
		logger: logger,
	}

	c.router = NewCaptureRouter(deps.Credentials, deps.Dialer, CaptureHooks{
		OnPreview: c.setField,
		OnCommit:  c.setField,
		OnStopped: func(CaptureTarget) { c.emit(CaptureChanged{TargetNone}) },
	}, logger)
	c.router.SetTimings(deps.SilenceTimeout, deps.HandoffGrace)

	c.agent = NewSupervisor(deps.Agent, SupervisorHooks{
		OnMessage: c.appendAgentMessage,
		OnPhase:   func(phase AgentPhase) { c.emit(AgentPhaseChanged{phase}) },
	}, logger)
	c.agent.SetPollInterval(deps.PollInterval)
	c.agent.SetServerHint(deps.AgentServerURL)

	return c
}

// SetFrame attaches the window controller once the rendering layer exists.
func (c *Controller) SetFrame(frame FrameController) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if frame != nil {
		c.frame = frame
	}
}

// Subscribe registers a state-change observer. Observers are invoked
// synchronously on whatever goroutine produced the change and must not
// block.
func (c *Controller) Subscribe(fn func(Event)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subs = append(c.subs, fn)
}

func (c *Controller) emit(e Event) {
	c.mu.Lock()
	subs := append(([]func(Event))(nil), c.subs...)
	c.mu.Unlock()
	for _, fn := range subs {
		fn(e)
	}
}

func (c *Controller) Query() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.query
}

func (c *Controller) Compose() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.compose
}

func (c *Controller) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

func (c *Controller) AgentMode() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.agentMode
}

func (c *Controller) Capture() CaptureTarget { return c.router.Active() }

func (c *Controller) AgentPhase() AgentPhase { return c.agent.Phase() }

func (c *Controller) Conversations() ([]ConversationSummary, error) { return c.store.List() }

// Current returns the open conversation, if one is selected.
func (c *Controller) Current() (Conversation, bool) {
	c.mu.Lock()
	id := c.currentID
	c.mu.Unlock()
	if id == "" {
		return Conversation{}, false
	}
	conv, err := c.store.Get(id)
	if err != nil {
		return Conversation{}, false
	}
	return conv, true
}

// SetQuery records a typed edit of the primary query field. No event is
// published; the edit came from the rendering layer itself.
func (c *Controller) SetQuery(text string) {
	c.mu.Lock()
	c.query = text
	c.mu.Unlock()
}

// SetCompose records a typed edit of the chat compose field.
func (c *Controller) SetCompose(text string) {
	c.mu.Lock()
	c.compose = text
	c.mu.Unlock()
}

// SubmitQuery sends the primary query field: it opens (or reuses) the
// current conversation, grows the frame to the chat layout, and starts the
// response stream. A blank query or an in-flight request is a no-op.
func (c *Controller) SubmitQuery() {
	c.mu.Lock()
	text := strings.TrimSpace(c.query)
	if text == "" || c.loading {
		c.mu.Unlock()
		return
	}
	c.query = ""
	c.mu.Unlock()

	c.emit(QueryChanged{})
	c.submit(text, true)
}

// SubmitCompose sends the chat compose field, either as a chat turn or, in
// agent mode, as a goal delegated to the external agent.
func (c *Controller) SubmitCompose() {
	c.mu.Lock()
	text := strings.TrimSpace(c.compose)
	agentMode := c.agentMode
	currentID := c.currentID
	if text == "" || c.loading {
		c.mu.Unlock()
		return
	}
	c.compose = ""
	c.mu.Unlock()

	c.emit(ComposeChanged{})
	if agentMode {
		c.delegate(text)
		return
	}
	if currentID == "" {
		// The compose field only exists inside an open chat.
		return
	}
	c.submit(text, false)
}

func (c *Controller) submit(text string, openChatFrame bool) {
	c.mu.Lock()
	convID := c.currentID
	c.mu.Unlock()

	if convID == "" {
		id, err := c.store.Create(text)
		if err != nil {
			c.logger.Error("create conversation", zap.Error(err))
			c.emit(AlertRaised{Message: "Failed to create conversation."})
			return
		}
		c.mu.Lock()
		c.currentID = id
		c.mu.Unlock()
		convID = id
	}
	if openChatFrame {
		c.frame.Resize(FrameWidth, FrameChatHeight)
	}

	if _, err := c.store.Append(convID, Message{Role: RoleUser, Text: text}); err != nil {
		c.logger.Error("append user message", zap.String("conversation", convID), zap.Error(err))
		return
	}

	// Build the request payload from the just-appended state, never from a
	// snapshot taken before the append, so the request is never one message
	// behind the timeline.
	conv, err := c.store.Get(convID)
	if err != nil {
		c.logger.Error("read conversation for payload", zap.String("conversation", convID), zap.Error(err))
		return
	}
	payload := make([]ChatMessage, 0, len(conv.Messages))
	for _, m := range conv.Messages {
		payload = append(payload, ChatMessage{Role: string(m.Role), Content: m.Text})
	}

	placeholder, err := c.store.Append(convID, Message{Role: RoleAssistant, Text: ""})
	if err != nil {
		c.logger.Error("append placeholder", zap.String("conversation", convID), zap.Error(err))
		return
	}
	relay := NewRelay(c.store, convID, placeholder.ID, c.logger)

	c.mu.Lock()
	c.loading = true
	c.relay = relay
	c.mu.Unlock()

	c.emit(ConversationChanged{ID: convID})
	c.emit(LoadingChanged{Loading: true})
	go c.runStream(relay, convID, payload)
}

func (c *Controller) runStream(relay *Relay, convID string, payload []ChatMessage) {
	h := StreamHandler{
		OnDelta: func(delta string) {
			relay.Delta(delta)
			c.emit(ConversationChanged{ID: convID})
		},
		OnComplete: func(fullText string) {
			relay.Complete(fullText)
			c.finishStream(relay, convID, nil)
		},
		OnError: func(err error) {
			relay.Error(err)
			c.finishStream(relay, convID, err)
		},
	}
	if err := c.chat.Stream(context.Background(), payload, h); err != nil {
		c.logger.Warn("chat stream failed", zap.String("conversation", convID), zap.Error(err))
	}
}

func (c *Controller) finishStream(relay *Relay, convID string, streamErr error) {
	c.mu.Lock()
	if c.relay != relay {
		// A stale terminal event for a relay that was already resolved.
		c.mu.Unlock()
		return
	}
	c.relay = nil
	c.loading = false
	c.mu.Unlock()

	if streamErr != nil {
		if _, err := c.store.Append(convID, Message{Role: RoleAssistant, Text: assistantErrorText}); err != nil {
			c.logger.Error("append error message", zap.String("conversation", convID), zap.Error(err))
		}
	}
	c.emit(ConversationChanged{ID: convID})
	c.emit(LoadingChanged{})
}

func (c *Controller) delegate(goal string) {
	c.mu.Lock()
	convID := c.currentID
	c.mu.Unlock()

	if convID == "" {
		id, err := c.store.Create(goal)
		if err != nil {
			c.logger.Error("create conversation", zap.Error(err))
			c.emit(AlertRaised{Message: "Failed to create conversation."})
			return
		}
		c.mu.Lock()
		c.currentID = id
		c.mu.Unlock()
		convID = id
	}

	if _, err := c.store.Append(convID, Message{Role: RoleUser, Text: goal}); err != nil {
		c.logger.Error("append goal message", zap.String("conversation", convID), zap.Error(err))
		return
	}
	c.mu.Lock()
	c.agentConvID = convID
	c.mu.Unlock()
	c.emit(ConversationChanged{ID: convID})

	go func() {
		if err := c.agent.Start(context.Background(), goal); errors.Is(err, ErrAgentBusy) {
			c.emit(AlertRaised{Message: "An agent task is already running."})
		}
	}()
}

func (c *Controller) appendAgentMessage(text string) {
	c.mu.Lock()
	convID := c.agentConvID
	c.mu.Unlock()
	if convID == "" {
		return
	}
	if _, err := c.store.Append(convID, Message{Role: RoleAssistant, Text: text}); err != nil {
		c.logger.Error("append agent message", zap.String("conversation", convID), zap.Error(err))
		return
	}
	c.emit(ConversationChanged{ID: convID})
}

// ToggleCapture flips the microphone for target: stops it when it is
// already recording there, otherwise starts capture (preempting the other
// target if needed). Connection failures leave capture idle and raise an
// alert.
func (c *Controller) ToggleCapture(target CaptureTarget) {
	if target == TargetNone {
		return
	}
	if c.router.Active() == target {
		c.router.StopCapture()
		c.emit(CaptureChanged{Target: TargetNone})
		return
	}

	c.mu.Lock()
	base := c.query
	if target == TargetChat {
		base = c.compose
	}
	c.mu.Unlock()

	if err := c.router.StartCapture(context.Background(), target, base); err != nil {
		c.logger.Warn("capture start failed", zap.String("target", target.String()), zap.Error(err))
		c.emit(CaptureChanged{Target: TargetNone})
		c.emit(AlertRaised{Message: fmt.Sprintf("Error connecting to speech recognition: %v", err)})
		return
	}
	c.emit(CaptureChanged{Target: target})
}

// SetAgentMode flips the compose field's delegation toggle. Turning it off
// while a task is alive stops the task.
func (c *Controller) SetAgentMode(enabled bool) {
	c.mu.Lock()
	if c.agentMode == enabled {
		c.mu.Unlock()
		return
	}
	c.agentMode = enabled
	c.mu.Unlock()

	if !enabled && c.agent.Phase() != AgentIdle {
		c.agent.Stop()
	}
	c.emit(AgentModeChanged{Enabled: enabled})
}

// SelectConversation opens a stored conversation in the chat layout.
func (c *Controller) SelectConversation(id string) error {
	if _, err := c.store.Get(id); err != nil {
		return err
	}
	c.mu.Lock()
	c.currentID = id
	c.mu.Unlock()
	c.frame.Resize(FrameWidth, FrameChatHeight)
	c.emit(ConversationChanged{ID: id})
	return nil
}

// NewConversation returns to the collapsed bar with no conversation open.
func (c *Controller) NewConversation() {
	c.mu.Lock()
	c.currentID = ""
	c.compose = ""
	c.mu.Unlock()
	c.frame.Resize(FrameWidth, FrameBarHeight)
	c.emit(ConversationChanged{})
}

// OpenMenu grows the frame for the command menu overlay.
func (c *Controller) OpenMenu() { c.frame.Resize(FrameWidth, FrameMenuHeight) }

// CollapseToBar shrinks the frame back to the input bar.
func (c *Controller) CollapseToBar() { c.frame.Resize(FrameWidth, FrameBarHeight) }

// Shutdown releases live resources on exit. The agent process, if running,
// is deliberately left alone; it outlives the bar.
func (c *Controller) Shutdown() {
	c.router.StopCapture()
}

func (c *Controller) setField(target CaptureTarget, text string) {
	c.mu.Lock()
	var ev Event
	switch target {
	case TargetPrimary:
		if c.query != text {
			c.query = text
			ev = QueryChanged{Text: text}
		}
	case TargetChat:
		if c.compose != text {
			c.compose = text
			ev = ComposeChanged{Text: text}
		}
	}
	c.mu.Unlock()
	if ev != nil {
		c.emit(ev)
	}
}
