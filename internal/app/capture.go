package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// DefaultHandoffGrace is the pause between tearing down one capture session
// and opening a channel for the other target. The previous channel needs a
// moment to finish disconnecting or the vendor reports a double-connect.
const DefaultHandoffGrace = 120 * time.Millisecond

// CaptureTarget names the field that owns the live microphone session.
type CaptureTarget int

const (
	TargetNone CaptureTarget = iota
	TargetPrimary
	TargetChat
)

func (t CaptureTarget) String() string {
	switch t {
	case TargetPrimary:
		return "primary"
	case TargetChat:
		return "chat"
	default:
		return "none"
	}
}

// CaptureHooks receive router output. OnPreview/OnCommit carry the target
// whose field should be updated. OnStopped fires only for stops the router
// initiates on its own (inactivity timeout, channel error); explicit
// StopCapture and handoff preemption do not fire it, the caller already
// knows.
type CaptureHooks struct {
	OnPreview func(target CaptureTarget, text string)
	OnCommit  func(target CaptureTarget, text string)
	OnStopped func(target CaptureTarget)
}

// CaptureRouter owns the at-most-one live capture session and mediates
// handoff between the primary query field and the chat compose field.
// StartCapture/StopCapture are expected to be called from a single driving
// goroutine; the internal lock exists for the asynchronous transcript and
// timer callbacks.
type CaptureRouter struct {
	creds  CredentialSource
	dialer ChannelDialer
	hooks  CaptureHooks
	logger *zap.Logger

	silenceTimeout time.Duration
	handoffGrace   time.Duration
	mic            MicrophoneOptions

	mu      sync.Mutex
	session *captureSession
}

type captureSession struct {
	target    CaptureTarget
	assembler *Assembler
	channel   Channel
	closed    atomic.Bool
}

func NewCaptureRouter(creds CredentialSource, dialer ChannelDialer, hooks CaptureHooks, logger *zap.Logger) *CaptureRouter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CaptureRouter{
		creds:          creds,
		dialer:         dialer,
		hooks:          hooks,
		logger:         logger,
		silenceTimeout: DefaultSilenceTimeout,
		handoffGrace:   DefaultHandoffGrace,
		mic: MicrophoneOptions{
			EchoCancellation: true,
			NoiseSuppression: true,
		},
	}
}

// SetTimings overrides the silence timeout and handoff grace. Zero values
// keep the current settings.
func (r *CaptureRouter) SetTimings(silence, handoff time.Duration) {
	if silence > 0 {
		r.silenceTimeout = silence
	}
	if handoff > 0 {
		r.handoffGrace = handoff
	}
}

// Active reports which target currently owns the microphone.
func (r *CaptureRouter) Active() CaptureTarget {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.session == nil {
		return TargetNone
	}
	return r.session.target
}

// StartCapture opens a capture session for target, seeding the assembler
// with baseText (the field's current content). Starting the already-active
// target is a no-op; starting the other target force-stops the existing
// session and waits the handoff grace before connecting. On credential or
// connect failure the router stays idle and the error is returned.
func (r *CaptureRouter) StartCapture(ctx context.Context, target CaptureTarget, baseText string) error {
	if target == TargetNone {
		return errors.New("capture target required")
	}

	r.mu.Lock()
	prev := r.session
	if prev != nil && prev.target == target {
		r.mu.Unlock()
		return nil
	}
	r.session = nil
	r.mu.Unlock()

	if prev != nil {
		r.closeSession(prev)
		time.Sleep(r.handoffGrace)
	}

	cred, err := r.creds.Token(ctx)
	if err != nil {
		return fmt.Errorf("fetch transcription credential: %w", err)
	}

	sess := &captureSession{target: target}
	sess.assembler = NewAssembler(baseText, r.silenceTimeout, AssemblerHooks{
		OnPreview: func(text string) {
			if sess.closed.Load() {
				return
			}
			if r.hooks.OnPreview != nil {
				r.hooks.OnPreview(sess.target, text)
			}
		},
		OnCommit: func(text string) {
			if sess.closed.Load() {
				return
			}
			if r.hooks.OnCommit != nil {
				r.hooks.OnCommit(sess.target, text)
			}
		},
		OnTimeout: func() {
			r.logger.Debug("capture auto-stop after silence", zap.String("target", sess.target.String()))
			r.autoStop(sess)
		},
	})

	r.mu.Lock()
	r.session = sess
	r.mu.Unlock()

	ch, err := r.dialer.Connect(ctx, cred, r.mic, &sinkFor{router: r, session: sess})

	r.mu.Lock()
	if r.session != sess {
		// Torn down while connecting; discard the late result.
		r.mu.Unlock()
		if err == nil {
			_ = ch.Disconnect()
		}
		return nil
	}
	if err != nil {
		r.session = nil
		r.mu.Unlock()
		sess.closed.Store(true)
		sess.assembler.Stop()
		return fmt.Errorf("connect transcription channel: %w", err)
	}
	sess.channel = ch
	r.mu.Unlock()
	r.logger.Debug("capture started", zap.String("target", target.String()))
	return nil
}

// StopCapture disconnects the channel, cancels the inactivity timer and
// discards the capture session. Idempotent.
func (r *CaptureRouter) StopCapture() {
	r.mu.Lock()
	sess := r.session
	r.session = nil
	r.mu.Unlock()
	if sess == nil {
		return
	}
	r.closeSession(sess)
}

func (r *CaptureRouter) closeSession(sess *captureSession) {
	sess.closed.Store(true)
	sess.assembler.Stop()
	if sess.channel != nil && sess.channel.IsConnected() {
		_ = sess.channel.Disconnect()
	}
}

// autoStop tears down sess if it is still the current session. Stale calls
// (the session was already replaced or discarded) are dropped.
func (r *CaptureRouter) autoStop(sess *captureSession) {
	r.mu.Lock()
	if r.session != sess {
		r.mu.Unlock()
		return
	}
	r.session = nil
	r.mu.Unlock()
	r.closeSession(sess)
	if r.hooks.OnStopped != nil {
		r.hooks.OnStopped(sess.target)
	}
}

// sinkFor adapts transcript events onto one capture session, guarding
// against events delivered after the session was torn down.
type sinkFor struct {
	router  *CaptureRouter
	session *captureSession
}

func (s *sinkFor) OnPartial(text string) {
	if s.session.closed.Load() {
		return
	}
	s.session.assembler.Partial(text)
}

func (s *sinkFor) OnCommitted(text string) {
	if s.session.closed.Load() {
		return
	}
	s.session.assembler.Committed(text)
}

func (s *sinkFor) OnChannelError(err error) {
	if s.session.closed.Load() {
		return
	}
	s.router.logger.Warn("transcription channel error", zap.Error(err))
	s.router.autoStop(s.session)
}
