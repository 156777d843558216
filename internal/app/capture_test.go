package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type captureRecorder struct {
	mu       sync.Mutex
	previews map[CaptureTarget][]string
	stopped  []CaptureTarget
}

func newCaptureRecorder() *captureRecorder {
	return &captureRecorder{previews: map[CaptureTarget][]string{}}
}

func (r *captureRecorder) hooks() CaptureHooks {
	return CaptureHooks{
		OnPreview: func(target CaptureTarget, text string) {
			r.mu.Lock()
			r.previews[target] = append(r.previews[target], text)
			r.mu.Unlock()
		},
		OnStopped: func(target CaptureTarget) {
			r.mu.Lock()
			r.stopped = append(r.stopped, target)
			r.mu.Unlock()
		},
	}
}

func (r *captureRecorder) lastPreview(target CaptureTarget) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.previews[target]
	if len(p) == 0 {
		return ""
	}
	return p[len(p)-1]
}

func (r *captureRecorder) stoppedTargets() []CaptureTarget {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]CaptureTarget(nil), r.stopped...)
}

func newTestRouter(rec *captureRecorder) (*CaptureRouter, *MockDialer) {
	dialer := &MockDialer{}
	router := NewCaptureRouter(MockCredentialSource{}, dialer, rec.hooks(), nil)
	router.SetTimings(time.Hour, time.Millisecond)
	return router, dialer
}

func TestCaptureRoutesToTarget(t *testing.T) {
	t.Parallel()

	rec := newCaptureRecorder()
	router, dialer := newTestRouter(rec)

	if err := router.StartCapture(context.Background(), TargetPrimary, "search for"); err != nil {
		t.Fatalf("StartCapture: %v", err)
	}
	if router.Active() != TargetPrimary {
		t.Fatalf("Active = %v, want primary", router.Active())
	}

	dialer.Last().Partial("go generics")
	if got := rec.lastPreview(TargetPrimary); got != "search for go generics" {
		t.Fatalf("primary preview = %q, want %q", got, "search for go generics")
	}
	if got := rec.lastPreview(TargetChat); got != "" {
		t.Fatalf("chat field received primary transcript: %q", got)
	}

	router.StopCapture()
	if router.Active() != TargetNone {
		t.Fatalf("Active after stop = %v, want none", router.Active())
	}
	if len(rec.stoppedTargets()) != 0 {
		t.Fatalf("explicit stop must not fire OnStopped")
	}
}

func TestCaptureSameTargetIsNoOp(t *testing.T) {
	t.Parallel()

	rec := newCaptureRecorder()
	router, dialer := newTestRouter(rec)

	if err := router.StartCapture(context.Background(), TargetChat, ""); err != nil {
		t.Fatalf("StartCapture: %v", err)
	}
	first := dialer.Last()
	if err := router.StartCapture(context.Background(), TargetChat, ""); err != nil {
		t.Fatalf("StartCapture again: %v", err)
	}
	if dialer.Last() != first {
		t.Fatalf("restart of the active target must not reconnect")
	}
	if !first.IsConnected() {
		t.Fatalf("channel was disconnected by a same-target restart")
	}
}

func TestCaptureHandoffPreemptsOtherTarget(t *testing.T) {
	t.Parallel()

	rec := newCaptureRecorder()
	router, dialer := newTestRouter(rec)

	if err := router.StartCapture(context.Background(), TargetPrimary, ""); err != nil {
		t.Fatalf("StartCapture primary: %v", err)
	}
	primaryCh := dialer.Last()

	if err := router.StartCapture(context.Background(), TargetChat, "draft:"); err != nil {
		t.Fatalf("StartCapture chat: %v", err)
	}
	if primaryCh.IsConnected() {
		t.Fatalf("primary channel still connected after handoff")
	}
	if router.Active() != TargetChat {
		t.Fatalf("Active = %v, want chat", router.Active())
	}

	// Events from the old channel are dropped after the handoff.
	primaryCh.Partial("stale words")
	if got := rec.lastPreview(TargetPrimary); got != "" {
		t.Fatalf("stale channel still updating primary: %q", got)
	}

	dialer.Last().Partial("fresh words")
	if got := rec.lastPreview(TargetChat); got != "draft: fresh words" {
		t.Fatalf("chat preview = %q, want %q", got, "draft: fresh words")
	}
	if len(rec.stoppedTargets()) != 0 {
		t.Fatalf("handoff preemption must not fire OnStopped")
	}
}

func TestCaptureChannelErrorAutoStops(t *testing.T) {
	t.Parallel()

	rec := newCaptureRecorder()
	router, dialer := newTestRouter(rec)

	if err := router.StartCapture(context.Background(), TargetPrimary, ""); err != nil {
		t.Fatalf("StartCapture: %v", err)
	}
	dialer.Last().Fail(errors.New("socket closed"))

	if router.Active() != TargetNone {
		t.Fatalf("Active after channel error = %v, want none", router.Active())
	}
	stopped := rec.stoppedTargets()
	if len(stopped) != 1 || stopped[0] != TargetPrimary {
		t.Fatalf("OnStopped = %v, want [primary]", stopped)
	}
}

func TestCaptureSilenceTimeoutAutoStops(t *testing.T) {
	t.Parallel()

	rec := newCaptureRecorder()
	router, dialer := newTestRouter(rec)
	router.SetTimings(20*time.Millisecond, time.Millisecond)

	if err := router.StartCapture(context.Background(), TargetChat, ""); err != nil {
		t.Fatalf("StartCapture: %v", err)
	}
	dialer.Last().Partial("trailing off")

	deadline := time.Now().Add(time.Second)
	for router.Active() != TargetNone {
		if time.Now().After(deadline) {
			t.Fatalf("capture did not auto-stop after silence")
		}
		time.Sleep(5 * time.Millisecond)
	}
	stopped := rec.stoppedTargets()
	if len(stopped) != 1 || stopped[0] != TargetChat {
		t.Fatalf("OnStopped = %v, want [chat]", stopped)
	}
	if dialer.Last().IsConnected() {
		t.Fatalf("channel left connected after silence auto-stop")
	}
}

type failingCredentials struct{}

func (failingCredentials) Token(ctx context.Context) (Credential, error) {
	return "", ErrCredentialUnavailable
}

func TestCaptureCredentialFailureStaysIdle(t *testing.T) {
	t.Parallel()

	rec := newCaptureRecorder()
	router := NewCaptureRouter(failingCredentials{}, &MockDialer{}, rec.hooks(), nil)
	router.SetTimings(time.Hour, time.Millisecond)

	err := router.StartCapture(context.Background(), TargetPrimary, "")
	if !errors.Is(err, ErrCredentialUnavailable) {
		t.Fatalf("StartCapture error = %v, want ErrCredentialUnavailable", err)
	}
	if router.Active() != TargetNone {
		t.Fatalf("Active = %v, want none after credential failure", router.Active())
	}
}

type failingDialer struct{}

func (failingDialer) Connect(ctx context.Context, cred Credential, opts MicrophoneOptions, sink TranscriptSink) (Channel, error) {
	return nil, errors.New("dial refused")
}

func TestCaptureConnectFailureStaysIdle(t *testing.T) {
	t.Parallel()

	rec := newCaptureRecorder()
	router := NewCaptureRouter(MockCredentialSource{}, failingDialer{}, rec.hooks(), nil)
	router.SetTimings(time.Hour, time.Millisecond)

	if err := router.StartCapture(context.Background(), TargetChat, ""); err == nil {
		t.Fatalf("StartCapture succeeded with failing dialer")
	}
	if router.Active() != TargetNone {
		t.Fatalf("Active = %v, want none after connect failure", router.Active())
	}

	// The router recovers: a later start works.
	rec2 := newCaptureRecorder()
	router2, _ := newTestRouter(rec2)
	if err := router2.StartCapture(context.Background(), TargetChat, ""); err != nil {
		t.Fatalf("fresh StartCapture: %v", err)
	}
}

func TestCaptureTargetRequired(t *testing.T) {
	t.Parallel()

	rec := newCaptureRecorder()
	router, _ := newTestRouter(rec)
	if err := router.StartCapture(context.Background(), TargetNone, ""); err == nil {
		t.Fatalf("StartCapture(TargetNone) must fail")
	}
}
