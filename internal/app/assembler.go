package app

import (
	"strings"
	"sync"
	"time"
)

// DefaultSilenceTimeout is the quiet period after the last transcript event
// before a live capture auto-disconnects.
const DefaultSilenceTimeout = 3000 * time.Millisecond

// AssemblerHooks receive the assembler's outputs. OnPreview fires on every
// event with the current display text; OnCommit fires when a committed
// fragment folds into the base text; OnTimeout fires exactly once if the
// inactivity timer expires.
type AssemblerHooks struct {
	OnPreview func(text string)
	OnCommit  func(text string)
	OnTimeout func()
}

// Assembler turns a live stream of partial/committed transcript fragments
// into a continuously-updating preview and a periodically-committed stable
// base text, auto-stopping after a fixed quiet period.
type Assembler struct {
	hooks   AssemblerHooks
	timeout time.Duration

	mu      sync.Mutex
	base    string
	timer   *time.Timer
	stopped bool
}

func NewAssembler(baseText string, timeout time.Duration, hooks AssemblerHooks) *Assembler {
	if timeout <= 0 {
		timeout = DefaultSilenceTimeout
	}
	return &Assembler{
		hooks:   hooks,
		timeout: timeout,
		base:    strings.TrimSpace(baseText),
	}
}

// join concatenates transcript fragments with a single separating space.
func join(a, b string) string {
	if a == "" {
		return b
	}
	return a + " " + b
}

// Partial publishes base+fragment as the live preview and re-arms the
// inactivity timer. Partials never change the base text.
func (a *Assembler) Partial(text string) {
	a.mu.Lock()
	if a.stopped {
		a.mu.Unlock()
		return
	}
	preview := join(a.base, text)
	if a.timer != nil {
		a.timer.Stop()
	}
	a.timer = time.AfterFunc(a.timeout, a.fire)
	a.mu.Unlock()

	if a.hooks.OnPreview != nil {
		a.hooks.OnPreview(preview)
	}
}

// Committed folds a finalized fragment into the base text, so subsequent
// partials build on it, and publishes the joined value as both preview and
// stable value. A commit resets the quiet-period clock, so the pending
// inactivity timer is cancelled.
func (a *Assembler) Committed(text string) {
	a.mu.Lock()
	if a.stopped {
		a.mu.Unlock()
		return
	}
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		a.mu.Unlock()
		return
	}
	a.base = join(a.base, trimmed)
	stable := a.base
	a.mu.Unlock()

	if a.hooks.OnPreview != nil {
		a.hooks.OnPreview(stable)
	}
	if a.hooks.OnCommit != nil {
		a.hooks.OnCommit(stable)
	}
}

// Base returns the committed stable text.
func (a *Assembler) Base() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.base
}

// Stop cancels the inactivity timer and ignores all further events.
// Stopping an already-stopped assembler is a no-op.
func (a *Assembler) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stopped = true
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
}

func (a *Assembler) fire() {
	a.mu.Lock()
	if a.stopped {
		a.mu.Unlock()
		return
	}
	// Marking stopped here guarantees the timeout is delivered at most once
	// even if Stop races with the timer goroutine.
	a.stopped = true
	a.timer = nil
	a.mu.Unlock()

	if a.hooks.OnTimeout != nil {
		a.hooks.OnTimeout()
	}
}
