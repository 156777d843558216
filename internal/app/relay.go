package app

import (
	"sync"

	"go.uber.org/zap"
)

type RelayState int

const (
	RelayOpen RelayState = iota
	RelayCompleted
	RelayErrored
)

// Relay applies one assistant response stream to one message record in the
// store. Partial responses render as they arrive because every delta
// propagates immediately via UpdateMessageText. The terminal states are
// absorbing: deltas delivered after Complete or Error are silently dropped.
type Relay struct {
	store  Store
	convID string
	msgID  string
	logger *zap.Logger

	mu    sync.Mutex
	acc   string
	state RelayState
}

func NewRelay(store Store, convID, msgID string, logger *zap.Logger) *Relay {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Relay{store: store, convID: convID, msgID: msgID, logger: logger}
}

func (r *Relay) Delta(delta string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != RelayOpen {
		return
	}
	r.acc += delta
	if err := r.store.UpdateMessageText(r.convID, r.msgID, r.acc); err != nil {
		r.logger.Error("apply stream delta", zap.String("message", r.msgID), zap.Error(err))
	}
}

// Complete freezes the message text. A non-empty fullText is authoritative
// over the accumulated deltas.
func (r *Relay) Complete(fullText string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != RelayOpen {
		return
	}
	r.state = RelayCompleted
	if fullText != "" && fullText != r.acc {
		r.acc = fullText
		if err := r.store.UpdateMessageText(r.convID, r.msgID, r.acc); err != nil {
			r.logger.Error("apply stream completion", zap.String("message", r.msgID), zap.Error(err))
		}
	}
}

// Error closes the relay leaving the message text as accumulated up to the
// point of failure. Whether to surface a visible error message is the
// caller's decision.
func (r *Relay) Error(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != RelayOpen {
		return
	}
	r.state = RelayErrored
	r.logger.Warn("response stream errored", zap.String("message", r.msgID), zap.Error(err))
}

func (r *Relay) State() RelayState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Relay) Text() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.acc
}

func (r *Relay) MessageID() string { return r.msgID }
