package app

import "context"

// ChatMessage is one entry of the ordered request payload sent to the
// chat-completion service.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// StreamHandler receives the response stream. OnDelta fires per fragment in
// delivery order; exactly one of OnComplete or OnError fires afterwards.
type StreamHandler struct {
	OnDelta    func(delta string)
	OnComplete func(fullText string)
	OnError    func(err error)
}

// ChatStreamer issues one chat-completion request and relays its incremental
// response. Stream blocks until the terminal event has been delivered and
// returns the error it reported through OnError, if any.
type ChatStreamer interface {
	Stream(ctx context.Context, messages []ChatMessage, h StreamHandler) error
}
