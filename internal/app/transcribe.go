package app

import "context"

// Credential is an opaque single-use token for the transcription vendor.
type Credential string

// CredentialSource fetches a fresh transcription credential. It fails with
// ErrCredentialUnavailable when the upstream key is not configured.
type CredentialSource interface {
	Token(ctx context.Context) (Credential, error)
}

type MicrophoneOptions struct {
	EchoCancellation bool
	NoiseSuppression bool
}

// TranscriptSink receives live events from a connected transcription
// channel. Events stop after Channel.Disconnect returns, but implementations
// must tolerate a late event from the transport's read loop.
type TranscriptSink interface {
	OnPartial(text string)
	OnCommitted(text string)
	// OnChannelError reports a mid-capture transport failure. The channel is
	// unusable afterwards.
	OnChannelError(err error)
}

// Channel is one live microphone-to-text connection.
type Channel interface {
	Disconnect() error
	IsConnected() bool
}

// ChannelDialer opens transcription channels.
type ChannelDialer interface {
	Connect(ctx context.Context, cred Credential, opts MicrophoneOptions, sink TranscriptSink) (Channel, error)
}
