package app

import "errors"

var (
	// ErrNotFound is returned by the conversation store when a session or
	// message id is unknown. Given correct call sequencing it indicates a
	// programming error, not a user-recoverable condition.
	ErrNotFound = errors.New("not found")

	// ErrCredentialUnavailable means the transcription vendor key is not
	// configured, so a capture session cannot start.
	ErrCredentialUnavailable = errors.New("transcription credential unavailable")

	// ErrAgentBusy rejects starting a second agent task while one is alive.
	ErrAgentBusy = errors.New("agent task already running")
)
