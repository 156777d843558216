package app

// Event is a state-change notification pushed to subscribers. The rendering
// layer re-reads the controller (and store) in response; events carry just
// enough to know what changed.
type Event interface{ isEvent() }

// QueryChanged reports new primary query field content.
type QueryChanged struct{ Text string }

// ComposeChanged reports new chat compose field content.
type ComposeChanged struct{ Text string }

// ConversationChanged reports that a conversation's messages changed, or
// that the current conversation switched (empty ID means none selected).
type ConversationChanged struct{ ID string }

// LoadingChanged reports the single outstanding-request indicator.
type LoadingChanged struct{ Loading bool }

// CaptureChanged reports which field owns the microphone now.
type CaptureChanged struct{ Target CaptureTarget }

// AgentPhaseChanged reports agent task lifecycle transitions.
type AgentPhaseChanged struct{ Phase AgentPhase }

// AgentModeChanged reports the compose field's agent-delegation toggle.
type AgentModeChanged struct{ Enabled bool }

// AlertRaised carries a blocking, user-visible failure (for example a
// missing transcription credential).
type AlertRaised struct{ Message string }

func (QueryChanged) isEvent()        {}
func (ComposeChanged) isEvent()      {}
func (ConversationChanged) isEvent() {}
func (LoadingChanged) isEvent()      {}
func (CaptureChanged) isEvent()      {}
func (AgentPhaseChanged) isEvent()   {}
func (AgentModeChanged) isEvent()    {}
func (AlertRaised) isEvent()         {}
