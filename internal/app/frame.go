package app

// Window geometry of the floating bar, matching the states the controller
// drives: collapsed input bar, open chat, open command menu.
const (
	FrameWidth      = 600
	FrameBarHeight  = 120
	FrameChatHeight = 400
	FrameMenuHeight = 500
)

// FrameController is the window-management side-effect sink. Implementations
// never report back; frame failures are invisible to the core.
type FrameController interface {
	Resize(width, height int)
	Hide()
	Close()
}

// NopFrame is the headless frame used by tests and CLI subcommands.
type NopFrame struct{}

func (NopFrame) Resize(width, height int) {}
func (NopFrame) Hide()                    {}
func (NopFrame) Close()                   {}
