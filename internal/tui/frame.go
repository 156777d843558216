package tui

import tea "github.com/charmbracelet/bubbletea"

// frameResizedMsg carries a panel geometry change into the update loop.
type frameResizedMsg struct {
	width  int
	height int
}

type frameHiddenMsg struct{}

type frameClosedMsg struct{}

// panelFrame bridges window-management calls from the core into the
// bubbletea message loop. Calls may arrive from any goroutine, so they
// are funneled through the shared message channel rather than touching
// the model directly.
type panelFrame struct {
	msgs chan<- tea.Msg
}

func newPanelFrame(msgs chan<- tea.Msg) *panelFrame {
	return &panelFrame{msgs: msgs}
}

func (f *panelFrame) Resize(width, height int) {
	f.send(frameResizedMsg{width: width, height: height})
}

func (f *panelFrame) Hide() {
	f.send(frameHiddenMsg{})
}

func (f *panelFrame) Close() {
	f.send(frameClosedMsg{})
}

// send never blocks the core; a full channel drops the call instead of
// stalling a controller goroutine.
func (f *panelFrame) send(msg tea.Msg) {
	select {
	case f.msgs <- msg:
	default:
	}
}
