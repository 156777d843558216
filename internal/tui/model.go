package tui

import (
	"time"

	"quickbar/internal/app"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// viewMode selects which of the three panel layouts is on screen.
type viewMode int

const (
	viewBar viewMode = iota
	viewChat
	viewMenu
)

// Model is the terminal rendering of the floating assistant panel.
type Model struct {
	application *app.Application
	ctrl        *app.Controller
	keys        keyMap

	mode     viewMode
	query    textinput.Model
	compose  textarea.Model
	sessions list.Model
	chat     viewport.Model
	spin     spinner.Model
	markdown *MarkdownRenderer

	msgs chan tea.Msg

	loading    bool
	capture    app.CaptureTarget
	agentMode  bool
	agentPhase app.AgentPhase
	alert      string

	windowWidth  int
	windowHeight int
}

// sessionItem adapts a conversation summary to the session picker list.
type sessionItem struct {
	summary app.ConversationSummary
}

func (i sessionItem) Title() string { return i.summary.Title }

func (i sessionItem) Description() string {
	return i.summary.UpdatedAt.Format("Jan 2 15:04")
}

func (i sessionItem) FilterValue() string { return i.summary.Title }

// New builds the panel model and attaches it to the core. The core's
// window-management calls and state events are funneled through a shared
// message channel so they can originate on any goroutine.
func New(application *app.Application) *Model {
	ti := textinput.New()
	ti.Placeholder = "Ask anything..."
	ti.Prompt = "▍ "
	ti.CharLimit = 4000
	ti.Focus()

	ta := textarea.New()
	ta.Placeholder = "Reply... (ctrl+t to dictate)"
	ta.CharLimit = 8000
	ta.SetWidth(76)
	ta.SetHeight(3)
	ta.Prompt = "▍ "
	ta.ShowLineNumbers = false
	ta.FocusedStyle.CursorLine = lipgloss.NewStyle()
	ta.BlurredStyle.CursorLine = lipgloss.NewStyle()

	delegate := list.NewDefaultDelegate()
	sessions := list.New(nil, delegate, 76, 18)
	sessions.Title = "Sessions"
	sessions.SetShowStatusBar(false)
	sessions.SetFilteringEnabled(false)

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = loadingStyle

	vp := viewport.New(76, 14)

	msgs := make(chan tea.Msg, 256)
	m := &Model{
		application: application,
		ctrl:        application.Controller,
		keys:        defaultKeyMap(),
		query:       ti,
		compose:     ta,
		sessions:    sessions,
		chat:        vp,
		spin:        sp,
		markdown:    NewMarkdownRenderer(74),
		msgs:        msgs,
	}

	m.ctrl.SetFrame(newPanelFrame(msgs))
	m.ctrl.Subscribe(func(e app.Event) {
		select {
		case msgs <- eventMsg{event: e}:
		default:
		}
	})
	return m
}

// eventMsg wraps a core state event for the update loop.
type eventMsg struct {
	event app.Event
}

// streamTickMsg drives transcript refreshes while a reply is streaming,
// since per-delta store writes do not emit events.
type streamTickMsg struct{}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.waitMsg())
}

// waitMsg pulls the next bridged core message into the program.
func (m *Model) waitMsg() tea.Cmd {
	return func() tea.Msg {
		return <-m.msgs
	}
}

func streamTick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(time.Time) tea.Msg {
		return streamTickMsg{}
	})
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.windowWidth = msg.Width
		m.windowHeight = msg.Height
		m.query.Width = msg.Width - 8
		m.compose.SetWidth(msg.Width - 6)
		m.sessions.SetSize(msg.Width-4, msg.Height-4)
		m.chat.Width = msg.Width - 4
		m.chat.Height = max(msg.Height-9, 4)
		m.markdown.SetWidth(max(msg.Width-6, 20))
		m.refreshTranscript()
		return m, nil

	case eventMsg:
		return m.handleEvent(msg.event)

	case frameResizedMsg:
		m.applyFrameHeight(msg.height)
		return m, m.waitMsg()

	case frameHiddenMsg:
		m.mode = viewBar
		return m, m.waitMsg()

	case frameClosedMsg:
		return m, tea.Quit

	case spinner.TickMsg:
		if !m.loading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case streamTickMsg:
		if !m.loading {
			return m, nil
		}
		m.refreshTranscript()
		return m, streamTick()

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m.updateFocused(msg)
}

// handleEvent folds a core state change into the model. The core is the
// source of truth; the model only re-reads and re-renders.
func (m *Model) handleEvent(e app.Event) (tea.Model, tea.Cmd) {
	cmds := []tea.Cmd{m.waitMsg()}
	switch e := e.(type) {
	case app.QueryChanged:
		m.query.SetValue(e.Text)
		m.query.CursorEnd()
	case app.ComposeChanged:
		m.compose.SetValue(e.Text)
		m.compose.CursorEnd()
	case app.ConversationChanged:
		m.refreshTranscript()
	case app.LoadingChanged:
		m.loading = e.Loading
		m.refreshTranscript()
		if e.Loading {
			cmds = append(cmds, m.spin.Tick, streamTick())
		}
	case app.CaptureChanged:
		m.capture = e.Target
	case app.AgentPhaseChanged:
		m.agentPhase = e.Phase
		m.refreshTranscript()
	case app.AgentModeChanged:
		m.agentMode = e.Enabled
	case app.AlertRaised:
		m.alert = e.Message
	}
	return m, tea.Batch(cmds...)
}

// applyFrameHeight maps the core's requested panel geometry onto a view
// mode. The core drives all mode transitions through frame resizes.
func (m *Model) applyFrameHeight(height int) {
	switch height {
	case app.FrameMenuHeight:
		m.mode = viewMenu
		m.reloadSessions()
	case app.FrameChatHeight:
		m.mode = viewChat
		m.compose.Focus()
		m.refreshTranscript()
	default:
		m.mode = viewBar
		m.query.Focus()
	}
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.alert = ""

	if key.Matches(msg, m.keys.Quit) {
		return m, tea.Quit
	}
	if key.Matches(msg, m.keys.AgentMode) {
		m.ctrl.SetAgentMode(!m.ctrl.AgentMode())
		return m, nil
	}

	switch m.mode {
	case viewBar:
		switch {
		case key.Matches(msg, m.keys.Submit):
			m.ctrl.SubmitQuery()
			return m, nil
		case key.Matches(msg, m.keys.Menu) && m.query.Value() == "":
			m.ctrl.OpenMenu()
			return m, nil
		case key.Matches(msg, m.keys.MicPrimary):
			m.ctrl.ToggleCapture(app.TargetPrimary)
			return m, nil
		}

	case viewChat:
		switch {
		case key.Matches(msg, m.keys.Submit):
			m.ctrl.SubmitCompose()
			return m, nil
		case key.Matches(msg, m.keys.Back):
			m.ctrl.CollapseToBar()
			return m, nil
		case key.Matches(msg, m.keys.NewChat):
			m.ctrl.NewConversation()
			return m, nil
		case key.Matches(msg, m.keys.MicChat):
			m.ctrl.ToggleCapture(app.TargetChat)
			return m, nil
		}

	case viewMenu:
		switch {
		case key.Matches(msg, m.keys.Submit):
			if item, ok := m.sessions.SelectedItem().(sessionItem); ok {
				if err := m.ctrl.SelectConversation(item.summary.ID); err != nil {
					m.alert = "session no longer exists"
					m.reloadSessions()
				}
			}
			return m, nil
		case key.Matches(msg, m.keys.Back):
			m.ctrl.CollapseToBar()
			return m, nil
		case key.Matches(msg, m.keys.NewChat):
			m.ctrl.NewConversation()
			return m, nil
		}
	}

	return m.updateFocused(msg)
}

// updateFocused forwards input to whichever component owns the keyboard
// and mirrors typed edits back into the core.
func (m *Model) updateFocused(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.mode {
	case viewBar:
		m.query, cmd = m.query.Update(msg)
		m.ctrl.SetQuery(m.query.Value())
	case viewChat:
		m.compose, cmd = m.compose.Update(msg)
		m.ctrl.SetCompose(m.compose.Value())
	case viewMenu:
		m.sessions, cmd = m.sessions.Update(msg)
	}
	return m, cmd
}

func (m *Model) reloadSessions() {
	summaries, err := m.ctrl.Conversations()
	if err != nil {
		m.alert = "could not load sessions"
		return
	}
	items := make([]list.Item, 0, len(summaries))
	for _, s := range summaries {
		items = append(items, sessionItem{summary: s})
	}
	m.sessions.SetItems(items)
}

// refreshTranscript re-renders the active conversation into the chat
// viewport and pins the view to the newest message.
func (m *Model) refreshTranscript() {
	conv, ok := m.ctrl.Current()
	if !ok {
		m.chat.SetContent(mutedStyle.Render("No conversation yet."))
		return
	}
	m.chat.SetContent(m.renderConversation(conv))
	m.chat.GotoBottom()
}
