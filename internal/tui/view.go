package tui

import (
	"fmt"
	"strings"

	"quickbar/internal/app"
)

func (m *Model) View() string {
	switch m.mode {
	case viewMenu:
		return m.viewMenu()
	case viewChat:
		return m.viewChat()
	default:
		return m.viewBar()
	}
}

func (m *Model) viewBar() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("⌘ quickbar"))
	b.WriteString("\n\n")
	b.WriteString(m.query.View())
	b.WriteString("\n\n")
	b.WriteString(m.statusLine())
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("enter send · ↓ sessions · ctrl+r dictate · ctrl+a agent · ctrl+c quit"))
	return barStyle.Width(max(m.windowWidth-2, 40)).Render(b.String())
}

func (m *Model) viewChat() string {
	var b strings.Builder

	title := "Conversation"
	if conv, ok := m.ctrl.Current(); ok && conv.Title != "" {
		title = conv.Title
	}
	b.WriteString(titleStyle.Render(title))
	b.WriteString("\n\n")

	b.WriteString(m.chat.View())
	b.WriteString("\n\n")

	b.WriteString(m.compose.View())
	b.WriteString("\n")
	b.WriteString(m.statusLine())
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("enter send · esc back · ctrl+n new · ctrl+t dictate · ctrl+a agent"))
	return barStyle.Width(max(m.windowWidth-2, 40)).Render(b.String())
}

func (m *Model) viewMenu() string {
	var b strings.Builder
	b.WriteString(m.sessions.View())
	b.WriteString("\n")
	if m.alert != "" {
		b.WriteString(alertStyle.Render(m.alert))
		b.WriteString("\n")
	}
	b.WriteString(helpStyle.Render("enter open · ctrl+n new · esc back"))
	return b.String()
}

// statusLine shows the transient indicators: streaming, live microphone,
// agent activity, and the latest alert.
func (m *Model) statusLine() string {
	var parts []string

	if m.loading {
		parts = append(parts, loadingStyle.Render(m.spin.View()+"thinking"))
	}
	switch m.capture {
	case app.TargetPrimary:
		parts = append(parts, micLiveStyle.Render("● rec query"))
	case app.TargetChat:
		parts = append(parts, micLiveStyle.Render("● rec reply"))
	}
	if m.agentMode {
		parts = append(parts, agentBadgeStyle.Render("agent mode"))
	}
	switch m.agentPhase {
	case app.AgentStarting:
		parts = append(parts, agentBadgeStyle.Render("agent starting..."))
	case app.AgentRunning:
		parts = append(parts, agentBadgeStyle.Render("agent running"))
	}
	if m.alert != "" {
		parts = append(parts, alertStyle.Render(m.alert))
	}
	if len(parts) == 0 {
		return mutedStyle.Render("ready")
	}
	return strings.Join(parts, mutedStyle.Render("  ·  "))
}

// renderConversation formats the message log for the chat viewport.
// Assistant replies render as markdown; user messages stay verbatim.
func (m *Model) renderConversation(conv app.Conversation) string {
	var b strings.Builder
	for i, msg := range conv.Messages {
		if i > 0 {
			b.WriteString("\n\n")
		}
		switch msg.Role {
		case app.RoleUser:
			b.WriteString(userMessageStyle.Render("you"))
			b.WriteString("\n")
			b.WriteString(msg.Text)
		case app.RoleAssistant:
			label := assistantLabelStyle.Render("assistant")
			if strings.HasPrefix(msg.Text, "🤖") || strings.HasPrefix(msg.Text, "✅") || strings.HasPrefix(msg.Text, "❌") {
				label = agentLabelStyle.Render("agent")
			}
			b.WriteString(label)
			b.WriteString("\n")
			if msg.Text == "" {
				b.WriteString(loadingStyle.Render("..."))
			} else {
				b.WriteString(m.markdown.Render(msg.Text))
			}
		default:
			b.WriteString(fmt.Sprintf("%s\n%s", mutedStyle.Render(string(msg.Role)), msg.Text))
		}
	}
	return b.String()
}
