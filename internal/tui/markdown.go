package tui

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

// MarkdownRenderer renders assistant markdown for the chat transcript.
type MarkdownRenderer struct {
	renderer *glamour.TermRenderer
	width    int
}

// NewMarkdownRenderer creates a renderer wrapped at the given width.
func NewMarkdownRenderer(width int) *MarkdownRenderer {
	m := &MarkdownRenderer{width: width}
	m.rebuild()
	return m
}

func (m *MarkdownRenderer) rebuild() {
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(m.width),
	)
	if err != nil {
		m.renderer = nil
		return
	}
	m.renderer = r
}

// SetWidth re-wraps subsequent renders at the new width.
func (m *MarkdownRenderer) SetWidth(width int) {
	if width == m.width || width <= 0 {
		return
	}
	m.width = width
	m.rebuild()
}

// Render converts markdown to styled terminal text. Plain text is returned
// unchanged when the renderer is unavailable.
func (m *MarkdownRenderer) Render(markdown string) string {
	if m.renderer == nil {
		return markdown
	}
	out, err := m.renderer.Render(markdown)
	if err != nil {
		return markdown
	}
	return strings.Trim(out, "\n")
}
