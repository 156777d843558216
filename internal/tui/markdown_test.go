package tui

import (
	"strings"
	"testing"
	"time"

	"quickbar/internal/app"
)

func TestMarkdownRendererKeepsContent(t *testing.T) {
	t.Parallel()

	r := NewMarkdownRenderer(60)
	out := r.Render("hello **world**")
	if !strings.Contains(out, "hello") || !strings.Contains(out, "world") {
		t.Fatalf("rendered output lost content: %q", out)
	}
}

func TestMarkdownRendererFallsBackWithoutRenderer(t *testing.T) {
	t.Parallel()

	r := &MarkdownRenderer{}
	if got := r.Render("plain text"); got != "plain text" {
		t.Fatalf("fallback output = %q, want input unchanged", got)
	}
}

func TestMarkdownRendererSetWidthIgnoresBadValues(t *testing.T) {
	t.Parallel()

	r := NewMarkdownRenderer(60)
	r.SetWidth(0)
	r.SetWidth(-5)
	if got := r.Render("still works"); !strings.Contains(got, "still works") {
		t.Fatalf("renderer broken after bad widths: %q", got)
	}
}

func TestSessionItemStrings(t *testing.T) {
	t.Parallel()

	item := sessionItem{summary: app.ConversationSummary{
		Title:     "plan the launch",
		UpdatedAt: time.Date(2025, time.March, 4, 15, 4, 0, 0, time.UTC),
	}}
	if item.Title() != "plan the launch" {
		t.Fatalf("Title = %q", item.Title())
	}
	if item.FilterValue() != "plan the launch" {
		t.Fatalf("FilterValue = %q", item.FilterValue())
	}
	if item.Description() != "Mar 4 15:04" {
		t.Fatalf("Description = %q", item.Description())
	}
}
