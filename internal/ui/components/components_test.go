package components

import (
	"strings"
	"testing"

	tea "charm.land/bubbletea/v2"
)

func key(code rune) tea.KeyPressMsg {
	return tea.KeyPressMsg{Code: code}
}

func TestListNavigation(t *testing.T) {
	var l List
	l.Reset(10)

	l.Update(key(tea.KeyUp), 4)
	if l.Selected != 0 {
		t.Fatalf("cursor must clamp at top, got %d", l.Selected)
	}
	for range 5 {
		l.Update(key(tea.KeyDown), 4)
	}
	if l.Selected != 5 {
		t.Fatalf("expected 5, got %d", l.Selected)
	}
	if start, end := l.Window(4); start != 2 || end != 6 {
		t.Fatalf("window = [%d,%d), want [2,6)", start, end)
	}

	l.Update(key(tea.KeyEnd), 4)
	if l.Selected != 9 {
		t.Fatalf("end should select last row, got %d", l.Selected)
	}
	l.Update(key(tea.KeyPgUp), 4)
	if l.Selected != 5 {
		t.Fatalf("pgup should move a page, got %d", l.Selected)
	}
	if l.Update(tea.KeyPressMsg{Code: 'x', Text: "x"}, 4) {
		t.Fatal("unrelated key must not be handled")
	}
}

func TestListView(t *testing.T) {
	var l List
	l.Reset(3)
	l.Update(key(tea.KeyDown), 10)
	view := l.View([]string{"a", "b", "c"}, 10)
	if !strings.Contains(view, "▸ b") {
		t.Fatalf("selected row not marked:\n%s", view)
	}
	if strings.Count(view, "\n") != 2 {
		t.Fatalf("expected 3 lines:\n%s", view)
	}

	var empty List
	if empty.View(nil, 5) != "" {
		t.Fatal("empty list renders nothing")
	}
}

func TestProgressBar(t *testing.T) {
	view := ProgressBar{Label: "Core", LabelWidth: 6, Fraction: 0.5, Caption: "3.0 min", Width: 40}.View()
	if !strings.Contains(view, "Core") || !strings.Contains(view, "3.0 min") {
		t.Fatalf("unexpected bar: %s", view)
	}
	filled := strings.Count(view, "█")
	empty := strings.Count(view, "░")
	if filled == 0 || empty == 0 || filled-empty > 1 || empty-filled > 1 {
		t.Fatalf("expected half-filled bar, got %d filled %d empty", filled, empty)
	}

	full := ProgressBar{Fraction: 2, Width: 10}.View()
	if strings.Contains(full, "░") {
		t.Fatal("fraction above 1 must clamp to full")
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("Introduction", 6); got != "Intro…" {
		t.Fatalf("got %q", got)
	}
	if got := truncate("Core", 6); got != "Core" {
		t.Fatalf("got %q", got)
	}
}

func TestFilter(t *testing.T) {
	f := NewFilter("search")
	if !strings.Contains(f.View(), "press / to filter") {
		t.Fatal("expected hint when idle")
	}
	f.Focus()
	for _, r := range "Core" {
		f, _ = f.Update(tea.KeyPressMsg{Code: r, Text: string(r)})
	}
	if f.Query() != "core" {
		t.Fatalf("query = %q", f.Query())
	}
	f, _ = f.Update(key(tea.KeyEnter))
	if f.Focused() || f.Query() != "core" {
		t.Fatal("enter keeps the query and ends entry")
	}
	f.Focus()
	f, _ = f.Update(key(tea.KeyEscape))
	if f.Focused() || f.Query() != "" {
		t.Fatal("esc clears the query")
	}
}
