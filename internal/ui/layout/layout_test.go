package layout

import (
	"strings"
	"testing"

	"charm.land/lipgloss/v2"
)

func TestIsTooSmall(t *testing.T) {
	if !IsTooSmall(MinWidth-1, MinHeight) || !IsTooSmall(MinWidth, MinHeight-1) {
		t.Fatal("expected too small")
	}
	if IsTooSmall(MinWidth, MinHeight) {
		t.Fatal("minimum size should fit")
	}
}

func TestRenderFrame(t *testing.T) {
	header := RenderHeader("Runs", "run #3", 80)
	footer := RenderFooter([]KeyHint{{Key: "q", Description: "Quit"}}, 80)
	frame := RenderFrame(header, "body", footer, 80, 24)

	if got := lipgloss.Height(frame); got != 24 {
		t.Fatalf("frame height = %d, want 24", got)
	}
	for _, want := range []string{"vacraft", "Runs", "run #3", "Quit", "body"} {
		if !strings.Contains(frame, want) {
			t.Errorf("frame missing %q", want)
		}
	}
	if ContentHeight(24) != 24-lipgloss.Height(header)-lipgloss.Height(footer) {
		t.Error("ContentHeight disagrees with RenderFrame")
	}
}
