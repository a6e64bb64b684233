package components

import (
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"

	"github.com/BrennanTM/vacraft/internal/ui/theme"
)

// ProgressBar displays a labelled horizontal bar.
type ProgressBar struct {
	Label string
	// LabelWidth pads labels so stacked bars line up.
	LabelWidth int
	// Fraction is the filled share in [0, 1].
	Fraction float64
	// Caption is shown after the bar, e.g. "12.5 min".
	Caption string
	Width   int
}

// View renders the progress bar.
func (p ProgressBar) View() string {
	var b strings.Builder
	if p.Label != "" || p.LabelWidth > 0 {
		label := p.Label
		if p.LabelWidth > 0 {
			label = fmt.Sprintf("%-*s", p.LabelWidth, truncate(label, p.LabelWidth))
		}
		b.WriteString(theme.Label.Render(label) + "  ")
	}

	captionWidth := 0
	if p.Caption != "" {
		captionWidth = lipgloss.Width(p.Caption) + 2
	}
	barWidth := max(p.Width-lipgloss.Width(b.String())-captionWidth, 4)

	frac := min(max(p.Fraction, 0), 1)
	filled := int(frac*float64(barWidth) + 0.5)
	b.WriteString(theme.BarFilled.Render(strings.Repeat("█", filled)))
	b.WriteString(theme.BarEmpty.Render(strings.Repeat("░", barWidth-filled)))

	if p.Caption != "" {
		b.WriteString("  " + theme.Hint.Render(p.Caption))
	}
	return b.String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}
