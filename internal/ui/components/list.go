package components

import (
	"strings"

	tea "charm.land/bubbletea/v2"

	"github.com/BrennanTM/vacraft/internal/ui/theme"
)

// List is a vertically scrolling list with a cursor. The caller owns the
// rows; List only tracks the selection and the visible window.
type List struct {
	Len      int
	Selected int
	offset   int
}

// Update moves the cursor on up/down, page and home/end keys. It reports
// whether the key was handled.
func (l *List) Update(msg tea.Msg, height int) bool {
	kmsg, ok := msg.(tea.KeyPressMsg)
	if !ok || l.Len == 0 {
		return false
	}

	switch kmsg.String() {
	case "up", "k":
		l.Selected--
	case "down", "j":
		l.Selected++
	case "pgup":
		l.Selected -= max(height, 1)
	case "pgdown":
		l.Selected += max(height, 1)
	case "home", "g":
		l.Selected = 0
	case "end", "G":
		l.Selected = l.Len - 1
	default:
		return false
	}
	l.clamp()
	return true
}

// Reset points the list at n rows with the cursor on the first.
func (l *List) Reset(n int) {
	l.Len = n
	l.Selected = 0
	l.offset = 0
}

func (l *List) clamp() {
	l.Selected = min(max(l.Selected, 0), max(l.Len-1, 0))
}

// Window returns the [start, end) row range to draw for height rows,
// scrolling just enough to keep the cursor visible.
func (l *List) Window(height int) (int, int) {
	if height <= 0 || l.Len == 0 {
		return 0, 0
	}
	if l.Selected < l.offset {
		l.offset = l.Selected
	}
	if l.Selected >= l.offset+height {
		l.offset = l.Selected - height + 1
	}
	l.offset = min(l.offset, max(l.Len-height, 0))
	return l.offset, min(l.offset+height, l.Len)
}

// View renders rows[start:end] with the selected row highlighted.
func (l *List) View(rows []string, height int) string {
	start, end := l.Window(height)
	var b strings.Builder
	for i := start; i < end; i++ {
		if i == l.Selected {
			b.WriteString(theme.Selected.Render("▸ " + rows[i]))
		} else {
			b.WriteString(theme.Unselected.Render("  " + rows[i]))
		}
		if i < end-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}
