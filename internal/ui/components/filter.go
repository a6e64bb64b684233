package components

import (
	"strings"

	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"

	"github.com/BrennanTM/vacraft/internal/ui/theme"
)

// Filter wraps bubbles/textinput as a "/" search box.
type Filter struct {
	Model textinput.Model
}

// NewFilter creates an unfocused filter.
func NewFilter(placeholder string) Filter {
	ti := textinput.New()
	ti.Prompt = "/ "
	ti.Placeholder = placeholder
	ti.CharLimit = 64
	return Filter{Model: ti}
}

// Focused reports whether the filter is taking keystrokes.
func (f Filter) Focused() bool {
	return f.Model.Focused()
}

// Focus starts text entry.
func (f *Filter) Focus() tea.Cmd {
	return f.Model.Focus()
}

// Update handles a message while focused. Enter keeps the query, Esc
// clears it; both end text entry.
func (f Filter) Update(msg tea.Msg) (Filter, tea.Cmd) {
	if kmsg, ok := msg.(tea.KeyPressMsg); ok {
		switch kmsg.String() {
		case "enter":
			f.Model.Blur()
			return f, nil
		case "esc":
			f.Model.SetValue("")
			f.Model.Blur()
			return f, nil
		}
	}
	var cmd tea.Cmd
	f.Model, cmd = f.Model.Update(msg)
	return f, cmd
}

// Query returns the trimmed, lower-cased filter text.
func (f Filter) Query() string {
	return strings.ToLower(strings.TrimSpace(f.Model.Value()))
}

// View renders the filter, or a hint when it is empty and unfocused.
func (f Filter) View() string {
	if !f.Focused() && f.Model.Value() == "" {
		return theme.Hint.Render("press / to filter")
	}
	return f.Model.View()
}
