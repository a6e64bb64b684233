// Package browse is a terminal UI over stored analysis runs: a run list,
// a filterable user table per run and a per-user detail view.
package browse

import (
	"context"
	"fmt"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/BrennanTM/vacraft/internal/metrics"
	"github.com/BrennanTM/vacraft/internal/store"
	"github.com/BrennanTM/vacraft/internal/ui/layout"
	"github.com/BrennanTM/vacraft/internal/ui/theme"
)

// Source is the read side of the run store.
type Source interface {
	List(ctx context.Context, limit int) ([]store.Run, error)
	Users(ctx context.Context, runID string) ([]metrics.UserMetrics, error)
}

// screen is one level of the navigation stack.
type screen interface {
	Init() tea.Cmd
	Update(msg tea.Msg) (screen, tea.Cmd)
	View(width, height int) string
	Title() string
	KeyHints() []layout.KeyHint
	// Capturing reports whether the screen is taking raw text input, in
	// which case global keys are passed through.
	Capturing() bool
}

type pushMsg struct{ screen screen }

type popMsg struct{}

type errMsg struct{ err error }

func push(s screen) tea.Cmd {
	return func() tea.Msg { return pushMsg{screen: s} }
}

func pop() tea.Msg { return popMsg{} }

// Model is the root Bubble Tea model.
type Model struct {
	ctx    context.Context
	src    Source
	stack  []screen
	status string
	err    error
	width  int
	height int
}

// New starts at the list of runs.
func New(ctx context.Context, src Source, runs []store.Run) Model {
	return Model{ctx: ctx, src: src, stack: []screen{newRunsScreen(ctx, src, runs)}}
}

// NewForRun starts at the user table of one run.
func NewForRun(ctx context.Context, src Source, run store.Run, users []metrics.UserMetrics) Model {
	return Model{ctx: ctx, src: src, stack: []screen{newRunScreen(run, users)}}
}

func (m Model) active() screen {
	return m.stack[len(m.stack)-1]
}

func (m Model) Init() tea.Cmd {
	return m.active().Init()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyPressMsg:
		m.err = nil
		key := msg.String()
		if key == "ctrl+c" {
			return m, tea.Quit
		}
		if !m.active().Capturing() {
			switch key {
			case "q":
				return m, tea.Quit
			case "esc":
				if len(m.stack) > 1 {
					return m, pop
				}
				return m, nil
			}
		}

	case pushMsg:
		m.stack = append(m.stack[:len(m.stack):len(m.stack)], msg.screen)
		return m, msg.screen.Init()

	case popMsg:
		if len(m.stack) > 1 {
			m.stack = m.stack[:len(m.stack)-1]
		}
		return m, nil

	case errMsg:
		m.err = msg.err
		return m, nil
	}

	updated, cmd := m.active().Update(msg)
	m.stack = append(m.stack[:len(m.stack)-1:len(m.stack)-1], updated)
	return m, cmd
}

func (m Model) View() tea.View {
	v := tea.NewView("")
	v.AltScreen = true
	if m.width == 0 || m.height == 0 {
		return v
	}
	v.SetContent(m.render())
	return v
}

func (m Model) render() string {
	if layout.IsTooSmall(m.width, m.height) {
		return layout.RenderMinSizeMessage(m.width, m.height)
	}

	active := m.active()
	status := ""
	if s, ok := active.(interface{ Status() string }); ok {
		status = s.Status()
	}
	header := layout.RenderHeader(active.Title(), status, m.width)

	hints := active.KeyHints()
	if len(m.stack) > 1 {
		hints = append(hints, layout.KeyHint{Key: "Esc", Description: "Back"})
	}
	hints = append(hints, layout.KeyHint{Key: "q", Description: "Quit"})
	footer := layout.RenderFooter(hints, m.width)

	contentHeight := max(m.height-lipgloss.Height(header)-lipgloss.Height(footer), 0)
	var content string
	if m.err != nil {
		content = theme.Alert.Render(fmt.Sprintf("error: %v", m.err)) + "\n"
		contentHeight--
	}
	content += active.View(m.width, contentHeight)

	return layout.RenderFrame(header, content, footer, m.width, m.height)
}

// Run starts the program and blocks until the user quits.
func Run(m Model) error {
	p := tea.NewProgram(m)
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run browser: %w", err)
	}
	return nil
}
