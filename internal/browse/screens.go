package browse

import (
	"context"
	"fmt"
	"slices"
	"strings"

	tea "charm.land/bubbletea/v2"

	"github.com/BrennanTM/vacraft/internal/metrics"
	"github.com/BrennanTM/vacraft/internal/store"
	"github.com/BrennanTM/vacraft/internal/ui/components"
	"github.com/BrennanTM/vacraft/internal/ui/layout"
	"github.com/BrennanTM/vacraft/internal/ui/theme"
)

// runsScreen lists stored runs, newest first.
type runsScreen struct {
	ctx    context.Context
	src    Source
	runs   []store.Run
	list   components.List
	height int
}

type runsLoadedMsg struct{ runs []store.Run }

func newRunsScreen(ctx context.Context, src Source, runs []store.Run) *runsScreen {
	s := &runsScreen{ctx: ctx, src: src, runs: runs}
	s.list.Reset(len(runs))
	return s
}

func (s *runsScreen) Init() tea.Cmd   { return nil }
func (s *runsScreen) Title() string   { return "Runs" }
func (s *runsScreen) Capturing() bool { return false }

func (s *runsScreen) KeyHints() []layout.KeyHint {
	return []layout.KeyHint{
		{Key: "↑↓", Description: "Move"},
		{Key: "Enter", Description: "Open"},
		{Key: "r", Description: "Reload"},
	}
}

func (s *runsScreen) Update(msg tea.Msg) (screen, tea.Cmd) {
	switch msg := msg.(type) {
	case runsLoadedMsg:
		s.runs = msg.runs
		s.list.Reset(len(s.runs))
		return s, nil

	case tea.KeyPressMsg:
		if s.list.Update(msg, s.rows()) {
			return s, nil
		}
		switch msg.String() {
		case "enter":
			if len(s.runs) == 0 {
				return s, nil
			}
			return s, s.open(s.runs[s.list.Selected])
		case "r":
			return s, s.reload
		}
	}
	return s, nil
}

func (s *runsScreen) open(run store.Run) tea.Cmd {
	return func() tea.Msg {
		users, err := s.src.Users(s.ctx, run.ID)
		if err != nil {
			return errMsg{err: fmt.Errorf("load users of run %d: %w", run.Sequence, err)}
		}
		return pushMsg{screen: newRunScreen(run, users)}
	}
}

func (s *runsScreen) reload() tea.Msg {
	runs, err := s.src.List(s.ctx, 0)
	if err != nil {
		return errMsg{err: fmt.Errorf("list runs: %w", err)}
	}
	return runsLoadedMsg{runs: runs}
}

// rows is the list height from the last render.
func (s *runsScreen) rows() int {
	return max(s.height-2, 1)
}

func (s *runsScreen) View(width, height int) string {
	s.height = height
	if len(s.runs) == 0 {
		return theme.Hint.Render("No stored runs. Run `vacraft analyze` first.")
	}

	header := theme.ColumnHeader.Render(fmt.Sprintf("  %-5s %-16s %7s %9s %11s  %s",
		"#", "Created", "Users", "Views", "Completion", "Events"))
	rows := make([]string, len(s.runs))
	for i, r := range s.runs {
		rows[i] = fmt.Sprintf("%-5d %-16s %7d %9d %10.1f%%  %s",
			r.Sequence,
			r.CreatedAt.Local().Format("2006-01-02 15:04"),
			r.Cohort.TotalUsers,
			r.Cohort.TotalPageViews,
			r.Cohort.MeanCompletionRate,
			clip(r.EventsPath, max(width-60, 8)),
		)
	}
	return header + "\n\n" + s.list.View(rows, s.rows())
}

// runScreen is the user table of one run.
type runScreen struct {
	run    store.Run
	users  []metrics.UserMetrics
	key    metrics.RankKey
	filter components.Filter
	shown  []metrics.UserMetrics
	list   components.List
	height int
}

func newRunScreen(run store.Run, users []metrics.UserMetrics) *runScreen {
	s := &runScreen{
		run:    run,
		users:  users,
		key:    metrics.RankByTime,
		filter: components.NewFilter("user, section or page title"),
	}
	s.refresh()
	return s
}

func (s *runScreen) Init() tea.Cmd   { return nil }
func (s *runScreen) Title() string   { return fmt.Sprintf("Run #%d", s.run.Sequence) }
func (s *runScreen) Capturing() bool { return s.filter.Focused() }

func (s *runScreen) Status() string {
	return fmt.Sprintf("sorted by %s", s.key)
}

func (s *runScreen) KeyHints() []layout.KeyHint {
	if s.filter.Focused() {
		return []layout.KeyHint{
			{Key: "Enter", Description: "Apply"},
			{Key: "Esc", Description: "Clear"},
		}
	}
	return []layout.KeyHint{
		{Key: "↑↓", Description: "Move"},
		{Key: "Enter", Description: "Details"},
		{Key: "/", Description: "Filter"},
		{Key: "s", Description: "Sort"},
	}
}

// refresh re-ranks and re-filters the user table.
func (s *runScreen) refresh() {
	q := s.filter.Query()
	ranked := metrics.Rank(s.users, s.key, 0)
	s.shown = ranked[:0]
	for _, u := range ranked {
		if q == "" || matches(u, q) {
			s.shown = append(s.shown, u)
		}
	}
	s.list.Reset(len(s.shown))
}

func matches(u metrics.UserMetrics, q string) bool {
	for _, f := range []string{u.UserID, u.LastSection, u.FurthestTitle} {
		if strings.Contains(strings.ToLower(f), q) {
			return true
		}
	}
	return false
}

func nextKey(k metrics.RankKey) metrics.RankKey {
	i := slices.Index(metrics.RankKeys, k)
	return metrics.RankKeys[(i+1)%len(metrics.RankKeys)]
}

func (s *runScreen) Update(msg tea.Msg) (screen, tea.Cmd) {
	if s.filter.Focused() {
		var cmd tea.Cmd
		s.filter, cmd = s.filter.Update(msg)
		s.refresh()
		return s, cmd
	}

	kmsg, ok := msg.(tea.KeyPressMsg)
	if !ok {
		return s, nil
	}
	if s.list.Update(kmsg, s.rows()) {
		return s, nil
	}
	switch kmsg.String() {
	case "/":
		return s, s.filter.Focus()
	case "s":
		s.key = nextKey(s.key)
		s.refresh()
	case "enter":
		if len(s.shown) > 0 {
			return s, push(newUserScreen(s.run, s.shown[s.list.Selected]))
		}
	}
	return s, nil
}

func (s *runScreen) rows() int {
	return max(s.height-5, 1)
}

func (s *runScreen) View(width, height int) string {
	s.height = height
	c := s.run.Cohort

	var b strings.Builder
	b.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s   %s %s\n",
		theme.Label.Render("Users"), theme.Value.Render(fmt.Sprint(c.TotalUsers)),
		theme.Label.Render("Views"), theme.Value.Render(fmt.Sprint(c.TotalPageViews)),
		theme.Label.Render("Mean time"), theme.Value.Render(fmt.Sprintf("%.1f min", c.MeanDwellSeconds/60)),
		theme.Label.Render("Completers"), theme.Complete.Render(fmt.Sprint(c.Completers)),
	))
	b.WriteString(s.filter.View() + "\n\n")
	b.WriteString(theme.ColumnHeader.Render(fmt.Sprintf("  %-12s %8s %8s %7s %10s  %s",
		"User", "Minutes", "Sessions", "Pages", "Completion", "Last section")) + "\n")

	if len(s.shown) == 0 {
		b.WriteString(theme.Hint.Render("  no users match"))
		return b.String()
	}
	rows := make([]string, len(s.shown))
	for i, u := range s.shown {
		rows[i] = fmt.Sprintf("%-12s %8.1f %8d %7d %10s  %s",
			clip(u.UserID, 12),
			u.TotalMinutes(),
			u.TotalSessions,
			u.TotalPageViews,
			completion(u),
			clip(u.LastSection, max(width-56, 8)),
		)
	}
	b.WriteString(s.list.View(rows, s.rows()))
	return b.String()
}

// userScreen shows one user's metrics and time per section.
type userScreen struct {
	run  store.Run
	user metrics.UserMetrics
}

func newUserScreen(run store.Run, u metrics.UserMetrics) *userScreen {
	return &userScreen{run: run, user: u}
}

func (s *userScreen) Init() tea.Cmd                    { return nil }
func (s *userScreen) Update(tea.Msg) (screen, tea.Cmd) { return s, nil }
func (s *userScreen) Title() string                    { return "User " + s.user.UserID }
func (s *userScreen) Capturing() bool                  { return false }
func (s *userScreen) KeyHints() []layout.KeyHint       { return nil }
func (s *userScreen) Status() string                   { return fmt.Sprintf("run #%d", s.run.Sequence) }

func (s *userScreen) View(width, height int) string {
	u := s.user
	furthest := "none"
	if u.FurthestPage != nil {
		furthest = fmt.Sprintf("%d  %s", *u.FurthestPage, u.FurthestTitle)
	}

	fields := [][2]string{
		{"Sessions", fmt.Sprint(u.TotalSessions)},
		{"Page views", fmt.Sprint(u.TotalPageViews)},
		{"Total time", fmt.Sprintf("%.1f min (%.2f h)", u.TotalMinutes(), u.TotalHours())},
		{"Per session", fmt.Sprintf("%.1f min, %.1f pages", u.AvgMinutesPerSession(), u.AvgPagesPerSession)},
		{"Active days", fmt.Sprintf("%d of %d", u.ActiveDays, u.SpanDays)},
		{"Lessons", fmt.Sprintf("%d started, %d completed", u.LessonsStarted, u.LessonsCompleted)},
		{"Completion", completion(u)},
		{"Furthest page", furthest},
		{"Last section", orNone(u.LastSection)},
		{"First seen", u.FirstActivity.Format("2006-01-02 15:04")},
		{"Last seen", u.LastActivity.Format("2006-01-02 15:04")},
	}

	var b strings.Builder
	for _, f := range fields {
		b.WriteString(fmt.Sprintf("%s %s\n", theme.Label.Render(fmt.Sprintf("%-14s", f[0])), theme.Value.Render(f[1])))
	}

	if len(u.SectionTime) > 0 {
		b.WriteString("\n" + theme.Title.Render("Time by section") + "\n")
		var top float64
		labelWidth := 0
		for _, st := range u.SectionTime {
			top = max(top, st.DwellSeconds)
			labelWidth = max(labelWidth, len([]rune(st.Section)))
		}
		for _, st := range u.SectionTime {
			frac := 0.0
			if top > 0 {
				frac = st.DwellSeconds / top
			}
			b.WriteString(components.ProgressBar{
				Label:      st.Section,
				LabelWidth: min(labelWidth, 24),
				Fraction:   frac,
				Caption:    fmt.Sprintf("%.1f min", st.DwellSeconds/60),
				Width:      min(width-2, 80),
			}.View() + "\n")
		}
	}

	if u.Completed() {
		b.WriteString("\n" + theme.Complete.Render("✓ completed every lesson"))
	}
	return theme.Card.Render(strings.TrimRight(b.String(), "\n"))
}

func completion(u metrics.UserMetrics) string {
	if !u.CompletionDefined {
		return "n/a"
	}
	return fmt.Sprintf("%.1f%%", u.CompletionRate)
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
