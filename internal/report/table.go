package report

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// RenderSummary prints the cohort overview, section engagement and the top
// users as terminal tables.
func RenderSummary(w io.Writer, r *Report) {
	res := r.Result
	c := res.Cohort

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle("Cohort")
	t.AppendHeader(table.Row{"Metric", "Value"})
	t.AppendRows([]table.Row{
		{"Users", c.TotalUsers},
		{"Page views", c.TotalPageViews},
		{"Sessions", c.TotalSessions},
		{"Rows dropped", res.Load.Dropped()},
		{"Dictionary match", fmt.Sprintf("%.1f%%", res.Join.MatchRate)},
		{"Mean time per user", fmt.Sprintf("%.1f h", c.MeanDwellSeconds/3600)},
		{"Median time per user", fmt.Sprintf("%.1f h", c.MedianDwellSeconds/3600)},
		{"Mean visits per user", fmt.Sprintf("%.1f", c.MeanSessions)},
		{"Mean completion", fmt.Sprintf("%.1f%%", c.MeanCompletionRate)},
		{"Completed all lessons", c.Completers},
		{"Never started", c.NeverStarted},
	})
	if c.MostViewedSection != "" {
		t.AppendRow(table.Row{"Most viewed section", c.MostViewedSection})
	}
	t.SetColumnConfigs([]table.ColumnConfig{{Number: 2, Align: text.AlignRight}})
	t.SetStyle(table.StyleRounded)
	t.Render()

	if len(c.Sections) > 0 {
		st := table.NewWriter()
		st.SetOutputMirror(w)
		st.SetTitle("Sections")
		st.AppendHeader(table.Row{"Section", "Users", "Views", "Hours", "Dropouts"})
		dropouts := map[string]int{}
		for _, d := range c.Dropout {
			dropouts[d.Section] = d.Users
		}
		for _, s := range c.Sections {
			st.AppendRow(table.Row{s.Section, s.UniqueUsers, s.Views, fmt.Sprintf("%.2f", s.DwellSeconds/3600), dropouts[s.Section]})
		}
		st.SetStyle(table.StyleRounded)
		st.Render()
	}

	if len(r.Top) > 0 {
		ut := table.NewWriter()
		ut.SetOutputMirror(w)
		ut.SetTitle(fmt.Sprintf("Top %d by %s", len(r.Top), rankLabel(r.RankKey)))
		ut.AppendHeader(table.Row{"#", "User", "Visits", "Pages", "Hours", "Completion", "Furthest"})
		for i, u := range r.Top {
			completion := "n/a"
			if u.CompletionDefined {
				completion = fmt.Sprintf("%.1f%%", u.CompletionRate)
			}
			furthest := "-"
			if u.FurthestPage != nil {
				furthest = fmt.Sprintf("%d %s", *u.FurthestPage, truncate(u.FurthestTitle, 30))
			}
			ut.AppendRow(table.Row{i + 1, u.UserID, u.TotalSessions, u.TotalPageViews, fmt.Sprintf("%.2f", u.TotalHours()), completion, furthest})
		}
		ut.SetStyle(table.StyleRounded)
		ut.Render()
	}
}
