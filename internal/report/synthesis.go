package report

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/BrennanTM/vacraft/internal/metrics"
)

const (
	dateLayout = "2006-01-02"
	ruleWidth  = 70
	// listLimit caps the section and dropout lists in the synthesis.
	listLimit = 5
)

// WriteSynthesis writes the narrative summary followed by individual
// summaries of the report's top users.
func WriteSynthesis(w io.Writer, r *Report) error {
	bw := bufio.NewWriter(w)
	c := r.Result.Cohort
	heavy := strings.Repeat("=", ruleWidth)

	fmt.Fprintf(bw, "%s\n%s\n", r.title(), heavy)

	heading(bw, "OVERALL PARTICIPATION")
	fmt.Fprintf(bw, "- Total participants: %d users\n", c.TotalUsers)
	fmt.Fprintf(bw, "- Total engagement: %d sessions\n", c.TotalSessions)
	fmt.Fprintf(bw, "- Total page views: %d pages\n", c.TotalPageViews)
	if c.TotalUsers > 0 {
		fmt.Fprintf(bw, "- Date range: %s to %s\n",
			c.FirstActivity.Format(dateLayout), c.LastActivity.Format(dateLayout))
	}

	heading(bw, "ENGAGEMENT METRICS")
	fmt.Fprintf(bw, "- Average time per user: %.1f hours\n", c.MeanDwellSeconds/3600)
	fmt.Fprintf(bw, "- Median time per user: %.1f hours\n", c.MedianDwellSeconds/3600)
	fmt.Fprintf(bw, "- Average visits per user: %.1f sessions\n", c.MeanSessions)
	fmt.Fprintf(bw, "- Average pages per visit: %.1f pages\n", c.MeanPagesPerSession)
	fmt.Fprintf(bw, "- Average active days per user: %.1f\n", c.MeanActiveDays)

	heading(bw, "COURSE COMPLETION")
	if c.TotalLessons == 0 {
		fmt.Fprintln(bw, "- Completion is undefined: the content dictionary lists no lessons")
	} else {
		started := c.TotalUsers - c.NeverStarted
		fmt.Fprintf(bw, "- Full course completion rate: %.1f%% (%d users)\n", pct(c.Completers, c.TotalUsers), c.Completers)
		fmt.Fprintf(bw, "- Started lessons: %.1f%% (%d users)\n", pct(started, c.TotalUsers), started)
		fmt.Fprintf(bw, "- Average lessons completed: %.1f/%d\n", c.MeanLessonsCompleted, c.TotalLessons)
		fmt.Fprintf(bw, "- Average completion rate: %.1f%% (median %.1f%%)\n", c.MeanCompletionRate, c.MedianCompletionRate)
		fmt.Fprintf(bw, "- Never started lessons: %d users\n", c.NeverStarted)
		for _, b := range c.Completion {
			fmt.Fprintf(bw, "    %-8s %d\n", b.Label, b.Users)
		}
	}

	heading(bw, "SECTION ENGAGEMENT")
	fmt.Fprintln(bw, "Most engaged sections (unique users):")
	if len(c.Sections) == 0 {
		fmt.Fprintln(bw, "  none")
	}
	for _, s := range c.Sections[:min(listLimit, len(c.Sections))] {
		fmt.Fprintf(bw, "  %-40s %d\n", s.Section, s.UniqueUsers)
	}

	heading(bw, "DROPOUT ANALYSIS")
	fmt.Fprintln(bw, "Common last sections before dropout:")
	if len(c.Dropout) == 0 {
		fmt.Fprintln(bw, "  none")
	}
	for _, d := range c.Dropout[:min(listLimit, len(c.Dropout))] {
		fmt.Fprintf(bw, "  %-40s %d\n", d.Section, d.Users)
	}
	if c.DropoutUnattributed > 0 {
		fmt.Fprintf(bw, "  (%d users never reached a sectioned page)\n", c.DropoutUnattributed)
	}

	heading(bw, fmt.Sprintf("HIGH ENGAGEMENT GROUP (%d users, >%.1f hours)", c.High.Users, c.MedianDwellSeconds/3600))
	fmt.Fprintf(bw, "- Average time: %.1f hours\n", c.High.MeanDwellSeconds/3600)
	fmt.Fprintf(bw, "- Average completion: %.1f%%\n", c.High.MeanCompletionRate)
	fmt.Fprintf(bw, "- Average visits: %.1f\n", c.High.MeanSessions)

	if r.Insights != nil {
		heading(bw, "KEY INSIGHTS")
		numbered(bw, r.Insights.Insights)
		heading(bw, "RECOMMENDATIONS")
		numbered(bw, r.Insights.Recommendations)
	}

	fmt.Fprintf(bw, "\n%s\nAnalysis completed: %s\n", heavy, r.Result.GeneratedAt.Format("2006-01-02 15:04:05"))

	if len(r.Top) > 0 {
		fmt.Fprintf(bw, "\n\n%s\nINDIVIDUAL USER SUMMARIES (Top %d by %s)\n%s\n\n",
			heavy, len(r.Top), rankLabel(r.RankKey), heavy)
		for _, u := range r.Top {
			writeUserSummary(bw, u, c)
			fmt.Fprintln(bw)
		}
	}
	return bw.Flush()
}

func heading(w io.Writer, title string) {
	fmt.Fprintf(w, "\n%s\n%s\n", title, strings.Repeat("-", 30))
}

func numbered(w io.Writer, lines []string) {
	for i, l := range lines {
		fmt.Fprintf(w, "%d. %s\n", i+1, l)
	}
}

func writeUserSummary(w io.Writer, u metrics.UserMetrics, c metrics.CohortSummary) {
	fmt.Fprintf(w, "User %s:\n", u.UserID)
	fmt.Fprintf(w, "  - Engaged in %d sessions totaling %.2f hours\n", u.TotalSessions, u.TotalHours())
	fmt.Fprintf(w, "  - Activity span: %s to %s (%d days, %d active)\n",
		u.FirstActivity.Format(minuteLayout), u.LastActivity.Format(minuteLayout), u.SpanDays, u.ActiveDays)
	fmt.Fprintf(w, "  - Viewed %d pages across %d/%d sections\n", u.TotalPageViews, u.SectionsVisited, c.TotalSections)
	if u.CompletionDefined {
		fmt.Fprintf(w, "  - Completed %d/%d lessons (%.1f%% completion)\n", u.LessonsCompleted, c.TotalLessons, u.CompletionRate)
	} else {
		fmt.Fprintf(w, "  - Completed %d lessons (completion undefined)\n", u.LessonsCompleted)
	}
	if u.FurthestPage != nil {
		fmt.Fprintf(w, "  - Furthest progression: page %d, %s\n", *u.FurthestPage, truncate(u.FurthestTitle, maxTitleLen))
	} else {
		fmt.Fprintf(w, "  - Furthest progression: %s\n", metrics.UnknownTitle)
	}
}

func rankLabel(k metrics.RankKey) string {
	switch k {
	case metrics.RankByVisits:
		return "Visits"
	case metrics.RankByPages:
		return "Pages Viewed"
	case metrics.RankByCompletion:
		return "Completion"
	default:
		return "Engagement Time"
	}
}

func pct(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total) * 100
}
