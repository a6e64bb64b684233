package insights

import (
	"fmt"
	"strings"
)

const systemPrompt = `You are an analyst reviewing engagement data for an online self-help course.

Rules:
- Base every statement on the figures provided. Do not invent numbers.
- Write plain sentences without markdown.
- Insights describe what the data shows: participation, time spent, completion, where users stop.
- Recommendations are specific actions the course team can take.
- Refer to users by aggregate only. Never mention individual user ids.`

// buildUserMessage renders the cohort figures for the prompt.
func buildUserMessage(in Input, cfg Config) string {
	c := in.Cohort
	var b strings.Builder

	fmt.Fprintf(&b, "Users: %d\n", c.TotalUsers)
	fmt.Fprintf(&b, "Sessions: %d\n", c.TotalSessions)
	fmt.Fprintf(&b, "Page views: %d\n", c.TotalPageViews)
	if !c.FirstActivity.IsZero() {
		fmt.Fprintf(&b, "Date range: %s to %s\n", c.FirstActivity.Format("2006-01-02"), c.LastActivity.Format("2006-01-02"))
	}
	fmt.Fprintf(&b, "Mean hours per user: %.2f (median %.2f)\n", hours(c.MeanDwellSeconds), hours(c.MedianDwellSeconds))
	fmt.Fprintf(&b, "Mean sessions per user: %.1f\n", c.MeanSessions)
	fmt.Fprintf(&b, "Mean pages per session: %.1f\n", c.MeanPagesPerSession)
	fmt.Fprintf(&b, "Lessons in course: %d\n", c.TotalLessons)
	fmt.Fprintf(&b, "Mean completion: %.1f%%\n", c.MeanCompletionRate)
	fmt.Fprintf(&b, "Completed all lessons: %d\n", c.Completers)
	fmt.Fprintf(&b, "Started but completed none: %d\n", c.StartedNoCompletion)
	fmt.Fprintf(&b, "Never started a lesson: %d\n", c.NeverStarted)
	fmt.Fprintf(&b, "High engagement group: %d users, %.1f%% mean completion\n", c.High.Users, c.High.MeanCompletionRate)
	fmt.Fprintf(&b, "Low engagement group: %d users, %.1f%% mean completion\n", c.Low.Users, c.Low.MeanCompletionRate)

	b.WriteString("\nSections by unique users:\n")
	b.WriteString(buildSections(in, cfg.MaxSections))

	b.WriteString("\nLast section before users stopped:\n")
	b.WriteString(buildDropout(in, cfg.MaxSections))
	return b.String()
}

func buildSections(in Input, max int) string {
	secs := in.Cohort.Sections
	if len(secs) == 0 {
		return "None\n"
	}
	if max > 0 && len(secs) > max {
		secs = secs[:max]
	}
	var b strings.Builder
	for _, s := range secs {
		fmt.Fprintf(&b, "- %s: %d users, %d views, %.2f hours\n", s.Section, s.UniqueUsers, s.Views, hours(s.DwellSeconds))
	}
	return b.String()
}

func buildDropout(in Input, max int) string {
	drop := in.Cohort.Dropout
	if len(drop) == 0 {
		return "None\n"
	}
	if max > 0 && len(drop) > max {
		drop = drop[:max]
	}
	var b strings.Builder
	for _, d := range drop {
		fmt.Fprintf(&b, "- %s: %d users\n", d.Section, d.Users)
	}
	return b.String()
}
