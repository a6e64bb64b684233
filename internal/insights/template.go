package insights

import (
	"fmt"

	"github.com/BrennanTM/vacraft/internal/metrics"
)

// SourceTemplate marks insights produced by Template.
const SourceTemplate = "template"

func hours(sec float64) float64 { return sec / 3600 }

// Template derives insights and recommendations from the cohort figures.
// Every sentence is conditional on data that supports it.
func Template(c metrics.CohortSummary) Insights {
	ins := Insights{Source: SourceTemplate, Insights: []string{}, Recommendations: []string{}}
	if c.TotalUsers == 0 {
		ins.Insights = append(ins.Insights, "No users were analyzed.")
		return ins
	}

	add := func(format string, args ...any) {
		ins.Insights = append(ins.Insights, fmt.Sprintf(format, args...))
	}
	rec := func(format string, args ...any) {
		ins.Recommendations = append(ins.Recommendations, fmt.Sprintf(format, args...))
	}

	add("Users spent an average of %.1f hours in the course (median %.1f hours).",
		hours(c.MeanDwellSeconds), hours(c.MedianDwellSeconds))

	if c.TotalLessons > 0 {
		add("Mean completion is %.1f%%; %d of %d users (%.1f%%) completed every lesson.",
			c.MeanCompletionRate, c.Completers, c.TotalUsers,
			float64(c.Completers)/float64(c.TotalUsers)*100)
	} else {
		add("The content dictionary defines no lessons, so completion cannot be measured.")
	}

	if len(c.Dropout) > 0 {
		top := c.Dropout[0]
		add("%s is the most common last section (%d users), indicating a potential barrier.", top.Section, top.Users)
		rec("Focus retention efforts on %s, where the most users stop.", top.Section)
	}

	if c.High.Users > 0 && c.Low.Users > 0 {
		add("Users above the median dwell (%.1f hours) average %.1f%% completion against %.1f%% for the rest.",
			hours(c.MedianDwellSeconds), c.High.MeanCompletionRate, c.Low.MeanCompletionRate)
	}

	if c.MostViewedSection != "" {
		add("%s draws the most page views.", c.MostViewedSection)
	}

	if c.StartedNoCompletion > 0 {
		add("%d users started a lesson but never finished one.", c.StartedNoCompletion)
	}

	if c.TotalLessons > 0 && c.MeanCompletionRate < 50 {
		rec("Investigate barriers in lessons with low completion.")
	}
	if c.MedianSessions <= 2 {
		rec("Add engagement prompts or reminders after periods of inactivity.")
	}
	if c.Completers > 0 {
		rec("Highlight success stories from the %d users who completed the program.", c.Completers)
	}
	if heaviest, ok := mostTime(c.Sections); ok {
		rec("Review content length in %s, which carries the most time investment.", heaviest)
	}
	if c.NeverStarted > 0 {
		rec("Reach out to the %d users who never started a lesson.", c.NeverStarted)
	}
	return ins
}

func mostTime(sections []metrics.SectionStats) (string, bool) {
	if len(sections) == 0 {
		return "", false
	}
	best := sections[0]
	for _, s := range sections[1:] {
		if s.DwellSeconds > best.DwellSeconds || (s.DwellSeconds == best.DwellSeconds && s.Section < best.Section) {
			best = s
		}
	}
	return best.Section, best.DwellSeconds > 0
}
