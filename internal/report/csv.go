package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/BrennanTM/vacraft/internal/metrics"
)

const minuteLayout = "2006-01-02 15:04"

// maxTitleLen truncates long furthest-page titles in the user sheet.
const maxTitleLen = 50

func writeCSV(w io.Writer, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

func fmtFloat(v float64, prec int) string {
	return strconv.FormatFloat(v, 'f', prec, 64)
}

// WriteUserCSV writes one row per user, ordered by the report's rank key.
func WriteUserCSV(w io.Writer, r *Report) error {
	rows := [][]string{{
		"User_Id", "Total_Visits", "Total_Pages_Viewed", "Total_Time_Minutes", "Total_Time_Hours",
		"First_Activity", "Last_Activity", "Days_Active", "Active_Calendar_Days", "Sections_Visited",
		"Lessons_Started", "Lessons_Completed", "Completion_Rate", "Furthest_Page", "Furthest_Content",
		"Last_Section", "Avg_Pages_Per_Visit", "Avg_Minutes_Per_Visit",
	}}
	key := r.RankKey
	if key == "" {
		key = metrics.RankByTime
	}
	for _, u := range metrics.Rank(r.Result.Users, key, 0) {
		furthest := ""
		if u.FurthestPage != nil {
			furthest = strconv.Itoa(*u.FurthestPage)
		}
		completion := fmtFloat(u.CompletionRate, 1)
		if !u.CompletionDefined {
			completion = ""
		}
		rows = append(rows, []string{
			u.UserID,
			strconv.Itoa(u.TotalSessions),
			strconv.Itoa(u.TotalPageViews),
			fmtFloat(u.TotalMinutes(), 1),
			fmtFloat(u.TotalHours(), 2),
			u.FirstActivity.Format(minuteLayout),
			u.LastActivity.Format(minuteLayout),
			strconv.Itoa(u.SpanDays),
			strconv.Itoa(u.ActiveDays),
			strconv.Itoa(u.SectionsVisited),
			strconv.Itoa(u.LessonsStarted),
			strconv.Itoa(u.LessonsCompleted),
			completion,
			furthest,
			truncate(u.FurthestTitle, maxTitleLen),
			u.LastSection,
			fmtFloat(u.AvgPagesPerSession, 1),
			fmtFloat(u.AvgMinutesPerSession(), 1),
		})
	}
	return writeCSV(w, rows)
}

// WriteSectionCSV writes per-section engagement, most users first.
func WriteSectionCSV(w io.Writer, r *Report) error {
	rows := [][]string{{"Section", "Unique_Users", "Total_Time_Seconds", "Total_Views", "Total_Time_Hours"}}
	for _, s := range r.Result.Cohort.Sections {
		rows = append(rows, []string{
			s.Section,
			strconv.Itoa(s.UniqueUsers),
			fmtFloat(s.DwellSeconds, 0),
			strconv.Itoa(s.Views),
			fmtFloat(s.DwellSeconds/3600, 2),
		})
	}
	return writeCSV(w, rows)
}

// WriteSummaryCSV writes cohort statistics as Metric,Value pairs.
func WriteSummaryCSV(w io.Writer, r *Report) error {
	c := r.Result.Cohort
	rows := [][]string{
		{"Metric", "Value"},
		{"Total Users", strconv.Itoa(c.TotalUsers)},
		{"Total Page Views", strconv.Itoa(c.TotalPageViews)},
		{"Total Sessions", strconv.Itoa(c.TotalSessions)},
		{"Average Time per User (hours)", fmtFloat(c.MeanDwellSeconds/3600, 2)},
		{"Median Time per User (hours)", fmtFloat(c.MedianDwellSeconds/3600, 2)},
		{"Average Visits per User", fmtFloat(c.MeanSessions, 1)},
		{"Average Pages per User", fmtFloat(c.MeanPageViews, 1)},
		{"Average Pages per Visit", fmtFloat(c.MeanPagesPerSession, 1)},
		{"Average Completion Rate (%)", fmtFloat(c.MeanCompletionRate, 1)},
		{"Median Completion Rate (%)", fmtFloat(c.MedianCompletionRate, 1)},
		{"Users Who Completed All Lessons", strconv.Itoa(c.Completers)},
		{"Users Who Started But Didn't Complete", strconv.Itoa(c.PartialCompleters + c.StartedNoCompletion)},
		{"Users Who Never Started a Lesson", strconv.Itoa(c.NeverStarted)},
		{"Dictionary Match Rate (%)", fmtFloat(r.Result.Join.MatchRate, 1)},
		{"Rows Dropped During Cleaning", strconv.Itoa(r.Result.Load.Dropped())},
	}
	return writeCSV(w, rows)
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
