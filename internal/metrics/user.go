package metrics

import (
	"context"
	"math"
	"runtime"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/BrennanTM/vacraft/internal/content"
	"github.com/BrennanTM/vacraft/internal/enrich"
)

// UnknownTitle is reported when the furthest page has no dictionary title.
const UnknownTitle = "Unknown"

// SectionTime is the dwell credited to one section.
type SectionTime struct {
	Section      string  `json:"section"`
	DwellSeconds float64 `json:"dwell_seconds"`
}

// UserMetrics is the engagement projection of one user. It is computed
// once per run and never mutated afterwards.
type UserMetrics struct {
	UserID string `json:"user_id"`

	TotalSessions    int `json:"total_sessions"`
	TotalPageViews   int `json:"total_page_views"`
	SectionsVisited  int `json:"sections_visited"`
	LessonsStarted   int `json:"lessons_started"`
	LessonsCompleted int `json:"lessons_completed"`

	TotalDwellSeconds         float64 `json:"total_dwell_seconds"`
	AvgDwellPerSessionSeconds float64 `json:"avg_dwell_per_session_seconds"`
	AvgPagesPerSession        float64 `json:"avg_pages_per_session"`

	FirstActivity time.Time `json:"first_activity"`
	LastActivity  time.Time `json:"last_activity"`
	ActiveDays    int       `json:"active_days"`
	SpanDays      int       `json:"span_days"`

	// CompletionRate is a percentage in [0, 100]. CompletionDefined is
	// false when the dictionary defines no lessons and the rate is 0.
	CompletionRate    float64 `json:"completion_rate"`
	CompletionDefined bool    `json:"completion_defined"`
	FurthestPage      *int    `json:"furthest_page"`
	FurthestTitle     string  `json:"furthest_title"`

	// LastSection is the section of the user's last sectioned view.
	LastSection string        `json:"last_section"`
	SectionTime []SectionTime `json:"section_time"`
}

// TotalMinutes returns total dwell in minutes.
func (u UserMetrics) TotalMinutes() float64 { return u.TotalDwellSeconds / 60 }

// TotalHours returns total dwell in hours.
func (u UserMetrics) TotalHours() float64 { return u.TotalDwellSeconds / 3600 }

// AvgMinutesPerSession returns average dwell per session in minutes.
func (u UserMetrics) AvgMinutesPerSession() float64 { return u.AvgDwellPerSessionSeconds / 60 }

// Completed reports whether every dictionary lesson was completed.
func (u UserMetrics) Completed() bool {
	return u.CompletionDefined && u.CompletionRate >= 100
}

// ComputeUsers builds one UserMetrics per distinct user. evs must be grouped
// by user (as produced by the sessionizer). Users are processed on up to
// workers goroutines; the result is ordered by first appearance in evs,
// which is user id order for pipeline input.
func ComputeUsers(ctx context.Context, evs []enrich.Event, dict *content.Dictionary, workers int) ([]UserMetrics, error) {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	groups := groupByUser(evs)
	out := make([]UserMetrics, len(groups))
	totalLessons := dict.TotalLessons()

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, grp := range groups {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			out[i] = ComputeUser(grp, totalLessons)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func groupByUser(evs []enrich.Event) [][]enrich.Event {
	var groups [][]enrich.Event
	start := 0
	for i := 1; i <= len(evs); i++ {
		if i == len(evs) || evs[i].UserID != evs[start].UserID {
			groups = append(groups, evs[start:i])
			start = i
		}
	}
	return groups
}

// ComputeUser derives metrics for a single user's time-ordered events.
// totalLessons is the dictionary's live lesson count.
func ComputeUser(evs []enrich.Event, totalLessons int) UserMetrics {
	var m UserMetrics
	if len(evs) == 0 {
		return m
	}
	m.UserID = evs[0].UserID
	m.TotalPageViews = len(evs)
	m.FirstActivity = evs[0].Timestamp
	m.LastActivity = evs[0].Timestamp

	sessions := map[int64]struct{}{}
	days := map[string]struct{}{}
	sections := map[string]struct{}{}
	lessons := map[string]struct{}{}
	completed := map[string]struct{}{}
	sectionDwell := map[string]float64{}
	furthest := math.MinInt

	for _, ev := range evs {
		sessions[ev.SessionID] = struct{}{}
		days[ev.Timestamp.Format(time.DateOnly)] = struct{}{}
		m.TotalDwellSeconds += ev.DwellSeconds

		if ev.Timestamp.Before(m.FirstActivity) {
			m.FirstActivity = ev.Timestamp
		}
		if ev.Timestamp.After(m.LastActivity) {
			m.LastActivity = ev.Timestamp
		}

		if s := ev.Section(); s != "" {
			sections[s] = struct{}{}
			sectionDwell[s] += ev.DwellSeconds
			m.LastSection = s
		}
		if l := ev.Lesson(); l != "" {
			lessons[l] = struct{}{}
			if ev.Content.IsLastPage {
				completed[l] = struct{}{}
			}
		}

		if n, ok := ev.Page.Number(); ok && n > furthest {
			furthest = n
			m.FurthestTitle = ev.Title()
		}
	}

	m.TotalSessions = len(sessions)
	m.ActiveDays = len(days)
	m.SpanDays = int(m.LastActivity.Sub(m.FirstActivity).Hours()/24) + 1
	m.SectionsVisited = len(sections)
	m.LessonsStarted = len(lessons)
	m.LessonsCompleted = len(completed)

	if m.TotalSessions > 0 {
		m.AvgDwellPerSessionSeconds = m.TotalDwellSeconds / float64(m.TotalSessions)
		m.AvgPagesPerSession = float64(m.TotalPageViews) / float64(m.TotalSessions)
	}
	if totalLessons > 0 {
		m.CompletionDefined = true
		m.CompletionRate = math.Min(100, float64(m.LessonsCompleted)/float64(totalLessons)*100)
	}

	if furthest != math.MinInt {
		m.FurthestPage = &furthest
	}
	if m.FurthestTitle == "" {
		m.FurthestTitle = UnknownTitle
	}

	m.SectionTime = make([]SectionTime, 0, len(sectionDwell))
	for s, d := range sectionDwell {
		m.SectionTime = append(m.SectionTime, SectionTime{Section: s, DwellSeconds: d})
	}
	sort.Slice(m.SectionTime, func(i, j int) bool {
		return m.SectionTime[i].Section < m.SectionTime[j].Section
	})
	return m
}
