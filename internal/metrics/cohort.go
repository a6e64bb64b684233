package metrics

import (
	"sort"
	"time"

	"github.com/BrennanTM/vacraft/internal/content"
	"github.com/BrennanTM/vacraft/internal/enrich"
)

// Bucket counts users whose completion rate falls in [Min, Max].
type Bucket struct {
	Label string  `json:"label"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Users int     `json:"users"`
}

// GroupStats describes a subset of users.
type GroupStats struct {
	Users              int     `json:"users"`
	MeanDwellSeconds   float64 `json:"mean_dwell_seconds"`
	MeanSessions       float64 `json:"mean_sessions"`
	MeanPageViews      float64 `json:"mean_page_views"`
	MeanCompletionRate float64 `json:"mean_completion_rate"`
}

// SectionStats is engagement aggregated over one section.
type SectionStats struct {
	Section      string  `json:"section"`
	UniqueUsers  int     `json:"unique_users"`
	DwellSeconds float64 `json:"dwell_seconds"`
	Views        int     `json:"views"`
}

// SectionCount pairs a section with a user count.
type SectionCount struct {
	Section string `json:"section"`
	Users   int    `json:"users"`
}

// CohortSummary aggregates engagement across all users of a run.
type CohortSummary struct {
	TotalUsers     int       `json:"total_users"`
	TotalPageViews int       `json:"total_page_views"`
	TotalSessions  int       `json:"total_sessions"`
	FirstActivity  time.Time `json:"first_activity"`
	LastActivity   time.Time `json:"last_activity"`
	TotalLessons   int       `json:"total_lessons"`
	TotalSections  int       `json:"total_sections"`

	TotalDwellSeconds   float64 `json:"total_dwell_seconds"`
	MeanDwellSeconds    float64 `json:"mean_dwell_seconds"`
	MedianDwellSeconds  float64 `json:"median_dwell_seconds"`
	MeanSessions        float64 `json:"mean_sessions"`
	MedianSessions      float64 `json:"median_sessions"`
	MeanPageViews       float64 `json:"mean_page_views"`
	MeanPagesPerSession float64 `json:"mean_pages_per_session"`
	MeanSessionSeconds  float64 `json:"mean_session_seconds"`
	MeanActiveDays      float64 `json:"mean_active_days"`

	MeanCompletionRate   float64  `json:"mean_completion_rate"`
	MedianCompletionRate float64  `json:"median_completion_rate"`
	MeanLessonsCompleted float64  `json:"mean_lessons_completed"`
	Completers           int      `json:"completers"`
	PartialCompleters    int      `json:"partial_completers"`
	StartedNoCompletion  int      `json:"started_no_completion"`
	NeverStarted         int      `json:"never_started"`
	Completion           []Bucket `json:"completion_distribution"`

	// High holds users whose total dwell is strictly above the median.
	High GroupStats `json:"high_engagement"`
	Low  GroupStats `json:"low_engagement"`

	Sections          []SectionStats `json:"sections"`
	MostViewedSection string         `json:"most_viewed_section"`

	// Dropout counts users by the section of their last sectioned view.
	Dropout             []SectionCount `json:"dropout"`
	DropoutUnattributed int            `json:"dropout_unattributed"`
}

func completionBuckets() []Bucket {
	return []Bucket{
		{Label: "0%", Min: 0, Max: 0},
		{Label: "1-24%", Min: 0, Max: 25},
		{Label: "25-49%", Min: 25, Max: 50},
		{Label: "50-74%", Min: 50, Max: 75},
		{Label: "75-99%", Min: 75, Max: 100},
		{Label: "100%", Min: 100, Max: 100},
	}
}

func bucketIndex(rate float64) int {
	switch {
	case rate <= 0:
		return 0
	case rate < 25:
		return 1
	case rate < 50:
		return 2
	case rate < 75:
		return 3
	case rate < 100:
		return 4
	default:
		return 5
	}
}

// Summarize aggregates users and their enriched events into a cohort summary.
func Summarize(users []UserMetrics, evs []enrich.Event, dict *content.Dictionary) CohortSummary {
	s := CohortSummary{
		TotalUsers:    len(users),
		TotalLessons:  dict.TotalLessons(),
		TotalSections: dict.TotalSections(),
		Completion:    completionBuckets(),
		Sections:      []SectionStats{},
		Dropout:       []SectionCount{},
	}
	if len(users) == 0 {
		return s
	}

	dwell := make([]float64, len(users))
	sessions := make([]float64, len(users))
	rates := make([]float64, len(users))
	var pps, activeDays, lessonsDone []float64
	dropout := map[string]int{}

	s.FirstActivity = users[0].FirstActivity
	s.LastActivity = users[0].LastActivity
	for i, u := range users {
		dwell[i] = u.TotalDwellSeconds
		sessions[i] = float64(u.TotalSessions)
		rates[i] = u.CompletionRate
		pps = append(pps, u.AvgPagesPerSession)
		activeDays = append(activeDays, float64(u.ActiveDays))
		lessonsDone = append(lessonsDone, float64(u.LessonsCompleted))

		s.TotalPageViews += u.TotalPageViews
		s.TotalSessions += u.TotalSessions
		s.TotalDwellSeconds += u.TotalDwellSeconds
		if u.FirstActivity.Before(s.FirstActivity) {
			s.FirstActivity = u.FirstActivity
		}
		if u.LastActivity.After(s.LastActivity) {
			s.LastActivity = u.LastActivity
		}

		s.Completion[bucketIndex(u.CompletionRate)].Users++
		switch {
		case u.LessonsStarted == 0:
			s.NeverStarted++
		case u.Completed():
			s.Completers++
		case u.LessonsCompleted == 0:
			s.StartedNoCompletion++
		default:
			s.PartialCompleters++
		}

		if u.LastSection == "" {
			s.DropoutUnattributed++
		} else {
			dropout[u.LastSection]++
		}
	}

	s.MeanDwellSeconds = Mean(dwell)
	s.MedianDwellSeconds = Median(dwell)
	s.MeanSessions = Mean(sessions)
	s.MedianSessions = Median(sessions)
	s.MeanPageViews = float64(s.TotalPageViews) / float64(s.TotalUsers)
	s.MeanPagesPerSession = Mean(pps)
	s.MeanActiveDays = Mean(activeDays)
	s.MeanCompletionRate = Mean(rates)
	s.MedianCompletionRate = Median(rates)
	s.MeanLessonsCompleted = Mean(lessonsDone)
	if s.TotalSessions > 0 {
		s.MeanSessionSeconds = s.TotalDwellSeconds / float64(s.TotalSessions)
	}

	var high, low []UserMetrics
	for _, u := range users {
		if u.TotalDwellSeconds > s.MedianDwellSeconds {
			high = append(high, u)
		} else {
			low = append(low, u)
		}
	}
	s.High = groupStats(high)
	s.Low = groupStats(low)

	s.Sections = sectionStats(evs)
	if len(s.Sections) > 0 {
		best := s.Sections[0]
		for _, sec := range s.Sections[1:] {
			if sec.Views > best.Views || (sec.Views == best.Views && sec.Section < best.Section) {
				best = sec
			}
		}
		s.MostViewedSection = best.Section
	}

	for sec, n := range dropout {
		s.Dropout = append(s.Dropout, SectionCount{Section: sec, Users: n})
	}
	sort.Slice(s.Dropout, func(i, j int) bool {
		if s.Dropout[i].Users != s.Dropout[j].Users {
			return s.Dropout[i].Users > s.Dropout[j].Users
		}
		return s.Dropout[i].Section < s.Dropout[j].Section
	})
	return s
}

func groupStats(users []UserMetrics) GroupStats {
	g := GroupStats{Users: len(users)}
	if len(users) == 0 {
		return g
	}
	for _, u := range users {
		g.MeanDwellSeconds += u.TotalDwellSeconds
		g.MeanSessions += float64(u.TotalSessions)
		g.MeanPageViews += float64(u.TotalPageViews)
		g.MeanCompletionRate += u.CompletionRate
	}
	n := float64(len(users))
	g.MeanDwellSeconds /= n
	g.MeanSessions /= n
	g.MeanPageViews /= n
	g.MeanCompletionRate /= n
	return g
}

// sectionStats aggregates sectioned events, ordered by unique users
// descending then section name.
func sectionStats(evs []enrich.Event) []SectionStats {
	idx := map[string]int{}
	seen := map[string]map[string]struct{}{}
	var out []SectionStats
	for _, ev := range evs {
		sec := ev.Section()
		if sec == "" {
			continue
		}
		i, ok := idx[sec]
		if !ok {
			i = len(out)
			idx[sec] = i
			out = append(out, SectionStats{Section: sec})
			seen[sec] = map[string]struct{}{}
		}
		out[i].Views++
		out[i].DwellSeconds += ev.DwellSeconds
		seen[sec][ev.UserID] = struct{}{}
	}
	for i := range out {
		out[i].UniqueUsers = len(seen[out[i].Section])
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UniqueUsers != out[j].UniqueUsers {
			return out[i].UniqueUsers > out[j].UniqueUsers
		}
		return out[i].Section < out[j].Section
	})
	if out == nil {
		out = []SectionStats{}
	}
	return out
}
