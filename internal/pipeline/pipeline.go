// Package pipeline runs the full analysis: load and clean events, load the
// content dictionary, sessionize, enrich and aggregate.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/BrennanTM/vacraft/internal/content"
	"github.com/BrennanTM/vacraft/internal/enrich"
	"github.com/BrennanTM/vacraft/internal/events"
	"github.com/BrennanTM/vacraft/internal/metrics"
	"github.com/BrennanTM/vacraft/internal/sessionize"
)

// Options configures a run.
type Options struct {
	Events  events.Options
	Timeout time.Duration
	Workers int
	// Now stamps the result; defaults to time.Now in UTC.
	Now func() time.Time
}

// DefaultOptions returns the standard course-export settings.
func DefaultOptions() Options {
	return Options{
		Events:  events.DefaultOptions(),
		Timeout: sessionize.DefaultTimeout,
	}
}

// Result is everything one run produces. Only the metric fields are
// serialized; raw event slices stay in memory for reporting.
type Result struct {
	GeneratedAt    time.Time `json:"generated_at"`
	EventsPath     string    `json:"events_path"`
	DictionaryPath string    `json:"dictionary_path"`
	TimeoutSeconds float64   `json:"session_timeout_seconds"`

	Load   events.Diagnostics    `json:"load"`
	Join   enrich.Diagnostics    `json:"join"`
	Cohort metrics.CohortSummary `json:"cohort"`
	Users  []metrics.UserMetrics `json:"users"`

	Sessions   []sessionize.Session `json:"-"`
	Events     []enrich.Event       `json:"-"`
	Dictionary *content.Dictionary  `json:"-"`
}

// User returns the metrics for id, if present.
func (r *Result) User(id string) (metrics.UserMetrics, bool) {
	for _, u := range r.Users {
		if u.UserID == id {
			return u, true
		}
	}
	return metrics.UserMetrics{}, false
}

// Run loads both inputs from disk and analyzes them. A structural problem
// with either file aborts the run before anything is computed.
func Run(ctx context.Context, eventsPath, dictionaryPath string, opts Options) (*Result, error) {
	dict, err := content.LoadFile(dictionaryPath)
	if err != nil {
		return nil, fmt.Errorf("load dictionary: %w", err)
	}
	slog.InfoContext(ctx, "dictionary loaded",
		"path", dictionaryPath,
		"pages", dict.Len(),
		"lessons", dict.TotalLessons(),
		"sections", dict.TotalSections())

	evs, diag, err := events.LoadFile(ctx, eventsPath, opts.Events)
	if err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}
	slog.InfoContext(ctx, "events loaded",
		"path", eventsPath,
		"raw", diag.RawRows,
		"kept", diag.Kept,
		"dropped", diag.Dropped())

	res, err := Analyze(ctx, evs, diag, dict, opts)
	if err != nil {
		return nil, err
	}
	res.EventsPath = eventsPath
	res.DictionaryPath = dictionaryPath
	return res, nil
}

// Analyze runs the in-memory stages over already cleaned events.
func Analyze(ctx context.Context, evs []events.Event, diag events.Diagnostics, dict *content.Dictionary, opts Options) (*Result, error) {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = sessionize.DefaultTimeout
	}
	now := opts.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}

	sess, err := sessionize.Sessionize(evs, timeout)
	if err != nil {
		return nil, fmt.Errorf("sessionize: %w", err)
	}
	sessions := sessionize.Sessions(sess)
	slog.InfoContext(ctx, "sessionized", "events", len(sess), "sessions", len(sessions), "timeout", timeout)

	enriched, join := enrich.Enrich(sess, dict)
	if join.Unmatched > 0 {
		slog.InfoContext(ctx, "unmatched page views",
			"unmatched", join.Unmatched,
			"menu", join.MenuViews,
			"distinct_unmapped", len(join.UnmappedPages))
	}

	users, err := metrics.ComputeUsers(ctx, enriched, dict, opts.Workers)
	if err != nil {
		return nil, fmt.Errorf("compute user metrics: %w", err)
	}
	cohort := metrics.Summarize(users, enriched, dict)
	slog.InfoContext(ctx, "metrics computed", "users", len(users), "completers", cohort.Completers)

	return &Result{
		GeneratedAt:    now(),
		TimeoutSeconds: timeout.Seconds(),
		Load:           diag,
		Join:           join,
		Cohort:         cohort,
		Users:          users,
		Sessions:       sessions,
		Events:         enriched,
		Dictionary:     dict,
	}, nil
}
