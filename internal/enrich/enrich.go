package enrich

import (
	"sort"

	"github.com/BrennanTM/vacraft/internal/content"
	"github.com/BrennanTM/vacraft/internal/pageid"
	"github.com/BrennanTM/vacraft/internal/sessionize"
)

// Event is a sessionized event joined with its dictionary entry.
// Content is nil when the page id has no match.
type Event struct {
	sessionize.Event
	Content *content.Entry
}

// Section returns the joined section or "".
func (e Event) Section() string { return e.Content.SectionName() }

// Lesson returns the joined lesson or "".
func (e Event) Lesson() string { return e.Content.LessonName() }

// Title returns the joined title or "".
func (e Event) Title() string {
	if e.Content == nil {
		return ""
	}
	return e.Content.Title
}

// Diagnostics describes join coverage.
type Diagnostics struct {
	Events    int `json:"events"`
	Matched   int `json:"matched"`
	Unmatched int `json:"unmatched"`
	MenuViews int `json:"menu_views"`
	// MatchRate is the matched share of events as a percentage.
	MatchRate float64 `json:"match_rate"`
	// UnmappedPages lists distinct unmatched page ids, menu excluded.
	UnmappedPages []string `json:"unmapped_pages"`
}

// Enrich left-joins evs against dict on canonical page id. It never fails:
// unmatched events keep a nil Content and show up in the diagnostics.
func Enrich(evs []sessionize.Event, dict *content.Dictionary) ([]Event, Diagnostics) {
	out := make([]Event, len(evs))
	diag := Diagnostics{Events: len(evs), UnmappedPages: []string{}}
	unmapped := map[pageid.ID]struct{}{}

	for i, ev := range evs {
		entry := dict.Lookup(ev.Page)
		out[i] = Event{Event: ev, Content: entry}

		if ev.Page.IsMenu() {
			diag.MenuViews++
		}
		if entry != nil {
			diag.Matched++
			continue
		}
		diag.Unmatched++
		if !ev.Page.IsMenu() {
			unmapped[ev.Page] = struct{}{}
		}
	}

	if diag.Events > 0 {
		diag.MatchRate = float64(diag.Matched) * 100 / float64(diag.Events)
	}
	ids := make([]pageid.ID, 0, len(unmapped))
	for p := range unmapped {
		ids = append(ids, p)
	}
	sort.Slice(ids, func(i, j int) bool { return pageid.Compare(ids[i], ids[j]) < 0 })
	for _, p := range ids {
		diag.UnmappedPages = append(diag.UnmappedPages, p.String())
	}
	return out, diag
}
