// Package sessionize groups each user's time-ordered page views into
// sessions separated by an inactivity gap and credits dwell time to each view.
package sessionize

import (
	"fmt"
	"time"

	"github.com/BrennanTM/vacraft/internal/events"
	"github.com/BrennanTM/vacraft/internal/pageid"
)

// DefaultTimeout is the inactivity gap that closes a session.
const DefaultTimeout = 30 * time.Minute

// Event is a cleaned event with its session and dwell attached.
type Event struct {
	UserID       string
	Page         pageid.ID
	Timestamp    time.Time
	Row          int
	SessionID    int64
	DwellSeconds float64
}

// Session summarizes one session.
type Session struct {
	ID           int64     `json:"id"`
	UserID       string    `json:"user_id"`
	Start        time.Time `json:"start"`
	End          time.Time `json:"end"`
	PageViews    int       `json:"page_views"`
	DwellSeconds float64   `json:"dwell_seconds"`
}

// Wallclock returns the elapsed time between the first and last view.
func (s Session) Wallclock() time.Duration { return s.End.Sub(s.Start) }

// state is the fold accumulator carried across the sorted stream.
type state struct {
	user      string
	sessionID int64
	last      time.Time
	started   bool
}

// step advances the fold by one event and returns its session id.
func (st *state) step(ev events.Event, timeout time.Duration) int64 {
	newUser := !st.started || ev.UserID != st.user
	if newUser || ev.Timestamp.Sub(st.last) > timeout {
		st.sessionID++
	}
	st.user = ev.UserID
	st.last = ev.Timestamp
	st.started = true
	return st.sessionID
}

// Sessionize assigns a global session ordinal and dwell time to every event.
// evs must be sorted by (user id, timestamp) as returned by events.Clean.
//
// A session starts at a user's first event or after a gap strictly greater
// than timeout. Dwell is the gap to the user's next event within the same
// session, clamped to timeout; the last event of a session dwells 0.
func Sessionize(evs []events.Event, timeout time.Duration) ([]Event, error) {
	if timeout <= 0 {
		return nil, fmt.Errorf("session timeout must be positive, got %s", timeout)
	}

	out := make([]Event, len(evs))
	seen := make(map[string]bool)
	var st state
	for i, ev := range evs {
		if i > 0 && ev.UserID == evs[i-1].UserID && ev.Timestamp.Before(evs[i-1].Timestamp) {
			return nil, fmt.Errorf("events out of order for user %s at row %d", ev.UserID, ev.Row)
		}
		if i > 0 && ev.UserID != evs[i-1].UserID {
			if seen[ev.UserID] {
				return nil, fmt.Errorf("events for user %s are not contiguous (row %d)", ev.UserID, ev.Row)
			}
		}
		seen[ev.UserID] = true

		out[i] = Event{
			UserID:    ev.UserID,
			Page:      ev.Page,
			Timestamp: ev.Timestamp,
			Row:       ev.Row,
			SessionID: st.step(ev, timeout),
		}
	}

	for i := range out {
		if i+1 == len(out) || out[i+1].SessionID != out[i].SessionID {
			continue
		}
		dwell := out[i+1].Timestamp.Sub(out[i].Timestamp)
		if dwell > timeout {
			dwell = timeout
		}
		out[i].DwellSeconds = dwell.Seconds()
	}
	return out, nil
}

// Sessions derives per-session summaries in session id order.
func Sessions(evs []Event) []Session {
	var out []Session
	for _, ev := range evs {
		n := len(out)
		if n == 0 || out[n-1].ID != ev.SessionID {
			out = append(out, Session{
				ID:     ev.SessionID,
				UserID: ev.UserID,
				Start:  ev.Timestamp,
			})
			n++
		}
		s := &out[n-1]
		s.End = ev.Timestamp
		s.PageViews++
		s.DwellSeconds += ev.DwellSeconds
	}
	return out
}
