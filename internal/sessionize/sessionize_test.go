package sessionize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BrennanTM/vacraft/internal/events"
	"github.com/BrennanTM/vacraft/internal/pageid"
)

var t0 = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func ev(user string, page string, offset time.Duration, row int) events.Event {
	return events.Event{UserID: user, Page: pageid.MustParse(page), Timestamp: t0.Add(offset), Row: row}
}

func TestTwoEventsWithinTimeout(t *testing.T) {
	out, err := Sessionize([]events.Event{
		ev("42", "1", 0, 1),
		ev("42", "2", 10*time.Minute, 2),
	}, DefaultTimeout)
	require.NoError(t, err)

	assert.Equal(t, out[0].SessionID, out[1].SessionID)
	assert.Equal(t, 600.0, out[0].DwellSeconds)
	assert.Equal(t, 0.0, out[1].DwellSeconds)
}

func TestTwoEventsBeyondTimeout(t *testing.T) {
	out, err := Sessionize([]events.Event{
		ev("42", "1", 0, 1),
		ev("42", "2", 45*time.Minute, 2),
	}, DefaultTimeout)
	require.NoError(t, err)

	assert.NotEqual(t, out[0].SessionID, out[1].SessionID)
	assert.Equal(t, 0.0, out[0].DwellSeconds)
	assert.Equal(t, 0.0, out[1].DwellSeconds)
}

func TestGapEqualToTimeoutStaysInSession(t *testing.T) {
	out, err := Sessionize([]events.Event{
		ev("1", "1", 0, 1),
		ev("1", "2", DefaultTimeout, 2),
	}, DefaultTimeout)
	require.NoError(t, err)
	assert.Equal(t, out[0].SessionID, out[1].SessionID)
	assert.Equal(t, DefaultTimeout.Seconds(), out[0].DwellSeconds)
}

func TestSingleEventUser(t *testing.T) {
	out, err := Sessionize([]events.Event{ev("9", "3", 0, 1)}, DefaultTimeout)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, int64(1), out[0].SessionID)
	assert.Zero(t, out[0].DwellSeconds)
}

func TestSessionOrdinalsAreGlobal(t *testing.T) {
	out, err := Sessionize([]events.Event{
		ev("1", "1", 0, 1),
		ev("1", "2", 2*time.Hour, 2),
		ev("2", "1", 0, 3),
		ev("2", "2", time.Minute, 4),
		ev("3", "1", 0, 5),
	}, DefaultTimeout)
	require.NoError(t, err)

	got := []int64{}
	for _, e := range out {
		got = append(got, e.SessionID)
	}
	assert.Equal(t, []int64{1, 2, 3, 3, 4}, got)

	owner := map[int64]string{}
	for _, e := range out {
		if prev, ok := owner[e.SessionID]; ok {
			assert.Equal(t, prev, e.UserID, "session %d shared across users", e.SessionID)
		}
		owner[e.SessionID] = e.UserID
	}
}

func TestNewUserAlwaysStartsSession(t *testing.T) {
	// Same timestamp for two users must not merge them.
	out, err := Sessionize([]events.Event{
		ev("1", "1", 0, 1),
		ev("2", "1", 0, 2),
	}, DefaultTimeout)
	require.NoError(t, err)
	assert.NotEqual(t, out[0].SessionID, out[1].SessionID)
	assert.Zero(t, out[0].DwellSeconds, "dwell never crosses users")
}

func TestSessionProperties(t *testing.T) {
	var in []events.Event
	offsets := []time.Duration{0, 5 * time.Minute, 29 * time.Minute, 31 * time.Minute, 80 * time.Minute, 81 * time.Minute, 26 * time.Hour}
	row := 0
	for _, user := range []string{"3", "11", "12"} {
		acc := time.Duration(0)
		for _, d := range offsets {
			acc += d
			row++
			in = append(in, ev(user, "1", acc, row))
		}
	}

	out, err := Sessionize(in, DefaultTimeout)
	require.NoError(t, err)

	for i := 1; i < len(out); i++ {
		assert.GreaterOrEqual(t, out[i].SessionID, out[i-1].SessionID, "ordinals never decrease")
	}
	for _, s := range Sessions(out) {
		limit := s.Wallclock().Seconds() + DefaultTimeout.Seconds()
		assert.LessOrEqual(t, s.DwellSeconds, limit, "session %d", s.ID)
	}
	for i, e := range out {
		last := i+1 == len(out) || out[i+1].SessionID != e.SessionID
		if last {
			assert.Zero(t, e.DwellSeconds, "last event of session %d", e.SessionID)
		}
		assert.LessOrEqual(t, e.DwellSeconds, DefaultTimeout.Seconds())
	}
}

func TestDeterministic(t *testing.T) {
	in := []events.Event{
		ev("1", "1", 0, 1),
		ev("1", "2", 3*time.Minute, 2),
		ev("2", "menu", 0, 3),
	}
	a, err := Sessionize(in, DefaultTimeout)
	require.NoError(t, err)
	b, err := Sessionize(in, DefaultTimeout)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestRejectsUnsortedInput(t *testing.T) {
	_, err := Sessionize([]events.Event{
		ev("1", "1", time.Hour, 1),
		ev("1", "2", 0, 2),
	}, DefaultTimeout)
	assert.Error(t, err)

	_, err = Sessionize([]events.Event{
		ev("1", "1", 0, 1),
		ev("2", "1", 0, 2),
		ev("1", "1", time.Minute, 3),
	}, DefaultTimeout)
	assert.Error(t, err)
}

func TestRejectsNonPositiveTimeout(t *testing.T) {
	_, err := Sessionize(nil, 0)
	assert.Error(t, err)
}

func TestSessions(t *testing.T) {
	out, err := Sessionize([]events.Event{
		ev("42", "1", 0, 1),
		ev("42", "2", 10*time.Minute, 2),
		ev("42", "3", 12*time.Minute, 3),
		ev("42", "4", 3*time.Hour, 4),
	}, DefaultTimeout)
	require.NoError(t, err)

	ss := Sessions(out)
	require.Len(t, ss, 2)
	assert.Equal(t, 3, ss[0].PageViews)
	assert.Equal(t, 720.0, ss[0].DwellSeconds)
	assert.Equal(t, 12*time.Minute, ss[0].Wallclock())
	assert.Equal(t, 1, ss[1].PageViews)
	assert.Zero(t, ss[1].DwellSeconds)
}
