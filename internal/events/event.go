package events

import (
	"strconv"
	"strings"
	"time"

	"github.com/BrennanTM/vacraft/internal/pageid"
)

// Event is one cleaned page view.
type Event struct {
	UserID    string
	Page      pageid.ID
	Timestamp time.Time
	// Row is the 1-based source row; it breaks timestamp ties.
	Row int
}

// CompareUserIDs orders user ids numerically when both are integers and
// lexically otherwise, with numeric ids before textual ones.
func CompareUserIDs(a, b string) int {
	na, errA := strconv.ParseInt(a, 10, 64)
	nb, errB := strconv.ParseInt(b, 10, 64)
	switch {
	case errA == nil && errB == nil:
		switch {
		case na < nb:
			return -1
		case na > nb:
			return 1
		}
		return strings.Compare(a, b)
	case errA == nil:
		return -1
	case errB == nil:
		return 1
	}
	return strings.Compare(a, b)
}

// Compare orders events by (user id, timestamp, source row).
func Compare(a, b Event) int {
	if c := CompareUserIDs(a.UserID, b.UserID); c != 0 {
		return c
	}
	if c := a.Timestamp.Compare(b.Timestamp); c != 0 {
		return c
	}
	return a.Row - b.Row
}
