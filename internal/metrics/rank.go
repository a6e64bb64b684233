package metrics

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/BrennanTM/vacraft/internal/events"
)

// RankKey selects the metric users are ranked by.
type RankKey string

const (
	RankByTime       RankKey = "time"
	RankByVisits     RankKey = "visits"
	RankByPages      RankKey = "pages"
	RankByCompletion RankKey = "completion"
)

// RankKeys lists the accepted keys.
var RankKeys = []RankKey{RankByTime, RankByVisits, RankByPages, RankByCompletion}

// ParseRankKey validates s against RankKeys.
func ParseRankKey(s string) (RankKey, error) {
	k := RankKey(strings.ToLower(strings.TrimSpace(s)))
	if slices.Contains(RankKeys, k) {
		return k, nil
	}
	return "", fmt.Errorf("unknown rank key %q (want one of time, visits, pages, completion)", s)
}

func (k RankKey) value(u UserMetrics) float64 {
	switch k {
	case RankByVisits:
		return float64(u.TotalSessions)
	case RankByPages:
		return float64(u.TotalPageViews)
	case RankByCompletion:
		return u.CompletionRate
	default:
		return u.TotalDwellSeconds
	}
}

// Rank returns the top n users by key, descending, ties broken by user id
// ascending. n <= 0 returns every user. The input is not modified.
func Rank(users []UserMetrics, key RankKey, n int) []UserMetrics {
	out := slices.Clone(users)
	sort.SliceStable(out, func(i, j int) bool {
		vi, vj := key.value(out[i]), key.value(out[j])
		if vi != vj {
			return vi > vj
		}
		return events.CompareUserIDs(out[i].UserID, out[j].UserID) < 0
	})
	if n > 0 && n < len(out) {
		out = out[:n]
	}
	return out
}

// Mean returns the arithmetic mean of xs, or 0 when empty.
func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// Median returns the middle value of xs (mean of the two middle values for
// even lengths), or 0 when empty.
func Median(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	s := slices.Clone(xs)
	slices.Sort(s)
	mid := len(s) / 2
	if len(s)%2 == 1 {
		return s[mid]
	}
	return (s[mid-1] + s[mid]) / 2
}
