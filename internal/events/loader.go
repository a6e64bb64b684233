package events

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/BrennanTM/vacraft/internal/pageid"
	"github.com/BrennanTM/vacraft/internal/tabular"
)

// DefaultLayouts are tried in order when parsing raw timestamps.
var DefaultLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.999999999",
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"1/2/2006 15:04:05",
	"1/2/2006 15:04",
	"1/2/2006 3:04:05 PM",
	"1/2/2006 3:04 PM",
	"2006-01-02",
}

// Options controls how raw event rows are interpreted.
type Options struct {
	UserColumn string
	PageColumn string
	// TimestampColumns lists candidate timestamp headers; the first one
	// present in the table is used.
	TimestampColumns []string

	// PlaceholderUser is the header-leak sentinel user id.
	PlaceholderUser string
	// ZeroDatePrefix marks the invalid zero-date sentinel.
	ZeroDatePrefix string

	Layouts  []string
	Location *time.Location
}

// DefaultOptions returns the column names and sentinels of the course export.
func DefaultOptions() Options {
	return Options{
		UserColumn:       "UserId",
		PageColumn:       "Page",
		TimestampColumns: []string{"Date / Time", "DateTime"},
		PlaceholderUser:  "UserName",
		ZeroDatePrefix:   "0000",
		Layouts:          DefaultLayouts,
		Location:         time.UTC,
	}
}

// Diagnostics counts rows removed at each cleaning stage.
type Diagnostics struct {
	RawRows            int `json:"raw_rows"`
	DroppedPlaceholder int `json:"dropped_placeholder"`
	DroppedBlankUser   int `json:"dropped_blank_user"`
	DroppedZeroDate    int `json:"dropped_zero_date"`
	DroppedBadPage     int `json:"dropped_bad_page"`
	DroppedUnparseable int `json:"dropped_unparseable"`
	Kept               int `json:"kept"`
}

// Dropped returns the total number of excluded rows.
func (d Diagnostics) Dropped() int {
	return d.DroppedPlaceholder + d.DroppedBlankUser + d.DroppedZeroDate + d.DroppedBadPage + d.DroppedUnparseable
}

// LoadFile reads and cleans the event export at path.
func LoadFile(ctx context.Context, path string, opts Options) ([]Event, Diagnostics, error) {
	tbl, err := tabular.ReadFile(path)
	if err != nil {
		return nil, Diagnostics{}, err
	}
	return Clean(ctx, tbl, opts)
}

// Clean filters corrupt rows, parses timestamps and returns the events
// sorted by (user id, timestamp) with ties in input order. Row-level
// problems are counted, never returned as errors; a missing column is.
func Clean(ctx context.Context, tbl *tabular.Table, opts Options) ([]Event, Diagnostics, error) {
	tsColumn := ""
	for _, c := range opts.TimestampColumns {
		if tbl.Has(c) {
			tsColumn = c
			break
		}
	}
	required := []string{opts.UserColumn, opts.PageColumn}
	if tsColumn == "" {
		required = append(required, strings.Join(opts.TimestampColumns, " | "))
	}
	if err := tbl.Require(required...); err != nil {
		return nil, Diagnostics{}, err
	}

	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	layouts := opts.Layouts
	if len(layouts) == 0 {
		layouts = DefaultLayouts
	}

	diag := Diagnostics{RawRows: tbl.Len()}
	out := make([]Event, 0, tbl.Len())

	for _, row := range tbl.Rows() {
		user := row.Get(opts.UserColumn)
		rawTS := row.Get(tsColumn)

		switch {
		case opts.PlaceholderUser != "" && user == opts.PlaceholderUser:
			diag.DroppedPlaceholder++
			continue
		case user == "":
			diag.DroppedBlankUser++
			continue
		case opts.ZeroDatePrefix != "" && strings.HasPrefix(rawTS, opts.ZeroDatePrefix):
			diag.DroppedZeroDate++
			continue
		}

		page, err := pageid.Parse(row.Get(opts.PageColumn))
		if err != nil {
			diag.DroppedBadPage++
			slog.DebugContext(ctx, "drop event row", "row", row.Line, "reason", "page", "err", err)
			continue
		}

		ts, err := parseTimestamp(rawTS, layouts, loc)
		if err != nil {
			diag.DroppedUnparseable++
			slog.DebugContext(ctx, "drop event row", "row", row.Line, "reason", "timestamp", "value", rawTS)
			continue
		}

		out = append(out, Event{
			UserID:    user,
			Page:      page,
			Timestamp: ts,
			Row:       row.Line,
		})
	}

	slices.SortStableFunc(out, Compare)
	diag.Kept = len(out)
	return out, diag, nil
}

func parseTimestamp(raw string, layouts []string, loc *time.Location) (time.Time, error) {
	if raw == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			if t.Year() <= 1 {
				return time.Time{}, fmt.Errorf("zero date %q", raw)
			}
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", raw)
}
