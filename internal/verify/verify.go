// Package verify checks that an analysis is reproducible from its inputs:
// file checksums, dictionary coverage of the viewed pages and a
// cross-check of a stored run against counts recomputed from raw data.
package verify

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"sort"
	"time"

	"github.com/BrennanTM/vacraft/internal/content"
	"github.com/BrennanTM/vacraft/internal/events"
	"github.com/BrennanTM/vacraft/internal/pageid"
)

// Status is the overall outcome.
type Status string

const (
	StatusPass Status = "PASS"
	StatusFail Status = "FAIL"
)

// File roles.
const (
	RoleEvents     = "events"
	RoleDictionary = "dictionary"
	RoleOutput     = "output"
)

// FileCheck describes one verified file.
type FileCheck struct {
	Path   string `json:"path"`
	Role   string `json:"role"`
	Exists bool   `json:"exists"`
	Size   int64  `json:"size,omitempty"`
	SHA256 string `json:"sha256,omitempty"`
}

// DataStats are counts recomputed from the raw inputs.
type DataStats struct {
	RawRows         int `json:"raw_rows"`
	Users           int `json:"users"`
	PageViews       int `json:"page_views"`
	DistinctPages   int `json:"distinct_pages"`
	DictionaryPages int `json:"dictionary_pages"`
}

// Coverage reports how many viewed pages the dictionary describes. Menu
// views are navigation and never count as unmapped.
type Coverage struct {
	ViewedPages   int      `json:"viewed_pages"`
	Covered       int      `json:"covered"`
	Rate          float64  `json:"rate"`
	Unmapped      []string `json:"unmapped"`
	MinPageID     *int     `json:"min_page_id"`
	MaxPageID     *int     `json:"max_page_id"`
	TitleFilled   int      `json:"title_filled"`
	SectionFilled int      `json:"section_filled"`
	LessonFilled  int      `json:"lesson_filled"`
}

// Expected are the counts a stored run reported.
type Expected struct {
	RunID     string
	Users     int
	PageViews int
}

// CrossCheck compares a stored run against the recomputed counts.
type CrossCheck struct {
	RunID             string `json:"run_id"`
	ReportedUsers     int    `json:"reported_users"`
	ActualUsers       int    `json:"actual_users"`
	ReportedPageViews int    `json:"reported_page_views"`
	ActualPageViews   int    `json:"actual_page_views"`
	Match             bool   `json:"match"`
}

// Input names what to verify.
type Input struct {
	EventsPath     string
	DictionaryPath string
	// Outputs are report files to checksum.
	Outputs []string
	Events  events.Options
	// Expected, when set, is cross-checked against the inputs.
	Expected *Expected
}

// Report is the verification result.
type Report struct {
	Timestamp time.Time   `json:"timestamp"`
	Files     []FileCheck `json:"files_verified"`
	Stats     *DataStats  `json:"data_stats,omitempty"`
	Coverage  *Coverage   `json:"coverage,omitempty"`
	Cross     *CrossCheck `json:"cross_validation,omitempty"`
	Problems  []string    `json:"problems"`
	Status    Status      `json:"verification_status"`
}

func (r *Report) fail(format string, args ...any) {
	r.Problems = append(r.Problems, fmt.Sprintf(format, args...))
}

// Run verifies in. Findings go into the report; an error is returned only
// when the context is cancelled.
func Run(ctx context.Context, in Input) (*Report, error) {
	r := &Report{Timestamp: time.Now().UTC(), Problems: []string{}}

	files := []FileCheck{
		{Path: in.EventsPath, Role: RoleEvents},
		{Path: in.DictionaryPath, Role: RoleDictionary},
	}
	for _, p := range in.Outputs {
		files = append(files, FileCheck{Path: p, Role: RoleOutput})
	}
	for i := range files {
		if err := checksum(&files[i]); err != nil {
			r.fail("checksum %s: %v", files[i].Path, err)
		}
		if !files[i].Exists {
			r.fail("%s file not found: %s", files[i].Role, files[i].Path)
		}
	}
	r.Files = files
	if !files[0].Exists || !files[1].Exists {
		return r.finish(), nil
	}

	dict, err := content.LoadFile(in.DictionaryPath)
	if err != nil {
		r.fail("load dictionary: %v", err)
		return r.finish(), nil
	}
	evs, diag, err := events.LoadFile(ctx, in.EventsPath, in.Events)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		r.fail("load events: %v", err)
		return r.finish(), nil
	}

	users := map[string]struct{}{}
	pages := map[pageid.ID]struct{}{}
	for _, e := range evs {
		users[e.UserID] = struct{}{}
		pages[e.Page] = struct{}{}
	}
	r.Stats = &DataStats{
		RawRows:         diag.RawRows,
		Users:           len(users),
		PageViews:       len(evs),
		DistinctPages:   len(pages),
		DictionaryPages: dict.Len(),
	}
	r.Coverage = coverage(pages, dict)
	if n := len(r.Coverage.Unmapped); n > 0 {
		slog.WarnContext(ctx, "pages missing from dictionary", "count", n, "rate", r.Coverage.Rate)
	}

	if exp := in.Expected; exp != nil {
		r.Cross = &CrossCheck{
			RunID:             exp.RunID,
			ReportedUsers:     exp.Users,
			ActualUsers:       r.Stats.Users,
			ReportedPageViews: exp.PageViews,
			ActualPageViews:   r.Stats.PageViews,
		}
		r.Cross.Match = r.Cross.ReportedUsers == r.Cross.ActualUsers &&
			r.Cross.ReportedPageViews == r.Cross.ActualPageViews
		if !r.Cross.Match {
			r.fail("run %s does not match inputs: users %d vs %d, page views %d vs %d",
				exp.RunID, exp.Users, r.Stats.Users, exp.PageViews, r.Stats.PageViews)
		}
	}
	return r.finish(), nil
}

func (r *Report) finish() *Report {
	r.Status = StatusPass
	if len(r.Problems) > 0 {
		r.Status = StatusFail
	}
	return r
}

func checksum(fc *FileCheck) error {
	f, err := os.Open(fc.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()

	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return err
	}
	fc.Exists = true
	fc.Size = n
	fc.SHA256 = hex.EncodeToString(h.Sum(nil))
	return nil
}

func coverage(pages map[pageid.ID]struct{}, dict *content.Dictionary) *Coverage {
	c := &Coverage{Unmapped: []string{}}
	var unmapped []pageid.ID
	for id := range pages {
		if id.IsMenu() {
			continue
		}
		c.ViewedPages++
		if dict.Lookup(id) != nil {
			c.Covered++
		} else {
			unmapped = append(unmapped, id)
		}
	}
	sort.Slice(unmapped, func(i, j int) bool { return pageid.Compare(unmapped[i], unmapped[j]) < 0 })
	for _, id := range unmapped {
		c.Unmapped = append(c.Unmapped, id.String())
	}
	if c.ViewedPages > 0 {
		c.Rate = float64(c.Covered) / float64(c.ViewedPages) * 100
	}

	for _, e := range dict.Entries() {
		if n, ok := e.PageID.Number(); ok {
			if c.MinPageID == nil || n < *c.MinPageID {
				c.MinPageID = &n
			}
			if c.MaxPageID == nil || n > *c.MaxPageID {
				c.MaxPageID = &n
			}
		}
		if e.Title != "" {
			c.TitleFilled++
		}
		if e.Section != nil {
			c.SectionFilled++
		}
		if e.Lesson != nil {
			c.LessonFilled++
		}
	}
	return c
}

// WriteJSON writes the report as indented JSON.
func WriteJSON(w io.Writer, r *Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("encode verification report: %w", err)
	}
	return nil
}
