// Package content holds the Content Dictionary: static course-structure
// metadata keyed by page identifier.
package content

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/BrennanTM/vacraft/internal/pageid"
	"github.com/BrennanTM/vacraft/internal/tabular"
)

// Dictionary column names.
const (
	ColPageID             = "Page_ID"
	ColTitle              = "Title"
	ColSection            = "Section"
	ColLesson             = "Lesson"
	ColLessonNumber       = "Lesson_Number"
	ColPageInLesson       = "Page_in_Lesson"
	ColTotalPagesInLesson = "Total_Pages_in_Lesson"
	ColIsFirstPage        = "Is_First_Page"
	ColIsLastPage         = "Is_Last_Page"
	ColContentType        = "Content_Type"
)

// Columns lists every required dictionary column.
var Columns = []string{
	ColPageID, ColTitle, ColSection, ColLesson, ColLessonNumber,
	ColPageInLesson, ColTotalPagesInLesson, ColIsFirstPage, ColIsLastPage, ColContentType,
}

// Entry is the metadata for one page. Nil pointers are null cells.
type Entry struct {
	PageID             pageid.ID `json:"page_id"`
	Title              string    `json:"title"`
	Section            *string   `json:"section"`
	Lesson             *string   `json:"lesson"`
	LessonNumber       *int      `json:"lesson_number"`
	PageInLesson       *int      `json:"page_in_lesson"`
	TotalPagesInLesson *int      `json:"total_pages_in_lesson"`
	IsFirstPage        bool      `json:"is_first_page"`
	IsLastPage         bool      `json:"is_last_page"`
	ContentType        string    `json:"content_type"`
}

// SectionName returns the section or "" when null.
func (e *Entry) SectionName() string {
	if e == nil || e.Section == nil {
		return ""
	}
	return *e.Section
}

// LessonName returns the lesson or "" when null.
func (e *Entry) LessonName() string {
	if e == nil || e.Lesson == nil {
		return ""
	}
	return *e.Lesson
}

// DuplicatePageError reports a page id defined more than once.
type DuplicatePageError struct {
	PageID pageid.ID
	Lines  [2]int
}

func (e *DuplicatePageError) Error() string {
	return fmt.Sprintf("duplicate dictionary page id %q (rows %d and %d)", e.PageID, e.Lines[0], e.Lines[1])
}

// Dictionary is an immutable page lookup table. It is safe for concurrent reads.
type Dictionary struct {
	entries  []Entry
	byID     map[pageid.ID]int
	lessons  []string
	sections []string
}

// New builds a Dictionary from entries. Page ids must be unique.
func New(entries []Entry) (*Dictionary, error) {
	d := &Dictionary{
		entries: make([]Entry, len(entries)),
		byID:    make(map[pageid.ID]int, len(entries)),
	}
	copy(d.entries, entries)

	lessons := map[string]struct{}{}
	sections := map[string]struct{}{}
	for i := range d.entries {
		e := &d.entries[i]
		if e.PageID.IsMenu() {
			*e = Entry{PageID: e.PageID, Title: e.Title}
		}
		if prev, dup := d.byID[e.PageID]; dup {
			return nil, &DuplicatePageError{PageID: e.PageID, Lines: [2]int{prev + 1, i + 1}}
		}
		d.byID[e.PageID] = i
		if e.Lesson != nil {
			lessons[*e.Lesson] = struct{}{}
		}
		if e.Section != nil {
			sections[*e.Section] = struct{}{}
		}
	}
	d.lessons = sortedKeys(lessons)
	d.sections = sortedKeys(sections)
	return d, nil
}

// LoadFile reads a dictionary CSV export.
func LoadFile(path string) (*Dictionary, error) {
	tbl, err := tabular.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromTable(tbl)
}

// FromTable parses a dictionary table. Every column in Columns is required.
func FromTable(tbl *tabular.Table) (*Dictionary, error) {
	if err := tbl.Require(Columns...); err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, tbl.Len())
	for _, row := range tbl.Rows() {
		id, err := pageid.Parse(row.Get(ColPageID))
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", tbl.Name, row.Line, err)
		}
		e := Entry{
			PageID:      id,
			Title:       row.Get(ColTitle),
			Section:     nullString(row.Get(ColSection)),
			Lesson:      nullString(row.Get(ColLesson)),
			IsFirstPage: parseBool(row.Get(ColIsFirstPage)),
			IsLastPage:  parseBool(row.Get(ColIsLastPage)),
			ContentType: row.Get(ColContentType),
		}
		if e.LessonNumber, err = nullInt(row.Get(ColLessonNumber)); err != nil {
			return nil, fmt.Errorf("%s row %d %s: %w", tbl.Name, row.Line, ColLessonNumber, err)
		}
		if e.PageInLesson, err = nullInt(row.Get(ColPageInLesson)); err != nil {
			return nil, fmt.Errorf("%s row %d %s: %w", tbl.Name, row.Line, ColPageInLesson, err)
		}
		if e.TotalPagesInLesson, err = nullInt(row.Get(ColTotalPagesInLesson)); err != nil {
			return nil, fmt.Errorf("%s row %d %s: %w", tbl.Name, row.Line, ColTotalPagesInLesson, err)
		}
		entries = append(entries, e)
	}
	return New(entries)
}

// Lookup returns the entry for id, or nil.
func (d *Dictionary) Lookup(id pageid.ID) *Entry {
	i, ok := d.byID[id]
	if !ok {
		return nil
	}
	return &d.entries[i]
}

// Len returns the number of pages.
func (d *Dictionary) Len() int { return len(d.entries) }

// Entries returns a copy of every entry in input order.
func (d *Dictionary) Entries() []Entry {
	out := make([]Entry, len(d.entries))
	copy(out, d.entries)
	return out
}

// Lessons returns the distinct lesson names, sorted.
func (d *Dictionary) Lessons() []string { return append([]string(nil), d.lessons...) }

// TotalLessons is the live denominator for completion rates.
func (d *Dictionary) TotalLessons() int { return len(d.lessons) }

// Sections returns the distinct section names, sorted.
func (d *Dictionary) Sections() []string { return append([]string(nil), d.sections...) }

// TotalSections returns the number of distinct sections.
func (d *Dictionary) TotalSections() int { return len(d.sections) }

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func nullString(s string) *string {
	if s == "" || strings.EqualFold(s, "nan") || strings.EqualFold(s, "null") {
		return nil
	}
	return &s
}

func nullInt(s string) (*int, error) {
	if nullString(s) == nil {
		return nil, nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		return &n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != float64(int(f)) {
		return nil, fmt.Errorf("not an integer: %q", s)
	}
	n := int(f)
	return &n, nil
}

func parseBool(s string) bool {
	switch strings.ToLower(s) {
	case "true", "t", "yes", "y", "1", "1.0":
		return true
	}
	return false
}
