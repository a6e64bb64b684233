package pageid

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind distinguishes the variants of a page identifier.
type Kind int

const (
	// KindInvalid is the zero value; it never appears on a parsed ID.
	KindInvalid Kind = iota
	// KindNumeric is a course page with a numeric identifier.
	KindNumeric
	// KindLabel is a non-numeric, non-menu identifier.
	KindLabel
	// KindMenu is the navigation menu; it is not part of the content sequence.
	KindMenu
)

// MenuToken is the reserved raw value for navigation menu views.
const MenuToken = "menu"

// ID is a page identifier: Numeric(n), Menu, or Label(s).
// Compare IDs with == or Compare, never via their raw input text.
type ID struct {
	kind  Kind
	num   int
	label string
}

// Numeric returns the numeric page identifier n.
func Numeric(n int) ID { return ID{kind: KindNumeric, num: n} }

// Menu returns the navigation menu identifier.
func Menu() ID { return ID{kind: KindMenu} }

// Label returns a free-form identifier. Callers should prefer Parse, which
// promotes numeric-looking and menu labels to their proper variant.
func Label(s string) ID { return ID{kind: KindLabel, label: s} }

// Parse converts a raw cell into an ID. Integral float literals such as
// "12.0" (spreadsheet exports) are treated as numeric.
func Parse(raw string) (ID, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ID{}, fmt.Errorf("empty page id")
	}
	if strings.EqualFold(s, MenuToken) {
		return Menu(), nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		return Numeric(n), nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f == math.Trunc(f) && !math.IsInf(f, 0) {
		if f >= math.MinInt32 && f <= math.MaxInt32 {
			return Numeric(int(f)), nil
		}
	}
	return Label(s), nil
}

// MustParse is like Parse but panics on error. Intended for tests and literals.
func MustParse(raw string) ID {
	id, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return id
}

// Kind returns the variant of the ID.
func (id ID) Kind() Kind { return id.kind }

// IsValid reports whether the ID was produced by a constructor.
func (id ID) IsValid() bool { return id.kind != KindInvalid }

// IsMenu reports whether the ID is the navigation menu.
func (id ID) IsMenu() bool { return id.kind == KindMenu }

// Number returns the numeric value and true for Numeric IDs.
func (id ID) Number() (int, bool) {
	if id.kind != KindNumeric {
		return 0, false
	}
	return id.num, true
}

// String returns the canonical join key.
func (id ID) String() string {
	switch id.kind {
	case KindNumeric:
		return strconv.Itoa(id.num)
	case KindMenu:
		return MenuToken
	case KindLabel:
		return id.label
	default:
		return ""
	}
}

// Compare orders IDs: numeric by value, then labels lexically, then menu.
func Compare(a, b ID) int {
	if a.kind != b.kind {
		return rank(a.kind) - rank(b.kind)
	}
	switch a.kind {
	case KindNumeric:
		switch {
		case a.num < b.num:
			return -1
		case a.num > b.num:
			return 1
		}
		return 0
	case KindLabel:
		return strings.Compare(a.label, b.label)
	}
	return 0
}

func rank(k Kind) int {
	switch k {
	case KindNumeric:
		return 1
	case KindLabel:
		return 2
	case KindMenu:
		return 3
	}
	return 0
}

// MarshalText implements encoding.TextMarshaler using the canonical form.
func (id ID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *ID) UnmarshalText(b []byte) error {
	parsed, err := Parse(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
