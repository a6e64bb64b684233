package pageid

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		wantKind  Kind
		wantCanon string
		wantErr   bool
	}{
		{"integer", "42", KindNumeric, "42", false},
		{"padded integer", "  7 ", KindNumeric, "7", false},
		{"integral float", "12.0", KindNumeric, "12", false},
		{"menu", "menu", KindMenu, "menu", false},
		{"menu upper", "MENU", KindMenu, "menu", false},
		{"fractional float is a label", "1.5", KindLabel, "1.5", false},
		{"label", "intro-video", KindLabel, "intro-video", false},
		{"empty", "   ", KindInvalid, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := Parse(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantKind, id.Kind())
			assert.Equal(t, tt.wantCanon, id.String())
		})
	}
}

func TestEqualityIsOnCanonicalForm(t *testing.T) {
	assert.Equal(t, MustParse("12"), MustParse("12.0"))
	assert.Equal(t, MustParse("menu"), Menu())
	assert.NotEqual(t, MustParse("12"), Label("12a"))
}

func TestNumber(t *testing.T) {
	n, ok := Numeric(9).Number()
	assert.True(t, ok)
	assert.Equal(t, 9, n)

	_, ok = Menu().Number()
	assert.False(t, ok, "menu has no numeric form")
}

func TestCompareOrdersNumericThenLabelThenMenu(t *testing.T) {
	ids := []ID{Menu(), Label("b"), Numeric(10), Label("a"), Numeric(2)}
	sort.Slice(ids, func(i, j int) bool { return Compare(ids[i], ids[j]) < 0 })

	got := make([]string, len(ids))
	for i, id := range ids {
		got[i] = id.String()
	}
	assert.Equal(t, []string{"2", "10", "a", "b", "menu"}, got)
}

func TestTextRoundTrip(t *testing.T) {
	var id ID
	require.NoError(t, id.UnmarshalText([]byte("menu")))
	assert.True(t, id.IsMenu())

	b, err := Numeric(5).MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "5", string(b))
}
