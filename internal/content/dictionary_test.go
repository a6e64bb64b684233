package content

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BrennanTM/vacraft/internal/pageid"
	"github.com/BrennanTM/vacraft/internal/tabular"
)

const header = "Page_ID,Title,Section,Lesson,Lesson_Number,Page_in_Lesson,Total_Pages_in_Lesson,Is_First_Page,Is_Last_Page,Content_Type\n"

func load(t *testing.T, body string) (*Dictionary, error) {
	t.Helper()
	tbl, err := tabular.Read("dictionary", strings.NewReader(header+body))
	require.NoError(t, err)
	return FromTable(tbl)
}

func TestFromTable(t *testing.T) {
	d, err := load(t, `1,Welcome,Intro,Lesson 1,1,1,2,True,False,text
2,Summary,Intro,Lesson 1,1,2,2,False,True,summary
3.0,Breathing,Coping,Lesson 2,2.0,1,1,1,1,video
menu,Menu,Intro,Lesson 1,1,1,1,True,True,nav
`)
	require.NoError(t, err)

	assert.Equal(t, 4, d.Len())
	assert.Equal(t, 2, d.TotalLessons())
	assert.Equal(t, []string{"Lesson 1", "Lesson 2"}, d.Lessons())
	assert.Equal(t, []string{"Coping", "Intro"}, d.Sections())

	e := d.Lookup(pageid.Numeric(3))
	require.NotNil(t, e)
	assert.Equal(t, "Breathing", e.Title)
	assert.Equal(t, "Coping", e.SectionName())
	require.NotNil(t, e.LessonNumber)
	assert.Equal(t, 2, *e.LessonNumber)
	assert.True(t, e.IsFirstPage)
	assert.True(t, e.IsLastPage)

	assert.Nil(t, d.Lookup(pageid.Numeric(99)))
}

func TestMenuEntryHasNullContent(t *testing.T) {
	d, err := load(t, "menu,Menu,Intro,Lesson 1,1,1,1,True,True,nav\n")
	require.NoError(t, err)

	e := d.Lookup(pageid.Menu())
	require.NotNil(t, e)
	assert.Nil(t, e.Section)
	assert.Nil(t, e.Lesson)
	assert.Nil(t, e.LessonNumber)
	assert.False(t, e.IsLastPage)
	assert.Equal(t, 0, d.TotalLessons(), "menu must not contribute a lesson")
}

func TestNullCells(t *testing.T) {
	d, err := load(t, "5,Orphan,,,,,,,,\n")
	require.NoError(t, err)
	e := d.Lookup(pageid.Numeric(5))
	require.NotNil(t, e)
	assert.Nil(t, e.Section)
	assert.Nil(t, e.Lesson)
	assert.Nil(t, e.PageInLesson)
	assert.False(t, e.IsFirstPage)
}

func TestDuplicatePageID(t *testing.T) {
	_, err := load(t, "1,A,S,L,1,1,1,True,True,text\n1.0,B,S,L,1,1,1,True,True,text\n")
	var dup *DuplicatePageError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, pageid.Numeric(1), dup.PageID)
	assert.Equal(t, [2]int{1, 2}, dup.Lines)
}

func TestMissingColumns(t *testing.T) {
	tbl, err := tabular.Read("dictionary", strings.NewReader("Page_ID,Title\n1,A\n"))
	require.NoError(t, err)
	_, err = FromTable(tbl)
	var se *tabular.SchemaError
	require.True(t, errors.As(err, &se))
	assert.Contains(t, se.Missing, ColIsLastPage)
}

func TestBadIntegerCell(t *testing.T) {
	_, err := load(t, "1,A,S,L,one,1,1,True,True,text\n")
	require.Error(t, err)
	assert.Contains(t, err.Error(), ColLessonNumber)
}

func TestLessonCountFollowsDictionary(t *testing.T) {
	one, err := New([]Entry{{PageID: pageid.Numeric(1), Lesson: ptr("A")}})
	require.NoError(t, err)
	three, err := New([]Entry{
		{PageID: pageid.Numeric(1), Lesson: ptr("A")},
		{PageID: pageid.Numeric(2), Lesson: ptr("B")},
		{PageID: pageid.Numeric(3), Lesson: ptr("C")},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, one.TotalLessons())
	assert.Equal(t, 3, three.TotalLessons())
}

func ptr(s string) *string { return &s }
