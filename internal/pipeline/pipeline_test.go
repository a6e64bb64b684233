package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BrennanTM/vacraft/internal/tabular"
)

const dictionaryCSV = `Page_ID,Title,Section,Lesson,Lesson_Number,Page_in_Lesson,Total_Pages_in_Lesson,Is_First_Page,Is_Last_Page,Content_Type
menu,Menu,,,,,,False,False,navigation
1,Welcome,Intro,Lesson 1,1,1,2,True,False,lesson
2,Wrap up,Intro,Lesson 1,1,2,2,False,True,lesson
3,Basics,Core,Lesson 2,2,1,1,True,True,lesson
`

const eventsCSV = `UserId,Page,Date / Time
UserName,Page,Date / Time
42,1,2024-03-01 09:00:00
42,2,2024-03-01 09:10:00
42,3,2024-03-01 10:30:00
7,menu,2024-03-02 08:00:00
7,1,0000-00-00 00:00:00
7,1,2024-03-02 08:01:00
8,99,2024-03-02 12:00:00
`

func writeInputs(t *testing.T, events, dictionary string) (string, string) {
	t.Helper()
	dir := t.TempDir()
	ev := filepath.Join(dir, "events.csv")
	dict := filepath.Join(dir, "dictionary.csv")
	require.NoError(t, os.WriteFile(ev, []byte(events), 0o644))
	require.NoError(t, os.WriteFile(dict, []byte(dictionary), 0o644))
	return ev, dict
}

func fixedOptions() Options {
	opts := DefaultOptions()
	opts.Now = func() time.Time { return time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC) }
	return opts
}

func TestRun(t *testing.T) {
	ev, dict := writeInputs(t, eventsCSV, dictionaryCSV)

	res, err := Run(context.Background(), ev, dict, fixedOptions())
	require.NoError(t, err)

	assert.Equal(t, 8, res.Load.RawRows)
	assert.Equal(t, 1, res.Load.DroppedPlaceholder)
	assert.Equal(t, 1, res.Load.DroppedZeroDate)
	assert.Equal(t, 6, res.Load.Kept)

	require.Len(t, res.Users, 3)
	assert.Equal(t, []string{"7", "8", "42"}, []string{res.Users[0].UserID, res.Users[1].UserID, res.Users[2].UserID})
	_, ok := res.User("UserName")
	assert.False(t, ok, "placeholder user never reaches metrics")

	u, ok := res.User("42")
	require.True(t, ok)
	assert.Equal(t, 2, u.TotalSessions)
	assert.Equal(t, 600.0, u.TotalDwellSeconds)
	assert.Equal(t, 100.0, u.CompletionRate)

	assert.Equal(t, []string{"99"}, res.Join.UnmappedPages)
	assert.Equal(t, 1, res.Join.MenuViews)
	assert.Equal(t, 1800.0, res.TimeoutSeconds)
	assert.Len(t, res.Sessions, 4)
}

func TestRunIsIdempotent(t *testing.T) {
	ev, dict := writeInputs(t, eventsCSV, dictionaryCSV)

	a, err := Run(context.Background(), ev, dict, fixedOptions())
	require.NoError(t, err)
	b, err := Run(context.Background(), ev, dict, fixedOptions())
	require.NoError(t, err)

	ja, err := json.MarshalIndent(a, "", "  ")
	require.NoError(t, err)
	jb, err := json.MarshalIndent(b, "", "  ")
	require.NoError(t, err)
	assert.Equal(t, ja, jb)
}

func TestRunTimeoutChangesSessions(t *testing.T) {
	ev, dict := writeInputs(t, eventsCSV, dictionaryCSV)
	opts := fixedOptions()
	opts.Timeout = 2 * time.Hour

	res, err := Run(context.Background(), ev, dict, opts)
	require.NoError(t, err)
	u, _ := res.User("42")
	assert.Equal(t, 1, u.TotalSessions)
}

func TestRunMissingColumnAborts(t *testing.T) {
	ev, dict := writeInputs(t, "UserId,Page\n1,1\n", dictionaryCSV)

	_, err := Run(context.Background(), ev, dict, fixedOptions())
	var schemaErr *tabular.SchemaError
	require.True(t, errors.As(err, &schemaErr), "got %v", err)
	assert.Equal(t, []string{"Date / Time | DateTime"}, schemaErr.Missing)
}

func TestRunMissingFile(t *testing.T) {
	_, dict := writeInputs(t, eventsCSV, dictionaryCSV)
	_, err := Run(context.Background(), filepath.Join(t.TempDir(), "nope.csv"), dict, fixedOptions())
	assert.Error(t, err)
}
