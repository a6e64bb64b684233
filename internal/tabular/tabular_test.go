package tabular

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadAndGet(t *testing.T) {
	tbl, err := Read("events", strings.NewReader("\uFEFFUserId, Page ,Date / Time\n42,7,2024-01-01 10:00:00\n43,menu\n"))
	require.NoError(t, err)
	require.Equal(t, 2, tbl.Len())

	rows := tbl.Rows()
	assert.Equal(t, 1, rows[0].Line)
	assert.Equal(t, "42", rows[0].Get("UserId"))
	assert.Equal(t, "7", rows[0].Get("Page"))
	assert.Equal(t, "2024-01-01 10:00:00", rows[0].Get("Date / Time"))

	// Short rows yield empty cells instead of panicking.
	assert.Equal(t, "", rows[1].Get("Date / Time"))
	assert.Equal(t, "", rows[1].Get("NoSuchColumn"))
}

func TestRequireReportsEveryMissingColumn(t *testing.T) {
	tbl, err := Read("dictionary", strings.NewReader("Page_ID,Title\n1,Welcome\n"))
	require.NoError(t, err)

	err = tbl.Require("Page_ID", "Section", "Lesson")
	require.Error(t, err)

	var se *SchemaError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "dictionary", se.Table)
	assert.Equal(t, []string{"Section", "Lesson"}, se.Missing)
}

func TestReadEmptyInputIsSchemaError(t *testing.T) {
	_, err := Read("events", strings.NewReader(""))
	var se *SchemaError
	require.True(t, errors.As(err, &se))
}
