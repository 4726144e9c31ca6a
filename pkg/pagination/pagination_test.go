package pagination

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorRoundTrip(t *testing.T) {
	in := Cursor{CreatedAt: time.Date(2026, 10, 16, 9, 30, 0, 123456789, time.UTC), ID: uuid.New()}
	encoded := EncodeCursor(in)
	assert.NotContains(t, encoded, "+")
	assert.NotContains(t, encoded, "/")

	out, err := ParseCursor(encoded)
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.True(t, in.CreatedAt.Equal(out.CreatedAt))
	assert.Equal(t, in.ID, out.ID)
}

func TestParseCursorRejectsGarbage(t *testing.T) {
	got, err := ParseCursor("  ")
	require.NoError(t, err)
	assert.Nil(t, got)

	for _, bad := range []string{"!!!", "bm9waXBl", "MjAyNi0xMC0xNnxub3QtYS11dWlk"} {
		_, err := ParseCursor(bad)
		assert.ErrorIs(t, err, ErrInvalidCursor, bad)
	}
}

func TestNormalizeLimit(t *testing.T) {
	assert.Equal(t, DefaultLimit, NormalizeLimit(0))
	assert.Equal(t, DefaultLimit, NormalizeLimit(-3))
	assert.Equal(t, 10, NormalizeLimit(10))
	assert.Equal(t, MaxLimit, NormalizeLimit(MaxLimit+1))
	assert.Equal(t, 11, FetchLimit(10))
}

func TestSplitReturnsCursorOfLastServedRow(t *testing.T) {
	base := time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC)
	rows := make([]Cursor, 4)
	for i := range rows {
		rows[i] = Cursor{CreatedAt: base.Add(-time.Duration(i) * time.Minute), ID: uuid.New()}
	}
	key := func(c Cursor) Cursor { return c }

	page, next := Split(rows, 3, key)
	assert.Len(t, page, 3)
	require.NotNil(t, next)
	assert.Equal(t, rows[2], *next)

	page, next = Split(rows[:3], 3, key)
	assert.Len(t, page, 3)
	assert.Nil(t, next)
}
