package billing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimestampFormats(t *testing.T) {
	want := time.Date(2025, 1, 1, 12, 30, 0, 0, time.UTC)

	root, err := ParsePayload([]byte(`{
		"seconds": 1735734600,
		"millis": 1735734600000,
		"seconds_text": "1735734600",
		"iso": "2025-01-01T12:30:00Z",
		"iso_offset": "2025-01-01T09:30:00-03:00",
		"sql": "2025-01-01 12:30:00",
		"date": "2025-01-01",
		"garbage": "next tuesday",
		"zero": 0
	}`))
	require.NoError(t, err)

	for _, key := range []string{"seconds", "millis", "seconds_text", "iso", "iso_offset", "sql"} {
		got := parseTimestamp(root.Get(key))
		require.NotNil(t, got, key)
		assert.True(t, want.Equal(*got), "%s: got %s", key, got)
		assert.Equal(t, time.UTC, got.Location(), key)
	}

	date := parseTimestamp(root.Get("date"))
	require.NotNil(t, date)
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), *date)

	assert.Nil(t, parseTimestamp(root.Get("garbage")))
	assert.Nil(t, parseTimestamp(root.Get("zero")))
	assert.Nil(t, parseTimestamp(root.Get("missing")))
}

func TestFirstTimestampSkipsUnusablePaths(t *testing.T) {
	root, err := ParsePayload([]byte(`{"a":"soon","b":{"c":"2025-02-03"}}`))
	require.NoError(t, err)

	got := firstTimestamp(root, []string{"missing", "a", "b.c"})
	require.NotNil(t, got)
	assert.Equal(t, time.Date(2025, 2, 3, 0, 0, 0, 0, time.UTC), *got)
}
