package oplog

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jfloresavalos/InvBF/internal/storage"
)

func TestLog_NewestFirstAndBounded(t *testing.T) {
	store, err := storage.Open(t.TempDir(), 0)
	require.NoError(t, err)
	l := Open(store, "Reader 1")
	l.now = func() time.Time { return time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC) }

	for i := 0; i < MaxEntries+25; i++ {
		l.Add(TypeInfo, fmt.Sprintf("entry %d", i))
	}
	assert.Equal(t, MaxEntries, l.Len())

	newest := l.Entries(1)
	require.Len(t, newest, 1)
	assert.Equal(t, fmt.Sprintf("entry %d", MaxEntries+24), newest[0].Message)
	assert.Equal(t, "04:05:06", newest[0].Time)
	assert.Equal(t, "03/02/2026", newest[0].Date)
	assert.Equal(t, "Reader 1", newest[0].Device)

	assert.Len(t, l.PushSlice(), PushEntries)
	assert.Len(t, l.Entries(0), MaxEntries)
}

func TestLog_PersistsAcrossOpen(t *testing.T) {
	store, err := storage.Open(t.TempDir(), 0)
	require.NoError(t, err)
	l := Open(store, "Reader 1")
	l.Add(TypeSync, "pushed 3")
	l.SetDevice("Reader 2")
	l.Add(TypeError, "push failed")

	reopened := Open(store, "Reader 2")
	entries := reopened.Entries(0)
	require.Len(t, entries, 2)
	assert.Equal(t, TypeError, entries[0].Type)
	assert.Equal(t, "Reader 2", entries[0].Device)
	assert.Equal(t, "Reader 1", entries[1].Device)
}

func TestLog_CorruptStartsEmpty(t *testing.T) {
	store, err := storage.Open(t.TempDir(), 0)
	require.NoError(t, err)
	require.NoError(t, store.PutString(storage.KeyOpLog, "{oops"))

	l := Open(store, "d")
	assert.Equal(t, 0, l.Len())
	l.Add(TypeInfo, "fresh")
	assert.Equal(t, 1, l.Len())
}
