package archive

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestArchive(t *testing.T) *Archive {
	t.Helper()
	a, err := Open(filepath.Join(t.TempDir(), "archive.db"))
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a
}

func TestRecordAndSearch(t *testing.T) {
	a := newTestArchive(t)

	now := time.Now()
	require.NoError(t, a.Record("conv-1", "user", "What is the capital of France?", now))
	require.NoError(t, a.Record("conv-1", "assistant", "The capital of France is Paris.", now.Add(time.Second)))
	require.NoError(t, a.Record("conv-2", "user", "Write a haiku", now.Add(2*time.Second)))

	matches, err := a.Search("france")
	require.NoError(t, err)
	require.Len(t, matches, 2)
	// Newest first.
	require.Equal(t, "assistant", matches[0].Role)
	require.Equal(t, "conv-1", matches[0].ConversationID)

	matches, err = a.Search("haiku")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	require.Equal(t, "conv-2", matches[0].ConversationID)
}

func TestSearchNoMatches(t *testing.T) {
	a := newTestArchive(t)
	require.NoError(t, a.Record("conv-1", "user", "hello", time.Now()))

	matches, err := a.Search("zebra")
	require.NoError(t, err)
	require.Empty(t, matches)
}

func TestPurgeConversation(t *testing.T) {
	a := newTestArchive(t)

	now := time.Now()
	require.NoError(t, a.Record("conv-1", "user", "keep me out", now))
	require.NoError(t, a.Record("conv-2", "user", "keep me in", now))

	require.NoError(t, a.PurgeConversation("conv-1"))

	matches, err := a.Search("keep me")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	require.Equal(t, "conv-2", matches[0].ConversationID)
}

func TestPurgeAll(t *testing.T) {
	a := newTestArchive(t)

	require.NoError(t, a.Record("conv-1", "user", "one", time.Now()))
	require.NoError(t, a.Record("conv-2", "user", "two", time.Now()))
	require.NoError(t, a.PurgeAll())

	matches, err := a.Search("")
	require.NoError(t, err)
	require.Empty(t, matches)
}
