package state

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestState(t *testing.T) *State {
	t.Helper()

	s, err := LoadAt(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	return s
}

func TestLastSync_DefaultsToZero(t *testing.T) {
	s := openTestState(t)

	ts, err := s.LastSync()
	require.NoError(t, err)
	assert.Equal(t, int64(0), ts, "fresh database means no sync has ever run")
}

func TestLastSync_RoundTrip(t *testing.T) {
	s := openTestState(t)

	require.NoError(t, s.SetLastSync(1700000000123))

	ts, err := s.LastSync()
	require.NoError(t, err)
	assert.Equal(t, int64(1700000000123), ts)
}

func TestRefreshToken_RoundTrip(t *testing.T) {
	s := openTestState(t)

	assert.Empty(t, s.RefreshToken())

	require.NoError(t, s.SetRefreshToken("1//rotated-token"))
	assert.Equal(t, "1//rotated-token", s.RefreshToken())
}

func TestFileIDs_RoundTrip(t *testing.T) {
	s := openTestState(t)

	ids, err := s.FileIDs()
	require.NoError(t, err)
	assert.Empty(t, ids)

	require.NoError(t, s.SetFileID("notes/a.md", "file-1"))
	require.NoError(t, s.SetFileID("notes/b.md", "file-2"))

	ids, err = s.FileIDs()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"notes/a.md": "file-1",
		"notes/b.md": "file-2",
	}, ids)
}

func TestFileIDs_Overwrite(t *testing.T) {
	s := openTestState(t)

	require.NoError(t, s.SetFileID("a.md", "old"))
	require.NoError(t, s.SetFileID("a.md", "new"))

	ids, err := s.FileIDs()
	require.NoError(t, err)
	assert.Equal(t, "new", ids["a.md"])
}

func TestDeleteFileID(t *testing.T) {
	s := openTestState(t)

	require.NoError(t, s.SetFileID("a.md", "id"))
	require.NoError(t, s.DeleteFileID("a.md"))

	ids, err := s.FileIDs()
	require.NoError(t, err)
	assert.Empty(t, ids)

	// Deleting an absent path is not an error.
	assert.NoError(t, s.DeleteFileID("missing.md"))
}

func TestPendingRetries(t *testing.T) {
	s := openTestState(t)

	pending, err := s.PendingRetries()
	require.NoError(t, err)
	assert.Empty(t, pending)

	require.NoError(t, s.AddPendingRetry("notes/a.md"))
	require.NoError(t, s.AddPendingRetry("notes/b.md"))

	pending, err = s.PendingRetries()
	require.NoError(t, err)
	assert.Len(t, pending, 2)
	assert.Contains(t, pending, "notes/a.md")

	require.NoError(t, s.ClearPendingRetry("notes/a.md"))

	pending, err = s.PendingRetries()
	require.NoError(t, err)
	assert.Len(t, pending, 1)
	assert.NotContains(t, pending, "notes/a.md")
}

func TestState_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")

	s, err := LoadAt(path)
	require.NoError(t, err)
	require.NoError(t, s.SetLastSync(42))
	require.NoError(t, s.SetFileID("a.md", "id-a"))
	require.NoError(t, s.AddPendingRetry("b.md"))
	require.NoError(t, s.Close())

	s, err = LoadAt(path)
	require.NoError(t, err)
	defer s.Close()

	ts, err := s.LastSync()
	require.NoError(t, err)
	assert.Equal(t, int64(42), ts)

	ids, err := s.FileIDs()
	require.NoError(t, err)
	assert.Equal(t, "id-a", ids["a.md"])

	pending, err := s.PendingRetries()
	require.NoError(t, err)
	assert.Contains(t, pending, "b.md")
}
