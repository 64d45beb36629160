package sync

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/alexjbarnes/drive-sync/internal/drive"
	"github.com/alexjbarnes/drive-sync/internal/vault"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// fakeStore is an in-memory RemoteStore that records call counts and
// supports per-name failure injection.
type fakeStore struct {
	// folders: parentID → created/listed folder children.
	folders map[string][]drive.Object
	// files: fileID → content, for assertions.
	files map[string][]byte

	nextID int

	listCalls         int
	createFolderCalls int
	createFileCalls   int
	updateFileCalls   int

	// failCreateFile / failUpdateFile inject an error for a file name.
	failCreateFile map[string]error
	failUpdateFile map[string]error
	// failList injects an error on every ListChildren call.
	failList error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		folders:        make(map[string][]drive.Object),
		files:          make(map[string][]byte),
		failCreateFile: make(map[string]error),
		failUpdateFile: make(map[string]error),
	}
}

func (s *fakeStore) mintID(kind string) string {
	s.nextID++

	return fmt.Sprintf("%s-%d", kind, s.nextID)
}

func (s *fakeStore) ListChildren(_ context.Context, parentID, name string, foldersOnly bool) ([]drive.Object, error) {
	s.listCalls++

	if s.failList != nil {
		return nil, s.failList
	}

	_ = foldersOnly // the fake only tracks folders

	var result []drive.Object

	for _, c := range s.folders[parentID] {
		if name == "" || c.Name == name {
			result = append(result, c)
		}
	}

	return result, nil
}

func (s *fakeStore) CreateFolder(_ context.Context, parentID, name string) (string, error) {
	s.createFolderCalls++

	id := s.mintID("folder")
	s.folders[parentID] = append(s.folders[parentID], drive.Object{ID: id, Name: name})

	return id, nil
}

func (s *fakeStore) CreateFile(_ context.Context, _, name, _ string, content []byte) (string, error) {
	s.createFileCalls++

	if err := s.failCreateFile[name]; err != nil {
		return "", err
	}

	id := s.mintID("file")
	s.files[id] = content

	return id, nil
}

func (s *fakeStore) UpdateFile(_ context.Context, id, name, _ string, content []byte) (string, error) {
	s.updateFileCalls++

	if err := s.failUpdateFile[name]; err != nil {
		return "", err
	}

	s.files[id] = content

	return id, nil
}

// resetCounters zeroes the per-test call counters between passes.
func (s *fakeStore) resetCounters() {
	s.listCalls = 0
	s.createFolderCalls = 0
	s.createFileCalls = 0
	s.updateFileCalls = 0
}

// memState is an in-memory StateStore.
type memState struct {
	lastSync int64
	fileIDs  map[string]string
	pending  map[string]struct{}
}

func newMemState() *memState {
	return &memState{
		fileIDs: make(map[string]string),
		pending: make(map[string]struct{}),
	}
}

func (m *memState) LastSync() (int64, error) { return m.lastSync, nil }

func (m *memState) SetLastSync(ts int64) error {
	m.lastSync = ts

	return nil
}

func (m *memState) FileIDs() (map[string]string, error) {
	out := make(map[string]string, len(m.fileIDs))
	for k, v := range m.fileIDs {
		out[k] = v
	}

	return out, nil
}

func (m *memState) SetFileID(path, id string) error {
	m.fileIDs[path] = id

	return nil
}

func (m *memState) DeleteFileID(path string) error {
	delete(m.fileIDs, path)

	return nil
}

func (m *memState) PendingRetries() (map[string]struct{}, error) {
	out := make(map[string]struct{}, len(m.pending))
	for k := range m.pending {
		out[k] = struct{}{}
	}

	return out, nil
}

func (m *memState) AddPendingRetry(path string) error {
	m.pending[path] = struct{}{}

	return nil
}

func (m *memState) ClearPendingRetry(path string) error {
	delete(m.pending, path)

	return nil
}

// testVault writes the given relative-path → content files under a temp
// dir with the given mtime and returns a scanner over it.
func testVault(t *testing.T, files map[string]string, mtime time.Time) (*vault.Scanner, string) {
	t.Helper()

	dir := t.TempDir()

	for relPath, content := range files {
		abs := filepath.Join(dir, filepath.FromSlash(relPath))
		require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0o755))
		require.NoError(t, os.WriteFile(abs, []byte(content), 0o644))
		require.NoError(t, os.Chtimes(abs, mtime, mtime))
	}

	return vault.NewScanner(dir, nil, discardLogger()), dir
}

// touch rewrites a vault file with new content and mtime.
func touch(t *testing.T, dir, relPath, content string, mtime time.Time) {
	t.Helper()

	abs := filepath.Join(dir, filepath.FromSlash(relPath))
	require.NoError(t, os.WriteFile(abs, []byte(content), 0o644))
	require.NoError(t, os.Chtimes(abs, mtime, mtime))
}

// testEngine wires an Engine over the fakes with a fixed clock.
func testEngine(store RemoteStore, st StateStore, tree FileTree, now time.Time) *Engine {
	return New(Config{
		Store:      store,
		State:      st,
		Tree:       tree,
		RootFolder: "Obsidian Vault",
		Now:        func() time.Time { return now },
	}, discardLogger())
}
