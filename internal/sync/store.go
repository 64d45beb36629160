package sync

import (
	"context"

	"github.com/alexjbarnes/drive-sync/internal/drive"
)

// RemoteStore is the remote folder/file object API the engine drives.
// *drive.Client satisfies this interface; tests substitute fakes.
type RemoteStore interface {
	// ListChildren returns the non-trashed children of parentID,
	// filtered by exact name when name is non-empty and restricted to
	// folders when foldersOnly is set.
	ListChildren(ctx context.Context, parentID, name string, foldersOnly bool) ([]drive.Object, error)

	// CreateFolder creates a folder under parentID and returns its id.
	CreateFolder(ctx context.Context, parentID, name string) (string, error)

	// CreateFile uploads a new file under parentID and returns its id.
	CreateFile(ctx context.Context, parentID, name, mimeType string, content []byte) (string, error)

	// UpdateFile replaces an existing file's name, MIME type, and
	// content in place, returning its id.
	UpdateFile(ctx context.Context, id, name, mimeType string, content []byte) (string, error)
}

// StateStore is the durable half of sync state: the watermark, the
// file-id cache, and the pending-retry set. *state.State satisfies it.
type StateStore interface {
	LastSync() (int64, error)
	SetLastSync(ts int64) error

	FileIDs() (map[string]string, error)
	SetFileID(path, id string) error
	DeleteFileID(path string) error

	PendingRetries() (map[string]struct{}, error)
	AddPendingRetry(path string) error
	ClearPendingRetry(path string) error
}
