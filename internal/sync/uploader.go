package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path"

	"github.com/alexjbarnes/drive-sync/internal/drive"
	"github.com/alexjbarnes/drive-sync/internal/vault"
)

// uploader pushes a single file to the remote store, reusing the durable
// file id for update-in-place when one is recorded and creating a new
// remote file otherwise.
type uploader struct {
	store    RemoteStore
	resolver *resolver
	pass     *pass
	state    StateStore
	logger   *slog.Logger
}

// upload sends the file's current content. On success the remote id is
// recorded in the pass and persisted immediately, and any pending-retry
// mark for the path is cleared.
func (u *uploader) upload(ctx context.Context, f *vault.File) error {
	content, err := f.Content()
	if err != nil {
		return fmt.Errorf("reading %s: %w", f.Path, err)
	}

	parentDir := ""
	if dir := path.Dir(f.Path); dir != "." {
		parentDir = dir
	}

	parentID, err := u.resolver.resolve(ctx, parentDir)
	if err != nil {
		return fmt.Errorf("resolving parent of %s: %w", f.Path, err)
	}

	mimeType := TypeForExtension(f.Extension)

	var id string

	if existingID, ok := u.pass.fileID(f.Path); ok {
		// Update-in-place re-sends name and MIME type along with
		// content, covering metadata drift as well as edits. Parent
		// placement is fixed at creation; a moved path misses the id
		// cache and creates fresh.
		id, err = u.store.UpdateFile(ctx, existingID, f.Name, mimeType, content)
		if isNotFound(err) {
			// The remote object behind the recorded id is gone, e.g.
			// deleted through the provider's UI. Forget the id and
			// fall through to a fresh create.
			u.logger.Warn("recorded file id is stale, recreating",
				slog.String("path", f.Path),
				slog.String("id", existingID),
			)

			u.pass.deleteFileID(f.Path)

			if serr := u.state.DeleteFileID(f.Path); serr != nil {
				return fmt.Errorf("dropping stale file id for %s: %w", f.Path, serr)
			}

			id, err = u.store.CreateFile(ctx, parentID, f.Name, mimeType, content)
		}

		if err != nil {
			return fmt.Errorf("updating %s: %w", f.Path, err)
		}
	} else {
		id, err = u.store.CreateFile(ctx, parentID, f.Name, mimeType, content)
		if err != nil {
			return fmt.Errorf("creating %s: %w", f.Path, err)
		}
	}

	u.pass.setFileID(f.Path, id)

	if err := u.state.SetFileID(f.Path, id); err != nil {
		return fmt.Errorf("persisting file id for %s: %w", f.Path, err)
	}

	if err := u.state.ClearPendingRetry(f.Path); err != nil {
		return fmt.Errorf("clearing retry mark for %s: %w", f.Path, err)
	}

	delete(u.pass.pending, f.Path)

	u.logger.Debug("uploaded file",
		slog.String("path", f.Path),
		slog.String("id", id),
		slog.String("mime_type", mimeType),
		slog.Int("size", len(content)),
	)

	return nil
}

// isNotFound reports whether a remote error says the object no longer
// exists.
func isNotFound(err error) bool {
	var remoteErr *drive.RemoteError

	return errors.As(err, &remoteErr) && remoteErr.Status == http.StatusNotFound
}
