package sync

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alexjbarnes/drive-sync/internal/drive"
)

// resolver maps vault-relative folder paths onto remote folder ids,
// creating remote folders on demand. Every resolved id is cached in the
// pass, so within one pass each folder is listed or created at most
// once no matter how many files share it.
type resolver struct {
	store  RemoteStore
	pass   *pass
	logger *slog.Logger
}

// resolveRoot finds or creates the named sync root folder at the top of
// the remote hierarchy and seeds it into the cache at the empty path.
// Called once per pass before any other resolution.
func (r *resolver) resolveRoot(ctx context.Context, name string) error {
	children, err := r.store.ListChildren(ctx, drive.RootParentID, name, true)
	if err != nil {
		return fmt.Errorf("looking up root folder %q: %w", name, err)
	}

	id := pickFolder(children)

	if id == "" {
		id, err = r.store.CreateFolder(ctx, drive.RootParentID, name)
		if err != nil {
			return fmt.Errorf("creating root folder %q: %w", name, err)
		}

		r.logger.Info("created root folder", slog.String("name", name), slog.String("id", id))
	}

	r.pass.setFolderID("", id)

	return nil
}

// resolve returns the remote folder id for a vault-relative folder path,
// creating any missing folders along the way. The empty path is the
// sync root. resolveRoot must have run first.
func (r *resolver) resolve(ctx context.Context, relPath string) (string, error) {
	parentID, ok := r.pass.folderID("")
	if !ok {
		return "", fmt.Errorf("root folder not resolved")
	}

	if relPath == "" {
		return parentID, nil
	}

	currentPath := ""

	for _, segment := range strings.Split(relPath, "/") {
		currentPath = joinPath(currentPath, segment)

		if id, ok := r.pass.folderID(currentPath); ok {
			parentID = id
			continue
		}

		children, err := r.store.ListChildren(ctx, parentID, segment, true)
		if err != nil {
			return "", fmt.Errorf("looking up folder %q: %w", currentPath, err)
		}

		id := pickFolder(children)

		if id == "" {
			id, err = r.store.CreateFolder(ctx, parentID, segment)
			if err != nil {
				return "", fmt.Errorf("creating folder %q: %w", currentPath, err)
			}

			r.logger.Debug("created folder",
				slog.String("path", currentPath),
				slog.String("id", id),
			)
		}

		r.pass.setFolderID(currentPath, id)
		parentID = id
	}

	return parentID, nil
}

// pickFolder chooses among the candidates a children query returned.
// Exactly one is the normal case. Remote-side name collisions (several
// folders with the same name under one parent) are not deduplicated
// here; the lexicographically smallest id wins so repeated passes keep
// resolving to the same folder.
func pickFolder(children []drive.Object) string {
	best := ""

	for _, c := range children {
		if best == "" || c.ID < best {
			best = c.ID
		}
	}

	return best
}

// joinPath joins a vault-relative parent path and a segment.
func joinPath(parent, segment string) string {
	if parent == "" {
		return segment
	}

	return parent + "/" + segment
}
