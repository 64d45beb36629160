package vault

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Scanner builds the vault tree from the local filesystem. It is the
// read-only view of the vault the sync engine walks; the engine never
// touches the filesystem directly.
type Scanner struct {
	dir    string
	filter *Filter
	logger *slog.Logger
}

// NewScanner creates a scanner rooted at the given absolute directory.
// A nil filter means the default ignore list.
func NewScanner(dir string, filter *Filter, logger *slog.Logger) *Scanner {
	if filter == nil {
		filter = NewFilter()
	}

	return &Scanner{dir: dir, filter: filter, logger: logger}
}

// Dir returns the absolute vault directory.
func (s *Scanner) Dir() string {
	return s.dir
}

// Scan walks the vault directory and returns the root folder node.
// Hidden entries, symlinks, the filter file itself, and filtered paths
// are skipped. Sibling order is the directory listing order (sorted by
// name, as os.ReadDir returns it); the engine does not rely on it.
func (s *Scanner) Scan(ctx context.Context) (*Folder, error) {
	info, err := os.Stat(s.dir)
	if err != nil {
		return nil, fmt.Errorf("stat vault dir: %w", err)
	}

	if !info.IsDir() {
		return nil, fmt.Errorf("vault path %s is not a directory", s.dir)
	}

	root := &Folder{Name: filepath.Base(s.dir), Path: ""}
	if err := s.scanInto(ctx, root); err != nil {
		return nil, err
	}

	return root, nil
}

func (s *Scanner) scanInto(ctx context.Context, folder *Folder) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	entries, err := os.ReadDir(filepath.Join(s.dir, filepath.FromSlash(folder.Path)))
	if err != nil {
		return fmt.Errorf("reading directory %q: %w", folder.Path, err)
	}

	// os.ReadDir sorts by filename already; keep it explicit so the
	// traversal order is stable regardless of the source.
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		name := entry.Name()

		if strings.HasPrefix(name, ".") {
			continue
		}

		relPath := NormalizePath(joinPath(folder.Path, name))

		if entry.Type()&os.ModeSymlink != 0 {
			s.logger.Debug("skipping symlink during scan", slog.String("path", relPath))
			continue
		}

		if !s.filter.Allow(relPath) {
			s.logger.Debug("skipping filtered path", slog.String("path", relPath))
			continue
		}

		if entry.IsDir() {
			child := &Folder{Name: name, Path: relPath}
			if err := s.scanInto(ctx, child); err != nil {
				return err
			}

			folder.Children = append(folder.Children, child)

			continue
		}

		if !entry.Type().IsRegular() {
			s.logger.Debug("skipping irregular file", slog.String("path", relPath))
			continue
		}

		fi, err := entry.Info()
		if err != nil {
			s.logger.Warn("stat failed during scan",
				slog.String("path", relPath),
				slog.String("error", err.Error()),
			)

			continue
		}

		folder.Children = append(folder.Children, &File{
			Name:      name,
			Path:      relPath,
			Extension: extension(name),
			ModTime:   fi.ModTime().UnixMilli(),
			Dir:       s.dir,
		})
	}

	return nil
}

// joinPath joins a vault-relative parent path and a base name.
func joinPath(parent, name string) string {
	if parent == "" {
		return name
	}

	return parent + "/" + name
}

// extension returns the file extension without the leading dot, or ""
// when the name has none.
func extension(name string) string {
	ext := filepath.Ext(name)
	if ext == "" {
		return ""
	}

	return strings.ToLower(ext[1:])
}
