package vault

import (
	"os"
	"path/filepath"
)

// Node is a single entry in the scanned vault tree: either a *Folder or
// a *File. Traversals switch on the concrete type.
type Node interface {
	isNode()
}

// Folder is a directory in the vault. Children are in the order the
// filesystem presented them.
type Folder struct {
	// Name is the base name of the directory.
	Name string

	// Path is the vault-relative path ("" for the vault root), using
	// forward slashes, no trailing slash, case-sensitive.
	Path string

	Children []Node
}

// File is a regular file in the vault. Content is read lazily at upload
// time rather than held in the tree.
type File struct {
	Name string
	Path string

	// Extension is the file extension without the leading dot, or ""
	// for files with no extension.
	Extension string

	// ModTime is the last modification time in epoch millis.
	ModTime int64

	// Dir is the absolute vault directory the relative path resolves
	// against.
	Dir string
}

func (*Folder) isNode() {}
func (*File) isNode()   {}

// Content reads the file's current content from disk.
func (f *File) Content() ([]byte, error) {
	return os.ReadFile(filepath.Join(f.Dir, filepath.FromSlash(f.Path))) //nolint:gosec // G304: Path is scanner output under Dir
}
