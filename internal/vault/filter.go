package vault

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// FilterFileName is the optional per-vault filter file, read from the
// vault root.
const FilterFileName = ".drive-sync.yaml"

// defaultIgnores are directory/file base names that never sync. Hidden
// entries (dot-prefixed) are skipped by the scanner before the filter
// runs, so .obsidian and .git never reach it.
var defaultIgnores = []string{
	".trash",
	"node_modules",
}

// Filter decides which vault-relative paths take part in a sync pass.
// Patterns use path.Match syntax and are tried against both the full
// relative path and the base name.
type Filter struct {
	ignore []string
}

// filterFile is the YAML shape of .drive-sync.yaml.
type filterFile struct {
	Ignore []string `yaml:"ignore"`
}

// NewFilter creates a filter with the default ignore list plus the given
// extra patterns.
func NewFilter(patterns ...string) *Filter {
	return &Filter{ignore: append(append([]string{}, defaultIgnores...), patterns...)}
}

// LoadFilter reads .drive-sync.yaml from the vault root if present and
// returns a filter combining its ignore patterns with the defaults.
// A missing file yields the default filter; a malformed one is an error
// so a typo does not silently sync everything.
func LoadFilter(vaultDir string) (*Filter, error) {
	data, err := os.ReadFile(filepath.Join(vaultDir, FilterFileName)) //nolint:gosec // G304: fixed name under the configured vault dir
	if err != nil {
		if os.IsNotExist(err) {
			return NewFilter(), nil
		}

		return nil, fmt.Errorf("reading %s: %w", FilterFileName, err)
	}

	var ff filterFile
	if err := yaml.Unmarshal(data, &ff); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", FilterFileName, err)
	}

	for _, p := range ff.Ignore {
		if _, err := path.Match(p, "probe"); err != nil {
			return nil, fmt.Errorf("invalid ignore pattern %q in %s: %w", p, FilterFileName, err)
		}
	}

	return NewFilter(ff.Ignore...), nil
}

// Allow returns true if the given vault-relative path should sync.
func (f *Filter) Allow(relPath string) bool {
	relPath = NormalizePath(relPath)
	if relPath == "" {
		return true
	}

	base := path.Base(relPath)

	for _, pattern := range f.ignore {
		// Patterns without a slash match any path segment's base name,
		// patterns with a slash match the full relative path.
		if strings.Contains(pattern, "/") {
			if ok, _ := path.Match(pattern, relPath); ok {
				return false
			}

			continue
		}

		if ok, _ := path.Match(pattern, base); ok {
			return false
		}
	}

	return true
}
