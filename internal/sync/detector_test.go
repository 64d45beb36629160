package sync

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/alexjbarnes/drive-sync/internal/vault"
)

func TestShouldUpload_FirstSyncUploadsEverything(t *testing.T) {
	p := newPass(nil, nil, 0)
	f := &vault.File{Name: "a.md", Path: "a.md", ModTime: 1}

	assert.True(t, p.shouldUpload(f))
}

func TestShouldUpload_WatermarkIsStrict(t *testing.T) {
	p := newPass(nil, nil, 1_000)

	// Modified exactly at the watermark: already covered.
	assert.False(t, p.shouldUpload(&vault.File{Path: "a.md", ModTime: 1_000}))

	// Modified before: covered.
	assert.False(t, p.shouldUpload(&vault.File{Path: "b.md", ModTime: 999}))

	// Modified after: dirty.
	assert.True(t, p.shouldUpload(&vault.File{Path: "c.md", ModTime: 1_001}))
}

func TestShouldUpload_PendingRetryOverridesWatermark(t *testing.T) {
	pending := map[string]struct{}{"a.md": {}}
	p := newPass(nil, pending, 1_000)

	// Older than the watermark but marked for retry.
	assert.True(t, p.shouldUpload(&vault.File{Path: "a.md", ModTime: 500}))
	assert.False(t, p.shouldUpload(&vault.File{Path: "b.md", ModTime: 500}))
}
