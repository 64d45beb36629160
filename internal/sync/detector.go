package sync

import "github.com/alexjbarnes/drive-sync/internal/vault"

// shouldUpload decides whether a file needs (re-)uploading this pass.
//
// A path in the pending-retry set is always dirty: its last upload
// failed, and the watermark alone cannot distinguish it because the
// watermark advances at the end of a pass regardless of per-file
// failures. Otherwise, a missing watermark (first sync ever) uploads
// everything, and an existing one uploads only files modified strictly
// after it: a file modified exactly at the watermark was covered by the
// pass that set it.
func (p *pass) shouldUpload(f *vault.File) bool {
	if _, retry := p.pending[f.Path]; retry {
		return true
	}

	if p.watermark == 0 {
		return true
	}

	return f.ModTime > p.watermark
}
