package sync

// pass holds all per-pass sync state. A fresh pass is built at the start
// of every run: the folder-id cache always starts empty, while the
// file-id cache, pending-retry set, and watermark are loaded from the
// durable store. Nothing here outlives the pass, so stale ids from a
// prior run can never leak into folder resolution.
type pass struct {
	// folderIDs is the volatile cache: vault-relative folder path →
	// remote folder id. The empty path is the sync root.
	folderIDs map[string]string

	// fileIDs is the in-memory view of the durable cache: vault-relative
	// file path → remote file id. Presence means the file was uploaded
	// at that exact path before; it does not guarantee the remote object
	// still exists.
	fileIDs map[string]string

	// pending is the set of paths whose last upload attempt failed.
	pending map[string]struct{}

	// watermark is the last successful sync in epoch millis, 0 when no
	// pass has ever completed.
	watermark int64

	// errs collects per-file errors; the pass continues past them and
	// reports the count at the end.
	errs []error

	uploaded int
	skipped  int
	failed   int
}

func newPass(fileIDs map[string]string, pending map[string]struct{}, watermark int64) *pass {
	if fileIDs == nil {
		fileIDs = make(map[string]string)
	}

	if pending == nil {
		pending = make(map[string]struct{})
	}

	return &pass{
		folderIDs: make(map[string]string),
		fileIDs:   fileIDs,
		pending:   pending,
		watermark: watermark,
	}
}

func (p *pass) folderID(path string) (string, bool) {
	id, ok := p.folderIDs[path]

	return id, ok
}

func (p *pass) setFolderID(path, id string) {
	p.folderIDs[path] = id
}

func (p *pass) fileID(path string) (string, bool) {
	id, ok := p.fileIDs[path]

	return id, ok
}

func (p *pass) setFileID(path, id string) {
	p.fileIDs[path] = id
}

func (p *pass) deleteFileID(path string) {
	delete(p.fileIDs, path)
}

func (p *pass) recordError(err error) {
	p.errs = append(p.errs, err)
	p.failed++
}
