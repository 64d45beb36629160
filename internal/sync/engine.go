package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/alexjbarnes/drive-sync/internal/drive"
	"github.com/alexjbarnes/drive-sync/internal/vault"
)

// ErrSyncInProgress is returned by Run when a pass is already running.
// Passes never overlap: the pass state and the remote folder hierarchy
// are only safe to mutate from one pass at a time.
var ErrSyncInProgress = errors.New("a sync pass is already running")

// Phase is the engine's position in the pass lifecycle.
type Phase int32

const (
	PhaseIdle Phase = iota
	PhaseResolvingRoot
	PhaseWalking
	PhaseFinalizing
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseResolvingRoot:
		return "resolving-root"
	case PhaseWalking:
		return "walking"
	case PhaseFinalizing:
		return "finalizing"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// FileTree exposes the local vault hierarchy to the engine.
// *vault.Scanner satisfies this interface.
type FileTree interface {
	Scan(ctx context.Context) (*vault.Folder, error)
}

// Config holds the collaborators and parameters for an Engine.
type Config struct {
	Store      RemoteStore
	State      StateStore
	Tree       FileTree
	RootFolder string

	// Now overrides the clock, for tests. Nil means time.Now.
	Now func() time.Time
}

// Summary reports the outcome of a completed pass.
type Summary struct {
	Uploaded int
	Skipped  int
	Failed   int
	Errors   []error
}

// Engine orchestrates a sync pass: it resolves the remote root, walks
// the local tree depth-first, uploads stale files one at a time, and
// persists the watermark once the whole pass has completed. Remote
// folders are resolved lazily, when the first stale file under them
// uploads; a pass with nothing to upload touches nothing but the root.
//
// All remote calls happen sequentially on the goroutine that called
// Run. Cancellation is best-effort between files: the in-flight call
// finishes (or aborts with the context) and no further file is started;
// a cancelled pass never advances the watermark.
type Engine struct {
	store      RemoteStore
	state      StateStore
	tree       FileTree
	rootFolder string
	logger     *slog.Logger
	now        func() time.Time

	busy  atomic.Bool
	phase atomic.Int32
}

// New creates an Engine from the given config.
func New(cfg Config, logger *slog.Logger) *Engine {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Engine{
		store:      cfg.Store,
		state:      cfg.State,
		tree:       cfg.Tree,
		rootFolder: cfg.RootFolder,
		logger:     logger,
		now:        now,
	}
}

// Phase returns the engine's current pass phase.
func (e *Engine) Phase() Phase {
	return Phase(e.phase.Load())
}

func (e *Engine) setPhase(p Phase) {
	e.phase.Store(int32(p))
}

// Run executes one full sync pass. Per-file failures are collected into
// the summary and do not fail the pass; credential failures, root
// resolution failures, state store failures, and cancellation do.
// A second Run while one is in flight returns ErrSyncInProgress.
func (e *Engine) Run(ctx context.Context) (*Summary, error) {
	if !e.busy.CompareAndSwap(false, true) {
		return nil, ErrSyncInProgress
	}
	defer e.busy.Store(false)

	summary, err := e.runPass(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			e.setPhase(PhaseIdle)
			e.logger.Info("sync cancelled")
		} else {
			e.setPhase(PhaseFailed)
			e.logger.Error("error during sync", slog.String("error", err.Error()))
		}

		return nil, err
	}

	e.setPhase(PhaseIdle)

	return summary, nil
}

func (e *Engine) runPass(ctx context.Context) (*Summary, error) {
	started := e.now()

	e.setPhase(PhaseResolvingRoot)

	fileIDs, err := e.state.FileIDs()
	if err != nil {
		return nil, fmt.Errorf("loading file ids: %w", err)
	}

	pending, err := e.state.PendingRetries()
	if err != nil {
		return nil, fmt.Errorf("loading pending retries: %w", err)
	}

	watermark, err := e.state.LastSync()
	if err != nil {
		return nil, fmt.Errorf("loading watermark: %w", err)
	}

	p := newPass(fileIDs, pending, watermark)
	res := &resolver{store: e.store, pass: p, logger: e.logger}
	up := &uploader{store: e.store, resolver: res, pass: p, state: e.state, logger: e.logger}

	// Root resolution failures abort before anything is mutated.
	if err := res.resolveRoot(ctx, e.rootFolder); err != nil {
		return nil, err
	}

	root, err := e.tree.Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("scanning vault: %w", err)
	}

	e.setPhase(PhaseWalking)

	if err := e.walkFolder(ctx, p, up, root); err != nil {
		return nil, err
	}

	e.setPhase(PhaseFinalizing)

	if err := e.state.SetLastSync(e.now().UnixMilli()); err != nil {
		return nil, fmt.Errorf("persisting watermark: %w", err)
	}

	e.logger.Info("sync complete",
		slog.Int("uploaded", p.uploaded),
		slog.Int("skipped", p.skipped),
		slog.Int("failed", p.failed),
		slog.Duration("took", e.now().Sub(started)),
	)

	return &Summary{
		Uploaded: p.uploaded,
		Skipped:  p.skipped,
		Failed:   p.failed,
		Errors:   p.errs,
	}, nil
}

// walkFolder traverses one folder depth-first, siblings in the order the
// tree presents them. Folders are not resolved here: the uploader
// resolves a file's parent chain when the file actually uploads, so a
// clean pass makes no folder calls and empty local folders never create
// remote counterparts. A parent resolution failure therefore surfaces as
// a per-file failure and marks that file for retry.
func (e *Engine) walkFolder(ctx context.Context, p *pass, up *uploader, folder *vault.Folder) error {
	for _, child := range folder.Children {
		if err := ctx.Err(); err != nil {
			return err
		}

		switch n := child.(type) {
		case *vault.File:
			if !p.shouldUpload(n) {
				p.skipped++
				continue
			}

			if err := up.upload(ctx, n); err != nil {
				if fatal := e.fileFailure(ctx, p, n.Path, err); fatal != nil {
					return fatal
				}
			} else {
				p.uploaded++
			}

		case *vault.Folder:
			if err := e.walkFolder(ctx, p, up, n); err != nil {
				return err
			}

		default:
			return fmt.Errorf("unexpected tree node %T at %q", child, folder.Path)
		}
	}

	return nil
}

// fileFailure handles a failed upload: fatal errors propagate, everything
// else is recorded and the path is marked for retry on the next pass.
func (e *Engine) fileFailure(ctx context.Context, p *pass, path string, err error) error {
	if fatal := isFatal(ctx, err); fatal {
		return err
	}

	e.logger.Warn("file upload failed",
		slog.String("path", path),
		slog.String("error", err.Error()),
	)
	p.recordError(err)

	if serr := e.state.AddPendingRetry(path); serr != nil {
		return fmt.Errorf("marking %s for retry: %w", path, serr)
	}

	return nil
}

// isFatal reports whether an error must abort the pass: context
// cancellation and credential failures are fatal, per-item remote
// errors are not.
func isFatal(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return true
	}

	var authErr *drive.AuthError

	return errors.As(err, &authErr)
}
