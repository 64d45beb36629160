package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alexjbarnes/drive-sync/internal/config"
	"github.com/alexjbarnes/drive-sync/internal/drive"
	"github.com/alexjbarnes/drive-sync/internal/logging"
	"github.com/alexjbarnes/drive-sync/internal/state"
	"github.com/alexjbarnes/drive-sync/internal/sync"
	"github.com/alexjbarnes/drive-sync/internal/vault"
)

var Version = "dev"

func main() {
	if err := run(); err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}

		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := logging.NewLogger(cfg.Environment)
	logger.Info("drive-sync starting",
		slog.String("version", Version),
		slog.String("vault_dir", cfg.VaultDir),
		slog.String("root_folder", cfg.RootFolder),
		slog.Bool("watch", cfg.Watch),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	appState, err := state.LoadAt(cfg.StatePath)
	if err != nil {
		return fmt.Errorf("loading state: %w", err)
	}
	defer appState.Close()

	// Some providers rotate the refresh token on exchange; a rotated
	// token replaces the configured one and survives restarts.
	refreshToken := cfg.RefreshToken
	if stored := appState.RefreshToken(); stored != "" {
		logger.Debug("using rotated refresh token from state")
		refreshToken = stored
	}

	httpClient := drive.NewHTTPClient(ctx, drive.TokenConfig{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RefreshToken: refreshToken,
	}, func(token string) {
		if err := appState.SetRefreshToken(token); err != nil {
			logger.Warn("failed to save rotated refresh token", slog.String("error", err.Error()))
			return
		}

		logger.Info("refresh token rotated")
	})

	filter, err := vault.LoadFilter(cfg.VaultDir)
	if err != nil {
		return fmt.Errorf("loading sync filter: %w", err)
	}

	scanner := vault.NewScanner(cfg.VaultDir, filter, logger)

	engine := sync.New(sync.Config{
		Store:      drive.NewClient(httpClient),
		State:      appState,
		Tree:       scanner,
		RootFolder: cfg.RootFolder,
	}, logger)

	if !cfg.Watch {
		return runOnce(ctx, engine, logger)
	}

	return runWatch(ctx, cfg, engine, scanner, logger)
}

// runOnce executes a single sync pass and exits.
func runOnce(ctx context.Context, engine *sync.Engine, logger *slog.Logger) error {
	summary, err := engine.Run(ctx)
	if err != nil {
		return fmt.Errorf("sync pass: %w", err)
	}

	if summary.Failed > 0 {
		logger.Warn("sync completed with failures",
			slog.Int("failed", summary.Failed),
		)
	}

	return nil
}

// runWatch keeps the process alive: a pass runs at startup, then on
// every change signal from the file watcher, and optionally on a timer.
func runWatch(ctx context.Context, cfg *config.Config, engine *sync.Engine, scanner *vault.Scanner, logger *slog.Logger) error {
	watcher := vault.NewWatcher(scanner, logger)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return watcher.Watch(gctx)
	})

	g.Go(func() error {
		return syncLoop(gctx, cfg.SyncInterval, engine, watcher, logger)
	})

	return g.Wait()
}

func syncLoop(ctx context.Context, interval time.Duration, engine *sync.Engine, watcher *vault.Watcher, logger *slog.Logger) error {
	// Timer channel stays nil (never fires) when no interval is set.
	var tick <-chan time.Time

	if interval > 0 {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		tick = ticker.C
	}

	// Initial pass at startup.
	runPass(ctx, engine, logger)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-watcher.Changes():
			logger.Debug("vault changed, starting sync pass")
			runPass(ctx, engine, logger)

		case <-tick:
			logger.Debug("interval elapsed, starting sync pass")
			runPass(ctx, engine, logger)
		}
	}
}

// runPass runs one pass and logs failures instead of propagating them:
// in watch mode a failed pass is retried on the next trigger, and the
// pending-retry marks carry the failed files forward.
func runPass(ctx context.Context, engine *sync.Engine, logger *slog.Logger) {
	if _, err := engine.Run(ctx); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, sync.ErrSyncInProgress) {
			return
		}

		logger.Error("sync pass failed", slog.String("error", err.Error()))
	}
}
