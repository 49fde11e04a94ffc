package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/drewcsillag/notecove/internal/config"
	"github.com/drewcsillag/notecove/internal/fsadapter"
	"github.com/drewcsillag/notecove/internal/sdwatch"
)

func notifySIGHUP(ch chan os.Signal) {
	signal.Notify(ch, syscall.SIGHUP)
}

func stopSIGHUP(ch chan os.Signal) {
	signal.Stop(ch)
}

// sighupChannel returns a new buffered channel already registered for
// SIGHUP; the caller stops it with signal.Stop.
func sighupChannel() chan os.Signal {
	ch := make(chan os.Signal, 1)
	notifySIGHUP(ch)

	return ch
}

func newWatchCmd() *cobra.Command {
	var pollInterval time.Duration

	cmd := &cobra.Command{
		Use:   "watch [storage-directory]",
		Short: "Run as a daemon, syncing notes as peers write to the storage directory",
		Long: `watch holds the storage directory open, reacts to filesystem
notifications from other writers, and falls back to a periodic poll so a
missed or coalesced notification never stalls a note indefinitely. It
acquires a single-instance PID lock for the SD, and responds to SIGHUP by
reloading its config file and to "ncstorage pause"/"ncstorage resume" by
skipping sync cycles while a pause file is present.`,
		Args:        cobra.MaximumNArgs(1),
		Annotations: map[string]string{openAnnotation: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, pollInterval)
		},
	}

	cmd.Flags().DurationVar(&pollInterval, "poll-interval", 30*time.Second, "fallback sync interval when no filesystem event arrives (overrides the config file's sync.poll_interval)")

	return cmd
}

func runWatch(cmd *cobra.Command, pollInterval time.Duration) error {
	cc := mustCLIContext(cmd.Context())

	if !cmd.Flags().Changed("poll-interval") {
		if d, err := time.ParseDuration(cc.Handle.ConfigHolder().Config().Sync.PollInterval); err == nil && d > 0 {
			pollInterval = d
		}
	}

	cleanup, err := writePIDFile(config.PIDFilePath(cc.SDPath))
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := shutdownContext(cmd.Context(), cc.Logger)

	sighup := make(chan os.Signal, 1)
	notifySIGHUP(sighup)
	defer stopSIGHUP(sighup)

	watcher := sdwatch.New(cc.SDPath, cc.Logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return watcher.Run(gctx) })

	cc.Statusf("Watching %s (poll every %s)...\n", cc.SDPath, pollInterval)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-gctx.Done():
			return waitWatchGroup(g)

		case sig := <-sighup:
			cc.Logger.Info("watch: reloading config", "signal", sig.String())
			reloadConfig(cc)

		case ev, ok := <-watcher.Events():
			if !ok {
				continue
			}

			if err := syncOnEvent(gctx, cc, ev); err != nil {
				cc.Logger.Warn("watch: sync after event failed", "error", err)
			}

		case <-ticker.C:
			if err := syncAll(gctx, cc); err != nil {
				cc.Logger.Warn("watch: periodic sync failed", "error", err)
			}
		}
	}
}

func waitWatchGroup(g *errgroup.Group) error {
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	return nil
}

// syncOnEvent syncs just the note an event named, or every note on disk
// for a Global event (an activity/deletions write, which can change any
// note's stale-sync picture).
func syncOnEvent(ctx context.Context, cc *CLIContext, ev sdwatch.Event) error {
	if isPaused(cc.SDPath) {
		return nil
	}

	if ev.Global {
		return syncAll(ctx, cc)
	}

	return cc.Handle.Store().SyncNote(ctx, ev.NoteID)
}

// syncAll fans a sync pass out across every note currently on disk,
// bounded by errgroup so one note's failure doesn't stop the others
// from getting their turn.
func syncAll(ctx context.Context, cc *CLIContext) error {
	if isPaused(cc.SDPath) {
		return nil
	}

	ids, err := listNoteIDs(fsadapter.NewLocal(), cc.SDPath)
	if err != nil {
		return fmt.Errorf("listing notes: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)

	for _, id := range ids {
		id := id

		g.Go(func() error {
			if err := cc.Handle.Store().SyncNote(gctx, id); err != nil {
				cc.Logger.Warn("watch: syncing note failed", "note", id.String(), "error", err)
			}

			return nil
		})
	}

	return g.Wait()
}

func isPaused(sdPath string) bool {
	_, err := os.Stat(config.PausePath(sdPath))
	return err == nil
}

func reloadConfig(cc *CLIContext) {
	cfg, err := config.LoadOrDefault(cc.Handle.ConfigHolder().Path(), cc.Logger)
	if err != nil {
		cc.Logger.Warn("watch: reloading config failed, keeping previous config", "error", err)
		return
	}

	cc.Handle.ConfigHolder().Update(cfg)
}
