package main

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/phobologic/codemap/internal/engine"
	"github.com/phobologic/codemap/internal/model"
	"github.com/phobologic/codemap/internal/toon"
)

const defaultDebounce = 300 * time.Millisecond

func newWatchCmd(a *app) *cobra.Command {
	var (
		tf       taskFlags
		debounce time.Duration
	)
	cmd := &cobra.Command{
		Use:   "watch [title...]",
		Short: "Re-index on every change and print a fresh summary or mapping",
		Long: `Watch the codebase and re-initialize after each burst of changes. With a
task (--task, --title, or positional words) the task is re-mapped after every
run; otherwise the index summary is printed. Stops on interrupt.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var task *model.Task
			if tf.file != "" || tf.title != "" || len(args) > 0 {
				t, err := tf.task(args)
				if err != nil {
					return err
				}
				task = &t
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			e, err := a.engine(ctx, a.root)
			if err != nil {
				return err
			}
			root := e.Root()
			if err := a.report(e, task); err != nil {
				return err
			}

			w, err := fsnotify.NewWatcher()
			if err != nil {
				return fmt.Errorf("starting watcher: %w", err)
			}
			defer w.Close()
			if err := a.addDirs(w, root); err != nil {
				return err
			}
			a.log.Info("watching", "root", root, "debounce", debounce)

			keep := func(ev fsnotify.Event) bool { return a.relevant(root, ev) }
			return watchLoop(ctx, w.Events, w.Errors, debounce, keep, func(ctx context.Context) error {
				if err := a.addDirs(w, root); err != nil {
					return err
				}
				if err := e.Initialize(ctx, root); err != nil {
					return err
				}
				return a.report(e, task)
			}, a.log)
		},
	}
	tf.register(cmd)
	cmd.Flags().DurationVar(&debounce, "debounce", defaultDebounce, "quiet period before re-indexing")
	return cmd
}

func (a *app) report(e *engine.Engine, task *model.Task) error {
	if task == nil {
		_, stats, err := e.Index()
		if err != nil {
			return err
		}
		return a.emit(stats, func() string { return toon.EncodeStats(filepath.Base(e.Root()), stats) })
	}
	results, err := e.MapTaskToCode(*task)
	if err != nil {
		return err
	}
	return a.emit(results, func() string { return toon.EncodeMappings(*task, results) })
}

// addDirs watches root and every directory under it that is not excluded.
// Adding an already watched directory is a no-op.
func (a *app) addDirs(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && a.excluded(path) {
			return filepath.SkipDir
		}
		if err := w.Add(path); err != nil {
			return fmt.Errorf("watching %s: %w", path, err)
		}
		return nil
	})
}

func (a *app) excluded(path string) bool {
	return slices.Contains(a.cfg.ExcludeDirs, filepath.Base(path))
}

// relevant reports whether ev under root can change the index: a write to
// an indexed extension, or a create, remove, or rename, which may be a
// directory.
func (a *app) relevant(root string, ev fsnotify.Event) bool {
	rel, err := filepath.Rel(root, ev.Name)
	if err != nil || strings.HasPrefix(rel, "..") {
		return false
	}
	for dir := filepath.Dir(rel); dir != "."; dir = filepath.Dir(dir) {
		if a.excluded(dir) {
			return false
		}
	}
	if ev.Has(fsnotify.Create) || ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
		return true
	}
	if !ev.Has(fsnotify.Write) {
		return false
	}
	ext := strings.ToLower(filepath.Ext(ev.Name))
	return slices.Contains(a.cfg.FileExtensions, ext)
}

// watchLoop calls onChange once events matching keep have stopped arriving
// for debounce. A failing onChange is logged and the loop keeps running. It
// returns when ctx is done or events is closed.
func watchLoop(
	ctx context.Context,
	events <-chan fsnotify.Event,
	errs <-chan error,
	debounce time.Duration,
	keep func(fsnotify.Event) bool,
	onChange func(context.Context) error,
	log *slog.Logger,
) error {
	timer := time.NewTimer(debounce)
	if !timer.Stop() {
		<-timer.C
	}
	pending := false

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case ev, ok := <-events:
			if !ok {
				timer.Stop()
				return nil
			}
			if !keep(ev) {
				continue
			}
			log.Debug("change", "path", ev.Name, "op", ev.Op.String())
			timer.Reset(debounce)
			pending = true
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			log.Warn("watch error", "err", err)
		case <-timer.C:
			if !pending {
				continue
			}
			pending = false
			if err := onChange(ctx); err != nil {
				log.Warn("re-index failed", "err", err)
			}
		}
	}
}
