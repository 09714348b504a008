package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"agentctx/internal/config"
	"agentctx/internal/prompt"
)

var (
	watchFlags    optimizeFlags
	watchDebounce time.Duration
)

// watchCmd rebuilds the prompt whenever a source changes
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Rebuild the prompt whenever the style guide, templates or affected files change",
	Long: `Builds the prompt once, then watches the style guide, the templates tree and
the affected files. Each batch of changes clears the optimizer caches and
rebuilds the prompt. Stops on SIGINT or SIGTERM.`,
	RunE: runWatch,
}

func init() {
	bindOptimizeFlags(watchCmd, &watchFlags)
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", 300*time.Millisecond, "Quiet period before rebuilding")
}

func runWatch(cmd *cobra.Command, args []string) error {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return watchAndOptimize(ctx, cmd, watchFlags, watchDebounce)
}

// watchAndOptimize runs until ctx is cancelled.
func watchAndOptimize(ctx context.Context, cmd *cobra.Command, f optimizeFlags, debounce time.Duration) error {
	ws := workspaceDir()
	c := appConfig()
	opt := prompt.NewOptimizer(c, prompt.WithWorkspace(ws))
	w := cmd.OutOrStdout()

	build := func() error {
		return emitPrompt(w, opt.OptimizePrompt(f.request()), f.out)
	}
	if err := build(); err != nil {
		return err
	}

	sw, err := newSourceWatcher(debounce, func(changed []string) {
		zapLogger().Info("Sources changed, rebuilding", zap.Strings("paths", changed))
		opt.ClearCache()
		if err := build(); err != nil {
			zapLogger().Error("Rebuild failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	targets := []string{
		config.ResolvePath(ws, c.StyleGuidePath),
		config.ResolvePath(ws, c.TemplatesDir),
	}
	for _, file := range f.files {
		targets = append(targets, config.ResolvePath(ws, file))
	}
	for _, t := range targets {
		if err := sw.Watch(t); err != nil {
			zapLogger().Warn("Not watching", zap.String("path", t), zap.Error(err))
		}
	}

	zapLogger().Info("Watching sources", zap.Int("targets", len(targets)))
	return sw.Run(ctx)
}

// sourceWatcher batches filesystem events for a set of files and directory
// trees and reports each batch after a quiet period.
type sourceWatcher struct {
	mu       sync.Mutex
	watcher  *fsnotify.Watcher
	files    map[string]bool // watched through their parent directory
	trees    map[string]bool // watched recursively
	pending  map[string]bool
	debounce time.Duration
	onChange func(changed []string)
}

func newSourceWatcher(debounce time.Duration, onChange func(changed []string)) (*sourceWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &sourceWatcher{
		watcher:  watcher,
		files:    make(map[string]bool),
		trees:    make(map[string]bool),
		pending:  make(map[string]bool),
		debounce: debounce,
		onChange: onChange,
	}, nil
}

// Watch adds a file or a directory tree. A missing file is watched through
// its parent so that creating it later is noticed.
func (sw *sourceWatcher) Watch(path string) error {
	path = filepath.Clean(path)
	info, err := os.Stat(path)
	switch {
	case err == nil && info.IsDir():
		sw.mu.Lock()
		sw.trees[path] = true
		sw.mu.Unlock()
		return sw.addTree(path)
	case err == nil || errors.Is(err, fs.ErrNotExist):
		sw.mu.Lock()
		sw.files[path] = true
		sw.mu.Unlock()
		return sw.watcher.Add(filepath.Dir(path))
	default:
		return err
	}
}

func (sw *sourceWatcher) addTree(root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return sw.watcher.Add(p)
		}
		return nil
	})
}

// relevant reports whether an event path belongs to a watched file or tree.
func (sw *sourceWatcher) relevant(path string) bool {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	if sw.files[path] {
		return true
	}
	for root := range sw.trees {
		if path == root || strings.HasPrefix(path, root+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// Run processes events until ctx is done, then closes the watcher.
func (sw *sourceWatcher) Run(ctx context.Context) error {
	defer sw.watcher.Close()

	timer := time.NewTimer(sw.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-sw.watcher.Events:
			if !ok {
				return nil
			}
			if sw.handleEvent(event) {
				timer.Reset(sw.debounce)
			}

		case err, ok := <-sw.watcher.Errors:
			if !ok {
				return nil
			}
			zapLogger().Warn("Watcher error", zap.Error(err))

		case <-timer.C:
			sw.flush()
		}
	}
}

// handleEvent records a relevant change and reports whether it was one.
func (sw *sourceWatcher) handleEvent(event fsnotify.Event) bool {
	if event.Op == fsnotify.Chmod {
		return false
	}
	path := filepath.Clean(event.Name)
	if !sw.relevant(path) {
		return false
	}

	// new directories inside a watched tree
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			if err := sw.addTree(path); err != nil {
				zapLogger().Warn("Failed to watch new directory", zap.String("path", path), zap.Error(err))
			}
		}
	}

	zapLogger().Debug("Source event", zap.String("path", path), zap.String("op", event.Op.String()))
	sw.mu.Lock()
	sw.pending[path] = true
	sw.mu.Unlock()
	return true
}

func (sw *sourceWatcher) flush() {
	sw.mu.Lock()
	changed := make([]string, 0, len(sw.pending))
	for p := range sw.pending {
		changed = append(changed, p)
	}
	sw.pending = make(map[string]bool)
	sw.mu.Unlock()

	if len(changed) == 0 {
		return
	}
	sort.Strings(changed)
	sw.onChange(changed)
}
