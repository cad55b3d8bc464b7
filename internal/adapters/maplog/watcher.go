package maplog

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/bonebunny/lootledger/pkg/logger"
)

// watchScanBytes bounds the tail re-scan after a write event. Generation
// lines sit at the very end of the file when they appear, so a small window
// is enough.
const watchScanBytes = 64 * 1024

// Watcher tails the client log via fsnotify and reports each newly
// generated area exactly once.
type Watcher struct {
	path     string
	onMap    func(Info)
	log      logger.Logger
	lastSeed int64
	lastRaw  string
}

// NewWatcher creates a watcher that calls onMap for every new generation
// line appended to the client log at path.
func NewWatcher(path string, onMap func(Info)) *Watcher {
	return &Watcher{
		path:  filepath.Clean(path),
		onMap: onMap,
		log:   logger.Get().Named("maplog"),
	}
}

// Run watches until ctx is cancelled. The log's directory is watched rather
// than the file itself so rotation does not silently detach the watch.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrLogUnreadable, err)
	}
	defer fsw.Close()

	dir := filepath.Dir(w.path)
	if err := fsw.Add(dir); err != nil {
		return fmt.Errorf("%w: %w", ErrLogUnreadable, err)
	}

	// Seed the dedupe state so a map generated before startup is not
	// replayed as a fresh detection.
	if info, err := LastMap(w.path, watchScanBytes); err == nil {
		w.lastSeed = info.Seed
		w.lastRaw = info.Raw
	}

	w.log.Info(ctx, "watching client log", logger.String("path", w.path))

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			// Event names arrive cleaned; the configured path may not be.
			if filepath.Clean(event.Name) != w.path || !event.Has(fsnotify.Write) {
				continue
			}
			w.scan(ctx)
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn(ctx, "watch error", logger.Error(err))
		}
	}
}

func (w *Watcher) scan(ctx context.Context) {
	info, err := LastMap(w.path, watchScanBytes)
	if err != nil {
		return
	}
	if info.Seed == w.lastSeed && info.Raw == w.lastRaw {
		return
	}
	w.lastSeed = info.Seed
	w.lastRaw = info.Raw

	w.log.Info(ctx, "new map detected",
		logger.String("map", info.Name),
		logger.Int("level", info.Level),
	)
	w.onMap(info)
}
