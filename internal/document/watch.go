package document

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/annota/internal/checksum"
)

// DefaultDebounce is how long Watch waits for writes to settle.
const DefaultDebounce = 200 * time.Millisecond

// ReloadCallback receives a freshly parsed document.
type ReloadCallback func(doc *Document)

// Watch reloads the document at rel whenever it changes and passes it to cb
// until ctx is cancelled. The parent directory is watched so editors that
// replace the file by rename are still seen. Bursts of events are debounced
// and content whose checksum equals lastSum is skipped. Unreadable or
// invalid content is logged and ignored.
func Watch(ctx context.Context, fs *FS, rel, lastSum string, debounce time.Duration, logger *slog.Logger, cb ReloadCallback) error {
	target, err := fs.Abs(rel)
	if err != nil {
		return err
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(filepath.Dir(target)); err != nil {
		return err
	}
	logger.Info("watcher: started", slog.String("path", target))

	var timer *time.Timer
	var fire <-chan time.Time
	schedule := func() {
		if timer == nil {
			timer = time.NewTimer(debounce)
			fire = timer.C
		} else {
			timer.Reset(debounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-fire:
			data, readErr := fs.Read(rel)
			if readErr != nil {
				logger.Warn("watcher: read failed", slog.String("path", rel), slog.String("error", readErr.Error()))
				continue
			}
			sum := checksum.Sum(data)
			if sum == lastSum {
				logger.Debug("watcher: content unchanged", slog.String("path", rel))
				continue
			}
			doc, parseErr := Parse(data)
			if parseErr != nil {
				logger.Warn("watcher: invalid document", slog.String("path", rel), slog.String("error", parseErr.Error()))
				continue
			}
			lastSum = sum
			logger.Debug("watcher: reloaded", slog.String("path", rel), slog.Int("annotations", len(doc.Annotations)))
			cb(doc)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) != 0 {
				schedule()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}
