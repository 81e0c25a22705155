// Package watcher runs a handler for every video file dropped into a directory.
package watcher

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/forPelevin/topiccut/internal/pkg/logger"
)

// Handler processes one new file. Its error is logged, never fatal.
type Handler func(ctx context.Context, path string) error

var videoExts = map[string]struct{}{
	".mp4": {}, ".mov": {}, ".mkv": {}, ".webm": {}, ".m4v": {}, ".avi": {}, ".flv": {},
}

type Watcher struct {
	dir     string
	handler Handler
	log     *logger.Logger
	fw      *fsnotify.Watcher
	settle  time.Duration
	sem     chan struct{}
	wg      sync.WaitGroup
}

func New(dir string, handler Handler, log *logger.Logger, maxConcurrent int, settle time.Duration) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("add watch path: %w", err)
	}
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Watcher{
		dir:     dir,
		handler: handler,
		log:     log.WithComponent("watcher"),
		fw:      fw,
		settle:  settle,
		sem:     make(chan struct{}, maxConcurrent),
	}, nil
}

// Start blocks until ctx is done, then waits for running handlers.
func (w *Watcher) Start(ctx context.Context) error {
	w.log.Info("watching for videos", "dir", w.dir, "max_concurrent", cap(w.sem))
	defer w.fw.Close()

	for {
		select {
		case <-ctx.Done():
			w.log.Info("waiting for running jobs")
			w.wg.Wait()
			return ctx.Err()

		case ev, ok := <-w.fw.Events:
			if !ok {
				w.wg.Wait()
				return fmt.Errorf("watcher events channel closed")
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if !IsVideo(ev.Name) {
				w.log.Debug("ignoring non-video file", "path", ev.Name)
				continue
			}
			w.log.Info("new video detected", "path", ev.Name)

			select {
			case w.sem <- struct{}{}:
			case <-ctx.Done():
				w.wg.Wait()
				return ctx.Err()
			}
			w.wg.Add(1)
			go w.handle(ctx, ev.Name)

		case err, ok := <-w.fw.Errors:
			if !ok {
				w.wg.Wait()
				return fmt.Errorf("watcher errors channel closed")
			}
			w.log.Error("watcher error", "error", err.Error())
		}
	}
}

func (w *Watcher) handle(ctx context.Context, path string) {
	defer w.wg.Done()
	defer func() { <-w.sem }()

	// Give the writer time to finish copying the file in.
	if w.settle > 0 {
		select {
		case <-time.After(w.settle):
		case <-ctx.Done():
			return
		}
	}
	if err := w.handler(ctx, path); err != nil {
		w.log.Error("processing failed", "path", path, "error", err.Error())
	}
}

func IsVideo(path string) bool {
	_, ok := videoExts[strings.ToLower(filepath.Ext(path))]
	return ok
}
