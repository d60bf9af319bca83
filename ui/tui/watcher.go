package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// busWakeMsg asks the model to read new bus commands now rather than on
// the next tick.
type busWakeMsg struct{}

// busWatcher wakes the model when commands.jsonl is written.
type busWatcher struct {
	path    string
	watcher *fsnotify.Watcher
	send    sender
	log     *zap.Logger
	done    chan struct{}
}

// newBusWatcher watches the directory holding path, so the file may be
// created or replaced after the watch starts.
func newBusWatcher(path string, send sender, log *zap.Logger) (*busWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}
	return &busWatcher{
		path:    abs,
		watcher: w,
		send:    send,
		log:     log,
		done:    make(chan struct{}),
	}, nil
}

// Run delivers wake-ups until ctx is done or the watcher is closed.
func (bw *busWatcher) Run(ctx context.Context) {
	defer close(bw.done)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-bw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != bw.path {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			bw.log.Debug("command bus changed", zap.String("op", ev.Op.String()))
			bw.send.Send(busWakeMsg{})
		case err, ok := <-bw.watcher.Errors:
			if !ok {
				return
			}
			bw.log.Warn("command bus watcher error", zap.Error(err))
		}
	}
}

// Close stops the watcher and waits for Run to return.
func (bw *busWatcher) Close() {
	_ = bw.watcher.Close()
	<-bw.done
}
