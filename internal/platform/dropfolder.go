package platform

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/dshills/imagedrop/internal/event"
	"github.com/dshills/imagedrop/internal/imagedrop"
)

// DefaultSettleDelay is how long a file must stay unchanged before it is
// dropped.
const DefaultSettleDelay = 200 * time.Millisecond

// ErrNotDirectory is returned when the drop folder path is not a directory.
var ErrNotDirectory = errors.New("not a directory")

// Dispatcher delivers an event to its listeners. *event.Surface satisfies it.
type Dispatcher interface {
	Dispatch(ctx context.Context, name string, ev any) error
}

// DropFolderOption configures a DropFolder.
type DropFolderOption func(*DropFolder)

// WithSettleDelay sets how long writes to a file must pause before it is
// dropped.
func WithSettleDelay(d time.Duration) DropFolderOption {
	return func(f *DropFolder) {
		if d > 0 {
			f.delay = d
		}
	}
}

// WithFolderLogger sets the logger.
func WithFolderLogger(l *slog.Logger) DropFolderOption {
	return func(f *DropFolder) {
		if l != nil {
			f.logger = l
		}
	}
}

// WithHiddenFiles includes dot files, which are skipped by default.
func WithHiddenFiles() DropFolderOption {
	return func(f *DropFolder) {
		f.includeHidden = true
	}
}

// DropFolder watches a directory and turns every file that appears in it
// into a single-file drop event. Repeated writes to the same path are
// coalesced until the file settles.
type DropFolder struct {
	dir           string
	watcher       *fsnotify.Watcher
	target        Dispatcher
	scheduler     imagedrop.Scheduler
	ctx           context.Context
	delay         time.Duration
	includeHidden bool
	logger        *slog.Logger

	mu      sync.Mutex
	pending map[string]*time.Timer
	closed  bool
	closeCh chan struct{}
	wg      sync.WaitGroup

	dropped atomic.Int64
}

// NewDropFolder starts watching dir. Drop events are dispatched to target
// on scheduler turns with ctx.
func NewDropFolder(ctx context.Context, dir string, target Dispatcher, scheduler imagedrop.Scheduler, opts ...DropFolderOption) (*DropFolder, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(absDir)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s: %w", absDir, ErrNotDirectory)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(absDir); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("watch %s: %w", absDir, err)
	}

	f := &DropFolder{
		dir:       absDir,
		watcher:   fsw,
		target:    target,
		scheduler: scheduler,
		ctx:       ctx,
		delay:     DefaultSettleDelay,
		logger:    slog.Default(),
		pending:   make(map[string]*time.Timer),
		closeCh:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(f)
	}
	f.logger = f.logger.With(slog.String("dir", absDir))

	f.wg.Add(1)
	go f.processLoop()

	return f, nil
}

// Dir returns the absolute path being watched.
func (f *DropFolder) Dir() string { return f.dir }

// Dropped returns the number of drop events posted so far.
func (f *DropFolder) Dropped() int64 { return f.dropped.Load() }

// Close stops watching. Files still settling are not dropped.
func (f *DropFolder) Close() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.closed = true
	close(f.closeCh)
	for path, t := range f.pending {
		t.Stop()
		delete(f.pending, path)
	}
	f.mu.Unlock()

	f.wg.Wait()
	return f.watcher.Close()
}

func (f *DropFolder) processLoop() {
	defer f.wg.Done()

	for {
		select {
		case <-f.closeCh:
			return

		case ev, ok := <-f.watcher.Events:
			if !ok {
				return
			}
			if ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write) {
				f.schedule(ev.Name)
			}

		case err, ok := <-f.watcher.Errors:
			if !ok {
				return
			}
			f.logger.Warn("watch error", slog.Any("error", err))
		}
	}
}

// schedule (re)starts the settle timer for path.
func (f *DropFolder) schedule(path string) {
	if !f.includeHidden {
		if base := filepath.Base(path); len(base) > 0 && base[0] == '.' {
			return
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}

	if t, exists := f.pending[path]; exists {
		t.Reset(f.delay)
		return
	}
	f.pending[path] = time.AfterFunc(f.delay, func() {
		f.fire(path)
	})
}

// fire posts a drop event for a settled file.
func (f *DropFolder) fire(path string) {
	f.mu.Lock()
	if _, exists := f.pending[path]; !exists || f.closed {
		f.mu.Unlock()
		return
	}
	delete(f.pending, path)
	f.wg.Add(1)
	f.mu.Unlock()
	defer f.wg.Done()

	blob, err := NewFileBlob(path)
	if err != nil {
		f.logger.Debug("skipping entry", slog.String("path", path), slog.Any("error", err))
		return
	}

	ev := event.NewDropEvent(0, 0, blob)
	err = f.scheduler.Post(func() {
		if err := f.target.Dispatch(f.ctx, event.EventDrop, ev); err != nil {
			f.logger.Warn("drop dispatch failed", slog.String("path", path), slog.Any("error", err))
		}
	})
	if err != nil {
		f.logger.Warn("drop not scheduled", slog.String("path", path), slog.Any("error", err))
		return
	}

	f.dropped.Add(1)
	f.logger.Info("file dropped", slog.String("path", path), slog.String("type", blob.Type()))
}
