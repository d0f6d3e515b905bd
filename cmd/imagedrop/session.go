package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/dshills/imagedrop/internal/event"
	"github.com/dshills/imagedrop/internal/imagedrop"
	"github.com/dshills/imagedrop/internal/platform"
	"github.com/dshills/imagedrop/internal/script"
)

// shutdownTimeout bounds waiting for in-flight images on exit.
const shutdownTimeout = 30 * time.Second

// errNotInserted is returned by session.close when some images failed.
var errNotInserted = errors.New("image(s) not inserted")

// session wires a scratch editor, an event surface and a loop to one
// imagedrop handler.
type session struct {
	editor  *platform.ScratchEditor
	surface *event.Surface
	loop    *event.Loop
	handler *imagedrop.Handler
	script  *script.Callbacks
	logger  *slog.Logger

	failures atomic.Int64
}

func (c *cli) openSession(ctx context.Context, editor *platform.ScratchEditor, opts ...imagedrop.Option) (*session, error) {
	s := &session{
		editor:  editor,
		surface: event.NewSurface(),
		logger:  c.logger,
	}
	notifier := platform.NewWriterNotifier(c.stderr)

	cfg := c.settings.ImageDrop(func(err error) {
		s.failures.Add(1)
		s.logger.Warn("upload response not inserted", slog.Any("error", err))
	})
	if cfg.UploadImage != nil {
		ko := imagedrop.AlertCallbackKO(notifier)
		if path := c.settings.Upload.Script; path != "" {
			cbs, err := script.Load(path,
				script.WithNotifier(notifier),
				script.WithLogger(c.logger),
				script.WithErrorHandler(func(err error) {
					s.failures.Add(1)
					s.logger.Warn("upload callback failed", slog.Any("error", err))
				}),
			)
			if err != nil {
				return nil, fmt.Errorf("failed to load upload script: %w", err)
			}
			s.script = cbs
			if ok := cbs.OK(); ok != nil {
				cfg.UploadImage.CallbackOK = ok
			}
			if scripted := cbs.KO(); scripted != nil {
				ko = scripted
			}
		}
		cfg.UploadImage.CallbackKO = func(err *imagedrop.UploadError) {
			s.failures.Add(1)
			ko(err)
		}
	}

	s.loop = event.NewLoop()
	if err := s.loop.Start(); err != nil {
		s.closeScript()
		return nil, err
	}

	base := []imagedrop.Option{
		imagedrop.WithContext(ctx),
		imagedrop.WithLogger(c.logger),
		imagedrop.WithScheduler(s.loop),
		imagedrop.WithNotifier(notifier),
		imagedrop.WithErrorHandler(func(err error) {
			s.failures.Add(1)
			s.logger.Warn("image not inserted", slog.Any("error", err))
		}),
	}

	h, err := imagedrop.New(s.editor, s.surface, cfg, append(base, opts...)...)
	if err != nil {
		_ = s.loop.Stop(context.Background())
		s.closeScript()
		return nil, err
	}
	s.handler = h
	return s, nil
}

func (s *session) closeScript() {
	if s.script != nil {
		_ = s.script.Close()
	}
}

// dispatch delivers ev on a loop turn and waits for the listeners.
func (s *session) dispatch(ctx context.Context, name string, ev any) error {
	errc := make(chan error, 1)
	if err := s.loop.Post(func() {
		errc <- s.surface.Dispatch(ctx, name, ev)
	}); err != nil {
		return err
	}
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// close waits for in-flight images and reports failed ones.
func (s *session) close() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err := s.handler.Close(ctx)
	if stopErr := s.loop.Stop(ctx); stopErr != nil {
		err = errors.Join(err, stopErr)
	}
	s.closeScript()
	if err != nil {
		return err
	}
	if werr := s.editor.Err(); werr != nil {
		return fmt.Errorf("writing output: %w", werr)
	}
	if n := s.failures.Load(); n > 0 {
		return fmt.Errorf("%d %w", n, errNotInserted)
	}
	return nil
}
