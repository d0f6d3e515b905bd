package imagedrop

import (
	"context"
	"log/slog"
)

// Option configures a Handler.
type Option func(*options)

type options struct {
	ctx           context.Context
	logger        *slog.Logger
	scheduler     Scheduler
	decoder       Decoder
	client        Doer
	notifier      Notifier
	pointSelector PointSelector
	observer      Observer
	onError       ErrorHandler
}

func defaultOptions() options {
	return options{
		ctx:    context.Background(),
		logger: slog.Default(),
	}
}

// WithContext sets the context decodes and uploads run under.
// Cancelling it aborts in-flight work; aborted files are not inserted.
func WithContext(ctx context.Context) Option {
	return func(o *options) {
		if ctx != nil {
			o.ctx = ctx
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithScheduler sets the editor's scheduler. The host must dispatch drop
// and paste from its turns. Without it the Handler runs its own event.Loop,
// posts its listener bodies there and stops it on Close.
func WithScheduler(s Scheduler) Option {
	return func(o *options) {
		o.scheduler = s
	}
}

// WithDecoder replaces the data URI decoder.
func WithDecoder(d Decoder) Option {
	return func(o *options) {
		o.decoder = d
	}
}

// WithHTTPClient sets the client used for uploads.
func WithHTTPClient(c Doer) Option {
	return func(o *options) {
		o.client = c
	}
}

// WithNotifier sets where the default CallbackKO shows failures.
func WithNotifier(n Notifier) Option {
	return func(o *options) {
		o.notifier = n
	}
}

// WithPointSelector enables moving the caret to the drop position.
func WithPointSelector(p PointSelector) Option {
	return func(o *options) {
		o.pointSelector = p
	}
}

// WithObserver sets the metrics observer.
func WithObserver(obs Observer) Option {
	return func(o *options) {
		o.observer = obs
	}
}

// WithErrorHandler receives decode, transport and response errors.
// By default they are logged at warn level.
func WithErrorHandler(h ErrorHandler) Option {
	return func(o *options) {
		o.onError = h
	}
}
