package imagedrop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/dshills/imagedrop/internal/event"
)

// Handler is the drop and paste plugin for one editor instance.
type Handler struct {
	editor    Editor
	root      Root
	scheduler Scheduler
	ownLoop   *event.Loop

	decoder       Decoder
	uploader      *Uploader
	upload        *UploadConfig
	pointSelector PointSelector
	observer      Observer
	onError       ErrorHandler

	ctx    context.Context
	logger *slog.Logger

	subs []event.Subscription

	mu       sync.Mutex
	closed   bool
	inflight sync.WaitGroup
}

// New attaches a handler to editor and subscribes to "drop" and "paste" on
// root. It rejects an upload configuration without a URL.
func New(editor Editor, root Root, cfg Config, opts ...Option) (*Handler, error) {
	if editor == nil {
		return nil, ErrNilEditor
	}
	if root == nil {
		return nil, ErrNilRoot
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	logger := o.logger.With("component", "imagedrop")

	notifier := o.notifier
	if notifier == nil {
		notifier = logNotifier{logger: logger}
	}

	upload, err := cfg.UploadImage.normalize(notifier)
	if err != nil {
		return nil, err
	}

	h := &Handler{
		editor:        editor,
		root:          root,
		scheduler:     o.scheduler,
		decoder:       o.decoder,
		upload:        upload,
		pointSelector: o.pointSelector,
		observer:      o.observer,
		onError:       o.onError,
		ctx:           o.ctx,
		logger:        logger,
	}
	if h.decoder == nil {
		h.decoder = DataURIDecoder{}
	}
	if h.observer == nil {
		h.observer = nopObserver{}
	}
	if h.onError == nil {
		h.onError = func(err error) {
			logger.Warn("image not inserted", "error", err)
		}
	}
	if upload != nil {
		h.uploader = NewUploader(*upload, o.client)
	}
	if h.scheduler == nil {
		h.ownLoop = event.NewLoop()
		if err := h.ownLoop.Start(); err != nil {
			return nil, fmt.Errorf("start loop: %w", err)
		}
		h.scheduler = h.ownLoop
	}

	if err := h.subscribe(); err != nil {
		h.unsubscribe()
		_ = h.stopOwnLoop(context.Background())
		return nil, err
	}

	logger.Debug("attached", "upload", upload != nil)
	return h, nil
}

func (h *Handler) subscribe() error {
	drop, err := h.root.AddEventListener(event.EventDrop, h.onDrop)
	if err != nil {
		return fmt.Errorf("subscribe drop: %w", err)
	}
	h.subs = append(h.subs, drop)

	paste, err := h.root.AddEventListener(event.EventPaste, h.onPaste)
	if err != nil {
		return fmt.Errorf("subscribe paste: %w", err)
	}
	h.subs = append(h.subs, paste)
	return nil
}

func (h *Handler) unsubscribe() {
	for _, sub := range h.subs {
		if err := h.root.RemoveEventListener(sub); err != nil {
			h.logger.Debug("remove listener", "name", sub.Name(), "error", err)
		}
	}
	h.subs = nil
}

// Close removes the listeners and waits until every started pipeline has
// reached its final state or ctx is done. A loop owned by the handler is
// stopped afterwards. Close must not be called from a scheduler turn.
func (h *Handler) Close(ctx context.Context) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return ErrClosed
	}
	h.closed = true
	h.mu.Unlock()

	h.unsubscribe()

	done := make(chan struct{})
	go func() {
		h.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return h.stopOwnLoop(ctx)
}

func (h *Handler) stopOwnLoop(ctx context.Context) error {
	if h.ownLoop == nil {
		return nil
	}
	return h.ownLoop.Stop(ctx)
}

// Scheduler returns the scheduler the handler touches the editor from:
// the one given with WithScheduler, or the handler's own loop.
func (h *Handler) Scheduler() Scheduler {
	return h.scheduler
}

func (h *Handler) onDrop(_ context.Context, ev any) error {
	drop, ok := ev.(*event.DropEvent)
	if !ok {
		return fmt.Errorf("%w: drop listener got %T", event.ErrInvalidEvent, ev)
	}
	drop.PreventDefault()
	return h.listen(func() { h.HandleDrop(drop) })
}

func (h *Handler) onPaste(_ context.Context, ev any) error {
	paste, ok := ev.(*event.PasteEvent)
	if !ok {
		return fmt.Errorf("%w: paste listener got %T", event.ErrInvalidEvent, ev)
	}
	return h.listen(func() { h.HandlePaste(paste) })
}

// listen runs a listener body. A host scheduler dispatches from its own
// turns, so fn runs in place; an owned loop is never the dispatching
// goroutine, so fn is posted to it and Close waits for the turn.
func (h *Handler) listen(fn func()) error {
	if h.ownLoop == nil {
		fn()
		return nil
	}
	if !h.hold() {
		return ErrClosed
	}
	if err := h.ownLoop.Post(func() {
		defer h.inflight.Done()
		fn()
	}); err != nil {
		h.inflight.Done()
		return err
	}
	return nil
}

// HandleDrop suppresses the platform's default drop behavior, moves the
// caret under the pointer when the platform supports it, and processes the
// dropped files. It must run on the scheduler.
func (h *Handler) HandleDrop(ev *event.DropEvent) {
	ev.PreventDefault()

	files := ev.DataTransfer.Files
	if len(files) == 0 {
		return
	}

	if h.pointSelector != nil {
		if err := h.pointSelector.SelectPoint(ev.ClientX, ev.ClientY); err != nil {
			h.logger.Debug("caret not moved to drop point", "x", ev.ClientX, "y", ev.ClientY, "error", err)
		}
	}

	h.readFiles(files, h.uploadOrInsert)
}

// HandlePaste processes pasted clipboard items. When the editor already
// has a selection as soon as an image is decoded, the platform placed the
// pasted image itself and nothing more is done; otherwise insertion is
// deferred one scheduler turn so the selection can settle. It must run on
// the scheduler.
func (h *Handler) HandlePaste(ev *event.PasteEvent) {
	items := ev.ClipboardData.Items
	if len(items) == 0 {
		return
	}

	h.readFiles(items, func(p *pipeline, dataURI string) {
		if _, ok := h.editor.GetSelection(); ok {
			p.logger.Debug("pasted image already placed by platform")
			p.finish()
			return
		}
		h.post(p, func() { h.uploadOrInsert(p, dataURI) })
	})
}

// Insert inserts value as an image embed at the selection index, or at the
// end of the document when there is no selection. It must run on the
// scheduler.
func (h *Handler) Insert(value any) {
	index := h.editor.GetLength()
	if sel, ok := h.editor.GetSelection(); ok {
		index = sel.Index
	}
	h.editor.InsertEmbed(index, EmbedImage, value, SourceUser)
	h.observer.RecordInsert()
}

// pipeline tracks one accepted file until its final state.
type pipeline struct {
	id       string
	mimeType string
	logger   *slog.Logger
	once     sync.Once
	done     func()
}

// finish marks the pipeline as ended. Safe to call more than once.
func (p *pipeline) finish() {
	p.once.Do(p.done)
}

// hold registers work Close waits for. It reports false once the handler
// is closed; the caller releases a hold with h.inflight.Done.
func (h *Handler) hold() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.inflight.Add(1)
	return true
}

// begin starts tracking a pipeline. It returns nil once the handler is
// closed.
func (h *Handler) begin(mimeType string) *pipeline {
	if !h.hold() {
		return nil
	}

	id := uuid.NewString()
	return &pipeline{
		id:       id,
		mimeType: mimeType,
		logger:   h.logger.With("pipeline", id, "mime", mimeType),
		done:     h.inflight.Done,
	}
}

// post queues fn as a scheduler turn for p. If the scheduler refuses it the
// pipeline ends without insertion.
func (h *Handler) post(p *pipeline, fn func()) {
	if err := h.scheduler.Post(fn); err != nil {
		p.logger.Warn("scheduler rejected turn", "error", err)
		p.finish()
	}
}

// readFiles filters entries by MIME type, captures each accepted blob now,
// and decodes it on its own goroutine. cb runs as a scheduler turn for
// every successful decode, in completion order, and owns the pipeline
// from then on.
func (h *Handler) readFiles(entries []event.Entry, cb func(p *pipeline, dataURI string)) {
	for _, entry := range entries {
		if entry == nil {
			continue
		}
		mimeType := entry.Type()
		if !IsAllowedImage(mimeType) {
			h.observer.RecordEntry(false)
			h.logger.Debug("entry skipped", "mime", mimeType)
			continue
		}
		h.observer.RecordEntry(true)

		blob, err := blobOf(entry)
		if err != nil {
			h.onError(&DecodeError{MIMEType: mimeType, Err: err})
			continue
		}

		p := h.begin(mimeType)
		if p == nil {
			return
		}
		go h.decode(p, blob, cb)
	}
}

func (h *Handler) decode(p *pipeline, blob event.Blob, cb func(p *pipeline, dataURI string)) {
	start := time.Now()
	dataURI, err := h.decoder.Decode(h.ctx, blob)
	h.observer.RecordDecode(time.Since(start), err)

	h.post(p, func() {
		if err != nil {
			h.onError(&DecodeError{MIMEType: p.mimeType, Err: err})
			p.finish()
			return
		}
		p.logger.Debug("decoded", "bytes", len(dataURI))
		cb(p, dataURI)
	})
}

// blobOf returns the blob behind an entry: clipboard items hand it out via
// GetAsFile, file list entries are blobs themselves.
func blobOf(entry event.Entry) (event.Blob, error) {
	if item, ok := entry.(event.Item); ok {
		blob, err := item.GetAsFile()
		if err != nil {
			return nil, fmt.Errorf("get clipboard file: %w", err)
		}
		if blob == nil {
			return nil, ErrNotImage
		}
		return blob, nil
	}
	if blob, ok := entry.(event.Blob); ok {
		return blob, nil
	}
	return nil, ErrNotImage
}

// uploadOrInsert inserts dataURI directly, or uploads it first when upload
// is configured. It runs on the scheduler.
func (h *Handler) uploadOrInsert(p *pipeline, dataURI string) {
	if h.uploader == nil {
		h.Insert(dataURI)
		p.logger.Debug("inserted data URI")
		p.finish()
		return
	}

	go func() {
		start := time.Now()
		response, err := h.uploader.Upload(h.ctx, dataURI)
		h.observer.RecordUpload(time.Since(start), err)

		h.post(p, func() {
			defer p.finish()
			h.route(p, response, err)
		})
	}()
}

// route hands an upload outcome to the configured callbacks.
func (h *Handler) route(p *pipeline, response any, err error) {
	var uerr *UploadError
	switch {
	case errors.As(err, &uerr):
		p.logger.Info("upload rejected", "code", uerr.Code, "status", uerr.Type)
		h.upload.CallbackKO(uerr)
	case err != nil:
		h.onError(err)
	default:
		p.logger.Debug("uploaded")
		h.upload.CallbackOK(response, h.insertOnce(p))
	}
}

// insertOnce returns the InsertFunc handed to CallbackOK. The insertion
// runs as its own scheduler turn, whichever goroutine calls insert, and
// Close waits for that turn. A callback may keep insert and call it after
// returning; once the handler is closed such a call inserts nothing and is
// reported to the ErrorHandler.
func (h *Handler) insertOnce(p *pipeline) InsertFunc {
	var called atomic.Bool
	return func(value any) {
		if called.Swap(true) {
			p.logger.Warn("insert called more than once, ignoring")
			return
		}
		if !h.hold() {
			h.onError(fmt.Errorf("insert upload response: %w", ErrClosed))
			return
		}
		err := h.scheduler.Post(func() {
			defer h.inflight.Done()
			h.Insert(value)
			p.logger.Debug("inserted upload response")
		})
		if err != nil {
			h.inflight.Done()
			h.onError(fmt.Errorf("insert upload response: %w", err))
		}
	}
}
