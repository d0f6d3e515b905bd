package imagedrop

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dshills/imagedrop/internal/event"
)

// insertCall records one InsertEmbed call.
type insertCall struct {
	index  int
	kind   string
	value  any
	source Source
}

// mockEditor implements Editor for testing.
type mockEditor struct {
	mu        sync.Mutex
	selection *Range
	length    int
	inserts   []insertCall
	inserted  chan insertCall
}

func newMockEditor(length int) *mockEditor {
	return &mockEditor{
		length:   length,
		inserted: make(chan insertCall, 16),
	}
}

func (m *mockEditor) GetSelection() (Range, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.selection == nil {
		return Range{}, false
	}
	return *m.selection, true
}

func (m *mockEditor) GetLength() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.length
}

func (m *mockEditor) InsertEmbed(index int, kind string, value any, source Source) {
	call := insertCall{index: index, kind: kind, value: value, source: source}
	m.mu.Lock()
	m.inserts = append(m.inserts, call)
	m.length++
	m.mu.Unlock()
	m.inserted <- call
}

func (m *mockEditor) setSelection(index int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.selection = &Range{Index: index}
}

func (m *mockEditor) calls() []insertCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]insertCall, len(m.inserts))
	copy(out, m.inserts)
	return out
}

// memBlob is an in-memory blob.
type memBlob struct {
	name    string
	mime    string
	data    []byte
	openErr error
}

func (b *memBlob) Type() string { return b.mime }

func (b *memBlob) Open() (io.ReadCloser, error) {
	if b.openErr != nil {
		return nil, b.openErr
	}
	return io.NopCloser(bytes.NewReader(b.data)), nil
}

// clipItem is the clipboard item shape.
type clipItem struct {
	mime string
	blob event.Blob
	err  error
}

func (c *clipItem) Type() string { return c.mime }

func (c *clipItem) GetAsFile() (event.Blob, error) {
	return c.blob, c.err
}

// countingDecoder counts Decode calls and delegates to DataURIDecoder.
type countingDecoder struct {
	mu    sync.Mutex
	calls int
}

func (d *countingDecoder) Decode(ctx context.Context, blob event.Blob) (string, error) {
	d.mu.Lock()
	d.calls++
	d.mu.Unlock()
	return DataURIDecoder{}.Decode(ctx, blob)
}

func (d *countingDecoder) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

// gatedDecoder blocks each decode until its blob's gate is closed.
type gatedDecoder struct {
	gates map[string]chan struct{}
}

func (d *gatedDecoder) Decode(ctx context.Context, blob event.Blob) (string, error) {
	b := blob.(*memBlob)
	select {
	case <-d.gates[b.name]:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	return "data:" + b.mime + ";base64," + b.name, nil
}

// mockNotifier records alerts.
type mockNotifier struct {
	mu     sync.Mutex
	alerts []string
}

func (n *mockNotifier) Alert(message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.alerts = append(n.alerts, message)
}

func (n *mockNotifier) messages() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.alerts...)
}

// errorRecorder collects errors passed to an ErrorHandler.
type errorRecorder struct {
	mu   sync.Mutex
	errs []error
}

func (r *errorRecorder) handle(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
}

func (r *errorRecorder) all() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.errs...)
}

// failingDoer fails every request at the transport level.
type failingDoer struct{ err error }

func (d failingDoer) Do(*http.Request) (*http.Response, error) { return nil, d.err }

// harness wires a handler to a real surface and loop.
type harness struct {
	t       *testing.T
	editor  *mockEditor
	root    *event.Surface
	loop    *event.Loop
	handler *Handler
}

func newHarness(t *testing.T, editor *mockEditor, cfg Config, opts ...Option) *harness {
	t.Helper()

	loop := event.NewLoop()
	require.NoError(t, loop.Start())
	t.Cleanup(func() {
		if loop.IsRunning() {
			_ = loop.Stop(context.Background())
		}
	})

	root := event.NewSurface()
	opts = append([]Option{WithScheduler(loop)}, opts...)
	h, err := New(editor, root, cfg, opts...)
	require.NoError(t, err)

	return &harness{t: t, editor: editor, root: root, loop: loop, handler: h}
}

// dispatch runs a root dispatch as a loop turn and waits for it.
func (h *harness) dispatch(name string, ev any) {
	h.t.Helper()
	done := make(chan error, 1)
	require.NoError(h.t, h.loop.Post(func() {
		done <- h.root.Dispatch(context.Background(), name, ev)
	}))
	select {
	case err := <-done:
		require.NoError(h.t, err)
	case <-time.After(2 * time.Second):
		h.t.Fatal("dispatch turn never ran")
	}
}

// settle waits for every pipeline to finish.
func (h *harness) settle() {
	h.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(h.t, h.handler.Close(ctx))
}

// waitInsert waits for the next insertion.
func (h *harness) waitInsert() insertCall {
	h.t.Helper()
	select {
	case call := <-h.editor.inserted:
		return call
	case <-time.After(2 * time.Second):
		h.t.Fatal("no insertion")
	}
	return insertCall{}
}

var errBoom = errors.New("boom")
