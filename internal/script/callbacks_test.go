package script

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/imagedrop/internal/imagedrop"
)

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

// errorRecorder collects errors passed to an error handler.
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

func compile(t *testing.T, source string, opts ...Option) *Callbacks {
	t.Helper()
	c, err := Compile("test.lua", source, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

// runOK calls the script's callbackOK and returns what it inserted.
func runOK(t *testing.T, c *Callbacks, response any) []any {
	t.Helper()
	ok := c.OK()
	require.NotNil(t, ok)
	var inserted []any
	ok(response, func(v any) { inserted = append(inserted, v) })
	return inserted
}

func TestCallbackOK_InsertsField(t *testing.T) {
	c := compile(t, `
function callbackOK(response, insert)
  insert(response.data.files[1].url)
end
`)

	got := runOK(t, c, map[string]any{
		"data": map[string]any{
			"files": []any{map[string]any{"url": "https://cdn.example/a.png"}},
		},
	})
	assert.Equal(t, []any{"https://cdn.example/a.png"}, got)
	assert.Nil(t, c.KO())
}

func TestCallbackOK_ValueConversion(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		response any
		want     any
	}{
		{"string response", `insert(response .. "?w=640")`, "https://cdn.example/b.png", "https://cdn.example/b.png?w=640"},
		{"number", `insert(response.width * 2)`, map[string]any{"width": float64(320)}, int64(640)},
		{"fraction", `insert(response.ratio)`, map[string]any{"ratio": 0.5}, 0.5},
		{"sequence", `insert({"a", "b"})`, nil, []any{"a", "b"}},
		{"table", `insert({src = response.url, alt = "shot"})`, map[string]any{"url": "u"}, map[string]any{"src": "u", "alt": "shot"}},
		{"bool", `insert(response.ok == true)`, map[string]any{"ok": true}, true},
		{"nil", `insert(nil)`, nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := compile(t, "function callbackOK(response, insert)\n"+tt.body+"\nend")
			assert.Equal(t, []any{tt.want}, runOK(t, c, tt.response))
		})
	}
}

func TestCallbackOK_MayDecline(t *testing.T) {
	c := compile(t, `
function callbackOK(response, insert)
  if response.url == nil then return end
  insert(response.url)
end
`)
	assert.Empty(t, runOK(t, c, map[string]any{"id": float64(3)}))
	assert.Equal(t, []any{"u"}, runOK(t, c, map[string]any{"url": "u"}))
}

func TestCallbackKO_Alerts(t *testing.T) {
	notifier := &mockNotifier{}
	c := compile(t, `
function callbackKO(err)
  alert("upload rejected (" .. err.code .. " " .. err.type .. "): " .. err.body)
end
`, WithNotifier(notifier))

	assert.Nil(t, c.OK())
	ko := c.KO()
	require.NotNil(t, ko)
	ko(&imagedrop.UploadError{Code: 413, Type: "Request Entity Too Large", Body: "too big"})

	assert.Equal(t, []string{"upload rejected (413 Request Entity Too Large): too big"}, notifier.messages())
}

func TestCallbackKO_Message(t *testing.T) {
	notifier := &mockNotifier{}
	c := compile(t, `function callbackKO(err) alert(err.message) end`, WithNotifier(notifier))

	c.KO()(&imagedrop.UploadError{Code: 500, Type: "Internal Server Error", Body: "boom"})
	assert.Equal(t, []string{"upload failed: 500 Internal Server Error: boom"}, notifier.messages())
}

func TestCompile_Errors(t *testing.T) {
	tests := []struct {
		name   string
		source string
		is     error
		msg    string
	}{
		{name: "no callbacks", source: `x = 1`, is: ErrNoCallbacks},
		{name: "not a function", source: `callbackOK = "insert"`, msg: "callbackOK is a string, not a function"},
		{name: "syntax", source: `function callbackOK(`, msg: "compile test.lua"},
		{name: "runtime", source: `error("bad config")`, msg: "bad config"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := Compile("test.lua", tt.source)
			require.Error(t, err)
			assert.Nil(t, c)
			if tt.is != nil {
				assert.ErrorIs(t, err, tt.is)
			}
			if tt.msg != "" {
				assert.ErrorContains(t, err, tt.msg)
			}
		})
	}
}

func TestCallback_RuntimeErrorGoesToErrorHandler(t *testing.T) {
	errs := &errorRecorder{}
	c := compile(t, `
function callbackOK(response, insert)
  insert(response.data.url)
end
`, WithErrorHandler(errs.handle))

	assert.Empty(t, runOK(t, c, map[string]any{}))

	got := errs.all()
	require.Len(t, got, 1)
	var cerr *CallbackError
	require.ErrorAs(t, got[0], &cerr)
	assert.Equal(t, "test.lua", cerr.Script)
	assert.Equal(t, GlobalCallbackOK, cerr.Callback)
}

func TestCallback_Timeout(t *testing.T) {
	errs := &errorRecorder{}
	c := compile(t, `
function callbackOK(response, insert)
  while true do end
end
`, WithErrorHandler(errs.handle), WithCallTimeout(50*time.Millisecond))

	start := time.Now()
	assert.Empty(t, runOK(t, c, nil))
	assert.Less(t, time.Since(start), 5*time.Second)

	got := errs.all()
	require.Len(t, got, 1)
	assert.ErrorIs(t, got[0], context.DeadlineExceeded)
}

func TestSandbox(t *testing.T) {
	c := compile(t, `
function callbackOK(response, insert)
  insert(tostring(os) .. tostring(io) .. tostring(dofile) .. tostring(loadstring) .. tostring(require))
end
`)
	assert.Equal(t, []any{"nilnilnilnilnil"}, runOK(t, c, nil))

	c = compile(t, `
function callbackOK(response, insert)
  insert(string.upper(table.concat({"a", "b"}, ",")) .. math.floor(2.7))
end
`)
	assert.Equal(t, []any{"A,B2"}, runOK(t, c, nil))
}

func TestPrintLogs(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	c := compile(t, `
print("loaded", 42)
function callbackKO(err) end
`, WithLogger(logger))
	require.NotNil(t, c)

	assert.Contains(t, buf.String(), `msg="loaded\t42"`)
	assert.Contains(t, buf.String(), "script=test.lua")
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "upload.lua")
	require.NoError(t, os.WriteFile(path, []byte(`function callbackOK(r, insert) insert(r.url) end`), 0o644))

	c, err := Load(path)
	require.NoError(t, err)
	defer c.Close()
	assert.Equal(t, []any{"u"}, runOK(t, c, map[string]any{"url": "u"}))

	_, err = Load(filepath.Join(dir, "missing.lua"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestClose(t *testing.T) {
	errs := &errorRecorder{}
	c := compile(t, `function callbackOK(r, insert) insert(r) end`, WithErrorHandler(errs.handle))
	ok := c.OK()

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	var inserted []any
	ok("u", func(v any) { inserted = append(inserted, v) })
	assert.Empty(t, inserted)
	got := errs.all()
	require.Len(t, got, 1)
	assert.ErrorIs(t, got[0], ErrClosed)
}
