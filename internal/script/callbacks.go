package script

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/imagedrop/internal/imagedrop"
)

// Global function names looked up in a script.
const (
	GlobalCallbackOK = "callbackOK"
	GlobalCallbackKO = "callbackKO"
)

// DefaultCallTimeout bounds one call into a script.
const DefaultCallTimeout = time.Second

// Callbacks is a loaded upload script.
type Callbacks struct {
	mu     sync.Mutex
	L      *lua.LState
	name   string
	closed bool

	ok *lua.LFunction
	ko *lua.LFunction

	timeout  time.Duration
	notifier imagedrop.Notifier
	onError  func(error)
	logger   *slog.Logger
}

// Option configures Callbacks.
type Option func(*Callbacks)

// WithNotifier sets where alert() messages go. By default they are
// logged at error level.
func WithNotifier(n imagedrop.Notifier) Option {
	return func(c *Callbacks) {
		c.notifier = n
	}
}

// WithErrorHandler receives failed calls as *CallbackError. By default
// they are logged at warn level.
func WithErrorHandler(fn func(error)) Option {
	return func(c *Callbacks) {
		c.onError = fn
	}
}

// WithCallTimeout bounds each call into the script.
func WithCallTimeout(d time.Duration) Option {
	return func(c *Callbacks) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLogger sets the logger used by print() and the default handlers.
func WithLogger(l *slog.Logger) Option {
	return func(c *Callbacks) {
		if l != nil {
			c.logger = l
		}
	}
}

// Load reads and runs the script at path.
func Load(path string, opts ...Option) (*Callbacks, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}
	return Compile(path, string(src), opts...)
}

// Compile runs source as a script named name and picks up its callbacks.
func Compile(name, source string, opts ...Option) (*Callbacks, error) {
	c := &Callbacks{
		name:    name,
		timeout: DefaultCallTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "script", "script", name)
	if c.onError == nil {
		c.onError = func(err error) {
			c.logger.Warn("upload callback failed", "error", err)
		}
	}

	L, err := newSandbox()
	if err != nil {
		return nil, err
	}
	c.L = L
	L.SetGlobal("alert", L.NewFunction(c.luaAlert))
	L.SetGlobal("print", L.NewFunction(c.luaPrint))

	if err := c.run(source); err != nil {
		L.Close()
		return nil, err
	}

	if c.ok, err = c.global(GlobalCallbackOK); err != nil {
		L.Close()
		return nil, err
	}
	if c.ko, err = c.global(GlobalCallbackKO); err != nil {
		L.Close()
		return nil, err
	}
	if c.ok == nil && c.ko == nil {
		L.Close()
		return nil, fmt.Errorf("%s: %w", name, ErrNoCallbacks)
	}
	return c, nil
}

// newSandbox opens the safe libraries only.
func newSandbox() (*lua.LState, error) {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})

	libs := []struct {
		name string
		open lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
	}
	for _, lib := range libs {
		err := L.CallByParam(lua.P{Fn: L.NewFunction(lib.open), NRet: 0, Protect: true}, lua.LString(lib.name))
		if err != nil {
			L.Close()
			return nil, fmt.Errorf("open lua library %q: %w", lib.name, err)
		}
	}

	for _, name := range []string{"dofile", "loadfile", "load", "loadstring", "require", "module"} {
		L.SetGlobal(name, lua.LNil)
	}
	return L, nil
}

// run executes the script body under the call timeout.
func (c *Callbacks) run(source string) error {
	fn, err := c.L.Load(strings.NewReader(source), c.name)
	if err != nil {
		return fmt.Errorf("compile %s: %w", c.name, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	c.L.SetContext(ctx)
	defer c.L.RemoveContext()

	if err := c.L.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true}); err != nil {
		return fmt.Errorf("run %s: %w", c.name, err)
	}
	return nil
}

func (c *Callbacks) global(name string) (*lua.LFunction, error) {
	switch v := c.L.GetGlobal(name).(type) {
	case *lua.LNilType:
		return nil, nil
	case *lua.LFunction:
		return v, nil
	default:
		return nil, fmt.Errorf("%s: %s is a %s, not a function", c.name, name, v.Type())
	}
}

// OK returns the script's callbackOK, or nil when it defines none.
func (c *Callbacks) OK() imagedrop.CallbackOK {
	if c.ok == nil {
		return nil
	}
	return func(response any, insert imagedrop.InsertFunc) {
		c.call(GlobalCallbackOK, c.ok, func(L *lua.LState) []lua.LValue {
			luaInsert := L.NewFunction(func(L *lua.LState) int {
				insert(fromLua(L.Get(1)))
				return 0
			})
			return []lua.LValue{toLua(L, response), luaInsert}
		})
	}
}

// KO returns the script's callbackKO, or nil when it defines none.
func (c *Callbacks) KO() imagedrop.CallbackKO {
	if c.ko == nil {
		return nil
	}
	return func(uerr *imagedrop.UploadError) {
		c.call(GlobalCallbackKO, c.ko, func(L *lua.LState) []lua.LValue {
			t := L.CreateTable(0, 4)
			t.RawSetString("code", lua.LNumber(uerr.Code))
			t.RawSetString("type", lua.LString(uerr.Type))
			t.RawSetString("body", lua.LString(uerr.Body))
			t.RawSetString("message", lua.LString(uerr.Error()))
			return []lua.LValue{t}
		})
	}
}

// call invokes fn with the arguments built by args. Failures go to the
// error handler.
func (c *Callbacks) call(name string, fn *lua.LFunction, args func(L *lua.LState) []lua.LValue) {
	err := c.protectedCall(fn, args)
	if err != nil {
		c.onError(&CallbackError{Script: c.name, Callback: name, Err: err})
	}
}

func (c *Callbacks) protectedCall(fn *lua.LFunction, args func(L *lua.LState) []lua.LValue) (err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("lua panic: %v", r)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	c.L.SetContext(ctx)
	defer c.L.RemoveContext()

	err = c.L.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true}, args(c.L)...)
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s: %v", context.DeadlineExceeded, c.timeout, err)
	}
	return err
}

func (c *Callbacks) luaAlert(L *lua.LState) int {
	msg := L.CheckString(1)
	if c.notifier != nil {
		c.notifier.Alert(msg)
	} else {
		c.logger.Error(msg)
	}
	return 0
}

func (c *Callbacks) luaPrint(L *lua.LState) int {
	parts := make([]string, L.GetTop())
	for i := range parts {
		parts[i] = L.ToStringMeta(L.Get(i + 1)).String()
	}
	c.logger.Info(strings.Join(parts, "\t"))
	return 0
}

// Close releases the Lua state. Later callback calls report ErrClosed.
func (c *Callbacks) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.L.Close()
	return nil
}
