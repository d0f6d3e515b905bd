package event

import (
	"context"
	"runtime/debug"
	"sync"
	"sync/atomic"
)

// Loop runs posted turns one at a time, in FIFO order, on a single
// goroutine. It is the execution context editor state is touched from.
//
// Unlike a bounded worker queue, Post never drops a turn: completions of
// in-flight work must always get their turn.
type Loop struct {
	mu      sync.Mutex
	cond    *sync.Cond
	queue   []func()
	running atomic.Bool
	done    chan struct{}

	panicHandler PanicHandler

	// Stats
	posted   atomic.Uint64
	executed atomic.Uint64
	panicked atomic.Uint64
}

// LoopOption configures a Loop.
type LoopOption func(*Loop)

// WithLoopPanicHandler sets the handler called when a turn panics.
func WithLoopPanicHandler(h PanicHandler) LoopOption {
	return func(l *Loop) {
		if h != nil {
			l.panicHandler = h
		}
	}
}

// LoopStats contains loop statistics.
type LoopStats struct {
	Posted   uint64
	Executed uint64
	Panicked uint64
	Pending  int
}

// NewLoop creates a stopped loop.
func NewLoop(opts ...LoopOption) *Loop {
	l := &Loop{panicHandler: DefaultPanicHandler}
	l.cond = sync.NewCond(&l.mu)
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Start starts the loop goroutine.
func (l *Loop) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.running.Load() {
		return ErrLoopAlreadyRunning
	}
	l.running.Store(true)
	l.done = make(chan struct{})

	go l.run(l.done)
	return nil
}

// Stop stops accepting turns and waits until the queued ones have run or
// ctx is done.
func (l *Loop) Stop(ctx context.Context) error {
	l.mu.Lock()
	if !l.running.Load() {
		l.mu.Unlock()
		return ErrLoopStopped
	}
	l.running.Store(false)
	done := l.done
	l.cond.Broadcast()
	l.mu.Unlock()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsRunning returns true if the loop accepts turns.
func (l *Loop) IsRunning() bool {
	return l.running.Load()
}

// Post queues fn to run on the loop goroutine after every turn queued
// before it. It never blocks.
func (l *Loop) Post(fn func()) error {
	if fn == nil {
		return ErrNilListener
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.running.Load() {
		return ErrLoopStopped
	}
	l.queue = append(l.queue, fn)
	l.posted.Add(1)
	l.cond.Signal()
	return nil
}

// Stats returns current loop statistics.
func (l *Loop) Stats() LoopStats {
	l.mu.Lock()
	pending := len(l.queue)
	l.mu.Unlock()

	return LoopStats{
		Posted:   l.posted.Load(),
		Executed: l.executed.Load(),
		Panicked: l.panicked.Load(),
		Pending:  pending,
	}
}

// run drains the queue until the loop is stopped and empty.
func (l *Loop) run(done chan struct{}) {
	defer close(done)

	for {
		l.mu.Lock()
		for len(l.queue) == 0 && l.running.Load() {
			l.cond.Wait()
		}
		if len(l.queue) == 0 {
			l.mu.Unlock()
			return
		}
		fn := l.queue[0]
		l.queue[0] = nil
		l.queue = l.queue[1:]
		l.mu.Unlock()

		l.execute(fn)
	}
}

// execute runs a single turn with panic recovery.
func (l *Loop) execute(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.panicked.Add(1)
			l.panicHandler("", r, debug.Stack())
		}
	}()

	l.executed.Add(1)
	fn()
}
