package event

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startLoop(t *testing.T, opts ...LoopOption) *Loop {
	t.Helper()
	l := NewLoop(opts...)
	require.NoError(t, l.Start())
	t.Cleanup(func() {
		if l.IsRunning() {
			_ = l.Stop(context.Background())
		}
	})
	return l
}

func TestLoop_FIFO(t *testing.T) {
	l := startLoop(t)

	var got []int
	for i := 0; i < 100; i++ {
		i := i
		require.NoError(t, l.Post(func() { got = append(got, i) }))
	}
	require.NoError(t, l.Stop(context.Background()))

	require.Len(t, got, 100)
	for i, v := range got {
		assert.Equal(t, i, v)
	}
}

func TestLoop_TurnsDoNotOverlap(t *testing.T) {
	l := startLoop(t)

	var mu sync.Mutex
	active, maxActive := 0, 0

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = l.Post(func() {
				mu.Lock()
				active++
				if active > maxActive {
					maxActive = active
				}
				mu.Unlock()

				time.Sleep(time.Millisecond)

				mu.Lock()
				active--
				mu.Unlock()
			})
		}()
	}
	wg.Wait()
	require.NoError(t, l.Stop(context.Background()))

	assert.Equal(t, 1, maxActive)
	assert.Equal(t, uint64(20), l.Stats().Executed)
}

func TestLoop_PostFromTurnRunsLater(t *testing.T) {
	l := startLoop(t)

	var order []string
	done := make(chan struct{})
	require.NoError(t, l.Post(func() {
		_ = l.Post(func() {
			order = append(order, "deferred")
			close(done)
		})
		order = append(order, "current")
	}))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("deferred turn never ran")
	}
	assert.Equal(t, []string{"current", "deferred"}, order)
}

func TestLoop_Lifecycle(t *testing.T) {
	l := NewLoop()

	assert.ErrorIs(t, l.Post(func() {}), ErrLoopStopped)
	assert.ErrorIs(t, l.Stop(context.Background()), ErrLoopStopped)

	require.NoError(t, l.Start())
	assert.ErrorIs(t, l.Start(), ErrLoopAlreadyRunning)
	assert.ErrorIs(t, l.Post(nil), ErrNilListener)

	require.NoError(t, l.Stop(context.Background()))
	assert.False(t, l.IsRunning())
	assert.ErrorIs(t, l.Post(func() {}), ErrLoopStopped)
}

func TestLoop_PanicRecovered(t *testing.T) {
	panics := make(chan any, 1)
	l := startLoop(t, WithLoopPanicHandler(func(_ string, r any, _ []byte) {
		panics <- r
	}))

	ran := make(chan struct{})
	require.NoError(t, l.Post(func() { panic("turn exploded") }))
	require.NoError(t, l.Post(func() { close(ran) }))

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("loop stopped after a panicking turn")
	}
	assert.Equal(t, "turn exploded", <-panics)
	assert.Equal(t, uint64(1), l.Stats().Panicked)
}

func TestLoop_StopHonoursContext(t *testing.T) {
	l := startLoop(t)

	release := make(chan struct{})
	require.NoError(t, l.Post(func() { <-release }))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, l.Stop(ctx), context.DeadlineExceeded)

	close(release)
}
