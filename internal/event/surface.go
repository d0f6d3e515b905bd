package event

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/google/uuid"
)

// Surface is an editor content root that listeners attach to.
// It is safe for concurrent use; listeners themselves run on the
// goroutine that calls Dispatch.
type Surface struct {
	mu        sync.RWMutex
	listeners map[string][]*subscription

	panicHandler PanicHandler
}

// SurfaceOption configures a Surface.
type SurfaceOption func(*Surface)

// WithSurfacePanicHandler sets the handler called when a listener panics.
func WithSurfacePanicHandler(h PanicHandler) SurfaceOption {
	return func(s *Surface) {
		if h != nil {
			s.panicHandler = h
		}
	}
}

// NewSurface creates an empty content root.
func NewSurface(opts ...SurfaceOption) *Surface {
	s := &Surface{
		listeners:    make(map[string][]*subscription),
		panicHandler: DefaultPanicHandler,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddEventListener registers a listener for the named event.
func (s *Surface) AddEventListener(name string, listener Listener) (Subscription, error) {
	if listener == nil {
		return nil, ErrNilListener
	}
	if name == "" {
		return nil, ErrInvalidEvent
	}

	sub := newSubscription(uuid.NewString(), name, listener)

	s.mu.Lock()
	s.listeners[name] = append(s.listeners[name], sub)
	s.mu.Unlock()

	return sub, nil
}

// RemoveEventListener cancels and removes a subscription.
func (s *Surface) RemoveEventListener(sub Subscription) error {
	if sub == nil {
		return ErrUnknownSubscription
	}
	sub.Cancel()

	s.mu.Lock()
	defer s.mu.Unlock()

	subs := s.listeners[sub.Name()]
	for i, candidate := range subs {
		if candidate.ID() != sub.ID() {
			continue
		}
		// Copy so in-flight Dispatch snapshots stay intact.
		next := make([]*subscription, 0, len(subs)-1)
		next = append(next, subs[:i]...)
		next = append(next, subs[i+1:]...)
		if len(next) == 0 {
			delete(s.listeners, sub.Name())
		} else {
			s.listeners[sub.Name()] = next
		}
		return nil
	}
	return ErrUnknownSubscription
}

// ListenerCount returns the number of active listeners for name.
func (s *Surface) ListenerCount(name string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, sub := range s.listeners[name] {
		if sub.IsActive() {
			n++
		}
	}
	return n
}

// Dispatch delivers ev to every listener registered for name, in
// registration order. A failing or panicking listener does not stop the
// others; their errors are joined into the returned error.
func (s *Surface) Dispatch(ctx context.Context, name string, ev any) error {
	if name == "" {
		return ErrInvalidEvent
	}

	s.mu.RLock()
	subs := s.listeners[name]
	s.mu.RUnlock()

	var errs []error
	for _, sub := range subs {
		if !sub.IsActive() {
			continue
		}
		if err := s.deliver(ctx, sub, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// deliver runs one listener with panic recovery.
func (s *Surface) deliver(ctx context.Context, sub *subscription, ev any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.panicHandler(sub.name, r, debug.Stack())
			err = &ListenerError{
				Name:           sub.name,
				SubscriptionID: sub.id,
				Err:            fmt.Errorf("%w: %v", ErrListenerPanic, r),
			}
		}
	}()

	if herr := sub.handler.Handle(ctx, ev); herr != nil {
		return &ListenerError{Name: sub.name, SubscriptionID: sub.id, Err: herr}
	}
	return nil
}
