package event

import "sync/atomic"

// Subscription represents a registered listener.
type Subscription interface {
	// ID returns the unique subscription identifier.
	ID() string

	// Name returns the event name the listener is registered for.
	Name() string

	// IsActive returns true until the subscription is cancelled.
	IsActive() bool

	// Cancel permanently stops delivery to the listener.
	Cancel()
}

// subscription is the default Subscription implementation.
type subscription struct {
	id        string
	name      string
	handler   Handler
	cancelled atomic.Bool
}

func newSubscription(id, name string, handler Handler) *subscription {
	return &subscription{
		id:      id,
		name:    name,
		handler: handler,
	}
}

// ID returns the unique subscription identifier.
func (s *subscription) ID() string {
	return s.id
}

// Name returns the event name.
func (s *subscription) Name() string {
	return s.name
}

// IsActive returns true if the subscription has not been cancelled.
func (s *subscription) IsActive() bool {
	return !s.cancelled.Load()
}

// Cancel permanently cancels the subscription.
func (s *subscription) Cancel() {
	s.cancelled.Store(true)
}
