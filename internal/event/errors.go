package event

import (
	"errors"
	"fmt"
)

var (
	ErrLoopStopped        = errors.New("event: loop is not running")
	ErrLoopAlreadyRunning = errors.New("event: loop is already running")

	// ErrInvalidEvent is returned for an empty event name.
	ErrInvalidEvent = errors.New("event: invalid event")

	ErrNilListener         = errors.New("event: nil listener")
	ErrUnknownSubscription = errors.New("event: unknown subscription")

	// ErrListenerPanic is wrapped by the ListenerError of a panicking listener.
	ErrListenerPanic = errors.New("event: listener panicked")
)

// ListenerError is one failed listener in a Dispatch.
type ListenerError struct {
	Name           string
	SubscriptionID string
	Err            error
}

func (e *ListenerError) Error() string {
	return fmt.Sprintf("%s listener %s: %v", e.Name, e.SubscriptionID, e.Err)
}

func (e *ListenerError) Unwrap() error { return e.Err }
