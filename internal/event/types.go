package event

import "context"

// Event names dispatched on an editor content root.
const (
	// EventDrop is dispatched when something is dropped on the content root.
	EventDrop = "drop"

	// EventPaste is dispatched when the user pastes into the content root.
	EventPaste = "paste"
)

// Handler is the interface for event listeners.
type Handler interface {
	// Handle processes an event.
	// The event parameter is type-erased; handlers should type-assert.
	Handle(ctx context.Context, event any) error
}

// Listener is a function adapter for Handler.
type Listener func(ctx context.Context, event any) error

// Handle implements the Handler interface.
func (f Listener) Handle(ctx context.Context, event any) error {
	return f(ctx, event)
}

// PanicHandler is called when a listener or a loop turn panics.
// name is the event name, or empty for loop turns.
type PanicHandler func(name string, recovered any, stack []byte)

// DefaultPanicHandler ignores panics; they are already isolated.
func DefaultPanicHandler(string, any, []byte) {}
