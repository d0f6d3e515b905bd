package imagedrop

import (
	"net/http"

	"github.com/dshills/imagedrop/internal/event"
)

// EmbedImage is the embed kind used for inserted images.
const EmbedImage = "image"

// Source tags the origin of a document change.
type Source string

// SourceUser marks a change as a direct user action for undo history and
// collaborative attribution.
const SourceUser Source = "user"

// Range is an editor selection.
type Range struct {
	Index  int
	Length int
}

// Editor is the part of the host editor the handler uses.
// All methods are called from Scheduler turns.
type Editor interface {
	// GetSelection returns the current selection, or false when the editor
	// has none.
	GetSelection() (Range, bool)

	// GetLength returns the document length.
	GetLength() int

	// InsertEmbed inserts an embed of the given kind at index.
	InsertEmbed(index int, kind string, value any, source Source)
}

// Root is the editor content root the handler subscribes to.
// *event.Surface satisfies it.
type Root interface {
	AddEventListener(name string, listener event.Listener) (event.Subscription, error)
	RemoveEventListener(sub event.Subscription) error
}

// Scheduler queues a callback to run on the editor's execution context
// after the current turn. *event.Loop satisfies it.
type Scheduler interface {
	Post(fn func()) error
}

// PointSelector moves the platform caret to the document position under a
// pointer. Implementations return an error when the platform cannot map
// points to positions.
type PointSelector interface {
	SelectPoint(x, y int) error
}

// Notifier shows a message to the user.
type Notifier interface {
	Alert(message string)
}

// Doer executes HTTP requests. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ErrorHandler receives failures that have no callback of their own:
// decode errors, transport errors and unparseable upload responses.
type ErrorHandler func(err error)
