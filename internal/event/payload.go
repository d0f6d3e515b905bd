package event

import (
	"io"
	"sync/atomic"
)

// Entry is one element of a drop file list or a clipboard item list.
type Entry interface {
	// Type returns the MIME type reported by the platform, possibly empty.
	Type() string
}

// Blob is a file-like entry whose bytes can be read.
type Blob interface {
	Entry

	// Open returns a reader over the blob's bytes.
	Open() (io.ReadCloser, error)
}

// Item is the clipboard item shape: it hands out its blob on request.
type Item interface {
	Entry

	// GetAsFile returns the underlying blob.
	GetAsFile() (Blob, error)
}

// DataTransfer carries the files of a drop.
type DataTransfer struct {
	Files []Entry
}

// DropEvent is dispatched as EventDrop.
type DropEvent struct {
	DataTransfer DataTransfer

	// ClientX and ClientY are the pointer coordinates of the drop.
	ClientX int
	ClientY int

	prevented atomic.Bool
}

// NewDropEvent creates a drop event at the given coordinates.
func NewDropEvent(x, y int, files ...Entry) *DropEvent {
	return &DropEvent{
		DataTransfer: DataTransfer{Files: files},
		ClientX:      x,
		ClientY:      y,
	}
}

// PreventDefault suppresses the platform's default drop behavior.
func (e *DropEvent) PreventDefault() {
	e.prevented.Store(true)
}

// DefaultPrevented reports whether a listener called PreventDefault.
func (e *DropEvent) DefaultPrevented() bool {
	return e.prevented.Load()
}

// ClipboardData carries the items of a paste.
type ClipboardData struct {
	Items []Entry
}

// PasteEvent is dispatched as EventPaste.
type PasteEvent struct {
	ClipboardData ClipboardData
}

// NewPasteEvent creates a paste event carrying items.
func NewPasteEvent(items ...Entry) *PasteEvent {
	return &PasteEvent{ClipboardData: ClipboardData{Items: items}}
}
