package platform

import (
	"encoding/json"
	"io"
	"sync"

	"github.com/dshills/imagedrop/internal/imagedrop"
)

// Embed is one recorded insertion.
type Embed struct {
	Index  int              `json:"index"`
	Kind   string           `json:"kind"`
	Value  any              `json:"value"`
	Source imagedrop.Source `json:"source"`
}

// ScratchEditor is a headless document that records embeds. The document
// starts with one character, the trailing newline every rich-text
// document carries, and each embed adds one.
type ScratchEditor struct {
	mu        sync.Mutex
	length    int
	selection *imagedrop.Range
	embeds    []Embed
	enc       *json.Encoder
	writeErr  error
}

// NewScratchEditor creates an empty document. Each insertion is written
// to w as a JSON line when w is non-nil.
func NewScratchEditor(w io.Writer) *ScratchEditor {
	e := &ScratchEditor{length: 1}
	if w != nil {
		e.enc = json.NewEncoder(w)
	}
	return e
}

// GetSelection implements imagedrop.Editor.
func (e *ScratchEditor) GetSelection() (imagedrop.Range, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.selection == nil {
		return imagedrop.Range{}, false
	}
	return *e.selection, true
}

// GetLength implements imagedrop.Editor.
func (e *ScratchEditor) GetLength() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.length
}

// InsertEmbed implements imagedrop.Editor. A selection at or after index
// shifts right.
func (e *ScratchEditor) InsertEmbed(index int, kind string, value any, source imagedrop.Source) {
	e.mu.Lock()
	defer e.mu.Unlock()

	embed := Embed{Index: index, Kind: kind, Value: value, Source: source}
	e.embeds = append(e.embeds, embed)
	e.length++
	if e.selection != nil && e.selection.Index >= index {
		e.selection.Index++
	}

	if e.enc != nil && e.writeErr == nil {
		e.writeErr = e.enc.Encode(embed)
	}
}

// SetSelection places a selection.
func (e *ScratchEditor) SetSelection(index, length int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.selection = &imagedrop.Range{Index: e.clamp(index), Length: length}
}

// ClearSelection removes the selection.
func (e *ScratchEditor) ClearSelection() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.selection = nil
}

// SelectPoint implements imagedrop.PointSelector by treating x as a
// document offset. y is ignored.
func (e *ScratchEditor) SelectPoint(x, _ int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.selection = &imagedrop.Range{Index: e.clamp(x)}
	return nil
}

// Embeds returns a copy of the recorded insertions.
func (e *ScratchEditor) Embeds() []Embed {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Embed, len(e.embeds))
	copy(out, e.embeds)
	return out
}

// Err returns the first error writing insertions, if any.
func (e *ScratchEditor) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.writeErr
}

// clamp bounds index to the insertable range [0, length-1].
func (e *ScratchEditor) clamp(index int) int {
	if index < 0 {
		return 0
	}
	if index > e.length-1 {
		return e.length - 1
	}
	return index
}

var (
	_ imagedrop.Editor        = (*ScratchEditor)(nil)
	_ imagedrop.PointSelector = (*ScratchEditor)(nil)
)
