// Package event provides the editor content-root event surface and the
// cooperative loop that host callbacks run on.
//
// The surface is the small slice of a DOM element that editor plugins need:
// listeners are registered per event name and invoked synchronously, in
// registration order, when the host dispatches an event of that name.
//
//	                 ┌──────────────────────────────┐
//	  host input ──▶ │            Loop              │  one turn at a time
//	                 └──────────────────────────────┘
//	                               │ Dispatch
//	                               ▼
//	                 ┌──────────────────────────────┐
//	                 │           Surface            │  "drop", "paste"
//	                 └──────────────────────────────┘
//	                               │
//	                               ▼
//	                       plugin listeners
//
// # Single execution context
//
// Everything that touches editor state runs as a Loop turn. Work that blocks
// (reading a file, an HTTP round trip) runs on its own goroutine and posts
// its completion back as a new turn, so turns never overlap:
//
//	loop := event.NewLoop()
//	if err := loop.Start(); err != nil {
//	    return err
//	}
//	defer loop.Stop(context.Background())
//
//	root := event.NewSurface()
//	_ = loop.Post(func() {
//	    _ = root.Dispatch(ctx, event.EventDrop, ev)
//	})
//
// # Payloads
//
// DropEvent and PasteEvent mirror the browser shapes: a drop carries a file
// list whose entries are blobs, a paste carries clipboard items that hand out
// their blob through GetAsFile. Entries are only guaranteed to be readable
// while the listener runs; listeners that need the bytes later must capture
// the Blob before returning.
package event
