// Package imagedrop attaches image drag-and-drop and clipboard paste to a
// rich-text editor.
//
// A Handler listens for "drop" and "paste" on the editor's content root.
// Every entry whose MIME type is on the image allow-list is captured while
// the event is being handled, decoded to a data URI on its own goroutine,
// and then, back on the editor's scheduler, either inserted as an image
// embed or sent to an upload endpoint whose success callback decides what
// gets inserted.
//
// # Per-file pipeline
//
//	Extracted ─▶ Filtered ─▶ Decoding ─▶ Decoded ─┬─▶ Inserted
//	                 │            │               │
//	              rejected     failed             └─▶ Uploading ─┬─▶ Inserted
//	                                                             └─▶ failed
//
// Files are independent. N accepted files produce N pipelines that finish
// in whatever order their decodes and uploads complete; each insertion uses
// the selection (or document length) current when it runs.
//
// # Upload
//
// When Config.UploadImage is set, each decoded image is sent once:
//
//	POST <url>
//	Content-Type: application/json
//
//	{"image": "data:image/png;base64,..."}
//
// A 2xx response body is parsed as JSON and handed to CallbackOK together
// with an insert function. The default CallbackOK inserts the parsed body
// as is, so a body of {"url": "..."} is inserted as that object; use
// InsertField("url", nil) to insert the nested string instead. Any other
// status is reported to CallbackKO as an *UploadError and nothing is
// inserted. Nothing is retried.
//
// # Threading
//
// Editor methods, callbacks and insertions always run as Scheduler turns.
// The default scheduler is an event.Loop owned by the Handler.
package imagedrop
