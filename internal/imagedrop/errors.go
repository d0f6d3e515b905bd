package imagedrop

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by New.
var (
	// ErrNilEditor is returned when no editor is given.
	ErrNilEditor = errors.New("imagedrop: editor is nil")

	// ErrNilRoot is returned when no content root is given.
	ErrNilRoot = errors.New("imagedrop: content root is nil")

	// ErrMissingUploadURL is returned when upload is configured without a URL.
	ErrMissingUploadURL = errors.New("imagedrop: uploadImage.url is required")

	// ErrNotImage is returned when an entry is not a readable image blob.
	ErrNotImage = errors.New("imagedrop: entry is not an image blob")

	// ErrClosed is returned by Close when called twice.
	ErrClosed = errors.New("imagedrop: handler is closed")
)

// UploadError describes an upload answered with a non-success status.
type UploadError struct {
	// Code is the HTTP status code.
	Code int `json:"code"`

	// Type is the HTTP status text.
	Type string `json:"type"`

	// Body is the raw response body.
	Body string `json:"body"`
}

// Error implements the error interface.
func (e *UploadError) Error() string {
	return fmt.Sprintf("upload failed: %d %s: %s", e.Code, e.Type, e.Body)
}

// DecodeError is returned when an image cannot be turned into a data URI.
type DecodeError struct {
	MIMEType string
	Err      error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.MIMEType, e.Err)
}

// Unwrap returns the underlying error.
func (e *DecodeError) Unwrap() error {
	return e.Err
}

// ResponseError is returned when a successful upload response cannot be
// parsed.
type ResponseError struct {
	Status int
	Body   string
	Err    error
}

// Error implements the error interface.
func (e *ResponseError) Error() string {
	return fmt.Sprintf("upload response (status %d): %v", e.Status, e.Err)
}

// Unwrap returns the underlying error.
func (e *ResponseError) Unwrap() error {
	return e.Err
}

// IsUploadError reports whether err is an *UploadError.
func IsUploadError(err error) bool {
	var target *UploadError
	return errors.As(err, &target)
}
