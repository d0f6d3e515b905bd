package script

import (
	"errors"
	"fmt"
)

var (
	// ErrNoCallbacks is returned when a script defines neither callbackOK
	// nor callbackKO.
	ErrNoCallbacks = errors.New("script: no callbackOK or callbackKO defined")

	// ErrClosed is reported for calls made after Close.
	ErrClosed = errors.New("script: closed")
)

// CallbackError is a failed call into the script.
type CallbackError struct {
	// Script is the chunk name, usually the file path.
	Script string

	// Callback is the global function that failed.
	Callback string

	Err error
}

func (e *CallbackError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Script, e.Callback, e.Err)
}

func (e *CallbackError) Unwrap() error { return e.Err }
