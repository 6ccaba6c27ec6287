// Package process provides the typed view over the memory of an attached
// external process.
package process

import "errors"

var (
	// ErrReadFailed is returned for every failed read of target memory. The
	// host's reason, when it gives one, is kept in the error chain.
	ErrReadFailed = errors.New("read failed")

	// ErrProcessNotOpen is returned by backends when the raw handle does not
	// refer to an attached process.
	ErrProcessNotOpen = errors.New("process not open")

	// ErrHandleClosed is returned when a Handle is used after Close.
	ErrHandleClosed = errors.New("handle closed")

	// ErrNotFixedLayout is returned when a type without a fixed byte size is
	// passed to the typed reader.
	ErrNotFixedLayout = errors.New("type has no fixed layout")
)
