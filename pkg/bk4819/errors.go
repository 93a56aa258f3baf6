package bk4819

import "errors"

// Errors
var (
	// ErrPinNotFound indicates a GPIO name the host does not know
	ErrPinNotFound = errors.New("GPIO pin not found")

	// ErrPinIO indicates a failed GPIO level change
	ErrPinIO = errors.New("GPIO pin I/O failed")
)
