package uart

import "errors"

// Errors
var (
	// ErrFrame indicates a frame with a bad footer or impossible length
	ErrFrame = errors.New("malformed frame")

	// ErrCRC indicates a frame whose checksum does not match its payload
	ErrCRC = errors.New("frame CRC mismatch")

	// ErrUnexpectedReply indicates a well-formed reply to something else
	ErrUnexpectedReply = errors.New("unexpected reply")

	// ErrShortMessage indicates a payload too small for its message type
	ErrShortMessage = errors.New("message too short")

	// ErrTimeout indicates the radio stopped sending mid-frame or never answered
	ErrTimeout = errors.New("timeout waiting for radio")
)
