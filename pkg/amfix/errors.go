package amfix

import "errors"

// Configuration errors
var (
	// ErrInvalidConfig indicates invalid controller configuration
	ErrInvalidConfig = errors.New("invalid amfix configuration")

	// ErrInvalidCap indicates a cap outside the chip's RSSI range
	ErrInvalidCap = errors.New("cap must be between -160 and 95 dBm")

	// ErrNegativeTicks indicates a negative tick count
	ErrNegativeTicks = errors.New("tick counts must not be negative")

	// ErrConfigVersion indicates unsupported config file version
	ErrConfigVersion = errors.New("unsupported configuration version")

	// ErrNilCollaborator indicates a missing chip or VFO view
	ErrNilCollaborator = errors.New("chip and VFO view are required")
)
