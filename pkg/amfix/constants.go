// Package amfix steps the BK4819 front-end gain to keep strong AM signals
// from saturating the demodulator.
package amfix

import (
	"time"

	"github.com/herlein/amfix/pkg/gaintable"
	"github.com/herlein/amfix/pkg/registers"
)

// Calibration defaults
const (
	// DefaultCapDBm is the signal level above which the AM demodulator
	// starts to clip (dBm)
	DefaultCapDBm = -82

	// DefaultStandbyOffset is how far below unity gain recovery stops
	// (table entries)
	DefaultStandbyOffset = gaintable.DefaultStandbyOffset

	// DefaultGainRegister is the register the gain setting is written to
	DefaultGainRegister uint8 = registers.RegGain
)

// Tick counts (one tick is DefaultTickPeriod)
const (
	// DefaultHoldTicks suppresses gain increases after a reduction or while
	// near target (300 ms)
	DefaultHoldTicks = 30

	// DefaultEvalIntervalTicks is the wait between full evaluations
	DefaultEvalIntervalTicks = 30

	// DefaultTxPauseTicks pauses the controller around transmit
	DefaultTxPauseTicks = 50

	// DefaultIdleTicks is the re-check interval while the slot is not AM
	DefaultIdleTicks = 200

	// DefaultResetAfterTicks resets a slot after this long out of receive
	DefaultResetAfterTicks = 100
)

// DefaultTickPeriod is the scheduler period
const DefaultTickPeriod = 10 * time.Millisecond

// Control loop constants
const (
	// jumpThresholdDB is the overshoot at which the index jumps straight to
	// a computed setting
	jumpThresholdDB = 6

	// jumpHeadroomDB is left above the computed setting on a jump
	jumpHeadroomDB = 6

	// fastStepThresholdDB selects the three-entry step
	fastStepThresholdDB = 3
	fastStep            = 3

	// hysteresisDB: within this far below target, gain is held
	hysteresisDB = -3

	// minIndex is the lowest index the controller will use
	minIndex = 1
)

// DesiredRSSI converts a cap in dBm to chip RSSI units (half dB, 0 = -160 dBm)
func DesiredRSSI(capDBm int) int {
	return (capDBm + 160) * 2
}
