// Package radio holds the per-VFO channel state the gain controller consults.
package radio

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

// NumVFOs is the number of independent VFO slots
const NumVFOs = 2

// Errors
var (
	// ErrInvalidVFO indicates a slot outside 0..NumVFOs-1
	ErrInvalidVFO = errors.New("invalid VFO slot")

	// ErrUnknownModulation indicates an unrecognised modulation name
	ErrUnknownModulation = errors.New("unknown modulation")

	// ErrUnknownMode indicates an unrecognised radio mode name
	ErrUnknownMode = errors.New("unknown radio mode")
)

// Modulation is the demodulator selected for a VFO
type Modulation uint8

const (
	ModulationFM  Modulation = 0
	ModulationAM  Modulation = 1
	ModulationUSB Modulation = 2
)

var modulationNames = map[Modulation]string{
	ModulationFM:  "FM",
	ModulationAM:  "AM",
	ModulationUSB: "USB",
}

// String returns a human-readable name for the modulation
func (m Modulation) String() string {
	if name, ok := modulationNames[m]; ok {
		return name
	}
	return fmt.Sprintf("Modulation(%d)", uint8(m))
}

// ParseModulation parses "fm", "am" or "usb" (case-insensitive)
func ParseModulation(s string) (Modulation, error) {
	for m, name := range modulationNames {
		if strings.EqualFold(s, name) {
			return m, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownModulation, s)
}

// MarshalText implements encoding.TextMarshaler
func (m Modulation) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (m *Modulation) UnmarshalText(text []byte) error {
	parsed, err := ParseModulation(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Mode is the radio's transmit/receive state
type Mode uint8

const (
	ModeQuiet    Mode = iota // receiving, squelch closed
	ModeIncoming             // receiving, signal detected
	ModeRX                   // receiving, audio open
	ModeTX                   // transmitting
)

var modeNames = map[Mode]string{
	ModeQuiet:    "QUIET",
	ModeIncoming: "INCOMING",
	ModeRX:       "RX",
	ModeTX:       "TX",
}

// String returns a human-readable name for the mode
func (m Mode) String() string {
	if name, ok := modeNames[m]; ok {
		return name
	}
	return "UNKNOWN"
}

// ParseMode parses a mode name (case-insensitive)
func ParseMode(s string) (Mode, error) {
	for m, name := range modeNames {
		if strings.EqualFold(s, name) {
			return m, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

// MarshalText implements encoding.TextMarshaler
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (m *Mode) UnmarshalText(text []byte) error {
	parsed, err := ParseMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// IsReceiving reports whether the mode is one of the receive modes
func IsReceiving(m Mode) bool {
	return m == ModeQuiet || m == ModeIncoming || m == ModeRX
}

// VFO is one channel slot
type VFO struct {
	Frequency  uint32 // Hz
	Modulation Modulation
}

// Radio holds both VFO slots, the active slot and the radio mode
type Radio struct {
	mu      sync.RWMutex
	vfos    [NumVFOs]VFO
	current int
	mode    Mode
}

// New creates a Radio with both slots on FM, slot 0 active, receiving
func New() *Radio {
	return &Radio{mode: ModeQuiet}
}

// ValidVFO reports whether vfo is a slot index
func ValidVFO(vfo int) bool {
	return vfo >= 0 && vfo < NumVFOs
}

// Modulation returns the modulation of vfo (FM for invalid slots)
func (r *Radio) Modulation(vfo int) Modulation {
	if !ValidVFO(vfo) {
		return ModulationFM
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.vfos[vfo].Modulation
}

// Mode returns the radio mode. The mode is shared by both slots.
func (r *Radio) Mode(int) Mode {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.mode
}

// VFO returns a copy of a slot
func (r *Radio) VFO(vfo int) (VFO, error) {
	if !ValidVFO(vfo) {
		return VFO{}, fmt.Errorf("%w: %d", ErrInvalidVFO, vfo)
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.vfos[vfo], nil
}

// SetVFO replaces a slot
func (r *Radio) SetVFO(vfo int, v VFO) error {
	if !ValidVFO(vfo) {
		return fmt.Errorf("%w: %d", ErrInvalidVFO, vfo)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.vfos[vfo] = v
	return nil
}

// SetModulation changes the modulation of a slot
func (r *Radio) SetModulation(vfo int, m Modulation) error {
	if !ValidVFO(vfo) {
		return fmt.Errorf("%w: %d", ErrInvalidVFO, vfo)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.vfos[vfo].Modulation = m
	return nil
}

// SetMode changes the radio mode
func (r *Radio) SetMode(m Mode) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mode = m
}

// Current returns the active slot
func (r *Radio) Current() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

// SetCurrent selects the active slot
func (r *Radio) SetCurrent(vfo int) error {
	if !ValidVFO(vfo) {
		return fmt.Errorf("%w: %d", ErrInvalidVFO, vfo)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current = vfo
	return nil
}
