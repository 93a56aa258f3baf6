// Package sim models the BK4819 gain path so the controller can be exercised
// without a radio.
package sim

import (
	"math/rand/v2"
	"sync"

	"github.com/herlein/amfix/pkg/gaintable"
	"github.com/herlein/amfix/pkg/registers"
)

// Chip is an in-memory register file whose RSSI register follows the
// antenna signal and the front-end gain in REG_13. It implements registers.Bus.
type Chip struct {
	mu   sync.Mutex
	regs map[uint8]uint16

	signalDBm     int
	referenceGain int // front-end gain at which RSSI reads the true signal level
	noise         int // peak noise in RSSI units (half dB)
	rng           *rand.Rand

	reads  int
	writes int
}

// Option configures a Chip
type Option func(*Chip)

// WithNoise adds uniform noise of up to ±peak half-dB steps to every RSSI read
func WithNoise(peak int, seed uint64) Option {
	return func(c *Chip) {
		c.noise = peak
		c.rng = rand.New(rand.NewPCG(seed, seed^0x9E3779B97F4A7C15))
	}
}

// WithReferenceGain sets the front-end gain (dB) at which RSSI is calibrated
func WithReferenceGain(db int) Option {
	return func(c *Chip) {
		c.referenceGain = db
	}
}

// NewChip creates a chip at power-on state with no signal
func NewChip(opts ...Option) *Chip {
	table := gaintable.Default()
	c := &Chip{
		regs:          map[uint8]uint16{registers.RegGain: registers.DefaultGainValue},
		signalDBm:     -160,
		referenceGain: table.GainDB(table.StandbyIndex()),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetSignal sets the level at the antenna
func (c *Chip) SetSignal(dBm int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.signalDBm = dBm
}

// Signal returns the level at the antenna
func (c *Chip) Signal() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.signalDBm
}

// FrontEndGain returns the gain selected by REG_13
func (c *Chip) FrontEndGain() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return gaintable.Decode(c.regs[registers.RegGain]).GainDB()
}

// Counts returns the number of register reads and writes so far
func (c *Chip) Counts() (reads, writes int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reads, c.writes
}

// ReadRegister implements registers.Bus
func (c *Chip) ReadRegister(addr uint8) (uint16, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.reads++
	if addr == registers.RegRSSI {
		return c.rssi(), nil
	}
	return c.regs[addr], nil
}

// WriteRegister implements registers.Bus. Writes to read-only registers are dropped.
func (c *Chip) WriteRegister(addr uint8, value uint16) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.writes++
	if !registers.IsReadOnly(addr) {
		c.regs[addr] = value
	}
	return nil
}

// rssi computes REG_67; c.mu is held
func (c *Chip) rssi() uint16 {
	gain := gaintable.Decode(c.regs[registers.RegGain]).GainDB()
	v := (c.signalDBm + gain - c.referenceGain + 160) * 2
	if c.rng != nil && c.noise > 0 {
		v += c.rng.IntN(2*c.noise+1) - c.noise
	}
	return uint16(max(0, min(v, int(registers.RSSIMask))))
}
