// Package bk4819 drives the gain-related registers of a BK4819 transceiver.
package bk4819

import (
	"io"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/herlein/amfix/pkg/registers"
)

// Chip adapts a register transport to the gain controller. The controller
// cannot handle errors, so failures are logged and kept for Err.
type Chip struct {
	bus registers.Bus
	log *log.Logger

	mu  sync.Mutex
	err error
}

// New wraps bus. A nil logger discards.
func New(bus registers.Bus, logger *log.Logger) *Chip {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Chip{bus: bus, log: logger}
}

// ReadRSSI returns REG_67 bits 8:0, or 0 when the read fails
func (c *Chip) ReadRSSI() uint16 {
	v, err := registers.ReadRSSI(c.bus)
	if err != nil {
		c.fail("read rssi", err)
		return 0
	}
	return v
}

// WriteRegister writes a register
func (c *Chip) WriteRegister(addr uint8, value uint16) {
	if err := registers.Poke(c.bus, addr, value); err != nil {
		c.fail("write register", err)
	}
}

// RestoreDefaultGain puts the power-on front-end setting back into the gain register
func (c *Chip) RestoreDefaultGain() {
	c.WriteRegister(registers.RegGain, registers.DefaultGainValue)
}

// Bus returns the underlying transport
func (c *Chip) Bus() registers.Bus {
	return c.bus
}

// Err returns the first transport error seen, if any
func (c *Chip) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *Chip) fail(op string, err error) {
	c.log.Warn("chip access failed", "op", op, "err", err)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err == nil {
		c.err = err
	}
}
