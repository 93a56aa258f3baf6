package bk4819

import (
	"fmt"
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
)

// readFlag marks a read in the address byte
const readFlag = 0x80

// DefaultHalfPeriod is the SCL half period
const DefaultHalfPeriod = time.Microsecond

// OutPin is a GPIO line driven as an output
type OutPin interface {
	Out(l gpio.Level) error
}

// DataPin is the bidirectional SDA line
type DataPin interface {
	OutPin
	In(pull gpio.Pull, edge gpio.Edge) error
	Read() gpio.Level
}

// GPIOBus bit-bangs the BK4819 3-wire serial interface (SCN, SCL, SDA)
type GPIOBus struct {
	mu   sync.Mutex
	scn  OutPin
	scl  OutPin
	sda  DataPin
	half time.Duration
}

// NewGPIOBus creates a bus on the given pins and leaves it idle
func NewGPIOBus(scn, scl OutPin, sda DataPin, half time.Duration) (*GPIOBus, error) {
	b := &GPIOBus{scn: scn, scl: scl, sda: sda, half: half}

	t := b.begin()
	t.out(b.scn, gpio.High)
	t.out(b.scl, gpio.Low)
	t.out(b.sda, gpio.High)
	if t.err != nil {
		return nil, t.err
	}
	return b, nil
}

// OpenGPIOBus looks the three pins up by name in the periph registry.
// host.Init must have been called.
func OpenGPIOBus(scn, scl, sda string) (*GPIOBus, error) {
	pins := make([]gpio.PinIO, 3)
	for i, name := range []string{scn, scl, sda} {
		p := gpioreg.ByName(name)
		if p == nil {
			return nil, fmt.Errorf("%w: %s", ErrPinNotFound, name)
		}
		pins[i] = p
	}
	return NewGPIOBus(pins[0], pins[1], pins[2], DefaultHalfPeriod)
}

// ReadRegister reads a 16-bit register
func (b *GPIOBus) ReadRegister(addr uint8) (uint16, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t := b.begin()
	t.out(b.scn, gpio.Low)
	t.writeBits(uint16(addr|readFlag), 8)
	v := t.readBits(16)
	t.out(b.scn, gpio.High)
	t.out(b.sda, gpio.High)
	return v, t.err
}

// WriteRegister writes a 16-bit register
func (b *GPIOBus) WriteRegister(addr uint8, value uint16) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	t := b.begin()
	t.out(b.scn, gpio.Low)
	t.writeBits(uint16(addr&^readFlag), 8)
	t.writeBits(value, 16)
	t.out(b.scn, gpio.High)
	t.out(b.sda, gpio.High)
	return t.err
}

func (b *GPIOBus) begin() *transfer {
	return &transfer{bus: b}
}

// transfer keeps the first pin error of one register access
type transfer struct {
	bus *GPIOBus
	err error
}

func (t *transfer) out(p OutPin, l gpio.Level) {
	if t.err != nil {
		return
	}
	if err := p.Out(l); err != nil {
		t.err = fmt.Errorf("%w: %w", ErrPinIO, err)
	}
}

func (t *transfer) wait() {
	if t.bus.half > 0 {
		time.Sleep(t.bus.half)
	}
}

// writeBits shifts n bits out MSB first, latched on the SCL rising edge
func (t *transfer) writeBits(v uint16, n int) {
	for i := n - 1; i >= 0; i-- {
		t.out(t.bus.scl, gpio.Low)
		t.out(t.bus.sda, v&(1<<i) != 0)
		t.wait()
		t.out(t.bus.scl, gpio.High)
		t.wait()
	}
	t.out(t.bus.scl, gpio.Low)
}

// readBits releases SDA and samples n bits MSB first while SCL is high
func (t *transfer) readBits(n int) uint16 {
	if t.err != nil {
		return 0
	}
	if err := t.bus.sda.In(gpio.PullNoChange, gpio.NoEdge); err != nil {
		t.err = fmt.Errorf("%w: %w", ErrPinIO, err)
		return 0
	}

	var v uint16
	for range n {
		t.out(t.bus.scl, gpio.High)
		t.wait()
		v <<= 1
		if t.bus.sda.Read() == gpio.High {
			v |= 1
		}
		t.out(t.bus.scl, gpio.Low)
		t.wait()
	}
	return v
}
