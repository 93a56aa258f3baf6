package registers

import (
	"errors"
	"fmt"
	"time"
)

// ErrReadOnly is returned when writing a register the chip only reports
var ErrReadOnly = errors.New("register is read-only")

// Bus is a transport able to read and write 16-bit chip registers
type Bus interface {
	ReadRegister(addr uint8) (uint16, error)
	WriteRegister(addr uint8, value uint16) error
}

// IsReadOnly reports whether the chip ignores writes to addr
func IsReadOnly(addr uint8) bool {
	return addr == RegRSSI || addr == RegNoise
}

// Peek reads a single register
func Peek(bus Bus, addr uint8) (uint16, error) {
	v, err := bus.ReadRegister(addr)
	if err != nil {
		return 0, fmt.Errorf("failed to read register 0x%02X: %w", addr, err)
	}
	return v, nil
}

// Poke writes a single register
func Poke(bus Bus, addr uint8, value uint16) error {
	if IsReadOnly(addr) {
		return fmt.Errorf("%w: 0x%02X", ErrReadOnly, addr)
	}
	if err := bus.WriteRegister(addr, value); err != nil {
		return fmt.Errorf("failed to write register 0x%02X: %w", addr, err)
	}
	return nil
}

// ReadRSSI reads the 9-bit RSSI value
func ReadRSSI(bus Bus) (uint16, error) {
	v, err := Peek(bus, RegRSSI)
	if err != nil {
		return 0, err
	}
	return v & RSSIMask, nil
}

// ReadField reads a register and extracts a field
func ReadField(bus Bus, f Field) (uint16, error) {
	v, err := Peek(bus, f.Register)
	if err != nil {
		return 0, err
	}
	return f.Get(v), nil
}

// WriteField performs a read-modify-write of a single field
func WriteField(bus Bus, f Field, value uint16) error {
	current, err := Peek(bus, f.Register)
	if err != nil {
		return err
	}
	return Poke(bus, f.Register, f.Set(current, value))
}

// Snapshot is a point-in-time copy of a set of registers
type Snapshot struct {
	Timestamp time.Time        `yaml:"timestamp"`
	Registers map[uint8]uint16 `yaml:"registers"`
}

// Dump reads addrs (DumpRegisters when empty) into a Snapshot
func Dump(bus Bus, addrs ...uint8) (*Snapshot, error) {
	if len(addrs) == 0 {
		addrs = DumpRegisters
	}

	snap := &Snapshot{
		Timestamp: time.Now(),
		Registers: make(map[uint8]uint16, len(addrs)),
	}
	for _, addr := range addrs {
		v, err := Peek(bus, addr)
		if err != nil {
			return nil, err
		}
		snap.Registers[addr] = v
	}
	return snap, nil
}

// Field returns the value of f in the snapshot and whether its register was captured
func (s *Snapshot) Field(f Field) (uint16, bool) {
	v, ok := s.Registers[f.Register]
	if !ok {
		return 0, false
	}
	return f.Get(v), true
}

// Restore writes every writable register of the snapshot back to the chip
func Restore(bus Bus, snap *Snapshot) error {
	for addr, v := range snap.Registers {
		if IsReadOnly(addr) {
			continue
		}
		if err := Poke(bus, addr, v); err != nil {
			return err
		}
	}
	return nil
}
