// Package config saves and restores the BK4819 registers that shape the
// receive front end.
package config

import (
	"fmt"
	"time"

	"github.com/herlein/amfix/pkg/gaintable"
	"github.com/herlein/amfix/pkg/registers"
)

// RadioConfig is a register dump of one radio
type RadioConfig struct {
	Name      string             `yaml:"name"`
	Firmware  string             `yaml:"firmware,omitempty"`
	Cable     string             `yaml:"cable,omitempty"`
	Timestamp time.Time          `yaml:"timestamp"`
	Registers registers.Snapshot `yaml:"registers"`
}

// DumpFromRadio reads the front-end registers through bus
func DumpFromRadio(bus registers.Bus, name, firmware string) (*RadioConfig, error) {
	snap, err := registers.Dump(bus)
	if err != nil {
		return nil, fmt.Errorf("failed to read registers: %w", err)
	}

	return &RadioConfig{
		Name:      name,
		Firmware:  firmware,
		Timestamp: time.Now(),
		Registers: *snap,
	}, nil
}

// ApplyToRadio writes the saved registers back. Read-only registers are skipped.
func ApplyToRadio(bus registers.Bus, configuration *RadioConfig) error {
	if err := registers.Restore(bus, &configuration.Registers); err != nil {
		return fmt.Errorf("failed to write registers: %w", err)
	}
	return nil
}

// FrontEnd decodes the gain stages of one AGC table register
func (c *RadioConfig) FrontEnd(addr uint8) (gaintable.Stages, bool) {
	v, ok := c.Registers.Registers[addr]
	if !ok {
		return gaintable.Stages{}, false
	}
	return gaintable.Decode(v), true
}

// GainDB returns the total front-end gain of the controller's register
func (c *RadioConfig) GainDB() (int, bool) {
	stages, ok := c.FrontEnd(registers.RegGain)
	if !ok {
		return 0, false
	}
	return stages.GainDB(), true
}

// RSSIDBm returns the signal level captured with the dump
func (c *RadioConfig) RSSIDBm() (float32, bool) {
	v, ok := c.Registers.Registers[registers.RegRSSI]
	if !ok {
		return 0, false
	}
	return registers.RSSIToDBm(v & registers.RSSIMask), true
}

// Fields returns the register-editor fields present in the dump, in editor order
func (c *RadioConfig) Fields() []FieldValue {
	var out []FieldValue
	for _, f := range registers.EditorFields {
		if v, ok := c.Registers.Field(f); ok {
			out = append(out, FieldValue{Field: f, Value: v})
		}
	}
	return out
}

// FieldValue is a decoded register field
type FieldValue struct {
	Field registers.Field
	Value uint16
}

// String formats the field as NAME@0xRR[h:l] = value
func (fv FieldValue) String() string {
	return fmt.Sprintf("%s = %d", fv.Field, fv.Value)
}
