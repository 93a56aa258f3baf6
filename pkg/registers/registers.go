// Package registers describes the BK4819 register file used by the gain controller.
package registers

import "fmt"

// Register addresses
const (
	RegAGCTable0 = 0x10 // AGC gain table entry 0 (register editor works on this one)
	RegAGCTable1 = 0x11
	RegAGCTable2 = 0x12
	RegAGCTable3 = 0x13 // AGC gain table entry 3, the fixed front-end gain
	RegAGCTable4 = 0x14
	RegRFFilter  = 0x43 // RF filter bandwidth / weak-signal bandwidth
	RegAFConfig  = 0x47 // AF output type (demodulator selection)
	RegNoise     = 0x65
	RegRSSI      = 0x67 // <8:0> RSSI in half dB, 0 = -160 dBm
	RegAGCFix    = 0x7E // AGC fix mode / fixed table index
)

// RegGain is the register the gain controller writes on every adjustment.
const RegGain = RegAGCTable3

// DefaultGainValue is the power-on front-end setting:
// LNA short 0 dB, LNA -14 dB, mixer 0 dB, PGA -3 dB.
const DefaultGainValue uint16 = (3 << 8) | (2 << 5) | (3 << 3) | (6 << 0)

// RSSIMask selects the valid bits of RegRSSI.
const RSSIMask uint16 = 0x01FF

// Signal meter range used by the register editor's power bar.
const (
	MeterRSSIMin = 72
	MeterRSSIMax = 330
)

// Field is a bit field inside a 16-bit register
type Field struct {
	Name     string `yaml:"name"`
	Register uint8  `yaml:"register"`
	Shift    uint8  `yaml:"shift"`
	Mask     uint16 `yaml:"mask"` // unshifted
}

// Get extracts the field from a register value
func (f Field) Get(value uint16) uint16 {
	return (value >> f.Shift) & f.Mask
}

// Set returns value with the field replaced by v (v is truncated to the mask)
func (f Field) Set(value, v uint16) uint16 {
	full := f.Mask << f.Shift
	return (value &^ full) | ((v & f.Mask) << f.Shift)
}

// Levels returns the number of distinct values the field can hold
func (f Field) Levels() int {
	return int(f.Mask) + 1
}

// String returns "NAME@0xRR[hi:lo]"
func (f Field) String() string {
	width := 0
	for m := f.Mask; m != 0; m >>= 1 {
		width++
	}
	return fmt.Sprintf("%s@0x%02X[%d:%d]", f.Name, f.Register, int(f.Shift)+width-1, f.Shift)
}

// Front-end gain fields. The same layout is used by every AGC table entry,
// so these are defined against RegGain and re-targeted with On.
var (
	FieldLNAShort = Field{Name: "LNAS", Register: RegGain, Shift: 8, Mask: 0b11}
	FieldLNA      = Field{Name: "LNA", Register: RegGain, Shift: 5, Mask: 0b111}
	FieldMixer    = Field{Name: "MIX", Register: RegGain, Shift: 3, Mask: 0b11}
	FieldPGA      = Field{Name: "PGA", Register: RegGain, Shift: 0, Mask: 0b111}

	FieldBandwidth     = Field{Name: "BW", Register: RegRFFilter, Shift: 12, Mask: 0b111}
	FieldWeakBandwidth = Field{Name: "WEAK", Register: RegRFFilter, Shift: 9, Mask: 0b111}
)

// On returns a copy of f addressing register reg
func (f Field) On(reg uint8) Field {
	f.Register = reg
	return f
}

// GainFields lists the four front-end stages from antenna to ADC
var GainFields = []Field{FieldLNAShort, FieldLNA, FieldMixer, FieldPGA}

// EditorFields is the register editor's table: the four stages of AGC entry 0
// followed by the two filter bandwidth fields.
var EditorFields = []Field{
	FieldLNAShort.On(RegAGCTable0),
	FieldLNA.On(RegAGCTable0),
	FieldMixer.On(RegAGCTable0),
	FieldPGA.On(RegAGCTable0),
	FieldBandwidth,
	FieldWeakBandwidth,
}

// DumpRegisters is the default register set read by Dump
var DumpRegisters = []uint8{
	RegAGCTable0, RegAGCTable1, RegAGCTable2, RegAGCTable3, RegAGCTable4,
	RegRFFilter, RegAFConfig, RegNoise, RegRSSI, RegAGCFix,
}

// RSSIToDBm converts a raw chip RSSI reading (half dB steps, 0 = -160 dBm) to dBm
func RSSIToDBm(raw uint16) float32 {
	return float32(raw&RSSIMask)/2.0 - 160.0
}

// DBmToRSSI converts dBm to raw chip units, clamped to the 9-bit register range
func DBmToRSSI(dBm int) uint16 {
	v := (dBm + 160) * 2
	if v < 0 {
		return 0
	}
	if v > int(RSSIMask) {
		return RSSIMask
	}
	return uint16(v)
}

// PowerPercent maps a raw RSSI reading onto the 0-100 signal meter scale
func PowerPercent(raw uint16) int {
	switch {
	case raw < MeterRSSIMin:
		return 0
	case raw > MeterRSSIMax:
		return 100
	default:
		return int(raw-MeterRSSIMin) * 100 / (MeterRSSIMax - MeterRSSIMin)
	}
}
