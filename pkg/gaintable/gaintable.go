// Package gaintable maps gain table indices to BK4819 front-end register
// settings and the attenuation each setting produces.
package gaintable

import (
	"errors"
	"fmt"

	"github.com/herlein/amfix/pkg/registers"
)

// Errors
var (
	// ErrNotMonotonic indicates the table's gain values are not sorted ascending
	ErrNotMonotonic = errors.New("gain table is not sorted by gain")

	// ErrTooShort indicates the table cannot hold the standby offset
	ErrTooShort = errors.New("gain table too short")

	// ErrStageLevel indicates a stage level outside its register field
	ErrStageLevel = errors.New("stage level out of range")
)

// DefaultStandbyOffset is how many entries below unity the standby index sits
const DefaultStandbyOffset = 7

// Stage attenuation in dB, indexed by register field value.
//
// These need a measuring/calibration update; they are the reference values
// and the table below is built from them.
var (
	LNAShortDB = [4]int{-33, -30, -24, 0}
	LNADB      = [8]int{-24, -19, -14, -9, -6, -4, -2, 0}
	MixerDB    = [4]int{-8, -6, -3, 0}
	PGADB      = [8]int{-33, -27, -21, -15, -9, -6, -3, 0}
)

// Stages holds the register field value of each front-end stage
type Stages struct {
	LNAShort uint8 `yaml:"lnas"`
	LNA      uint8 `yaml:"lna"`
	Mixer    uint8 `yaml:"mixer"`
	PGA      uint8 `yaml:"pga"`
}

// Validate checks every stage value fits its field
func (s Stages) Validate() error {
	switch {
	case int(s.LNAShort) >= len(LNAShortDB):
		return fmt.Errorf("%w: lnas=%d", ErrStageLevel, s.LNAShort)
	case int(s.LNA) >= len(LNADB):
		return fmt.Errorf("%w: lna=%d", ErrStageLevel, s.LNA)
	case int(s.Mixer) >= len(MixerDB):
		return fmt.Errorf("%w: mixer=%d", ErrStageLevel, s.Mixer)
	case int(s.PGA) >= len(PGADB):
		return fmt.Errorf("%w: pga=%d", ErrStageLevel, s.PGA)
	}
	return nil
}

// GainDB returns the summed attenuation of the four stages
func (s Stages) GainDB() int {
	return LNAShortDB[s.LNAShort&0x3] + LNADB[s.LNA&0x7] + MixerDB[s.Mixer&0x3] + PGADB[s.PGA&0x7]
}

// Encode packs the stages into a gain register value
func Encode(s Stages) uint16 {
	var v uint16
	v = registers.FieldLNAShort.Set(v, uint16(s.LNAShort))
	v = registers.FieldLNA.Set(v, uint16(s.LNA))
	v = registers.FieldMixer.Set(v, uint16(s.Mixer))
	v = registers.FieldPGA.Set(v, uint16(s.PGA))
	return v
}

// Decode unpacks a gain register value
func Decode(reg uint16) Stages {
	return Stages{
		LNAShort: uint8(registers.FieldLNAShort.Get(reg)),
		LNA:      uint8(registers.FieldLNA.Get(reg)),
		Mixer:    uint8(registers.FieldMixer.Get(reg)),
		PGA:      uint8(registers.FieldPGA.Get(reg)),
	}
}

// Entry is one gain table row
type Entry struct {
	RegisterValue uint16 `yaml:"register"`
	GainDB        int    `yaml:"gain_db"`
}

// Table is an immutable gain table sorted ascending by gain
type Table struct {
	entries       []Entry
	standbyOffset int
}

// Option configures a Table
type Option func(*Table)

// WithStandbyOffset sets how many entries below unity the standby index sits
func WithStandbyOffset(k int) Option {
	return func(t *Table) {
		t.standbyOffset = k
	}
}

// New builds and validates a table from entries
func New(entries []Entry, opts ...Option) (*Table, error) {
	t := &Table{
		entries:       append([]Entry(nil), entries...),
		standbyOffset: DefaultStandbyOffset,
	}
	for _, opt := range opts {
		opt(t)
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// Default returns the reference calibration table
func Default(opts ...Option) *Table {
	t, err := New(reference(), opts...)
	if err != nil {
		panic(fmt.Sprintf("gaintable: reference table invalid: %v", err))
	}
	return t
}

// Validate checks length and ordering
func (t *Table) Validate() error {
	if t.standbyOffset < 0 {
		return fmt.Errorf("%w: negative standby offset %d", ErrTooShort, t.standbyOffset)
	}
	// index 1 is the controller's floor, standby must sit at or above it
	if len(t.entries) < t.standbyOffset+2 {
		return fmt.Errorf("%w: %d entries, standby offset %d", ErrTooShort, len(t.entries), t.standbyOffset)
	}
	for i := 1; i < len(t.entries); i++ {
		if t.entries[i].GainDB < t.entries[i-1].GainDB {
			return fmt.Errorf("%w: index %d (%d dB) < index %d (%d dB)", ErrNotMonotonic,
				i, t.entries[i].GainDB, i-1, t.entries[i-1].GainDB)
		}
	}
	return nil
}

// Len returns the number of entries
func (t *Table) Len() int {
	return len(t.entries)
}

// GainDB returns the attenuation of entry i
func (t *Table) GainDB(i int) int {
	return t.entries[i].GainDB
}

// RegisterValue returns the gain register value of entry i
func (t *Table) RegisterValue(i int) uint16 {
	return t.entries[i].RegisterValue
}

// Entry returns entry i
func (t *Table) Entry(i int) Entry {
	return t.entries[i]
}

// Entries returns a copy of all entries
func (t *Table) Entries() []Entry {
	return append([]Entry(nil), t.entries...)
}

// UnityIndex is the maximum gain (0 dB attenuation) index
func (t *Table) UnityIndex() int {
	return len(t.entries) - 1
}

// StandbyIndex is the ceiling used when recovering gain
func (t *Table) StandbyIndex() int {
	return len(t.entries) - 1 - t.standbyOffset
}

// StandbyOffset returns K in StandbyIndex = Len-1-K
func (t *Table) StandbyOffset() int {
	return t.standbyOffset
}

func entry(lnas, lna, mix, pga uint8, gainDB int) Entry {
	return Entry{
		RegisterValue: Encode(Stages{LNAShort: lnas, LNA: lna, Mixer: mix, PGA: pga}),
		GainDB:        gainDB,
	}
}

// reference is the published table. LNA short stays at 0 dB throughout.
func reference() []Entry {
	return []Entry{
		entry(3, 0, 0, 0, -65), // LNA -24, MIX -8, PGA -33
		entry(3, 0, 1, 0, -63), // LNA -24, MIX -6, PGA -33
		entry(3, 0, 2, 0, -60), // LNA -24, MIX -3, PGA -33
		entry(3, 0, 0, 1, -59), // LNA -24, MIX -8, PGA -27
		entry(3, 0, 1, 1, -57), // LNA -24, MIX -6, PGA -27
		entry(3, 0, 2, 1, -54), // LNA -24, MIX -3, PGA -27
		entry(3, 1, 3, 0, -52), // LNA -19, MIX  0, PGA -33
		entry(3, 0, 3, 1, -51), // LNA -24, MIX  0, PGA -27
		entry(3, 1, 2, 1, -49), // LNA -19, MIX -3, PGA -27
		entry(3, 0, 2, 2, -48), // LNA -24, MIX -3, PGA -21
		entry(3, 1, 1, 2, -46), // LNA -19, MIX -6, PGA -21
		entry(3, 1, 2, 2, -43), // LNA -19, MIX -3, PGA -21
		entry(3, 1, 3, 2, -40), // LNA -19, MIX  0, PGA -21
		entry(3, 2, 2, 2, -38), // LNA -14, MIX -3, PGA -21
		entry(3, 2, 3, 2, -35), // LNA -14, MIX  0, PGA -21
		entry(3, 2, 2, 3, -32), // LNA -14, MIX -3, PGA -15
		entry(3, 2, 3, 3, -29), // LNA -14, MIX  0, PGA -15
		entry(3, 0, 3, 6, -27), // LNA -24, MIX  0, PGA  -3
		entry(3, 2, 2, 4, -26), // LNA -14, MIX -3, PGA  -9
		entry(3, 1, 2, 6, -25), // LNA -19, MIX -3, PGA  -3
		entry(3, 2, 3, 4, -23), // LNA -14, MIX  0, PGA  -9
		entry(3, 5, 0, 4, -21), // LNA  -4, MIX -8, PGA  -9
		entry(3, 2, 2, 6, -20), // LNA -14, MIX -3, PGA  -3
		entry(3, 5, 1, 4, -19), // LNA  -4, MIX -6, PGA  -9
		entry(3, 3, 1, 6, -18), // LNA  -9, MIX -6, PGA  -3
		entry(3, 2, 2, 7, -17), // LNA -14, MIX -3, PGA   0
		entry(3, 5, 2, 4, -16), // LNA  -4, MIX -3, PGA  -9
		entry(3, 3, 1, 7, -15), // LNA  -9, MIX -6, PGA   0
		entry(3, 4, 0, 7, -14), // LNA  -6, MIX -8, PGA   0
		entry(3, 5, 2, 5, -13), // LNA  -4, MIX -3, PGA  -6
		entry(3, 3, 2, 7, -12), // LNA  -9, MIX -3, PGA   0
		entry(3, 5, 3, 5, -10), // LNA  -4, MIX  0, PGA  -6
		entry(3, 4, 3, 6, -9),  // LNA  -6, MIX  0, PGA  -3
		entry(3, 5, 3, 6, -7),  // LNA  -4, MIX  0, PGA  -3
		entry(3, 4, 3, 7, -6),  // LNA  -6, MIX  0, PGA   0
		entry(3, 6, 3, 6, -5),  // LNA  -2, MIX  0, PGA  -3
		entry(3, 5, 3, 7, -4),  // LNA  -4, MIX  0, PGA   0
		entry(3, 6, 3, 7, -2),  // LNA  -2, MIX  0, PGA   0
		entry(3, 7, 3, 7, 0),   // unity
	}
}
