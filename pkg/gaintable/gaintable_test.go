package gaintable

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestDefaultShape(t *testing.T) {
	table := Default()

	assert.Equal(t, 39, table.Len())
	assert.Equal(t, 38, table.UnityIndex())
	assert.Equal(t, 31, table.StandbyIndex())
	assert.Equal(t, -65, table.GainDB(0))
	assert.Equal(t, 0, table.GainDB(table.UnityIndex()))
	assert.Equal(t, -10, table.GainDB(table.StandbyIndex()))
	assert.Equal(t, uint16(0x0300), table.RegisterValue(0))
	assert.Equal(t, uint16(0x03FF), table.RegisterValue(table.UnityIndex()))
}

func TestDefaultIsNonDecreasing(t *testing.T) {
	table := Default()

	for i := 1; i < table.Len(); i++ {
		assert.LessOrEqualf(t, table.GainDB(i-1), table.GainDB(i), "index %d", i)
	}
}

func TestDefaultGainMatchesStages(t *testing.T) {
	table := Default()

	for i, e := range table.Entries() {
		stages := Decode(e.RegisterValue)
		require.NoError(t, stages.Validate())
		assert.Equalf(t, e.GainDB, stages.GainDB(), "index %d (0x%04X)", i, e.RegisterValue)
		assert.Equalf(t, uint8(3), stages.LNAShort, "index %d keeps LNA short at 0 dB", i)
	}
}

func TestEncodeDecode(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := Stages{
			LNAShort: rapid.Uint8Range(0, 3).Draw(t, "lnas"),
			LNA:      rapid.Uint8Range(0, 7).Draw(t, "lna"),
			Mixer:    rapid.Uint8Range(0, 3).Draw(t, "mixer"),
			PGA:      rapid.Uint8Range(0, 7).Draw(t, "pga"),
		}

		reg := Encode(s)

		assert.Equal(t, s, Decode(reg))
		assert.Zero(t, reg&^0x03FF, "only bits 9:0 are used")
	})
}

func TestStagesValidate(t *testing.T) {
	assert.ErrorIs(t, Stages{LNAShort: 4}.Validate(), ErrStageLevel)
	assert.ErrorIs(t, Stages{LNA: 8}.Validate(), ErrStageLevel)
	assert.ErrorIs(t, Stages{Mixer: 4}.Validate(), ErrStageLevel)
	assert.ErrorIs(t, Stages{PGA: 8}.Validate(), ErrStageLevel)
	assert.NoError(t, Stages{LNAShort: 3, LNA: 7, Mixer: 3, PGA: 7}.Validate())
}

func TestNewRejectsUnsorted(t *testing.T) {
	entries := Default().Entries()
	entries[10], entries[11] = entries[11], entries[10]

	_, err := New(entries)

	assert.ErrorIs(t, err, ErrNotMonotonic)
}

func TestNewRejectsShortTable(t *testing.T) {
	entries := Default().Entries()[:8]

	_, err := New(entries)
	assert.ErrorIs(t, err, ErrTooShort)

	table, err := New(entries, WithStandbyOffset(2))
	require.NoError(t, err)
	assert.Equal(t, 5, table.StandbyIndex())
}

func TestNewCopiesEntries(t *testing.T) {
	entries := Default().Entries()
	table, err := New(entries)
	require.NoError(t, err)

	entries[0].GainDB = 100

	assert.Equal(t, -65, table.GainDB(0))
}

func TestSortedTablesValidate(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(DefaultStandbyOffset+2, 64).Draw(t, "n")
		gain := -90
		entries := make([]Entry, n)
		for i := range entries {
			gain += rapid.IntRange(0, 4).Draw(t, "step")
			entries[i] = Entry{RegisterValue: uint16(i), GainDB: gain}
		}

		table, err := New(entries)

		require.NoError(t, err)
		assert.GreaterOrEqual(t, table.StandbyIndex(), 1)
	})
}
