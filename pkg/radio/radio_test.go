package radio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestNewDefaults(t *testing.T) {
	r := New()

	assert.Equal(t, 0, r.Current())
	assert.Equal(t, ModeQuiet, r.Mode(0))
	assert.Equal(t, ModulationFM, r.Modulation(0))
	assert.Equal(t, ModulationFM, r.Modulation(1))
}

func TestSlotsAreIndependent(t *testing.T) {
	r := New()

	require.NoError(t, r.SetModulation(1, ModulationAM))
	require.NoError(t, r.SetVFO(0, VFO{Frequency: 118100000, Modulation: ModulationUSB}))

	assert.Equal(t, ModulationUSB, r.Modulation(0))
	assert.Equal(t, ModulationAM, r.Modulation(1))
	v, err := r.VFO(0)
	require.NoError(t, err)
	assert.Equal(t, uint32(118100000), v.Frequency)
}

func TestInvalidSlot(t *testing.T) {
	r := New()

	assert.ErrorIs(t, r.SetModulation(2, ModulationAM), ErrInvalidVFO)
	assert.ErrorIs(t, r.SetCurrent(-1), ErrInvalidVFO)
	_, err := r.VFO(5)
	assert.ErrorIs(t, err, ErrInvalidVFO)
	assert.Equal(t, ModulationFM, r.Modulation(7))
}

func TestParse(t *testing.T) {
	m, err := ParseModulation("am")
	require.NoError(t, err)
	assert.Equal(t, ModulationAM, m)

	mode, err := ParseMode("Tx")
	require.NoError(t, err)
	assert.Equal(t, ModeTX, mode)

	_, err = ParseModulation("wfm")
	assert.ErrorIs(t, err, ErrUnknownModulation)
	_, err = ParseMode("sleep")
	assert.ErrorIs(t, err, ErrUnknownMode)
}

func TestIsReceiving(t *testing.T) {
	assert.True(t, IsReceiving(ModeQuiet))
	assert.True(t, IsReceiving(ModeIncoming))
	assert.True(t, IsReceiving(ModeRX))
	assert.False(t, IsReceiving(ModeTX))
}

func TestYAMLText(t *testing.T) {
	var step struct {
		Modulation Modulation `yaml:"modulation"`
		Mode       Mode       `yaml:"mode"`
	}

	require.NoError(t, yaml.Unmarshal([]byte("modulation: AM\nmode: incoming\n"), &step))

	assert.Equal(t, ModulationAM, step.Modulation)
	assert.Equal(t, ModeIncoming, step.Mode)
	assert.Equal(t, "Modulation(9)", Modulation(9).String())
}
