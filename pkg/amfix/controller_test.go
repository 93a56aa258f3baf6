package amfix

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/herlein/amfix/pkg/radio"
	"github.com/herlein/amfix/pkg/registers"
)

type write struct {
	addr  uint8
	value uint16
}

// fakeChip reports a fixed RSSI and records every write
type fakeChip struct {
	rssi     uint16
	writes   []write
	restores int
}

func (f *fakeChip) ReadRSSI() uint16 { return f.rssi }

func (f *fakeChip) WriteRegister(addr uint8, value uint16) {
	f.writes = append(f.writes, write{addr, value})
}

func (f *fakeChip) RestoreDefaultGain() { f.restores++ }

func (f *fakeChip) setDBm(dbm int) { f.rssi = registers.DBmToRSSI(dbm) }

func newTestController(t require.TestingT, config *Config) (*Controller, *fakeChip, *radio.Radio) {
	chip := &fakeChip{}
	r := radio.New()
	require.NoError(t, r.SetModulation(0, radio.ModulationAM))
	require.NoError(t, r.SetModulation(1, radio.ModulationAM))

	c, err := New(chip, r, config)
	require.NoError(t, err)
	return c, chip, r
}

// evaluate advances until vfo is eligible and ticks it once
func evaluate(c *Controller, vfo int) Result {
	for c.State(vfo).EnableCountdown > 0 {
		c.Advance()
	}
	return c.Tick(vfo)
}

func TestNewRejectsNilCollaborators(t *testing.T) {
	_, err := New(nil, radio.New(), nil)
	assert.ErrorIs(t, err, ErrNilCollaborator)

	_, err = New(&fakeChip{}, nil, nil)
	assert.ErrorIs(t, err, ErrNilCollaborator)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	config := DefaultConfig()
	config.CapDBm = 200

	_, err := New(&fakeChip{}, radio.New(), config)

	assert.ErrorIs(t, err, ErrInvalidCap)
}

func TestInitialState(t *testing.T) {
	c, _, _ := newTestController(t, nil)

	assert.Equal(t, 31, c.OriginalIndex())
	for vfo := range radio.NumVFOs {
		s := c.State(vfo)
		assert.Equal(t, 31, s.CurrentIndex)
		assert.Zero(t, s.HoldCounter)
		assert.Zero(t, s.RSSIGainOffset)
		assert.Zero(t, s.EnableCountdown)
	}
}

func TestStrongSignalJumps(t *testing.T) {
	c, chip, _ := newTestController(t, nil)
	chip.setDBm(-50)

	res := evaluate(c, 0)

	assert.Equal(t, ActionAdjusted, res.Action)
	assert.Equal(t, 220, res.RawRSSI)
	assert.Equal(t, 32, res.DiffDB)
	assert.Equal(t, 13, res.Index)
	assert.Equal(t, -38, res.GainDB)
	assert.Equal(t, -56, res.Offset)
	assert.Equal(t, DefaultHoldTicks, res.Hold)

	require.Len(t, chip.writes, 1)
	assert.Equal(t, write{registers.RegGain, c.Table().RegisterValue(13)}, chip.writes[0])

	s := c.State(0)
	assert.Equal(t, 13, s.PreviousIndex)
	assert.Equal(t, DefaultEvalIntervalTicks, s.EnableCountdown)

	// other slot untouched
	assert.Equal(t, 31, c.State(1).CurrentIndex)
}

func TestAtTargetHolds(t *testing.T) {
	c, chip, _ := newTestController(t, nil)
	chip.setDBm(DefaultCapDBm)

	for range 5 {
		res := evaluate(c, 0)
		assert.Equal(t, ActionAdjusted, res.Action)
		assert.Equal(t, 0, res.DiffDB)
		assert.Equal(t, 31, res.Index)
		assert.Equal(t, DefaultHoldTicks, res.Hold)
		assert.Zero(t, res.Offset)
	}
}

func TestSmallExcessStepsDown(t *testing.T) {
	c, chip, _ := newTestController(t, nil)

	chip.setDBm(DefaultCapDBm + 2)
	res := evaluate(c, 0)
	assert.Equal(t, 2, res.DiffDB)
	assert.Equal(t, 30, res.Index)

	c.Reset(0)
	chip.setDBm(DefaultCapDBm + 4)
	res = evaluate(c, 0)
	assert.Equal(t, 4, res.DiffDB)
	assert.Equal(t, 27, res.Index)
}

func TestRecoveryAfterReset(t *testing.T) {
	c, chip, _ := newTestController(t, nil)
	chip.setDBm(-50)
	require.Equal(t, 13, evaluate(c, 0).Index)

	c.Reset(0)
	chip.setDBm(-120)

	for want := 14; want <= 31; want++ {
		res := evaluate(c, 0)
		require.Equal(t, want, res.Index)
	}
	for range 5 {
		assert.Equal(t, 31, evaluate(c, 0).Index, "recovery stops at the standby index")
	}
	assert.Zero(t, c.Offset(0))
}

func TestHysteresisEdge(t *testing.T) {
	tests := []struct {
		name  string
		raw   uint16
		diff  int
		index int
		hold  int
	}{
		{"3 dB under holds", 149, -3, 13, DefaultHoldTicks},
		{"4 dB under recovers", 148, -4, 14, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, chip, _ := newTestController(t, nil)
			chip.setDBm(-50)
			require.Equal(t, 13, evaluate(c, 0).Index)
			c.Reset(0)

			chip.rssi = tt.raw
			res := evaluate(c, 0)

			assert.Equal(t, tt.diff, res.DiffDB)
			assert.Equal(t, tt.index, res.Index)
			assert.Equal(t, tt.hold, res.Hold)
		})
	}
}

func TestHoldDelaysRecovery(t *testing.T) {
	c, chip, _ := newTestController(t, nil)
	chip.setDBm(-50)
	require.Equal(t, 13, evaluate(c, 0).Index)

	chip.setDBm(-130)

	// the first weak sample is averaged with the strong one: 140 -> diff -8
	for i := 1; i < DefaultHoldTicks; i++ {
		res := evaluate(c, 0)
		require.Less(t, res.DiffDB, hysteresisDB)
		require.Equal(t, 13, res.Index, "evaluation %d", i)
		require.Equal(t, DefaultHoldTicks-i, res.Hold)
	}

	res := evaluate(c, 0)
	assert.Zero(t, res.Hold)
	assert.Equal(t, 14, res.Index)
	assert.Equal(t, 15, evaluate(c, 0).Index)
}

func TestNotAMRestoresDefault(t *testing.T) {
	c, chip, r := newTestController(t, nil)
	chip.setDBm(-50)
	require.Equal(t, 13, evaluate(c, 0).Index)

	require.NoError(t, r.SetModulation(0, radio.ModulationFM))
	res := evaluate(c, 0)

	assert.Equal(t, ActionRestored, res.Action)
	assert.Equal(t, 1, chip.restores)
	assert.Equal(t, 13, res.Index)
	assert.Len(t, chip.writes, 1)
	assert.Equal(t, DefaultIdleTicks, c.State(0).EnableCountdown)
}

func TestTransmitPauses(t *testing.T) {
	c, chip, r := newTestController(t, nil)
	chip.setDBm(-50)
	r.SetMode(radio.ModeTX)

	res := evaluate(c, 0)

	assert.Equal(t, ActionPaused, res.Action)
	assert.Empty(t, chip.writes)
	assert.Equal(t, 31, res.Index)
	assert.Equal(t, DefaultTxPauseTicks, c.State(0).EnableCountdown)
}

func TestWaitingDoesNotCountDown(t *testing.T) {
	c, chip, _ := newTestController(t, nil)
	chip.setDBm(DefaultCapDBm)
	evaluate(c, 0)

	for range 3 {
		res := c.Tick(0)
		assert.Equal(t, ActionWaiting, res.Action)
	}
	assert.Equal(t, DefaultEvalIntervalTicks, c.State(0).EnableCountdown)

	c.Advance()
	assert.Equal(t, DefaultEvalIntervalTicks-1, c.State(0).EnableCountdown)
	assert.Len(t, chip.writes, 1)
}

func TestDisabled(t *testing.T) {
	config := DefaultConfig()
	config.Enabled = false
	c, chip, _ := newTestController(t, config)
	chip.setDBm(-50)

	res := c.Tick(0)

	assert.Equal(t, ActionDisabled, res.Action)
	assert.Empty(t, chip.writes)
	assert.Zero(t, chip.restores)
	assert.Equal(t, State{CurrentIndex: 31}, c.State(0))
}

func TestInvalidSlot(t *testing.T) {
	c, chip, _ := newTestController(t, nil)
	chip.setDBm(-50)

	assert.Equal(t, ActionInvalidSlot, c.Tick(2).Action)
	assert.Equal(t, ActionInvalidSlot, c.Tick(-1).Action)
	assert.Equal(t, State{}, c.State(2))
	assert.Empty(t, chip.writes)

	c.Reset(9)
}

func TestResetKeepsIndex(t *testing.T) {
	c, chip, _ := newTestController(t, nil)
	chip.setDBm(-50)
	evaluate(c, 0)

	c.Reset(0)

	s := c.State(0)
	assert.Equal(t, 13, s.CurrentIndex)
	assert.Zero(t, s.HoldCounter)
	assert.Zero(t, s.PreviousRSSI)
	assert.Zero(t, s.RSSIGainOffset)
	assert.Zero(t, s.PreviousIndex)
}

func TestInitRestoresOriginalIndex(t *testing.T) {
	c, chip, _ := newTestController(t, nil)
	chip.setDBm(-50)
	evaluate(c, 0)
	evaluate(c, 1)

	c.Init()

	assert.Equal(t, 31, c.State(0).CurrentIndex)
	assert.Equal(t, 31, c.State(1).CurrentIndex)
}

func TestCompensatedRSSI(t *testing.T) {
	c, chip, _ := newTestController(t, nil)

	assert.Equal(t, uint16(220), c.CompensatedRSSI(0, 220))
	assert.Equal(t, uint16(100), c.CompensatedRSSI(0, 0xFE00|100), "upper bits masked")

	chip.setDBm(-50)
	evaluate(c, 0)
	require.Equal(t, -56, c.Offset(0))

	assert.Equal(t, uint16(276), c.CompensatedRSSI(0, 220))
	assert.Equal(t, registers.RSSIMask, c.CompensatedRSSI(0, 500))
	assert.Equal(t, uint16(220), c.CompensatedRSSI(1, 220))
}

func TestActionString(t *testing.T) {
	assert.Equal(t, "adjusted", ActionAdjusted.String())
	assert.Equal(t, "invalid-slot", ActionInvalidSlot.String())
	assert.Equal(t, "unknown", Action(42).String())
}

func TestCustomCap(t *testing.T) {
	config := DefaultConfig()
	config.CapDBm = -60
	c, chip, _ := newTestController(t, config)

	chip.setDBm(-60)
	res := evaluate(c, 0)

	assert.Equal(t, 0, res.DiffDB)
	assert.Equal(t, 31, res.Index)
}

func TestIndexStaysInBounds(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		c, chip, r := newTestController(t, nil)
		table := c.Table()

		steps := rapid.IntRange(1, 200).Draw(t, "steps")
		for range steps {
			chip.rssi = rapid.Uint16Range(0, registers.RSSIMask).Draw(t, "rssi")
			mod := rapid.SampledFrom([]radio.Modulation{radio.ModulationAM, radio.ModulationAM, radio.ModulationFM}).Draw(t, "mod")
			require.NoError(t, r.SetModulation(0, mod))
			r.SetMode(rapid.SampledFrom([]radio.Mode{radio.ModeRX, radio.ModeRX, radio.ModeTX}).Draw(t, "mode"))

			c.Advance()
			res := c.Tick(0)

			require.GreaterOrEqual(t, res.Index, 1)
			require.LessOrEqual(t, res.Index, table.StandbyIndex())
			if res.Action == ActionAdjusted {
				want := (table.GainDB(res.Index) - table.GainDB(c.OriginalIndex())) * 2
				require.Equal(t, want, res.Offset)
			}
		}
	})
}

func TestExcessNeverRaisesGain(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		c, chip, _ := newTestController(t, nil)

		steps := rapid.IntRange(1, 100).Draw(t, "steps")
		for range steps {
			chip.rssi = rapid.Uint16Range(0, registers.RSSIMask).Draw(t, "rssi")
			before := c.State(0).CurrentIndex

			res := evaluate(c, 0)

			require.Equal(t, ActionAdjusted, res.Action)
			if res.DiffDB > 0 {
				if before > 1 {
					require.Less(t, res.Index, before)
				} else {
					require.Equal(t, 1, res.Index)
				}
			}
			if res.DiffDB >= hysteresisDB {
				require.Equal(t, DefaultHoldTicks, res.Hold)
			}
			if res.Index > before {
				require.Equal(t, before+1, res.Index, "recovery is one step per evaluation")
				require.Zero(t, res.Hold)
			}
		}
	})
}
