package amfix

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/herlein/amfix/pkg/gaintable"
)

func TestDefaultConfigValidates(t *testing.T) {
	config := DefaultConfig()

	require.NoError(t, config.Validate())
	assert.True(t, config.Enabled)
	assert.Equal(t, -82, config.CapDBm)
	assert.Equal(t, 156, DesiredRSSI(config.CapDBm))
	assert.Equal(t, uint8(0x13), config.GainRegister)
	assert.Equal(t, 10*time.Millisecond, config.TickPeriod)
}

func TestConfigValidateErrors(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		err    error
	}{
		{"cap too low", func(c *Config) { c.CapDBm = -161 }, ErrInvalidCap},
		{"cap too high", func(c *Config) { c.CapDBm = 96 }, ErrInvalidCap},
		{"negative standby", func(c *Config) { c.StandbyOffset = -1 }, ErrInvalidConfig},
		{"negative hold", func(c *Config) { c.HoldTicks = -1 }, ErrNegativeTicks},
		{"negative idle", func(c *Config) { c.IdleTicks = -5 }, ErrNegativeTicks},
		{"zero period", func(c *Config) { c.TickPeriod = 0 }, ErrInvalidConfig},
		{"standby past table", func(c *Config) { c.StandbyOffset = 38 }, ErrInvalidConfig},
		{"unsorted calibration", func(c *Config) {
			c.Calibration = []gaintable.Entry{
				{RegisterValue: 0x300, GainDB: -10},
				{RegisterValue: 0x301, GainDB: -20},
				{RegisterValue: 0x302, GainDB: -5},
			}
			c.StandbyOffset = 1
		}, gaintable.ErrNotMonotonic},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.modify(config)

			assert.ErrorIs(t, config.Validate(), tt.err)
		})
	}
}

func TestConfigFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "amfix.yaml")

	file := DefaultConfigFile()
	file.Controller.CapDBm = ptr(-75)
	file.Scheduler.PeriodMs = ptr(uint32(20))
	file.Telemetry.Enabled = true
	require.NoError(t, SaveConfigFile(file, path))

	loaded, err := LoadConfigFile(path)
	require.NoError(t, err)

	assert.Equal(t, "default", loaded.Name)
	assert.False(t, loaded.Created.IsZero())
	assert.True(t, loaded.Telemetry.Enabled)
	assert.Equal(t, "amfix-%Y%m%d.csv", loaded.Telemetry.Pattern)

	config := loaded.ToConfig()
	assert.Equal(t, -75, config.CapDBm)
	assert.Equal(t, 20*time.Millisecond, config.TickPeriod)
	assert.Equal(t, DefaultHoldTicks, config.HoldTicks)
	assert.True(t, config.Enabled)
}

func TestLoadConfigFileErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadConfigFile(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("controller: [\n"), 0644))
	_, err = LoadConfigFile(bad)
	assert.ErrorContains(t, err, "failed to parse config")

	old := filepath.Join(dir, "old.yaml")
	require.NoError(t, os.WriteFile(old, []byte("name: old\nversion: \"0.9\"\n"), 0644))
	_, err = LoadConfigFile(old)
	assert.ErrorIs(t, err, ErrConfigVersion)
}

func TestToConfigDefaultsAndOverrides(t *testing.T) {
	file := &ConfigFile{
		Version: "1.0",
		Controller: ControllerYAML{
			Enabled:       ptr(false),
			StandbyOffset: ptr(0),
			TxPauseTicks:  ptr(80),
		},
	}

	config := file.ToConfig()

	assert.False(t, config.Enabled)
	assert.Equal(t, 0, config.StandbyOffset)
	assert.Equal(t, 80, config.TxPauseTicks)
	assert.Equal(t, DefaultCapDBm, config.CapDBm)
	assert.Equal(t, DefaultIdleTicks, config.IdleTicks)
	assert.Equal(t, DefaultResetAfterTicks, config.ResetAfterTicks)
}

func TestExplicitZerosAreKept(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zeros.yaml")
	data := `version: "1.0"
controller:
  cap_dbm: 0
  hold_ticks: 0
  eval_interval_ticks: 0
  tx_pause_ticks: 0
  idle_ticks: 0
scheduler:
  reset_after_ticks: 0
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	file, err := LoadConfigFile(path)
	require.NoError(t, err)
	config := file.ToConfig()

	assert.Equal(t, 0, config.CapDBm)
	assert.Equal(t, 0, config.HoldTicks)
	assert.Equal(t, 0, config.EvalIntervalTicks)
	assert.Equal(t, 0, config.TxPauseTicks)
	assert.Equal(t, 0, config.IdleTicks)
	assert.Equal(t, 0, config.ResetAfterTicks)
	assert.Equal(t, DefaultTickPeriod, config.TickPeriod, "unset period keeps the default")
}

func TestExplicitZeroPeriodRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "period.yaml")
	data := `version: "1.0"
scheduler:
  period_ms: 0
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	_, err := LoadConfigFile(path)

	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestCalibrationFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cal.yaml")
	data := `name: bench
version: "1.0"
controller:
  standby_offset: 1
calibration:
  entries:
    - {lnas: 3, lna: 0, mixer: 0, pga: 0, gain_db: -66}
    - {lnas: 3, lna: 2, mixer: 3, pga: 2, gain_db: -36}
    - {lnas: 3, lna: 5, mixer: 3, pga: 5, gain_db: -11}
    - {lnas: 3, lna: 7, mixer: 3, pga: 7, gain_db: 0}
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	file, err := LoadConfigFile(path)
	require.NoError(t, err)

	config := file.ToConfig()
	require.Len(t, config.Calibration, 4)
	assert.Equal(t, uint16(0x03FF), config.Calibration[3].RegisterValue)

	table, err := config.table()
	require.NoError(t, err)
	assert.Equal(t, 2, table.StandbyIndex())
	assert.Equal(t, -11, table.GainDB(table.StandbyIndex()))
}

func TestCalibrationRejectsBadStage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cal.yaml")
	data := `version: "1.0"
calibration:
  entries:
    - {lnas: 3, lna: 9, mixer: 0, pga: 0, gain_db: -66}
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	_, err := LoadConfigFile(path)

	assert.ErrorIs(t, err, gaintable.ErrStageLevel)
}
