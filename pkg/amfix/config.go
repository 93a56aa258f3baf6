package amfix

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"gopkg.in/yaml.v3"

	"github.com/herlein/amfix/pkg/gaintable"
)

// Config defines the controller's runtime parameters
type Config struct {
	// Enabled gates the whole controller; when false Tick is a no-op
	Enabled bool

	// Calibration
	CapDBm        int               // dBm - AM demodulator saturation point
	StandbyOffset int               // entries below unity where recovery stops
	Calibration   []gaintable.Entry // custom gain table, reference table when empty
	GainRegister  uint8             // register receiving the gain setting

	// Timing, in ticks
	HoldTicks         int
	EvalIntervalTicks int
	TxPauseTicks      int
	IdleTicks         int
	ResetAfterTicks   int
	TickPeriod        time.Duration

	// Logger receives per-tick decisions at debug level (optional, not serialized)
	Logger *log.Logger `yaml:"-"`
}

// DefaultConfig returns a Config with default values
func DefaultConfig() *Config {
	return &Config{
		Enabled:           true,
		CapDBm:            DefaultCapDBm,
		StandbyOffset:     DefaultStandbyOffset,
		GainRegister:      DefaultGainRegister,
		HoldTicks:         DefaultHoldTicks,
		EvalIntervalTicks: DefaultEvalIntervalTicks,
		TxPauseTicks:      DefaultTxPauseTicks,
		IdleTicks:         DefaultIdleTicks,
		ResetAfterTicks:   DefaultResetAfterTicks,
		TickPeriod:        DefaultTickPeriod,
	}
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	if c.CapDBm < -160 || c.CapDBm > 95 {
		return fmt.Errorf("%w: %d dBm", ErrInvalidCap, c.CapDBm)
	}

	if c.StandbyOffset < 0 {
		return fmt.Errorf("%w: standby offset %d", ErrInvalidConfig, c.StandbyOffset)
	}

	ticks := map[string]int{
		"hold":          c.HoldTicks,
		"eval interval": c.EvalIntervalTicks,
		"tx pause":      c.TxPauseTicks,
		"idle":          c.IdleTicks,
		"reset after":   c.ResetAfterTicks,
	}
	for name, v := range ticks {
		if v < 0 {
			return fmt.Errorf("%w: %s = %d", ErrNegativeTicks, name, v)
		}
	}

	if c.TickPeriod <= 0 {
		return fmt.Errorf("%w: tick period %v", ErrInvalidConfig, c.TickPeriod)
	}

	if _, err := c.table(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	return nil
}

// table builds the gain table described by the configuration
func (c *Config) table() (*gaintable.Table, error) {
	entries := c.Calibration
	if len(entries) == 0 {
		entries = gaintable.Default().Entries()
	}
	return gaintable.New(entries, gaintable.WithStandbyOffset(c.StandbyOffset))
}

// --- YAML Configuration File Types ---

// ConfigFile represents the YAML configuration file structure
type ConfigFile struct {
	Name        string    `yaml:"name"`
	Description string    `yaml:"description,omitempty"`
	Version     string    `yaml:"version"`
	Created     time.Time `yaml:"created,omitempty"`

	Controller  ControllerYAML  `yaml:"controller"`
	Calibration CalibrationYAML `yaml:"calibration,omitempty"`
	Scheduler   SchedulerYAML   `yaml:"scheduler"`
	Telemetry   TelemetryYAML   `yaml:"telemetry"`
}

// ControllerYAML holds the control loop tuning. Unset fields take the
// defaults; an explicit 0 is kept.
type ControllerYAML struct {
	Enabled           *bool  `yaml:"enabled,omitempty"`
	CapDBm            *int   `yaml:"cap_dbm,omitempty"`
	StandbyOffset     *int   `yaml:"standby_offset,omitempty"`
	HoldTicks         *int   `yaml:"hold_ticks,omitempty"`
	EvalIntervalTicks *int   `yaml:"eval_interval_ticks,omitempty"`
	TxPauseTicks      *int   `yaml:"tx_pause_ticks,omitempty"`
	IdleTicks         *int   `yaml:"idle_ticks,omitempty"`
	GainRegister      *uint8 `yaml:"gain_register,omitempty"`
}

// CalibrationYAML holds a measured replacement for the reference gain table
type CalibrationYAML struct {
	Entries []CalibrationEntryYAML `yaml:"entries,omitempty"`
}

// CalibrationEntryYAML is one measured table row given as stage levels
type CalibrationEntryYAML struct {
	Stages gaintable.Stages `yaml:",inline"`
	GainDB int              `yaml:"gain_db"`
}

// SchedulerYAML holds the tick loop settings
type SchedulerYAML struct {
	PeriodMs        *uint32 `yaml:"period_ms,omitempty"`
	ResetAfterTicks *int    `yaml:"reset_after_ticks,omitempty"` // 0 = never
}

// TelemetryYAML holds the per-tick recorder settings
type TelemetryYAML struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir,omitempty"`
	Pattern string `yaml:"pattern,omitempty"` // strftime pattern
}

// LoadConfigFile loads controller configuration from a YAML file
func LoadConfigFile(path string) (*ConfigFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config ConfigFile
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

// Validate checks the configuration file for errors
func (c *ConfigFile) Validate() error {
	if c.Version != "1.0" {
		return fmt.Errorf("%w: %s", ErrConfigVersion, c.Version)
	}

	for i, e := range c.Calibration.Entries {
		if err := e.Stages.Validate(); err != nil {
			return fmt.Errorf("calibration entry %d: %w", i, err)
		}
	}

	return c.ToConfig().Validate()
}

// ToConfig converts the file to a runtime Config, filling unset fields with defaults
func (c *ConfigFile) ToConfig() *Config {
	config := DefaultConfig()

	setIfPresent(&config.Enabled, c.Controller.Enabled)
	setIfPresent(&config.CapDBm, c.Controller.CapDBm)
	setIfPresent(&config.StandbyOffset, c.Controller.StandbyOffset)
	setIfPresent(&config.HoldTicks, c.Controller.HoldTicks)
	setIfPresent(&config.EvalIntervalTicks, c.Controller.EvalIntervalTicks)
	setIfPresent(&config.TxPauseTicks, c.Controller.TxPauseTicks)
	setIfPresent(&config.IdleTicks, c.Controller.IdleTicks)
	setIfPresent(&config.GainRegister, c.Controller.GainRegister)
	setIfPresent(&config.ResetAfterTicks, c.Scheduler.ResetAfterTicks)

	if c.Scheduler.PeriodMs != nil {
		config.TickPeriod = time.Duration(*c.Scheduler.PeriodMs) * time.Millisecond
	}

	for _, e := range c.Calibration.Entries {
		config.Calibration = append(config.Calibration, gaintable.Entry{
			RegisterValue: gaintable.Encode(e.Stages),
			GainDB:        e.GainDB,
		})
	}

	return config
}

func setIfPresent[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

func ptr[T any](v T) *T {
	return &v
}

// SaveConfigFile saves controller configuration to a YAML file
func SaveConfigFile(config *ConfigFile, path string) error {
	config.Created = time.Now()

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// DefaultConfigFile returns a file populated with the default settings
func DefaultConfigFile() *ConfigFile {
	return &ConfigFile{
		Name:    "default",
		Version: "1.0",
		Controller: ControllerYAML{
			Enabled:           ptr(true),
			CapDBm:            ptr(DefaultCapDBm),
			StandbyOffset:     ptr(DefaultStandbyOffset),
			HoldTicks:         ptr(DefaultHoldTicks),
			EvalIntervalTicks: ptr(DefaultEvalIntervalTicks),
			TxPauseTicks:      ptr(DefaultTxPauseTicks),
			IdleTicks:         ptr(DefaultIdleTicks),
			GainRegister:      ptr(uint8(DefaultGainRegister)),
		},
		Scheduler: SchedulerYAML{
			PeriodMs:        ptr(uint32(DefaultTickPeriod / time.Millisecond)),
			ResetAfterTicks: ptr(DefaultResetAfterTicks),
		},
		Telemetry: TelemetryYAML{
			Pattern: "amfix-%Y%m%d.csv",
		},
	}
}
