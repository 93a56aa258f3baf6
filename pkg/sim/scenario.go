package sim

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/herlein/amfix/pkg/radio"
)

// Errors
var (
	ErrEmptyScenario = errors.New("scenario has no steps")
	ErrStepTicks     = errors.New("step ticks must be positive")
)

// Step holds the radio conditions for a number of ticks. Unset fields keep
// the previous step's value.
type Step struct {
	Ticks      int               `yaml:"ticks"`
	SignalDBm  *int              `yaml:"signal_dbm,omitempty"`
	Modulation *radio.Modulation `yaml:"modulation,omitempty"`
	Mode       *radio.Mode       `yaml:"mode,omitempty"`
	VFO        *int              `yaml:"vfo,omitempty"`
}

// Scenario is a scripted sequence of steps
type Scenario struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
	Steps       []Step `yaml:"steps"`
}

// LoadScenario reads a scenario from a YAML file
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario: %w", err)
	}

	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("failed to parse scenario: %w", err)
	}

	if err := sc.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &sc, nil
}

// Validate checks the scenario for errors
func (s *Scenario) Validate() error {
	if len(s.Steps) == 0 {
		return ErrEmptyScenario
	}
	for i, step := range s.Steps {
		if step.Ticks <= 0 {
			return fmt.Errorf("step %d: %w", i, ErrStepTicks)
		}
		if step.VFO != nil && !radio.ValidVFO(*step.VFO) {
			return fmt.Errorf("step %d: %w: %d", i, radio.ErrInvalidVFO, *step.VFO)
		}
	}
	return nil
}

// TotalTicks returns the scenario length
func (s *Scenario) TotalTicks() int {
	var n int
	for _, step := range s.Steps {
		n += step.Ticks
	}
	return n
}

// StrongCarrier is the built-in scenario: a quiet band, a strong AM carrier,
// a transmission, the carrier going away, then a switch to FM
func StrongCarrier() *Scenario {
	am, fm := radio.ModulationAM, radio.ModulationFM
	rx, tx := radio.ModeRX, radio.ModeTX
	quiet, strong := -110, -50
	vfo := 0
	return &Scenario{
		Name:        "strong-carrier",
		Description: "strong AM carrier appears, PTT, carrier drops, switch to FM",
		Steps: []Step{
			{Ticks: 100, SignalDBm: &quiet, Modulation: &am, Mode: &rx, VFO: &vfo},
			{Ticks: 1000, SignalDBm: &strong},
			{Ticks: 300, Mode: &tx},
			{Ticks: 300, Mode: &rx},
			{Ticks: 2000, SignalDBm: &quiet},
			{Ticks: 300, Modulation: &fm},
		},
	}
}
