package amfix

import (
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/herlein/amfix/pkg/gaintable"
	"github.com/herlein/amfix/pkg/radio"
	"github.com/herlein/amfix/pkg/registers"
)

// Chip is the part of the RF chip the controller drives
type Chip interface {
	ReadRSSI() uint16
	WriteRegister(addr uint8, value uint16)
	RestoreDefaultGain()
}

// VFOs exposes the per-slot fields the controller consults
type VFOs interface {
	Modulation(vfo int) radio.Modulation
	Mode(vfo int) radio.Mode
}

// Action describes what a Tick did
type Action uint8

const (
	ActionInvalidSlot Action = iota
	ActionDisabled           // feature switched off
	ActionWaiting            // eligibility countdown still running
	ActionRestored           // slot not AM, default gain restored
	ActionPaused             // transmitting
	ActionAdjusted           // full evaluation ran and gain was written
)

var actionNames = map[Action]string{
	ActionInvalidSlot: "invalid-slot",
	ActionDisabled:    "disabled",
	ActionWaiting:     "waiting",
	ActionRestored:    "restored",
	ActionPaused:      "paused",
	ActionAdjusted:    "adjusted",
}

// String returns the action name
func (a Action) String() string {
	if name, ok := actionNames[a]; ok {
		return name
	}
	return "unknown"
}

// State is the controller state of one VFO slot
type State struct {
	CurrentIndex    int // position in the gain table, 1..Len-1
	PreviousIndex   int // last index written to the chip
	PreviousRSSI    int // last raw sample
	HoldCounter     int // while non-zero gain may not increase
	RSSIGainOffset  int // half dB, subtract from raw RSSI to undo our gain changes
	EnableCountdown int // ticks until the next evaluation
}

// Result reports one Tick
type Result struct {
	VFO     int
	Action  Action
	RawRSSI int // sample read this tick
	RSSI    int // smoothed
	DiffDB  int // positive when stronger than the cap
	Index   int
	GainDB  int
	Offset  int
	Hold    int
}

type slot struct {
	mu sync.Mutex
	State
}

// Controller is the adaptive front-end gain controller for both VFO slots
type Controller struct {
	chip   Chip
	vfos   VFOs
	config *Config
	table  *gaintable.Table
	log    *log.Logger

	originalIndex int
	desiredRSSI   int

	slots [radio.NumVFOs]slot
}

// New creates a Controller. A nil config uses DefaultConfig.
func New(chip Chip, vfos VFOs, config *Config) (*Controller, error) {
	if chip == nil || vfos == nil {
		return nil, ErrNilCollaborator
	}
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	table, err := config.table()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	logger := config.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}

	c := &Controller{
		chip:          chip,
		vfos:          vfos,
		config:        config,
		table:         table,
		log:           logger,
		originalIndex: table.StandbyIndex(),
		desiredRSSI:   DesiredRSSI(config.CapDBm),
	}
	c.Init()

	c.log.Debug("gain controller ready",
		"entries", table.Len(), "original", c.originalIndex,
		"cap_dbm", config.CapDBm, "desired_rssi", c.desiredRSSI)

	return c, nil
}

// Config returns the controller configuration
func (c *Controller) Config() *Config {
	return c.config
}

// Table returns the gain table in use
func (c *Controller) Table() *gaintable.Table {
	return c.table
}

// OriginalIndex is the boot-time index and the reference for the RSSI offset
func (c *Controller) OriginalIndex() int {
	return c.originalIndex
}

// Init puts every slot back at the original index
func (c *Controller) Init() {
	for i := range c.slots {
		s := &c.slots[i]
		s.mu.Lock()
		s.CurrentIndex = c.originalIndex
		s.mu.Unlock()
	}
}

// Reset clears the slot's sample history, hold and offset. The index is kept.
func (c *Controller) Reset(vfo int) {
	if !radio.ValidVFO(vfo) {
		return
	}
	s := &c.slots[vfo]
	s.mu.Lock()
	defer s.mu.Unlock()

	s.PreviousRSSI = 0
	s.HoldCounter = 0
	s.RSSIGainOffset = 0
	s.PreviousIndex = 0

	c.log.Debug("slot reset", "vfo", vfo, "index", s.CurrentIndex)
}

// Advance counts every slot's eligibility countdown down by one tick
func (c *Controller) Advance() {
	for i := range c.slots {
		s := &c.slots[i]
		s.mu.Lock()
		if s.EnableCountdown > 0 {
			s.EnableCountdown--
		}
		s.mu.Unlock()
	}
}

// State returns a copy of a slot's state
func (c *Controller) State(vfo int) State {
	if !radio.ValidVFO(vfo) {
		return State{}
	}
	s := &c.slots[vfo]
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.State
}

// Offset returns the slot's published RSSI gain offset in half dB
func (c *Controller) Offset(vfo int) int {
	return c.State(vfo).RSSIGainOffset
}

// CompensatedRSSI removes the controller's own gain changes from a raw reading
func (c *Controller) CompensatedRSSI(vfo int, raw uint16) uint16 {
	v := int(raw&registers.RSSIMask) - c.Offset(vfo)
	switch {
	case v < 0:
		return 0
	case v > int(registers.RSSIMask):
		return registers.RSSIMask
	}
	return uint16(v)
}

// Tick runs one scheduler period for vfo
func (c *Controller) Tick(vfo int) Result {
	res := Result{VFO: vfo, Action: ActionInvalidSlot}
	if !radio.ValidVFO(vfo) {
		c.log.Warn("tick for invalid slot", "vfo", vfo)
		return res
	}

	s := &c.slots[vfo]
	s.mu.Lock()
	defer s.mu.Unlock()

	res.Action = c.tick(vfo, s, &res)
	res.Index = s.CurrentIndex
	res.GainDB = c.table.GainDB(s.CurrentIndex)
	res.Offset = s.RSSIGainOffset
	res.Hold = s.HoldCounter
	return res
}

// tick is the body of Tick; s is locked
func (c *Controller) tick(vfo int, s *slot, res *Result) Action {
	if !c.config.Enabled {
		return ActionDisabled
	}
	if s.EnableCountdown != 0 {
		return ActionWaiting
	}

	if c.vfos.Modulation(vfo) != radio.ModulationAM {
		s.EnableCountdown = c.config.IdleTicks
		c.chip.RestoreDefaultGain()
		return ActionRestored
	}

	if c.vfos.Mode(vfo) == radio.ModeTX {
		s.EnableCountdown = c.config.TxPauseTicks
		return ActionPaused
	}

	// average with the previous sample for a bit of spike immunity
	newRSSI := int(c.chip.ReadRSSI())
	rssi := newRSSI
	if s.PreviousRSSI > 0 {
		rssi = (s.PreviousRSSI + newRSSI) / 2
	}
	s.PreviousRSSI = newRSSI

	if s.HoldCounter > 0 {
		s.HoldCounter--
	}

	diffDB := (rssi - c.desiredRSSI) / 2
	res.RawRSSI = newRSSI
	res.RSSI = rssi
	res.DiffDB = diffDB

	if diffDB > 0 {
		index := c.reduce(s.CurrentIndex, diffDB)
		if index != s.CurrentIndex {
			c.log.Debug("reducing gain", "vfo", vfo, "diff_db", diffDB,
				"from", s.CurrentIndex, "to", index, "gain_db", c.table.GainDB(index))
			s.CurrentIndex = index
			s.HoldCounter = c.config.HoldTicks
		}
	}

	// 6 dB hysteresis band around the cap
	if diffDB >= hysteresisDB {
		s.HoldCounter = c.config.HoldTicks
	}

	if s.HoldCounter == 0 {
		index := min(s.CurrentIndex+1, c.table.StandbyIndex())
		if index != s.CurrentIndex {
			c.log.Debug("recovering gain", "vfo", vfo, "from", s.CurrentIndex, "to", index)
		}
		s.CurrentIndex = index
	}

	c.apply(s)
	s.EnableCountdown = c.config.EvalIntervalTicks
	return ActionAdjusted
}

// reduce returns the index to move to when the signal is diffDB over the cap
func (c *Controller) reduce(index, diffDB int) int {
	switch {
	case diffDB >= jumpThresholdDB:
		// jump straight to a setting, trading spike immunity for settling time
		target := c.table.GainDB(index) - diffDB + jumpHeadroomDB
		for index > minIndex {
			index--
			if c.table.GainDB(index) <= target {
				break
			}
		}
	case diffDB >= fastStepThresholdDB && index >= minIndex+fastStep:
		index -= fastStep
	case index > minIndex:
		index--
	}
	return max(minIndex, min(index, c.table.UnityIndex()))
}

// apply writes the slot's index to the chip and updates the offset; s is locked
func (c *Controller) apply(s *slot) {
	if s.CurrentIndex < minIndex || s.CurrentIndex > c.table.UnityIndex() {
		panic(fmt.Sprintf("amfix: gain index %d outside [%d, %d]", s.CurrentIndex, minIndex, c.table.UnityIndex()))
	}

	c.chip.WriteRegister(c.config.GainRegister, c.table.RegisterValue(s.CurrentIndex))
	s.PreviousIndex = s.CurrentIndex
	s.RSSIGainOffset = (c.table.GainDB(s.CurrentIndex) - c.table.GainDB(c.originalIndex)) * 2
}
