package sim

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/herlein/amfix/pkg/amfix"
	"github.com/herlein/amfix/pkg/bk4819"
	"github.com/herlein/amfix/pkg/radio"
	"github.com/herlein/amfix/pkg/scheduler"
)

// Harness wires a simulated chip to the real controller and scheduler
type Harness struct {
	Chip       *Chip
	Radio      *radio.Radio
	Controller *amfix.Controller
	Scheduler  *scheduler.Scheduler
}

// Tick is one simulated scheduler period
type Tick struct {
	N           int
	SignalDBm   int
	Result      amfix.Result
	Compensated uint16 // RSSI with the controller's gain changes removed
}

// NewHarness builds the full stack around a new simulated chip. A nil sched
// takes the scheduler settings from config; a given one is used as is.
func NewHarness(config *amfix.Config, sched *scheduler.Config, opts ...Option) (*Harness, error) {
	if config == nil {
		config = amfix.DefaultConfig()
	}
	if sched == nil {
		sc := scheduler.ConfigFrom(config)
		sched = &sc
	}

	chip := NewChip(opts...)
	r := radio.New()

	var logger *log.Logger
	if config.Logger != nil {
		logger = config.Logger.With("component", "chip")
	}
	ctrl, err := amfix.New(bk4819.New(chip, logger), r, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create controller: %w", err)
	}

	s, err := scheduler.New(ctrl, r, *sched)
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	return &Harness{Chip: chip, Radio: r, Controller: ctrl, Scheduler: s}, nil
}

// Run plays sc tick by tick, calling onTick (if not nil) after each one
func (h *Harness) Run(ctx context.Context, sc *Scenario, onTick func(Tick)) error {
	if err := sc.Validate(); err != nil {
		return err
	}

	n := 0
	for i, step := range sc.Steps {
		if err := h.apply(step); err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}

		for range step.Ticks {
			if err := ctx.Err(); err != nil {
				return err
			}
			res := h.Scheduler.Step()
			n++
			if onTick == nil {
				continue
			}
			t := Tick{N: n, SignalDBm: h.Chip.Signal(), Result: res}
			if res.Action == amfix.ActionAdjusted {
				t.Compensated = h.Controller.CompensatedRSSI(res.VFO, uint16(res.RawRSSI))
			}
			onTick(t)
		}
	}
	return nil
}

func (h *Harness) apply(step Step) error {
	if step.VFO != nil {
		if err := h.Radio.SetCurrent(*step.VFO); err != nil {
			return err
		}
	}
	if step.Modulation != nil {
		if err := h.Radio.SetModulation(h.Radio.Current(), *step.Modulation); err != nil {
			return err
		}
	}
	if step.Mode != nil {
		h.Radio.SetMode(*step.Mode)
	}
	if step.SignalDBm != nil {
		h.Chip.SetSignal(*step.SignalDBm)
	}
	return nil
}
