// Package scheduler drives the gain controller from a periodic tick.
package scheduler

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"github.com/herlein/amfix/pkg/amfix"
	"github.com/herlein/amfix/pkg/radio"
)

// Radio is the channel state the scheduler watches
type Radio interface {
	amfix.VFOs
	Current() int
}

// Recorder receives every adjusted result
type Recorder interface {
	Record(t time.Time, res amfix.Result) error
}

// Config holds the scheduler settings
type Config struct {
	Period          time.Duration // tick period
	ResetAfterTicks int           // consecutive ticks out of receive before the active slot is reset, 0 = never
	Recorder        Recorder      // optional
	Logger          *log.Logger   // optional
	Now             func() time.Time
}

// ConfigFrom takes the period and reset threshold from a controller config
func ConfigFrom(c *amfix.Config) Config {
	return Config{
		Period:          c.TickPeriod,
		ResetAfterTicks: c.ResetAfterTicks,
		Logger:          c.Logger,
	}
}

// Scheduler runs one controller tick per period for the active slot
type Scheduler struct {
	ctrl   *amfix.Controller
	radio  Radio
	config Config
	log    *log.Logger

	stepMu  sync.Mutex
	lastMod [radio.NumVFOs]radio.Modulation
	idle    int // consecutive ticks out of receive
	ticks   atomic.Uint64 // readable from Config.Now during a Step

	mu       sync.RWMutex
	running  bool
	stopChan chan struct{}
}

// New creates a Scheduler
func New(ctrl *amfix.Controller, r Radio, config Config) (*Scheduler, error) {
	if config.Period <= 0 {
		return nil, fmt.Errorf("%w: %v", ErrBadPeriod, config.Period)
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	logger := config.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}

	s := &Scheduler{
		ctrl:     ctrl,
		radio:    r,
		config:   config,
		log:      logger,
		stopChan: make(chan struct{}),
	}
	for vfo := range s.lastMod {
		s.lastMod[vfo] = r.Modulation(vfo)
	}
	return s, nil
}

// Ticks returns the number of steps run so far, counting the one in progress
func (s *Scheduler) Ticks() uint64 {
	return s.ticks.Load()
}

// Step runs one tick
func (s *Scheduler) Step() amfix.Result {
	s.stepMu.Lock()
	defer s.stepMu.Unlock()

	s.ctrl.Advance()

	// a slot that leaves AM starts from scratch when it comes back
	for vfo := range s.lastMod {
		mod := s.radio.Modulation(vfo)
		if s.lastMod[vfo] == radio.ModulationAM && mod != radio.ModulationAM {
			s.log.Debug("slot left AM", "vfo", vfo, "modulation", mod)
			s.ctrl.Reset(vfo)
		}
		s.lastMod[vfo] = mod
	}

	active := s.radio.Current()
	if radio.IsReceiving(s.radio.Mode(active)) {
		s.idle = 0
	} else {
		s.idle++
		if s.idle == s.config.ResetAfterTicks {
			s.log.Debug("resetting after transmit", "vfo", active, "ticks", s.idle)
			s.ctrl.Reset(active)
		}
	}

	res := s.ctrl.Tick(active)
	s.ticks.Add(1)

	if res.Action == amfix.ActionAdjusted && s.config.Recorder != nil {
		if err := s.config.Recorder.Record(s.config.Now(), res); err != nil {
			s.log.Warn("telemetry write failed", "err", err)
		}
	}
	return res
}

// Start marks the scheduler running
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrRunning
	}

	s.running = true
	s.stopChan = make(chan struct{})
	return nil
}

// Stop ends a Run in progress
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return ErrNotRunning
	}

	close(s.stopChan)
	s.running = false
	return nil
}

// IsRunning returns true while Run is active
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Run steps every Period until ctx is cancelled or Stop is called. Results
// are sent to results (if not nil) without blocking; results is closed on return.
func (s *Scheduler) Run(ctx context.Context, results chan<- amfix.Result) error {
	if err := s.Start(); err != nil {
		return err
	}
	s.mu.RLock()
	stop := s.stopChan
	s.mu.RUnlock()
	defer func() {
		if s.IsRunning() {
			s.Stop()
		}
	}()
	if results != nil {
		defer close(results)
	}

	ticker := time.NewTicker(s.config.Period)
	defer ticker.Stop()

	s.log.Info("scheduler running", "period", s.config.Period)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		case <-ticker.C:
			res := s.Step()
			if results == nil {
				continue
			}
			select {
			case results <- res:
			default:
			}
		}
	}
}
