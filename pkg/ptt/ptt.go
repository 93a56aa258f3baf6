// Package ptt follows the radio's push-to-talk input and switches the radio
// mode between transmit and receive.
package ptt

import (
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/warthog618/go-gpiocdev"

	"github.com/herlein/amfix/pkg/radio"
)

// ModeSetter receives the mode changes
type ModeSetter interface {
	SetMode(m radio.Mode)
}

// Options tune the line request
type Options struct {
	ActiveLow bool // PTT pulls the line low
	PullUp    bool
	Logger    *log.Logger
}

type line interface {
	Value() (int, error)
	Close() error
}

// Watcher tracks one GPIO input line
type Watcher struct {
	modes ModeSetter
	log   *log.Logger

	mu      sync.Mutex
	line    line
	pressed bool
	changes int
}

// Open requests the PTT line on chip (e.g. "gpiochip0") and applies its current level
func Open(chip string, offset int, modes ModeSetter, opts Options) (*Watcher, error) {
	w := newWatcher(modes, opts.Logger)

	reqOpts := []gpiocdev.LineReqOption{
		gpiocdev.AsInput,
		gpiocdev.WithConsumer("amfix-ptt"),
		gpiocdev.WithBothEdges,
		gpiocdev.WithEventHandler(w.handle),
	}
	if opts.ActiveLow {
		reqOpts = append(reqOpts, gpiocdev.AsActiveLow)
	}
	if opts.PullUp {
		reqOpts = append(reqOpts, gpiocdev.WithPullUp)
	}

	l, err := gpiocdev.RequestLine(chip, offset, reqOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to request PTT line %s:%d: %w", chip, offset, err)
	}

	if err := w.attach(l); err != nil {
		l.Close()
		return nil, err
	}
	w.log.Info("watching PTT", "chip", chip, "line", offset, "active_low", opts.ActiveLow)
	return w, nil
}

func newWatcher(modes ModeSetter, logger *log.Logger) *Watcher {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Watcher{modes: modes, log: logger}
}

// attach stores the line and applies its current level
func (w *Watcher) attach(l line) error {
	v, err := l.Value()
	if err != nil {
		return fmt.Errorf("failed to read PTT line: %w", err)
	}

	w.mu.Lock()
	w.line = l
	w.mu.Unlock()

	w.set(v == 1)
	return nil
}

// handle runs on the gpiocdev event goroutine
func (w *Watcher) handle(evt gpiocdev.LineEvent) {
	switch evt.Type {
	case gpiocdev.LineEventRisingEdge:
		w.set(true)
	case gpiocdev.LineEventFallingEdge:
		w.set(false)
	}
}

func (w *Watcher) set(pressed bool) {
	w.mu.Lock()
	changed := pressed != w.pressed || w.changes == 0
	w.pressed = pressed
	if changed {
		w.changes++
	}
	w.mu.Unlock()

	if !changed {
		return
	}

	mode := radio.ModeRX
	if pressed {
		mode = radio.ModeTX
	}
	w.modes.SetMode(mode)
	w.log.Debug("ptt", "pressed", pressed, "mode", mode)
}

// Pressed reports the last seen PTT state
func (w *Watcher) Pressed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pressed
}

// Close releases the line
func (w *Watcher) Close() error {
	w.mu.Lock()
	l := w.line
	w.line = nil
	w.mu.Unlock()

	if l == nil {
		return nil
	}
	return l.Close()
}
