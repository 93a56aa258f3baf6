package uart

import (
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"go.bug.st/serial"
)

// Port settings of the programming cable
const (
	DefaultBaudRate    = 38400
	DefaultReadTimeout = 500 * time.Millisecond
)

// Open opens a serial port at 38400 8N1 and returns a Client on it
func Open(port string, timeout time.Duration, logger *log.Logger) (*Client, error) {
	mode := &serial.Mode{
		BaudRate: DefaultBaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	p, err := serial.Open(port, mode)
	if err != nil {
		return nil, fmt.Errorf("serial open %s: %w", port, err)
	}

	if timeout <= 0 {
		timeout = DefaultReadTimeout
	}
	if err := p.SetReadTimeout(timeout); err != nil {
		p.Close()
		return nil, fmt.Errorf("serial timeout %s: %w", port, err)
	}

	return NewClient(p, logger), nil
}

// ListPorts returns the serial ports present on the host
func ListPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}
	return ports, nil
}
