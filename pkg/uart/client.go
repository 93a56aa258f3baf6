package uart

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// Client speaks the programming protocol over any byte stream. It
// implements registers.Bus.
type Client struct {
	mu   sync.Mutex
	rw   io.ReadWriter
	log  *log.Logger
	done io.Closer
}

// NewClient wraps rw. Reads returning no data and no error are treated as
// timeouts, which is how serial ports report an expired read deadline.
func NewClient(rw io.ReadWriter, logger *log.Logger) *Client {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	c := &Client{rw: rw, log: logger}
	if closer, ok := rw.(io.Closer); ok {
		c.done = closer
	}
	return c
}

// Close closes the underlying stream if it can be closed
func (c *Client) Close() error {
	if c.done == nil {
		return nil
	}
	return c.done.Close()
}

// Hello announces a session and returns the firmware version string
func (c *Client) Hello() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	body, err := c.exchange(MsgHello, helloBody(uint32(time.Now().Unix())), MsgHelloReply)
	if err != nil {
		return "", err
	}
	version, err := parseHelloReply(body)
	if err != nil {
		return "", err
	}
	c.log.Info("radio connected", "firmware", version)
	return version, nil
}

// ReadRegister reads one chip register through the radio
func (c *Client) ReadRegister(addr uint8) (uint16, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	body, err := c.exchange(MsgReadRegister, readBody(addr), MsgReadRegister)
	if err != nil {
		return 0, err
	}
	got, value, err := parseRegisterReply(body)
	if err != nil {
		return 0, err
	}
	if got != addr {
		return 0, fmt.Errorf("%w: register 0x%02X for 0x%02X", ErrUnexpectedReply, got, addr)
	}
	return value, nil
}

// WriteRegister writes one chip register through the radio. The radio does not acknowledge.
func (c *Client) WriteRegister(addr uint8, value uint16) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.send(MsgWriteRegister, writeBody(addr, value))
}

func (c *Client) send(id uint16, body []byte) error {
	frame := EncodeFrame(EncodeMessage(id, body))
	if _, err := c.rw.Write(frame); err != nil {
		return fmt.Errorf("failed to send 0x%04X: %w", id, err)
	}
	return nil
}

// exchange sends a message and waits for the reply with id want
func (c *Client) exchange(id uint16, body []byte, want uint16) ([]byte, error) {
	if err := c.send(id, body); err != nil {
		return nil, err
	}

	payload, err := ReadFrame(timeoutReader{c.rw})
	if err != nil {
		return nil, fmt.Errorf("failed to read reply to 0x%04X: %w", id, err)
	}
	got, reply, err := DecodeMessage(payload)
	if err != nil {
		return nil, err
	}
	if got != want {
		return nil, fmt.Errorf("%w: 0x%04X, want 0x%04X", ErrUnexpectedReply, got, want)
	}

	c.log.Debug("reply", "id", fmt.Sprintf("0x%04X", got), "bytes", len(reply))
	return reply, nil
}

type timeoutReader struct {
	r io.Reader
}

func (t timeoutReader) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	if n == 0 && err == nil && len(p) > 0 {
		return 0, ErrTimeout
	}
	return n, err
}
