package uart

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// fakeRadio answers protocol requests from an in-memory register file
type fakeRadio struct {
	regs    map[uint8]uint16
	out     bytes.Buffer
	version string
	noCRC   bool
	silent  bool
	replyID uint16 // overrides the reply id when non-zero
	writes  int
}

func newFakeRadio() *fakeRadio {
	return &fakeRadio{regs: map[uint8]uint16{}, version: "k5 amfix 1.0"}
}

func (f *fakeRadio) Write(p []byte) (int, error) {
	payload, err := ReadFrame(bytes.NewReader(p))
	if err != nil {
		return 0, err
	}
	id, body, err := DecodeMessage(payload)
	if err != nil {
		return 0, err
	}

	switch id {
	case MsgHello:
		version := make([]byte, 20)
		copy(version, f.version)
		f.reply(MsgHelloReply, version)
	case MsgReadRegister:
		f.reply(MsgReadRegister, binary.LittleEndian.AppendUint16([]byte{body[0], 0}, f.regs[body[0]]))
	case MsgWriteRegister:
		f.writes++
		f.regs[body[0]] = binary.LittleEndian.Uint16(body[2:])
	}
	return len(p), nil
}

func (f *fakeRadio) reply(id uint16, body []byte) {
	if f.silent {
		return
	}
	if f.replyID != 0 {
		id = f.replyID
	}
	msg := EncodeMessage(id, body)
	if !f.noCRC {
		f.out.Write(EncodeFrame(msg))
		return
	}

	frame := EncodeFrame(msg)
	crc := frame[4+len(msg) : 4+len(msg)+2]
	// undo the real CRC and put the obfuscated 0xFFFF in its place
	i := len(msg)
	crc[0] = 0xFF ^ key[i%len(key)]
	crc[1] = 0xFF ^ key[(i+1)%len(key)]
	f.out.Write(frame)
}

// Read returns 0, nil when empty, like a serial port whose timeout expired
func (f *fakeRadio) Read(p []byte) (int, error) {
	if f.out.Len() == 0 {
		return 0, nil
	}
	return f.out.Read(p)
}

func TestCRC16(t *testing.T) {
	assert.Equal(t, uint16(0x31C3), CRC16([]byte("123456789")))
	assert.Equal(t, uint16(0), CRC16(nil))
}

func TestEncodeFrameLayout(t *testing.T) {
	frame := EncodeFrame([]byte{0x14, 0x05, 0x04, 0x00})

	require.Len(t, frame, 4+4+2+2)
	assert.Equal(t, []byte{0xAB, 0xCD, 0x04, 0x00}, frame[:4])
	assert.Equal(t, []byte{0xDC, 0xBA}, frame[len(frame)-2:])
	assert.Equal(t, byte(0x14^0x16), frame[4], "payload is obfuscated")
}

func TestFrameRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		payload := rapid.SliceOfN(rapid.Byte(), 0, MaxPayload).Draw(t, "payload")
		junk := rapid.SliceOfN(rapid.Byte(), 0, 8).Draw(t, "junk")

		var stream bytes.Buffer
		for _, b := range junk {
			// keep junk from forming a start marker with the frame
			stream.WriteByte(b &^ 0x80)
		}
		stream.Write(EncodeFrame(payload))

		got, err := ReadFrame(&stream)

		require.NoError(t, err)
		assert.Equal(t, len(payload), len(got))
		if len(payload) > 0 {
			assert.Equal(t, payload, got)
		}
	})
}

func TestReadFrameErrors(t *testing.T) {
	frame := EncodeFrame([]byte{1, 2, 3, 4})

	corrupt := bytes.Clone(frame)
	corrupt[5] ^= 0x01
	_, err := ReadFrame(bytes.NewReader(corrupt))
	assert.ErrorIs(t, err, ErrCRC)

	footer := bytes.Clone(frame)
	footer[len(footer)-1] = 0
	_, err = ReadFrame(bytes.NewReader(footer))
	assert.ErrorIs(t, err, ErrFrame)

	_, err = ReadFrame(bytes.NewReader([]byte{0xAB, 0xCD, 0xFF, 0xFF}))
	assert.ErrorIs(t, err, ErrFrame)

	_, err = ReadFrame(bytes.NewReader(frame[:7]))
	assert.Error(t, err)
}

func TestDecodeMessage(t *testing.T) {
	id, body, err := DecodeMessage(EncodeMessage(MsgWriteRegister, []byte{0x13, 0, 0x5E, 0x03}))
	require.NoError(t, err)
	assert.Equal(t, MsgWriteRegister, id)
	assert.Equal(t, []byte{0x13, 0, 0x5E, 0x03}, body)

	_, _, err = DecodeMessage([]byte{1, 2})
	assert.ErrorIs(t, err, ErrShortMessage)

	_, _, err = DecodeMessage([]byte{0x01, 0x06, 0x08, 0x00, 1})
	assert.ErrorIs(t, err, ErrShortMessage)
}

func TestClientHello(t *testing.T) {
	radio := newFakeRadio()
	c := NewClient(radio, nil)

	version, err := c.Hello()

	require.NoError(t, err)
	assert.Equal(t, "k5 amfix 1.0", version)
}

func TestClientRegisters(t *testing.T) {
	radio := newFakeRadio()
	radio.regs[0x67] = 0x00DC
	c := NewClient(radio, nil)

	v, err := c.ReadRegister(0x67)
	require.NoError(t, err)
	assert.Equal(t, uint16(0x00DC), v)

	require.NoError(t, c.WriteRegister(0x13, 0x035E))
	assert.Equal(t, uint16(0x035E), radio.regs[0x13])
	assert.Equal(t, 1, radio.writes)

	v, err = c.ReadRegister(0x13)
	require.NoError(t, err)
	assert.Equal(t, uint16(0x035E), v)
}

func TestClientAcceptsUncheckedReply(t *testing.T) {
	radio := newFakeRadio()
	radio.noCRC = true
	radio.regs[0x43] = 0x3028
	c := NewClient(radio, nil)

	v, err := c.ReadRegister(0x43)

	require.NoError(t, err)
	assert.Equal(t, uint16(0x3028), v)
}

func TestClientTimeout(t *testing.T) {
	radio := newFakeRadio()
	radio.silent = true
	c := NewClient(radio, nil)

	_, err := c.ReadRegister(0x67)

	assert.ErrorIs(t, err, ErrTimeout)
}

func TestClientUnexpectedReply(t *testing.T) {
	radio := newFakeRadio()
	radio.replyID = 0x0999
	c := NewClient(radio, nil)

	_, err := c.Hello()

	assert.ErrorIs(t, err, ErrUnexpectedReply)
}

type failingWriter struct{ fakeRadio }

func (*failingWriter) Write([]byte) (int, error) { return 0, errors.New("cable unplugged") }

func TestClientWriteError(t *testing.T) {
	c := NewClient(&failingWriter{}, nil)

	err := c.WriteRegister(0x13, 0)

	assert.ErrorContains(t, err, "cable unplugged")
	assert.NoError(t, c.Close())
}
