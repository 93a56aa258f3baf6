// Package uart talks to the radio firmware over its programming cable.
package uart

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Frame markers
const (
	Start1  = 0xAB
	Start2  = 0xCD
	Footer1 = 0xDC
	Footer2 = 0xBA
)

// MaxPayload bounds the length field of a received frame
const MaxPayload = 512

// noCRC is sent by the radio in place of a checksum on replies
const noCRC = 0xFFFF

// obfuscation key XORed over payload and CRC
var key = [16]byte{
	0x16, 0x6c, 0x14, 0xe6, 0x2e, 0x91, 0x0d, 0x40,
	0x21, 0x35, 0xd5, 0x40, 0x13, 0x03, 0xe9, 0x80,
}

func obfuscate(buf []byte) {
	for i := range buf {
		buf[i] ^= key[i%len(key)]
	}
}

// CRC16 computes CRC-16/XMODEM (poly 0x1021, init 0)
func CRC16(data []byte) uint16 {
	var crc uint16
	for _, b := range data {
		crc ^= uint16(b) << 8
		for range 8 {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

// EncodeFrame wraps a message payload for the wire
func EncodeFrame(payload []byte) []byte {
	buf := make([]byte, 0, len(payload)+8)
	buf = append(buf, Start1, Start2)
	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(payload)))
	buf = append(buf, payload...)
	buf = binary.LittleEndian.AppendUint16(buf, CRC16(payload))
	obfuscate(buf[4:])
	buf = append(buf, Footer1, Footer2)
	return buf
}

// ReadFrame skips to the next start marker and returns the decoded payload
func ReadFrame(r io.Reader) ([]byte, error) {
	var prev, b [1]byte
	for {
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return nil, err
		}
		if prev[0] == Start1 && b[0] == Start2 {
			break
		}
		prev = b
	}

	var size [2]byte
	if _, err := io.ReadFull(r, size[:]); err != nil {
		return nil, err
	}
	length := int(binary.LittleEndian.Uint16(size[:]))
	if length > MaxPayload {
		return nil, fmt.Errorf("%w: length %d", ErrFrame, length)
	}

	rest := make([]byte, length+4)
	if _, err := io.ReadFull(r, rest); err != nil {
		return nil, err
	}
	if rest[length+2] != Footer1 || rest[length+3] != Footer2 {
		return nil, fmt.Errorf("%w: footer % X", ErrFrame, rest[length+2:])
	}

	body := rest[:length+2]
	obfuscate(body)
	payload := body[:length]
	crc := binary.LittleEndian.Uint16(body[length:])
	if crc != noCRC && crc != CRC16(payload) {
		return nil, fmt.Errorf("%w: got 0x%04X want 0x%04X", ErrCRC, crc, CRC16(payload))
	}
	return payload, nil
}
