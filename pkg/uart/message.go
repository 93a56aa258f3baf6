package uart

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Message IDs
const (
	MsgHello         uint16 = 0x0514
	MsgHelloReply    uint16 = 0x0515
	MsgReadRegister  uint16 = 0x0601
	MsgWriteRegister uint16 = 0x0602
)

const headerSize = 4

// EncodeMessage prefixes body with the {id, size} header
func EncodeMessage(id uint16, body []byte) []byte {
	buf := make([]byte, 0, headerSize+len(body))
	buf = binary.LittleEndian.AppendUint16(buf, id)
	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(body)))
	return append(buf, body...)
}

// DecodeMessage splits a payload into id and body
func DecodeMessage(payload []byte) (uint16, []byte, error) {
	if len(payload) < headerSize {
		return 0, nil, fmt.Errorf("%w: %d bytes", ErrShortMessage, len(payload))
	}
	id := binary.LittleEndian.Uint16(payload)
	size := int(binary.LittleEndian.Uint16(payload[2:]))
	body := payload[headerSize:]
	if size > len(body) {
		return id, nil, fmt.Errorf("%w: 0x%04X declares %d bytes, has %d", ErrShortMessage, id, size, len(body))
	}
	return id, body[:size], nil
}

func helloBody(timestamp uint32) []byte {
	return binary.LittleEndian.AppendUint32(nil, timestamp)
}

func parseHelloReply(body []byte) (string, error) {
	if len(body) < 16 {
		return "", fmt.Errorf("%w: hello reply %d bytes", ErrShortMessage, len(body))
	}
	version, _, _ := bytes.Cut(body[:16], []byte{0})
	return string(version), nil
}

func readBody(addr uint8) []byte {
	return []byte{addr, 0}
}

func writeBody(addr uint8, value uint16) []byte {
	return binary.LittleEndian.AppendUint16([]byte{addr, 0}, value)
}

func parseRegisterReply(body []byte) (uint8, uint16, error) {
	if len(body) < 4 {
		return 0, 0, fmt.Errorf("%w: register reply %d bytes", ErrShortMessage, len(body))
	}
	return body[0], binary.LittleEndian.Uint16(body[2:]), nil
}
