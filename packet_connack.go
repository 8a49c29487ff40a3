package mqtt311

import (
	"bytes"
	"errors"
	"io"
)

// CONNACK packet errors.
var (
	ErrInvalidConnackFlags = errors.New("invalid CONNACK flags")
)

// ReturnCode is an MQTT 3.1.1 CONNACK return code.
type ReturnCode byte

// CONNACK return codes.
const (
	ConnectionAccepted           ReturnCode = 0x00
	RefusedProtocolVersion       ReturnCode = 0x01
	RefusedIdentifierRejected    ReturnCode = 0x02
	RefusedServerUnavailable     ReturnCode = 0x03
	RefusedBadUsernameOrPassword ReturnCode = 0x04
	RefusedNotAuthorized         ReturnCode = 0x05
)

// String returns the refusal reason for the return code.
func (c ReturnCode) String() string {
	switch c {
	case ConnectionAccepted:
		return "connection accepted"
	case RefusedProtocolVersion:
		return "connection refused: unacceptable protocol version"
	case RefusedIdentifierRejected:
		return "connection refused: identifier rejected"
	case RefusedServerUnavailable:
		return "connection refused: server unavailable"
	case RefusedBadUsernameOrPassword:
		return "connection refused: bad user name or password"
	case RefusedNotAuthorized:
		return "connection refused: not authorized"
	default:
		return "connection refused: unknown return code"
	}
}

// Valid returns true if the return code is defined by MQTT 3.1.1.
func (c ReturnCode) Valid() bool {
	return c <= RefusedNotAuthorized
}

// ConnackPacket represents an MQTT CONNACK packet.
type ConnackPacket struct {
	// SessionPresent indicates if a session exists from a previous connection.
	SessionPresent bool

	// ReturnCode is the connection result.
	ReturnCode ReturnCode
}

// Type returns the packet type.
func (p *ConnackPacket) Type() PacketType {
	return PacketCONNACK
}

// Encode writes the packet to the writer.
func (p *ConnackPacket) Encode(w io.Writer) (int, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}

	var buf bytes.Buffer

	var flags byte
	if p.SessionPresent {
		flags = 0x01
	}
	buf.WriteByte(flags)
	buf.WriteByte(byte(p.ReturnCode))

	header := FixedHeader{
		PacketType:      PacketCONNACK,
		Flags:           0x00,
		RemainingLength: uint32(buf.Len()),
	}

	total, err := header.Encode(w)
	if err != nil {
		return total, err
	}

	n, err := w.Write(buf.Bytes())
	return total + n, err
}

// Decode reads the packet from the reader.
func (p *ConnackPacket) Decode(r io.Reader, header FixedHeader) (int, error) {
	if header.PacketType != PacketCONNACK {
		return 0, ErrInvalidPacketType
	}

	var totalRead int

	var flagsBuf [1]byte
	n, err := io.ReadFull(r, flagsBuf[:])
	totalRead += n
	if err != nil {
		return totalRead, err
	}

	// Reserved bits must be 0.
	if flagsBuf[0]&0xFE != 0 {
		return totalRead, ErrInvalidConnackFlags
	}
	p.SessionPresent = flagsBuf[0]&0x01 != 0

	var codeBuf [1]byte
	n, err = io.ReadFull(r, codeBuf[:])
	totalRead += n
	if err != nil {
		return totalRead, err
	}
	p.ReturnCode = ReturnCode(codeBuf[0])

	return totalRead, nil
}

// Validate validates the packet contents.
func (p *ConnackPacket) Validate() error {
	// If the connection was refused, session present must be false.
	if p.ReturnCode != ConnectionAccepted && p.SessionPresent {
		return ErrInvalidConnackFlags
	}
	return nil
}
