package mqtt311

import (
	"bytes"
	"errors"
	"io"
)

// CONNECT packet errors.
var (
	ErrInvalidProtocolName  = errors.New("invalid protocol name")
	ErrInvalidProtocolLevel = errors.New("invalid protocol level")
	ErrInvalidConnectFlags  = errors.New("invalid connect flags")
	ErrInvalidWill          = errors.New("invalid will configuration")
)

const (
	protocolName  = "MQTT"
	protocolLevel = 0x04 // MQTT 3.1.1
)

// ConnectPacket represents an MQTT CONNECT packet.
type ConnectPacket struct {
	// ClientID is the client identifier.
	ClientID string

	// CleanSession requests a fresh session without stored state.
	CleanSession bool

	// KeepAlive is the keep-alive interval in seconds. Zero disables
	// keep-alive.
	KeepAlive uint16

	// Will message fields.
	WillFlag    bool
	WillTopic   string
	WillMessage []byte
	WillQoS     byte
	WillRetain  bool

	// Username and Password are carried opaquely; the client does not
	// interpret them.
	Username string
	Password []byte

	// HasPassword distinguishes an empty password from an absent one.
	HasPassword bool
}

// Type returns the packet type.
func (p *ConnectPacket) Type() PacketType {
	return PacketCONNECT
}

// connectFlags builds the connect flags byte.
func (p *ConnectPacket) connectFlags() byte {
	var flags byte

	if p.CleanSession {
		flags |= 0x02
	}
	if p.WillFlag {
		flags |= 0x04
		flags |= (p.WillQoS & 0x03) << 3
		if p.WillRetain {
			flags |= 0x20
		}
	}
	if p.Username != "" {
		flags |= 0x80
	}
	if p.HasPassword || len(p.Password) > 0 {
		flags |= 0x40
	}

	return flags
}

// Encode writes the packet to the writer.
func (p *ConnectPacket) Encode(w io.Writer) (int, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}

	var buf bytes.Buffer

	// Variable header: protocol name, level, connect flags, keep alive
	if _, err := encodeString(&buf, protocolName); err != nil {
		return 0, err
	}
	buf.WriteByte(protocolLevel)
	buf.WriteByte(p.connectFlags())
	if _, err := encodeUint16(&buf, p.KeepAlive); err != nil {
		return 0, err
	}

	// Payload: client id, will topic/message, username, password
	if _, err := encodeString(&buf, p.ClientID); err != nil {
		return 0, err
	}

	if p.WillFlag {
		if _, err := encodeString(&buf, p.WillTopic); err != nil {
			return 0, err
		}
		if _, err := encodeBinary(&buf, p.WillMessage); err != nil {
			return 0, err
		}
	}

	if p.Username != "" {
		if _, err := encodeString(&buf, p.Username); err != nil {
			return 0, err
		}
	}

	if p.HasPassword || len(p.Password) > 0 {
		if _, err := encodeBinary(&buf, p.Password); err != nil {
			return 0, err
		}
	}

	header := FixedHeader{
		PacketType:      PacketCONNECT,
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
func (p *ConnectPacket) Decode(r io.Reader, header FixedHeader) (int, error) {
	if header.PacketType != PacketCONNECT {
		return 0, ErrInvalidPacketType
	}

	var totalRead int

	name, n, err := decodeString(r)
	totalRead += n
	if err != nil {
		return totalRead, err
	}
	if name != protocolName {
		return totalRead, ErrInvalidProtocolName
	}

	var levelBuf [1]byte
	n, err = io.ReadFull(r, levelBuf[:])
	totalRead += n
	if err != nil {
		return totalRead, err
	}
	if levelBuf[0] != protocolLevel {
		return totalRead, ErrInvalidProtocolLevel
	}

	var flagsBuf [1]byte
	n, err = io.ReadFull(r, flagsBuf[:])
	totalRead += n
	if err != nil {
		return totalRead, err
	}
	flags := flagsBuf[0]

	// Reserved bit must be zero.
	if flags&0x01 != 0 {
		return totalRead, ErrInvalidConnectFlags
	}

	p.CleanSession = flags&0x02 != 0
	p.WillFlag = flags&0x04 != 0
	p.WillQoS = (flags >> 3) & 0x03
	p.WillRetain = flags&0x20 != 0
	hasUsername := flags&0x80 != 0
	hasPassword := flags&0x40 != 0

	p.KeepAlive, n, err = decodeUint16(r)
	totalRead += n
	if err != nil {
		return totalRead, err
	}

	p.ClientID, n, err = decodeString(r)
	totalRead += n
	if err != nil {
		return totalRead, err
	}

	if p.WillFlag {
		p.WillTopic, n, err = decodeString(r)
		totalRead += n
		if err != nil {
			return totalRead, err
		}
		p.WillMessage, n, err = decodeBinary(r)
		totalRead += n
		if err != nil {
			return totalRead, err
		}
	}

	if hasUsername {
		p.Username, n, err = decodeString(r)
		totalRead += n
		if err != nil {
			return totalRead, err
		}
	}

	if hasPassword {
		p.Password, n, err = decodeBinary(r)
		totalRead += n
		if err != nil {
			return totalRead, err
		}
		p.HasPassword = true
	}

	return totalRead, nil
}

// Validate validates the packet contents.
func (p *ConnectPacket) Validate() error {
	if p.WillFlag {
		if p.WillTopic == "" {
			return ErrInvalidWill
		}
		if !validQoS(p.WillQoS) {
			return ErrInvalidQoS
		}
	} else if p.WillQoS != 0 || p.WillRetain {
		return ErrInvalidWill
	}

	// A password without a username is not allowed in 3.1.1.
	if (p.HasPassword || len(p.Password) > 0) && p.Username == "" {
		return ErrInvalidConnectFlags
	}

	return nil
}
