package mqtt311

import (
	"bytes"
	"errors"
	"io"
)

// SUBACK packet errors.
var (
	ErrNoReturnCodes     = errors.New("suback packet contains no return codes")
	ErrInvalidGrantedQoS = errors.New("invalid granted QoS in suback")
)

// SubackFailure is the SUBACK return code for a rejected subscription.
const SubackFailure byte = 0x80

// SubackPacket represents an MQTT SUBACK packet. ReturnCodes holds the
// granted QoS per requested subscription, in request order, or 0x80 for
// a rejected filter.
type SubackPacket struct {
	PacketID    uint16
	ReturnCodes []byte
}

// Type returns the packet type.
func (p *SubackPacket) Type() PacketType {
	return PacketSUBACK
}

// ID returns the packet identifier.
func (p *SubackPacket) ID() uint16 { return p.PacketID }

// SetID sets the packet identifier.
func (p *SubackPacket) SetID(id uint16) { p.PacketID = id }

// Encode writes the packet to the writer.
func (p *SubackPacket) Encode(w io.Writer) (int, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}

	var buf bytes.Buffer

	if _, err := encodeUint16(&buf, p.PacketID); err != nil {
		return 0, err
	}
	buf.Write(p.ReturnCodes)

	header := FixedHeader{
		PacketType:      PacketSUBACK,
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
func (p *SubackPacket) Decode(r io.Reader, header FixedHeader) (int, error) {
	if header.PacketType != PacketSUBACK {
		return 0, ErrInvalidPacketType
	}

	var totalRead int

	id, n, err := decodeUint16(r)
	totalRead += n
	if err != nil {
		return totalRead, err
	}
	p.PacketID = id

	if int(header.RemainingLength) <= totalRead {
		return totalRead, ErrNoReturnCodes
	}

	codes := make([]byte, int(header.RemainingLength)-totalRead)
	n, err = io.ReadFull(r, codes)
	totalRead += n
	if err != nil {
		return totalRead, err
	}

	for _, code := range codes {
		if code != SubackFailure && !validQoS(code) {
			return totalRead, ErrInvalidGrantedQoS
		}
	}
	p.ReturnCodes = codes

	return totalRead, nil
}

// Validate validates the packet contents.
func (p *SubackPacket) Validate() error {
	if p.PacketID == 0 {
		return ErrMissingPacketID
	}
	if len(p.ReturnCodes) == 0 {
		return ErrNoReturnCodes
	}
	for _, code := range p.ReturnCodes {
		if code != SubackFailure && !validQoS(code) {
			return ErrInvalidGrantedQoS
		}
	}
	return nil
}
