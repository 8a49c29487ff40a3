package mqtt311

import "io"

// In MQTT 3.1.1 the acknowledgment packets PUBACK, PUBREC, PUBREL,
// PUBCOMP and UNSUBACK share the same body: a 2-byte packet identifier
// and nothing else.

// encodeAck encodes an id-only acknowledgment packet with the given
// packet type and flags.
func encodeAck(w io.Writer, packetType PacketType, flags byte, id uint16) (int, error) {
	header := FixedHeader{
		PacketType:      packetType,
		Flags:           flags,
		RemainingLength: 2,
	}

	total, err := header.Encode(w)
	if err != nil {
		return total, err
	}

	n, err := w.Write([]byte{byte(id >> 8), byte(id)})
	return total + n, err
}

// decodeAck decodes an id-only acknowledgment packet body.
func decodeAck(r io.Reader, expected PacketType, header FixedHeader) (uint16, int, error) {
	if header.PacketType != expected {
		return 0, 0, ErrInvalidPacketType
	}

	id, n, err := decodeUint16(r)
	if err != nil {
		return 0, n, err
	}

	if id == 0 {
		return 0, n, ErrMissingPacketID
	}

	return id, n, nil
}

// PubackPacket represents an MQTT PUBACK packet, acknowledging a QoS 1
// PUBLISH.
type PubackPacket struct {
	PacketID uint16
}

// Type returns the packet type.
func (p *PubackPacket) Type() PacketType { return PacketPUBACK }

// ID returns the packet identifier.
func (p *PubackPacket) ID() uint16 { return p.PacketID }

// SetID sets the packet identifier.
func (p *PubackPacket) SetID(id uint16) { p.PacketID = id }

// Encode writes the packet to the writer.
func (p *PubackPacket) Encode(w io.Writer) (int, error) {
	return encodeAck(w, PacketPUBACK, 0x00, p.PacketID)
}

// Decode reads the packet from the reader.
func (p *PubackPacket) Decode(r io.Reader, header FixedHeader) (int, error) {
	id, n, err := decodeAck(r, PacketPUBACK, header)
	p.PacketID = id
	return n, err
}

// Validate validates the packet contents.
func (p *PubackPacket) Validate() error {
	if p.PacketID == 0 {
		return ErrMissingPacketID
	}
	return nil
}

// PubrecPacket represents an MQTT PUBREC packet, the first response of
// the QoS 2 handshake.
type PubrecPacket struct {
	PacketID uint16
}

// Type returns the packet type.
func (p *PubrecPacket) Type() PacketType { return PacketPUBREC }

// ID returns the packet identifier.
func (p *PubrecPacket) ID() uint16 { return p.PacketID }

// SetID sets the packet identifier.
func (p *PubrecPacket) SetID(id uint16) { p.PacketID = id }

// Encode writes the packet to the writer.
func (p *PubrecPacket) Encode(w io.Writer) (int, error) {
	return encodeAck(w, PacketPUBREC, 0x00, p.PacketID)
}

// Decode reads the packet from the reader.
func (p *PubrecPacket) Decode(r io.Reader, header FixedHeader) (int, error) {
	id, n, err := decodeAck(r, PacketPUBREC, header)
	p.PacketID = id
	return n, err
}

// Validate validates the packet contents.
func (p *PubrecPacket) Validate() error {
	if p.PacketID == 0 {
		return ErrMissingPacketID
	}
	return nil
}

// PubrelPacket represents an MQTT PUBREL packet. Its fixed header flags
// must be 0x02.
type PubrelPacket struct {
	PacketID uint16
}

// Type returns the packet type.
func (p *PubrelPacket) Type() PacketType { return PacketPUBREL }

// ID returns the packet identifier.
func (p *PubrelPacket) ID() uint16 { return p.PacketID }

// SetID sets the packet identifier.
func (p *PubrelPacket) SetID(id uint16) { p.PacketID = id }

// Encode writes the packet to the writer.
func (p *PubrelPacket) Encode(w io.Writer) (int, error) {
	return encodeAck(w, PacketPUBREL, 0x02, p.PacketID)
}

// Decode reads the packet from the reader.
func (p *PubrelPacket) Decode(r io.Reader, header FixedHeader) (int, error) {
	id, n, err := decodeAck(r, PacketPUBREL, header)
	p.PacketID = id
	return n, err
}

// Validate validates the packet contents.
func (p *PubrelPacket) Validate() error {
	if p.PacketID == 0 {
		return ErrMissingPacketID
	}
	return nil
}

// PubcompPacket represents an MQTT PUBCOMP packet, completing the QoS 2
// handshake.
type PubcompPacket struct {
	PacketID uint16
}

// Type returns the packet type.
func (p *PubcompPacket) Type() PacketType { return PacketPUBCOMP }

// ID returns the packet identifier.
func (p *PubcompPacket) ID() uint16 { return p.PacketID }

// SetID sets the packet identifier.
func (p *PubcompPacket) SetID(id uint16) { p.PacketID = id }

// Encode writes the packet to the writer.
func (p *PubcompPacket) Encode(w io.Writer) (int, error) {
	return encodeAck(w, PacketPUBCOMP, 0x00, p.PacketID)
}

// Decode reads the packet from the reader.
func (p *PubcompPacket) Decode(r io.Reader, header FixedHeader) (int, error) {
	id, n, err := decodeAck(r, PacketPUBCOMP, header)
	p.PacketID = id
	return n, err
}

// Validate validates the packet contents.
func (p *PubcompPacket) Validate() error {
	if p.PacketID == 0 {
		return ErrMissingPacketID
	}
	return nil
}

// UnsubackPacket represents an MQTT UNSUBACK packet.
type UnsubackPacket struct {
	PacketID uint16
}

// Type returns the packet type.
func (p *UnsubackPacket) Type() PacketType { return PacketUNSUBACK }

// ID returns the packet identifier.
func (p *UnsubackPacket) ID() uint16 { return p.PacketID }

// SetID sets the packet identifier.
func (p *UnsubackPacket) SetID(id uint16) { p.PacketID = id }

// Encode writes the packet to the writer.
func (p *UnsubackPacket) Encode(w io.Writer) (int, error) {
	return encodeAck(w, PacketUNSUBACK, 0x00, p.PacketID)
}

// Decode reads the packet from the reader.
func (p *UnsubackPacket) Decode(r io.Reader, header FixedHeader) (int, error) {
	id, n, err := decodeAck(r, PacketUNSUBACK, header)
	p.PacketID = id
	return n, err
}

// Validate validates the packet contents.
func (p *UnsubackPacket) Validate() error {
	if p.PacketID == 0 {
		return ErrMissingPacketID
	}
	return nil
}
