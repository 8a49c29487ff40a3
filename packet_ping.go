package mqtt311

import "io"

// PINGREQ and PINGRESP have empty bodies: a fixed header with a zero
// remaining length.

// encodeEmpty encodes a body-less packet.
func encodeEmpty(w io.Writer, packetType PacketType) (int, error) {
	header := FixedHeader{
		PacketType:      packetType,
		Flags:           0x00,
		RemainingLength: 0,
	}
	return header.Encode(w)
}

// decodeEmpty validates a body-less packet.
func decodeEmpty(expected PacketType, header FixedHeader) (int, error) {
	if header.PacketType != expected {
		return 0, ErrInvalidPacketType
	}
	if header.RemainingLength != 0 {
		return 0, ErrInvalidPacketFlags
	}
	return 0, nil
}

// PingreqPacket represents an MQTT PINGREQ packet.
type PingreqPacket struct{}

// Type returns the packet type.
func (p *PingreqPacket) Type() PacketType { return PacketPINGREQ }

// Encode writes the packet to the writer.
func (p *PingreqPacket) Encode(w io.Writer) (int, error) {
	return encodeEmpty(w, PacketPINGREQ)
}

// Decode reads the packet from the reader.
func (p *PingreqPacket) Decode(_ io.Reader, header FixedHeader) (int, error) {
	return decodeEmpty(PacketPINGREQ, header)
}

// Validate validates the packet contents.
func (p *PingreqPacket) Validate() error { return nil }

// PingrespPacket represents an MQTT PINGRESP packet.
type PingrespPacket struct{}

// Type returns the packet type.
func (p *PingrespPacket) Type() PacketType { return PacketPINGRESP }

// Encode writes the packet to the writer.
func (p *PingrespPacket) Encode(w io.Writer) (int, error) {
	return encodeEmpty(w, PacketPINGRESP)
}

// Decode reads the packet from the reader.
func (p *PingrespPacket) Decode(_ io.Reader, header FixedHeader) (int, error) {
	return decodeEmpty(PacketPINGRESP, header)
}

// Validate validates the packet contents.
func (p *PingrespPacket) Validate() error { return nil }
