package mqtt311

import "io"

// DisconnectPacket represents an MQTT DISCONNECT packet. In 3.1.1 it has
// no body and is only ever sent by the client.
type DisconnectPacket struct{}

// Type returns the packet type.
func (p *DisconnectPacket) Type() PacketType { return PacketDISCONNECT }

// Encode writes the packet to the writer.
func (p *DisconnectPacket) Encode(w io.Writer) (int, error) {
	return encodeEmpty(w, PacketDISCONNECT)
}

// Decode reads the packet from the reader.
func (p *DisconnectPacket) Decode(_ io.Reader, header FixedHeader) (int, error) {
	return decodeEmpty(PacketDISCONNECT, header)
}

// Validate validates the packet contents.
func (p *DisconnectPacket) Validate() error { return nil }
