package mqtt311

import "io"

// Packet is the interface that all MQTT control packets implement.
type Packet interface {
	// Type returns the packet type.
	Type() PacketType

	// Encode writes the packet, including its fixed header, to the writer.
	// Returns the number of bytes written.
	Encode(w io.Writer) (int, error)

	// Decode reads the packet body from the reader.
	// The fixed header has already been decoded.
	// Returns the number of bytes read.
	Decode(r io.Reader, header FixedHeader) (int, error)

	// Validate validates the packet contents.
	Validate() error
}

// PacketWithID is implemented by packets that carry a packet identifier:
// PUBLISH at QoS > 0, PUBACK, PUBREC, PUBREL, PUBCOMP, SUBSCRIBE, SUBACK,
// UNSUBSCRIBE and UNSUBACK.
type PacketWithID interface {
	Packet

	// ID returns the packet identifier.
	ID() uint16

	// SetID sets the packet identifier.
	SetID(id uint16)
}
