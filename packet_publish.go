package mqtt311

import (
	"bytes"
	"errors"
	"io"
)

// PUBLISH packet errors.
var (
	ErrInvalidQoS      = errors.New("invalid QoS level")
	ErrMissingTopic    = errors.New("missing topic name")
	ErrMissingPacketID = errors.New("missing packet identifier")
)

// PublishPacket represents an MQTT PUBLISH packet.
type PublishPacket struct {
	// Topic is the topic name.
	Topic string

	// PacketID is the packet identifier. Only present when QoS > 0.
	PacketID uint16

	// Payload is the application message payload.
	Payload []byte

	// DUP indicates the packet is a retransmission.
	DUP bool

	// QoS is the Quality of Service level.
	QoS byte

	// Retain indicates the message should be retained by the server.
	Retain bool
}

// Type returns the packet type.
func (p *PublishPacket) Type() PacketType {
	return PacketPUBLISH
}

// ID returns the packet identifier.
func (p *PublishPacket) ID() uint16 {
	return p.PacketID
}

// SetID sets the packet identifier.
func (p *PublishPacket) SetID(id uint16) {
	p.PacketID = id
}

// FromMessage populates the packet from an application message.
func (p *PublishPacket) FromMessage(msg *Message) {
	p.Topic = msg.Topic
	p.Payload = msg.Payload
	p.QoS = msg.QoS
	p.Retain = msg.Retain
}

// ToMessage converts the packet to an application message.
func (p *PublishPacket) ToMessage() *Message {
	return &Message{
		Topic:   p.Topic,
		Payload: p.Payload,
		QoS:     p.QoS,
		Retain:  p.Retain,
		Dup:     p.DUP,
	}
}

// Encode writes the packet to the writer.
func (p *PublishPacket) Encode(w io.Writer) (int, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}

	var buf bytes.Buffer

	if _, err := encodeString(&buf, p.Topic); err != nil {
		return 0, err
	}

	// Packet identifier is only present for QoS 1 and 2.
	if p.QoS > QoS0 {
		if _, err := encodeUint16(&buf, p.PacketID); err != nil {
			return 0, err
		}
	}

	buf.Write(p.Payload)

	header := FixedHeader{
		PacketType:      PacketPUBLISH,
		RemainingLength: uint32(buf.Len()),
	}
	header.SetDUP(p.DUP)
	header.SetQoS(p.QoS)
	header.SetRetain(p.Retain)

	total, err := header.Encode(w)
	if err != nil {
		return total, err
	}

	n, err := w.Write(buf.Bytes())
	return total + n, err
}

// Decode reads the packet from the reader.
func (p *PublishPacket) Decode(r io.Reader, header FixedHeader) (int, error) {
	if header.PacketType != PacketPUBLISH {
		return 0, ErrInvalidPacketType
	}

	p.DUP = header.DUP()
	p.QoS = header.QoS()
	p.Retain = header.Retain()

	if !validQoS(p.QoS) {
		return 0, ErrInvalidQoS
	}

	var totalRead int

	topic, n, err := decodeString(r)
	totalRead += n
	if err != nil {
		return totalRead, err
	}
	p.Topic = topic

	if p.QoS > QoS0 {
		p.PacketID, n, err = decodeUint16(r)
		totalRead += n
		if err != nil {
			return totalRead, err
		}
	}

	// The payload is whatever remains of the declared body length.
	if int(header.RemainingLength) < totalRead {
		return totalRead, ErrVarintMalformed
	}
	payloadLen := int(header.RemainingLength) - totalRead
	if payloadLen > 0 {
		p.Payload = make([]byte, payloadLen)
		n, err = io.ReadFull(r, p.Payload)
		totalRead += n
		if err != nil {
			return totalRead, err
		}
	}

	return totalRead, nil
}

// Validate validates the packet contents.
func (p *PublishPacket) Validate() error {
	if p.Topic == "" {
		return ErrMissingTopic
	}
	if !validQoS(p.QoS) {
		return ErrInvalidQoS
	}
	if p.QoS > QoS0 && p.PacketID == 0 {
		return ErrMissingPacketID
	}
	if p.QoS == QoS0 && p.DUP {
		return ErrInvalidPacketFlags
	}
	return nil
}
