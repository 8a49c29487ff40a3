package mqtt311

import (
	"bytes"
	"errors"
	"io"
)

// SUBSCRIBE packet errors.
var (
	ErrNoSubscriptions = errors.New("subscribe packet contains no topic filters")
)

// Subscription pairs a topic filter with a requested QoS level.
type Subscription struct {
	TopicFilter string
	QoS         byte
}

// SubscribePacket represents an MQTT SUBSCRIBE packet.
type SubscribePacket struct {
	PacketID      uint16
	Subscriptions []Subscription
}

// Type returns the packet type.
func (p *SubscribePacket) Type() PacketType {
	return PacketSUBSCRIBE
}

// ID returns the packet identifier.
func (p *SubscribePacket) ID() uint16 { return p.PacketID }

// SetID sets the packet identifier.
func (p *SubscribePacket) SetID(id uint16) { p.PacketID = id }

// Encode writes the packet to the writer.
func (p *SubscribePacket) Encode(w io.Writer) (int, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}

	var buf bytes.Buffer

	if _, err := encodeUint16(&buf, p.PacketID); err != nil {
		return 0, err
	}

	for _, sub := range p.Subscriptions {
		if _, err := encodeString(&buf, sub.TopicFilter); err != nil {
			return 0, err
		}
		buf.WriteByte(sub.QoS)
	}

	header := FixedHeader{
		PacketType:      PacketSUBSCRIBE,
		Flags:           0x02,
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
func (p *SubscribePacket) Decode(r io.Reader, header FixedHeader) (int, error) {
	if header.PacketType != PacketSUBSCRIBE {
		return 0, ErrInvalidPacketType
	}

	var totalRead int

	id, n, err := decodeUint16(r)
	totalRead += n
	if err != nil {
		return totalRead, err
	}
	p.PacketID = id

	for totalRead < int(header.RemainingLength) {
		filter, n, err := decodeString(r)
		totalRead += n
		if err != nil {
			return totalRead, err
		}

		var qosBuf [1]byte
		n, err = io.ReadFull(r, qosBuf[:])
		totalRead += n
		if err != nil {
			return totalRead, err
		}
		if !validQoS(qosBuf[0]) {
			return totalRead, ErrInvalidQoS
		}

		p.Subscriptions = append(p.Subscriptions, Subscription{
			TopicFilter: filter,
			QoS:         qosBuf[0],
		})
	}

	if len(p.Subscriptions) == 0 {
		return totalRead, ErrNoSubscriptions
	}

	return totalRead, nil
}

// Validate validates the packet contents.
func (p *SubscribePacket) Validate() error {
	if p.PacketID == 0 {
		return ErrMissingPacketID
	}
	if len(p.Subscriptions) == 0 {
		return ErrNoSubscriptions
	}
	for _, sub := range p.Subscriptions {
		if sub.TopicFilter == "" {
			return ErrMissingTopic
		}
		if !validQoS(sub.QoS) {
			return ErrInvalidQoS
		}
	}
	return nil
}
