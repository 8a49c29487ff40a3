package mqtt311

// QoS levels.
const (
	// QoS0 delivers at most once, with no acknowledgment.
	QoS0 byte = 0

	// QoS1 delivers at least once, acknowledged by PUBACK.
	QoS1 byte = 1

	// QoS2 delivers exactly once via the PUBREC/PUBREL/PUBCOMP handshake.
	QoS2 byte = 2
)

// Message represents an MQTT application message. It is immutable after
// construction.
type Message struct {
	// Topic is the topic name the message is published to or received from.
	Topic string

	// Payload is the application message payload.
	Payload []byte

	// QoS is the Quality of Service level (0, 1, or 2).
	QoS byte

	// Retain indicates if this is a retained message.
	Retain bool

	// Dup indicates the message is a retransmission. Set on received
	// messages only; ignored when publishing.
	Dup bool
}

// NewMessage constructs a message, flattening the payload parts into a
// single byte slice.
func NewMessage(topic string, qos byte, retain bool, parts ...[]byte) *Message {
	size := 0
	for _, p := range parts {
		size += len(p)
	}

	payload := make([]byte, 0, size)
	for _, p := range parts {
		payload = append(payload, p...)
	}

	return &Message{
		Topic:   topic,
		Payload: payload,
		QoS:     qos,
		Retain:  retain,
	}
}

// Clone creates a deep copy of the message.
func (m *Message) Clone() *Message {
	if m == nil {
		return nil
	}

	clone := &Message{
		Topic:  m.Topic,
		QoS:    m.QoS,
		Retain: m.Retain,
		Dup:    m.Dup,
	}

	if m.Payload != nil {
		clone.Payload = make([]byte, len(m.Payload))
		copy(clone.Payload, m.Payload)
	}

	return clone
}

// validQoS returns true for QoS 0, 1 and 2.
func validQoS(qos byte) bool {
	return qos <= QoS2
}
