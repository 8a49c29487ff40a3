package mqtt311

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadWritePacketRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		packet Packet
	}{
		{
			name: "connect",
			packet: &ConnectPacket{
				ClientID:     "reader-1",
				CleanSession: true,
				KeepAlive:    30,
			},
		},
		{
			name:   "connack",
			packet: &ConnackPacket{SessionPresent: true, ReturnCode: ConnectionAccepted},
		},
		{
			name: "publish qos 1",
			packet: &PublishPacket{
				Topic:    "sensors/temperature",
				PacketID: 42,
				QoS:      QoS1,
				Payload:  []byte("21.5"),
			},
		},
		{
			name:   "puback",
			packet: &PubackPacket{PacketID: 42},
		},
		{
			name:   "pubrel",
			packet: &PubrelPacket{PacketID: 7},
		},
		{
			name: "subscribe",
			packet: &SubscribePacket{
				PacketID:      3,
				Subscriptions: []Subscription{{TopicFilter: "a/b", QoS: QoS1}},
			},
		},
		{
			name:   "suback",
			packet: &SubackPacket{PacketID: 3, ReturnCodes: []byte{QoS1}},
		},
		{
			name:   "unsubscribe",
			packet: &UnsubscribePacket{PacketID: 4, TopicFilters: []string{"a/b"}},
		},
		{
			name:   "unsuback",
			packet: &UnsubackPacket{PacketID: 4},
		},
		{
			name:   "pingreq",
			packet: &PingreqPacket{},
		},
		{
			name:   "pingresp",
			packet: &PingrespPacket{},
		},
		{
			name:   "disconnect",
			packet: &DisconnectPacket{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer

			n, err := WritePacket(&buf, tt.packet, 256*1024)
			require.NoError(t, err)
			assert.Equal(t, buf.Len(), n)

			decoded, n2, err := ReadPacket(&buf, 256*1024)
			require.NoError(t, err)
			assert.Equal(t, n, n2)
			assert.Equal(t, tt.packet, decoded)
		})
	}
}

func TestReadPacketUnknownCommandType(t *testing.T) {
	// Type nibble 15 is reserved in 3.1.1 (no AUTH packet).
	buf := bytes.NewBuffer([]byte{0xF0, 0x00})

	_, _, err := ReadPacket(buf, 0)
	assert.ErrorIs(t, err, ErrProtocol)
	assert.ErrorIs(t, err, ErrUnknownPacketType)
}

func TestReadPacketInvalidFlags(t *testing.T) {
	// SUBSCRIBE with flags 0x00 instead of the required 0x02.
	buf := bytes.NewBuffer([]byte{0x80, 0x00})

	_, _, err := ReadPacket(buf, 0)
	assert.ErrorIs(t, err, ErrProtocol)
	assert.ErrorIs(t, err, ErrInvalidPacketFlags)
}

func TestReadPacketTooLarge(t *testing.T) {
	pkt := &PublishPacket{
		Topic:   "big/topic",
		QoS:     QoS0,
		Payload: bytes.Repeat([]byte{0xAB}, 1024),
	}

	var buf bytes.Buffer
	_, err := WritePacket(&buf, pkt, 0)
	require.NoError(t, err)

	_, _, err = ReadPacket(&buf, 100)
	assert.ErrorIs(t, err, ErrPacketTooLarge)
}

func TestWritePacketTooLarge(t *testing.T) {
	pkt := &PublishPacket{
		Topic:   "big/topic",
		QoS:     QoS0,
		Payload: bytes.Repeat([]byte{0xAB}, 1024),
	}

	var buf bytes.Buffer
	_, err := WritePacket(&buf, pkt, 100)
	assert.ErrorIs(t, err, ErrPacketTooLarge)
	assert.Zero(t, buf.Len())
}

func TestWritePacketValidates(t *testing.T) {
	// QoS 1 without a packet identifier must be rejected before hitting
	// the wire.
	pkt := &PublishPacket{Topic: "a/b", QoS: QoS1}

	var buf bytes.Buffer
	_, err := WritePacket(&buf, pkt, 0)
	assert.ErrorIs(t, err, ErrMissingPacketID)
	assert.Zero(t, buf.Len())
}

func TestReadPacketTruncatedBody(t *testing.T) {
	// CONNACK declaring a 2-byte body with only 1 byte present.
	buf := bytes.NewBuffer([]byte{0x20, 0x02, 0x00})

	_, _, err := ReadPacket(buf, 0)
	assert.Error(t, err)
}
