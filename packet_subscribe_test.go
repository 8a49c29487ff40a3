package mqtt311

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscribePacketEncodeDecode(t *testing.T) {
	pkt := &SubscribePacket{
		PacketID: 9,
		Subscriptions: []Subscription{
			{TopicFilter: "sensors/#", QoS: QoS1},
			{TopicFilter: "commands/+/restart", QoS: QoS2},
			{TopicFilter: "events", QoS: QoS0},
		},
	}

	var buf bytes.Buffer
	_, err := pkt.Encode(&buf)
	require.NoError(t, err)

	var header FixedHeader
	_, err = header.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, PacketSUBSCRIBE, header.PacketType)
	assert.Equal(t, byte(0x02), header.Flags)

	decoded := &SubscribePacket{}
	_, err = decoded.Decode(&buf, header)
	require.NoError(t, err)
	assert.Equal(t, pkt, decoded)
}

func TestSubscribePacketValidate(t *testing.T) {
	tests := []struct {
		name    string
		packet  *SubscribePacket
		wantErr error
	}{
		{
			name: "valid",
			packet: &SubscribePacket{
				PacketID:      1,
				Subscriptions: []Subscription{{TopicFilter: "a/b", QoS: QoS0}},
			},
		},
		{
			name: "zero packet id",
			packet: &SubscribePacket{
				Subscriptions: []Subscription{{TopicFilter: "a/b", QoS: QoS0}},
			},
			wantErr: ErrMissingPacketID,
		},
		{
			name:    "no subscriptions",
			packet:  &SubscribePacket{PacketID: 1},
			wantErr: ErrNoSubscriptions,
		},
		{
			name: "empty filter",
			packet: &SubscribePacket{
				PacketID:      1,
				Subscriptions: []Subscription{{TopicFilter: "", QoS: QoS0}},
			},
			wantErr: ErrMissingTopic,
		},
		{
			name: "invalid qos",
			packet: &SubscribePacket{
				PacketID:      1,
				Subscriptions: []Subscription{{TopicFilter: "a/b", QoS: 3}},
			},
			wantErr: ErrInvalidQoS,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.packet.Validate()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSubackPacketEncodeDecode(t *testing.T) {
	pkt := &SubackPacket{
		PacketID:    9,
		ReturnCodes: []byte{QoS0, QoS2, SubackFailure},
	}

	var buf bytes.Buffer
	_, err := pkt.Encode(&buf)
	require.NoError(t, err)

	decoded, _, err := ReadPacket(&buf, 0)
	require.NoError(t, err)
	assert.Equal(t, pkt, decoded)
}

func TestSubackPacketDecodeInvalidGrantedQoS(t *testing.T) {
	// Return code 0x03 is neither a granted QoS nor the failure marker.
	body := []byte{0x00, 0x09, 0x03}
	header := FixedHeader{PacketType: PacketSUBACK, RemainingLength: uint32(len(body))}

	decoded := &SubackPacket{}
	_, err := decoded.Decode(bytes.NewReader(body), header)
	assert.ErrorIs(t, err, ErrInvalidGrantedQoS)
}

func TestSubackPacketDecodeNoReturnCodes(t *testing.T) {
	body := []byte{0x00, 0x09}
	header := FixedHeader{PacketType: PacketSUBACK, RemainingLength: uint32(len(body))}

	decoded := &SubackPacket{}
	_, err := decoded.Decode(bytes.NewReader(body), header)
	assert.ErrorIs(t, err, ErrNoReturnCodes)
}

func TestUnsubscribePacketEncodeDecode(t *testing.T) {
	pkt := &UnsubscribePacket{
		PacketID:     12,
		TopicFilters: []string{"sensors/#", "events"},
	}

	var buf bytes.Buffer
	_, err := pkt.Encode(&buf)
	require.NoError(t, err)

	var header FixedHeader
	_, err = header.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, byte(0x02), header.Flags)

	decoded := &UnsubscribePacket{}
	_, err = decoded.Decode(&buf, header)
	require.NoError(t, err)
	assert.Equal(t, pkt, decoded)
}

func TestUnsubscribePacketValidate(t *testing.T) {
	assert.ErrorIs(t, (&UnsubscribePacket{TopicFilters: []string{"a"}}).Validate(), ErrMissingPacketID)
	assert.ErrorIs(t, (&UnsubscribePacket{PacketID: 1}).Validate(), ErrNoTopicFilters)
	assert.ErrorIs(t, (&UnsubscribePacket{PacketID: 1, TopicFilters: []string{""}}).Validate(), ErrMissingTopic)
	assert.NoError(t, (&UnsubscribePacket{PacketID: 1, TopicFilters: []string{"a/b"}}).Validate())
}

func TestEmptyBodyPackets(t *testing.T) {
	packets := []Packet{
		&PingreqPacket{},
		&PingrespPacket{},
		&DisconnectPacket{},
	}

	for _, pkt := range packets {
		var buf bytes.Buffer
		n, err := pkt.Encode(&buf)
		require.NoError(t, err)
		assert.Equal(t, 2, n, "%T", pkt)

		decoded, _, err := ReadPacket(&buf, 0)
		require.NoError(t, err)
		assert.Equal(t, pkt, decoded)
	}
}

func TestEmptyBodyPacketRejectsPayload(t *testing.T) {
	header := FixedHeader{PacketType: PacketPINGRESP, RemainingLength: 1}
	decoded := &PingrespPacket{}
	_, err := decoded.Decode(bytes.NewReader([]byte{0x00}), header)
	assert.Error(t, err)
}
