package mqtt311

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReturnCodeString(t *testing.T) {
	tests := []struct {
		code ReturnCode
		want string
	}{
		{ConnectionAccepted, "connection accepted"},
		{RefusedProtocolVersion, "connection refused: unacceptable protocol version"},
		{RefusedIdentifierRejected, "connection refused: identifier rejected"},
		{RefusedServerUnavailable, "connection refused: server unavailable"},
		{RefusedBadUsernameOrPassword, "connection refused: bad user name or password"},
		{RefusedNotAuthorized, "connection refused: not authorized"},
		{ReturnCode(0x06), "connection refused: unknown return code"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.code.String())
	}
}

func TestReturnCodeValid(t *testing.T) {
	for code := ReturnCode(0); code <= RefusedNotAuthorized; code++ {
		assert.True(t, code.Valid())
	}
	assert.False(t, ReturnCode(0x06).Valid())
	assert.False(t, ReturnCode(0xFF).Valid())
}

func TestConnackPacketEncodeDecode(t *testing.T) {
	tests := []struct {
		name   string
		packet *ConnackPacket
	}{
		{
			name:   "accepted no session",
			packet: &ConnackPacket{SessionPresent: false, ReturnCode: ConnectionAccepted},
		},
		{
			name:   "accepted with session",
			packet: &ConnackPacket{SessionPresent: true, ReturnCode: ConnectionAccepted},
		},
		{
			name:   "refused not authorized",
			packet: &ConnackPacket{ReturnCode: RefusedNotAuthorized},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer

			_, err := tt.packet.Encode(&buf)
			require.NoError(t, err)

			var header FixedHeader
			_, err = header.Decode(&buf)
			require.NoError(t, err)
			assert.Equal(t, uint32(2), header.RemainingLength)

			decoded := &ConnackPacket{}
			_, err = decoded.Decode(&buf, header)
			require.NoError(t, err)
			assert.Equal(t, tt.packet, decoded)
		})
	}
}

func TestConnackPacketDecodeReservedFlags(t *testing.T) {
	// Acknowledge flags byte 0x02 has a reserved bit set.
	buf := bytes.NewBuffer([]byte{0x02, 0x00})

	header := FixedHeader{PacketType: PacketCONNACK, RemainingLength: 2}
	decoded := &ConnackPacket{}
	_, err := decoded.Decode(buf, header)
	assert.ErrorIs(t, err, ErrInvalidConnackFlags)
}

func TestConnackPacketValidateSessionPresentOnRefusal(t *testing.T) {
	pkt := &ConnackPacket{SessionPresent: true, ReturnCode: RefusedServerUnavailable}
	assert.ErrorIs(t, pkt.Validate(), ErrInvalidConnackFlags)
}
