package mqtt311

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPacketTypeString(t *testing.T) {
	assert.Equal(t, "CONNECT", PacketCONNECT.String())
	assert.Equal(t, "PUBLISH", PacketPUBLISH.String())
	assert.Equal(t, "DISCONNECT", PacketDISCONNECT.String())
	assert.Equal(t, "UNKNOWN", PacketType(0).String())
	assert.Equal(t, "UNKNOWN", PacketType(15).String())
}

func TestPacketTypeValid(t *testing.T) {
	assert.False(t, PacketType(0).Valid())
	assert.True(t, PacketCONNECT.Valid())
	assert.True(t, PacketDISCONNECT.Valid())
	assert.False(t, PacketType(15).Valid())
}

func TestFixedHeaderEncodeDecode(t *testing.T) {
	tests := []struct {
		name   string
		header FixedHeader
	}{
		{
			name:   "connect no body length",
			header: FixedHeader{PacketType: PacketCONNECT, Flags: 0x00, RemainingLength: 10},
		},
		{
			name:   "publish with flags",
			header: FixedHeader{PacketType: PacketPUBLISH, Flags: 0x0B, RemainingLength: 300},
		},
		{
			name:   "pubrel reserved flags",
			header: FixedHeader{PacketType: PacketPUBREL, Flags: 0x02, RemainingLength: 2},
		},
		{
			name:   "max remaining length",
			header: FixedHeader{PacketType: PacketPUBLISH, Flags: 0x00, RemainingLength: maxVarint},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer

			n, err := tt.header.Encode(&buf)
			require.NoError(t, err)
			assert.Equal(t, tt.header.Size(), n)

			var decoded FixedHeader
			n2, err := decoded.Decode(&buf)
			require.NoError(t, err)
			assert.Equal(t, n, n2)
			assert.Equal(t, tt.header, decoded)
		})
	}
}

func TestFixedHeaderEncodeInvalidType(t *testing.T) {
	header := FixedHeader{PacketType: PacketType(0)}
	var buf bytes.Buffer
	_, err := header.Encode(&buf)
	assert.ErrorIs(t, err, ErrInvalidPacketType)
}

func TestFixedHeaderDecodeInvalidType(t *testing.T) {
	// Type nibble 0 is reserved.
	buf := bytes.NewBuffer([]byte{0x00, 0x00})
	var header FixedHeader
	_, err := header.Decode(buf)
	assert.ErrorIs(t, err, ErrInvalidPacketType)
}

func TestFixedHeaderValidateFlags(t *testing.T) {
	tests := []struct {
		name    string
		header  FixedHeader
		wantErr error
	}{
		{
			name:   "publish qos 0",
			header: FixedHeader{PacketType: PacketPUBLISH, Flags: 0x00},
		},
		{
			name:   "publish dup qos2 retain",
			header: FixedHeader{PacketType: PacketPUBLISH, Flags: 0x0D},
		},
		{
			name:    "publish qos 3 reserved",
			header:  FixedHeader{PacketType: PacketPUBLISH, Flags: 0x06},
			wantErr: ErrInvalidPacketFlags,
		},
		{
			name:   "pubrel correct flags",
			header: FixedHeader{PacketType: PacketPUBREL, Flags: 0x02},
		},
		{
			name:    "pubrel zero flags",
			header:  FixedHeader{PacketType: PacketPUBREL, Flags: 0x00},
			wantErr: ErrInvalidPacketFlags,
		},
		{
			name:   "subscribe correct flags",
			header: FixedHeader{PacketType: PacketSUBSCRIBE, Flags: 0x02},
		},
		{
			name:    "connack nonzero flags",
			header:  FixedHeader{PacketType: PacketCONNACK, Flags: 0x01},
			wantErr: ErrInvalidPacketFlags,
		},
		{
			name:   "pingresp zero flags",
			header: FixedHeader{PacketType: PacketPINGRESP, Flags: 0x00},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.header.ValidateFlags()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestFixedHeaderPublishFlagAccessors(t *testing.T) {
	var header FixedHeader

	header.SetDUP(true)
	header.SetQoS(QoS2)
	header.SetRetain(true)

	assert.True(t, header.DUP())
	assert.Equal(t, QoS2, header.QoS())
	assert.True(t, header.Retain())
	assert.Equal(t, byte(0x0D), header.Flags)

	header.SetDUP(false)
	header.SetQoS(QoS1)
	header.SetRetain(false)

	assert.False(t, header.DUP())
	assert.Equal(t, QoS1, header.QoS())
	assert.False(t, header.Retain())
	assert.Equal(t, byte(0x02), header.Flags)
}
