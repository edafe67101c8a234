package bluetooth

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAddress(t *testing.T) {
	addr, err := ParseAddress("00:13:7b:4A:51:F5")
	require.NoError(t, err)

	assert.Equal(t, Address{0xF5, 0x51, 0x4A, 0x7B, 0x13, 0x00}, addr)
	assert.Equal(t, "00:13:7B:4A:51:F5", addr.String())
	assert.Equal(t, [6]byte{0x00, 0x13, 0x7B, 0x4A, 0x51, 0xF5}, addr.BigEndian())
}

func TestParseAddressInvalid(t *testing.T) {
	for _, s := range []string{
		"",
		"00:13:7B:4A:51",
		"00:13:7B:4A:51:F5:00",
		"00-13-7B-4A-51-F5",
		"00:13:7B:4A:51:G5",
		"0013:7B:4A:51:F5:",
	} {
		_, err := ParseAddress(s)
		assert.ErrorIs(t, err, ErrInvalidAddress, s)
		assert.False(t, IsValidAddress(s), s)
	}
}

func TestAddressText(t *testing.T) {
	var addr Address
	require.NoError(t, addr.UnmarshalText([]byte("AA:BB:CC:DD:EE:FF")))

	text, err := addr.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "AA:BB:CC:DD:EE:FF", string(text))
	assert.False(t, addr.IsZero())
	assert.True(t, Address{}.IsZero())
}

func TestUUID16(t *testing.T) {
	assert.Equal(t, uuid.MustParse("0000111e-0000-1000-8000-00805f9b34fb"), HandsfreeUUID)
	assert.Equal(t, uuid.MustParse("00000100-0000-1000-8000-00805f9b34fb"), L2CAPUUID)

	short, ok := ShortUUID(HeadsetUUID)
	require.True(t, ok)
	assert.Equal(t, uint32(0x1108), short)

	_, ok = ShortUUID(uuid.MustParse("6e400001-b5a3-f393-e0a9-e50e24dcca9e"))
	assert.False(t, ok)
}

func TestClassOf(t *testing.T) {
	assert.Equal(t, ClassHandsfree, ClassOf(HandsfreeUUID))
	assert.Equal(t, ClassHeadset, ClassOf(HeadsetUUID))
	assert.Equal(t, ClassGenericAudio, ClassOf(GenericAudioUUID))
	assert.Equal(t, ClassOther, ClassOf(HandsfreeAGUUID))
	assert.Equal(t, "handsfree", ClassHandsfree.String())
}
