package btsock

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeVoice(t *testing.T) {
	assert.Equal(t, []byte{0x60, 0x00}, encodeVoice(VoiceCVSD16Bit))
	assert.Equal(t, []byte{0x03, 0x00}, encodeVoice(VoiceTransparent))
}

func TestDecodeSCOOptions(t *testing.T) {
	mtu, err := decodeSCOOptions([]byte{0x30, 0x00})
	require.NoError(t, err)
	assert.Equal(t, 48, mtu)

	mtu, err = decodeSCOOptions([]byte{0x00, 0x01})
	require.NoError(t, err)
	assert.Equal(t, 256, mtu)

	_, err = decodeSCOOptions([]byte{0x30})
	assert.Error(t, err)

	_, err = decodeSCOOptions([]byte{0x00, 0x00})
	assert.Error(t, err)
}

func TestParseVoiceSetting(t *testing.T) {
	tests := []struct {
		in   string
		want VoiceSetting
		err  bool
	}{
		{"", VoiceCVSD16Bit, false},
		{"cvsd", VoiceCVSD16Bit, false},
		{"CVSD16", VoiceCVSD16Bit, false},
		{"transparent", VoiceTransparent, false},
		{"msbc", 0, true},
	}

	for _, tt := range tests {
		got, err := ParseVoiceSetting(tt.in)
		if tt.err {
			assert.Error(t, err, tt.in)
			continue
		}

		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
		assert.NotEmpty(t, got.String())
	}
}
