package btsock

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// VoiceSetting is the SCO air-coding setting written with BT_VOICE.
type VoiceSetting uint16

// Voice settings understood by the kernel.
const (
	VoiceTransparent VoiceSetting = 0x0003
	VoiceCVSD16Bit   VoiceSetting = 0x0060
)

// ParseVoiceSetting maps a configuration name to a voice setting.
func ParseVoiceSetting(name string) (VoiceSetting, error) {
	switch strings.ToLower(name) {
	case "", "cvsd", "cvsd16":
		return VoiceCVSD16Bit, nil
	case "transparent":
		return VoiceTransparent, nil
	}

	return 0, fmt.Errorf("unknown voice setting %q", name)
}

// String returns the configuration name of the setting.
func (v VoiceSetting) String() string {
	switch v {
	case VoiceCVSD16Bit:
		return "cvsd"
	case VoiceTransparent:
		return "transparent"
	}

	return fmt.Sprintf("0x%04x", uint16(v))
}

// voiceOptionLen is sizeof(struct bt_voice).
const voiceOptionLen = 2

// encodeVoice returns the struct bt_voice option value.
func encodeVoice(v VoiceSetting) []byte {
	return binary.LittleEndian.AppendUint16(make([]byte, 0, voiceOptionLen), uint16(v))
}

// scoOptionsLen is sizeof(struct sco_options).
const scoOptionsLen = 2

// decodeSCOOptions returns the MTU held in a struct sco_options value.
func decodeSCOOptions(b []byte) (int, error) {
	if len(b) < scoOptionsLen {
		return 0, fmt.Errorf("sco options: short value (%d bytes)", len(b))
	}

	mtu := int(binary.LittleEndian.Uint16(b))
	if mtu == 0 {
		return 0, fmt.Errorf("sco options: zero mtu")
	}

	return mtu, nil
}
