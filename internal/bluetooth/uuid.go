package bluetooth

import (
	"encoding/binary"

	"github.com/google/uuid"
)

// baseUUID is the Bluetooth base UUID, 00000000-0000-1000-8000-00805F9B34FB.
var baseUUID = uuid.MustParse("00000000-0000-1000-8000-00805f9b34fb")

// Protocol and service class identifiers used during audio discovery.
var (
	L2CAPUUID  = UUID16(0x0100)
	RFCOMMUUID = UUID16(0x0003)

	HeadsetUUID      = UUID16(0x1108)
	HeadsetAGUUID    = UUID16(0x1112)
	HandsfreeUUID    = UUID16(0x111e)
	HandsfreeAGUUID  = UUID16(0x111f)
	GenericAudioUUID = UUID16(0x1203)
)

// UUID16 expands a 16-bit Bluetooth UUID onto the base UUID.
func UUID16(v uint16) uuid.UUID {
	return UUID32(uint32(v))
}

// UUID32 expands a 32-bit Bluetooth UUID onto the base UUID.
func UUID32(v uint32) uuid.UUID {
	u := baseUUID
	binary.BigEndian.PutUint32(u[:4], v)

	return u
}

// ShortUUID returns the 32-bit alias of u if it is derived from the base UUID.
func ShortUUID(u uuid.UUID) (uint32, bool) {
	if [12]byte(u[4:]) != [12]byte(baseUUID[4:]) {
		return 0, false
	}

	return binary.BigEndian.Uint32(u[:4]), true
}

// ServiceClass classifies a peer-advertised service for channel selection.
type ServiceClass int

// The service classes considered during control channel discovery.
const (
	ClassOther ServiceClass = iota
	ClassGenericAudio
	ClassHeadset
	ClassHandsfree
)

// ClassOf returns the audio service class of u.
func ClassOf(u uuid.UUID) ServiceClass {
	switch u {
	case HandsfreeUUID:
		return ClassHandsfree
	case HeadsetUUID:
		return ClassHeadset
	case GenericAudioUUID:
		return ClassGenericAudio
	}

	return ClassOther
}

// String returns the profile name of the class.
func (c ServiceClass) String() string {
	switch c {
	case ClassHandsfree:
		return "handsfree"
	case ClassHeadset:
		return "headset"
	case ClassGenericAudio:
		return "generic-audio"
	}

	return "other"
}
