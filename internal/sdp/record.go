package sdp

import (
	"fmt"

	"github.com/google/uuid"

	"bluetooth-audio/internal/bluetooth"
)

// Universal attribute identifiers.
const (
	AttrServiceRecordHandle    = 0x0000
	AttrServiceClassIDList     = 0x0001
	AttrProtocolDescriptorList = 0x0004
	AttrServiceName            = 0x0100
)

// Record is the part of a service record needed to pick a control channel.
type Record struct {
	Handle  uint32
	Name    string
	Classes []uuid.UUID

	// Channel is the RFCOMM server channel, zero if the service is not
	// reachable over RFCOMM.
	Channel uint8

	Attributes map[uint16]Element
}

// decodeRecords decodes a complete AttributeLists sequence.
func decodeRecords(lists []byte) ([]Record, error) {
	top, rest, err := decodeElement(lists)
	if err != nil {
		return nil, err
	}
	if len(rest) != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes after attribute lists", ErrMalformed, len(rest))
	}
	if top.Type != TypeSequence {
		return nil, fmt.Errorf("%w: attribute lists is not a sequence", ErrMalformed)
	}

	records := make([]Record, 0, len(top.Items))
	for _, item := range top.Items {
		rec, err := decodeRecord(item)
		if err != nil {
			return nil, err
		}

		records = append(records, rec)
	}

	return records, nil
}

// decodeRecord decodes one attribute list (attribute id, value pairs).
func decodeRecord(list Element) (Record, error) {
	if list.Type != TypeSequence || len(list.Items)%2 != 0 {
		return Record{}, fmt.Errorf("%w: attribute list is not a sequence of pairs", ErrMalformed)
	}

	rec := Record{Attributes: make(map[uint16]Element, len(list.Items)/2)}
	for i := 0; i < len(list.Items); i += 2 {
		id := list.Items[i]
		if id.Type != TypeUint || id.Size != 2 {
			return Record{}, fmt.Errorf("%w: attribute id is not a uint16", ErrMalformed)
		}

		rec.Attributes[uint16(id.Uint)] = list.Items[i+1]
	}

	if v, ok := rec.Attributes[AttrServiceRecordHandle]; ok && v.Type == TypeUint {
		rec.Handle = uint32(v.Uint)
	}

	if v, ok := rec.Attributes[AttrServiceName]; ok && v.Type == TypeString {
		rec.Name = string(v.Bytes)
	}

	if v, ok := rec.Attributes[AttrServiceClassIDList]; ok {
		for _, c := range v.Items {
			if c.Type == TypeUUID {
				rec.Classes = append(rec.Classes, c.UUID)
			}
		}
	}

	if v, ok := rec.Attributes[AttrProtocolDescriptorList]; ok {
		rec.Channel = rfcommChannel(v)
	}

	return rec, nil
}

// rfcommChannel extracts the RFCOMM channel from a ProtocolDescriptorList.
func rfcommChannel(pdl Element) uint8 {
	if pdl.Type == TypeAlternative {
		if len(pdl.Items) == 0 {
			return 0
		}
		pdl = pdl.Items[0]
	}

	for _, proto := range pdl.Items {
		if proto.Type != TypeSequence || len(proto.Items) < 2 {
			continue
		}

		id, param := proto.Items[0], proto.Items[1]
		if id.Type == TypeUUID && id.UUID == bluetooth.RFCOMMUUID && param.Type == TypeUint {
			return uint8(param.Uint)
		}
	}

	return 0
}

// SelectChannel picks the control channel from the discovered records.
//
// A Hands-Free service wins immediately. Otherwise the first Headset channel
// is used, then the first Generic-Audio channel. ok is false when none of
// the records offers an audio service over RFCOMM.
func SelectChannel(records []Record) (channel uint8, class bluetooth.ServiceClass, ok bool) {
	var headset, generic uint8

	for _, rec := range records {
		if rec.Channel == 0 {
			continue
		}

		for _, c := range rec.Classes {
			switch bluetooth.ClassOf(c) {
			case bluetooth.ClassHandsfree:
				return rec.Channel, bluetooth.ClassHandsfree, true
			case bluetooth.ClassHeadset:
				if headset == 0 {
					headset = rec.Channel
				}
			case bluetooth.ClassGenericAudio:
				if generic == 0 {
					generic = rec.Channel
				}
			}
		}
	}

	switch {
	case headset != 0:
		return headset, bluetooth.ClassHeadset, true
	case generic != 0:
		return generic, bluetooth.ClassGenericAudio, true
	}

	return 0, bluetooth.ClassOther, false
}
