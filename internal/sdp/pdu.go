package sdp

import (
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"
)

// PDU identifiers.
const (
	pduErrorResponse                  = 0x01
	pduServiceSearchAttributeRequest  = 0x06
	pduServiceSearchAttributeResponse = 0x07
)

const (
	headerLen = 5

	// maxContinuationLen is the largest continuation state a server may send.
	maxContinuationLen = 16

	// maxAttributeBytes is advertised as MaximumAttributeByteCount.
	maxAttributeBytes = 0xffff
)

// encodeSearchAttributeRequest builds a ServiceSearchAttributeRequest asking
// for every attribute of the records matching pattern.
func encodeSearchAttributeRequest(tid uint16, pattern []uuid.UUID, cont []byte) ([]byte, error) {
	uuids := make([]Element, 0, len(pattern))
	for _, u := range pattern {
		uuids = append(uuids, UUID(u))
	}

	params, err := appendElement(nil, Sequence(uuids...))
	if err != nil {
		return nil, err
	}

	params = binary.BigEndian.AppendUint16(params, maxAttributeBytes)

	if params, err = appendElement(params, Sequence(Uint32(0x0000ffff))); err != nil {
		return nil, err
	}

	params = append(params, byte(len(cont)))
	params = append(params, cont...)

	pdu := make([]byte, headerLen, headerLen+len(params))
	pdu[0] = pduServiceSearchAttributeRequest
	binary.BigEndian.PutUint16(pdu[1:3], tid)
	binary.BigEndian.PutUint16(pdu[3:5], uint16(len(params)))

	return append(pdu, params...), nil
}

// decodeSearchAttributeResponse returns the attribute list fragment and the
// continuation state carried by a response to the request tid.
func decodeSearchAttributeResponse(tid uint16, pdu []byte) (lists []byte, cont []byte, err error) {
	if len(pdu) < headerLen {
		return nil, nil, fmt.Errorf("%w: short pdu (%d bytes)", ErrMalformed, len(pdu))
	}

	id := pdu[0]
	rtid := binary.BigEndian.Uint16(pdu[1:3])
	plen := int(binary.BigEndian.Uint16(pdu[3:5]))
	params := pdu[headerLen:]

	if rtid != tid {
		return nil, nil, fmt.Errorf("%w: transaction id %d, want %d", ErrMalformed, rtid, tid)
	}
	if len(params) < plen {
		return nil, nil, fmt.Errorf("%w: parameters truncated", ErrMalformed)
	}
	params = params[:plen]

	switch id {
	case pduErrorResponse:
		if len(params) < 2 {
			return nil, nil, fmt.Errorf("%w: short error response", ErrMalformed)
		}

		return nil, nil, fmt.Errorf("%w: error code 0x%04x", ErrServer, binary.BigEndian.Uint16(params))

	case pduServiceSearchAttributeResponse:

	default:
		return nil, nil, fmt.Errorf("%w: unexpected pdu 0x%02x", ErrMalformed, id)
	}

	if len(params) < 2 {
		return nil, nil, fmt.Errorf("%w: missing attribute list count", ErrMalformed)
	}

	count := int(binary.BigEndian.Uint16(params))
	params = params[2:]
	if len(params) < count+1 {
		return nil, nil, fmt.Errorf("%w: attribute lists truncated", ErrMalformed)
	}

	lists, params = params[:count], params[count:]

	clen := int(params[0])
	params = params[1:]
	if clen > maxContinuationLen || len(params) < clen {
		return nil, nil, fmt.Errorf("%w: bad continuation state", ErrMalformed)
	}

	if clen > 0 {
		cont = append([]byte(nil), params[:clen]...)
	}

	return lists, cont, nil
}
