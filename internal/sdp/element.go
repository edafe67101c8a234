package sdp

import (
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"

	"bluetooth-audio/internal/bluetooth"
)

// ElementType is the type descriptor of an SDP data element.
type ElementType uint8

// The SDP data element types.
const (
	TypeNil         ElementType = 0
	TypeUint        ElementType = 1
	TypeInt         ElementType = 2
	TypeUUID        ElementType = 3
	TypeString      ElementType = 4
	TypeBool        ElementType = 5
	TypeSequence    ElementType = 6
	TypeAlternative ElementType = 7
	TypeURL         ElementType = 8
)

// Element is a decoded SDP data element.
//
// Only the field matching Type is meaningful. Size holds the encoded width
// in bytes of numeric elements.
type Element struct {
	Type  ElementType
	Size  int
	Uint  uint64
	Int   int64
	Bool  bool
	UUID  uuid.UUID
	Bytes []byte
	Items []Element
}

// Uint8 returns an unsigned 8-bit element.
func Uint8(v uint8) Element { return Element{Type: TypeUint, Size: 1, Uint: uint64(v)} }

// Uint16 returns an unsigned 16-bit element.
func Uint16(v uint16) Element { return Element{Type: TypeUint, Size: 2, Uint: uint64(v)} }

// Uint32 returns an unsigned 32-bit element.
func Uint32(v uint32) Element { return Element{Type: TypeUint, Size: 4, Uint: uint64(v)} }

// UUID returns a UUID element, encoded in its shortest form.
func UUID(u uuid.UUID) Element { return Element{Type: TypeUUID, UUID: u} }

// String returns a text string element.
func String(s string) Element { return Element{Type: TypeString, Bytes: []byte(s)} }

// Sequence returns a data element sequence.
func Sequence(items ...Element) Element { return Element{Type: TypeSequence, Items: items} }

// Alternative returns a data element alternative.
func Alternative(items ...Element) Element { return Element{Type: TypeAlternative, Items: items} }

// appendElement appends the encoding of e to dst.
func appendElement(dst []byte, e Element) ([]byte, error) {
	desc := byte(e.Type) << 3

	switch e.Type {
	case TypeNil:
		return append(dst, 0), nil

	case TypeUint, TypeInt:
		v := e.Uint
		if e.Type == TypeInt {
			v = uint64(e.Int)
		}

		switch e.Size {
		case 1:
			return append(dst, desc|0, byte(v)), nil
		case 2:
			return binary.BigEndian.AppendUint16(append(dst, desc|1), uint16(v)), nil
		case 4:
			return binary.BigEndian.AppendUint32(append(dst, desc|2), uint32(v)), nil
		case 8:
			return binary.BigEndian.AppendUint64(append(dst, desc|3), v), nil
		}

		return nil, fmt.Errorf("%w: integer size %d", ErrMalformed, e.Size)

	case TypeBool:
		var b byte
		if e.Bool {
			b = 1
		}

		return append(dst, desc, b), nil

	case TypeUUID:
		short, ok := bluetooth.ShortUUID(e.UUID)
		switch {
		case ok && short <= 0xffff:
			return binary.BigEndian.AppendUint16(append(dst, desc|1), uint16(short)), nil
		case ok:
			return binary.BigEndian.AppendUint32(append(dst, desc|2), short), nil
		}

		return append(append(dst, desc|4), e.UUID[:]...), nil

	case TypeString, TypeURL:
		return append(appendHeader(dst, desc, len(e.Bytes)), e.Bytes...), nil

	case TypeSequence, TypeAlternative:
		var body []byte
		for _, item := range e.Items {
			var err error
			if body, err = appendElement(body, item); err != nil {
				return nil, err
			}
		}

		return append(appendHeader(dst, desc, len(body)), body...), nil
	}

	return nil, fmt.Errorf("%w: element type %d", ErrMalformed, e.Type)
}

// appendHeader writes a variable-length element header.
func appendHeader(dst []byte, desc byte, n int) []byte {
	switch {
	case n <= 0xff:
		return append(dst, desc|5, byte(n))
	case n <= 0xffff:
		return binary.BigEndian.AppendUint16(append(dst, desc|6), uint16(n))
	}

	return binary.BigEndian.AppendUint32(append(dst, desc|7), uint32(n))
}

// decodeElement decodes one element from the front of b and returns the rest.
func decodeElement(b []byte) (Element, []byte, error) {
	if len(b) == 0 {
		return Element{}, nil, fmt.Errorf("%w: empty element", ErrMalformed)
	}

	typ, idx := ElementType(b[0]>>3), b[0]&0x07
	b = b[1:]

	if typ == TypeNil {
		return Element{Type: TypeNil}, b, nil
	}

	var size int
	switch idx {
	case 0, 1, 2, 3, 4:
		size = 1 << idx
	case 5:
		if len(b) < 1 {
			return Element{}, nil, fmt.Errorf("%w: truncated length", ErrMalformed)
		}
		size, b = int(b[0]), b[1:]
	case 6:
		if len(b) < 2 {
			return Element{}, nil, fmt.Errorf("%w: truncated length", ErrMalformed)
		}
		size, b = int(binary.BigEndian.Uint16(b)), b[2:]
	case 7:
		if len(b) < 4 {
			return Element{}, nil, fmt.Errorf("%w: truncated length", ErrMalformed)
		}
		size, b = int(binary.BigEndian.Uint32(b)), b[4:]
	}

	if size < 0 || len(b) < size {
		return Element{}, nil, fmt.Errorf("%w: element needs %d bytes, have %d", ErrMalformed, size, len(b))
	}

	data, rest := b[:size], b[size:]
	e := Element{Type: typ, Size: size}

	switch typ {
	case TypeUint, TypeInt:
		switch size {
		case 1:
			e.Uint = uint64(data[0])
			e.Int = int64(int8(data[0]))
		case 2:
			e.Uint = uint64(binary.BigEndian.Uint16(data))
			e.Int = int64(int16(e.Uint))
		case 4:
			e.Uint = uint64(binary.BigEndian.Uint32(data))
			e.Int = int64(int32(e.Uint))
		case 8:
			e.Uint = binary.BigEndian.Uint64(data)
			e.Int = int64(e.Uint)
		default:
			e.Bytes = append([]byte(nil), data...)
		}

	case TypeUUID:
		switch size {
		case 2:
			e.UUID = bluetooth.UUID16(binary.BigEndian.Uint16(data))
		case 4:
			e.UUID = bluetooth.UUID32(binary.BigEndian.Uint32(data))
		case 16:
			e.UUID, _ = uuid.FromBytes(data)
		default:
			return Element{}, nil, fmt.Errorf("%w: uuid size %d", ErrMalformed, size)
		}

	case TypeBool:
		if size != 1 {
			return Element{}, nil, fmt.Errorf("%w: bool size %d", ErrMalformed, size)
		}
		e.Bool = data[0] != 0

	case TypeString, TypeURL:
		e.Bytes = append([]byte(nil), data...)

	case TypeSequence, TypeAlternative:
		for len(data) > 0 {
			var (
				item Element
				err  error
			)
			if item, data, err = decodeElement(data); err != nil {
				return Element{}, nil, err
			}
			e.Items = append(e.Items, item)
		}

	default:
		return Element{}, nil, fmt.Errorf("%w: element type %d", ErrMalformed, typ)
	}

	return e, rest, nil
}
