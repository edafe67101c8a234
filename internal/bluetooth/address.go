// Package bluetooth holds the small Bluetooth vocabulary shared by the
// discovery, socket and session packages: device addresses and the
// service class UUIDs used by the hands-free and headset profiles.
package bluetooth

import (
	"bytes"
	"errors"
)

// ErrInvalidAddress is returned when a device address cannot be parsed.
var ErrInvalidAddress = errors.New("invalid Bluetooth address")

const (
	// AddressLen is the number of bytes in an Address.
	AddressLen = 6

	// addressStringLen is the length of a formatted address (with ':').
	addressStringLen = 17
)

// Address is a Bluetooth device address.
//
// The bytes are stored in the order the kernel expects them in a bdaddr_t
// (least significant byte first), so Address[0] is the last octet of the
// human-readable form.
type Address [AddressLen]byte

// ParseAddress parses an address in 11:22:33:AA:BB:CC format.
func ParseAddress(s string) (Address, error) {
	var addr Address

	if len(s) != addressStringLen {
		return addr, ErrInvalidAddress
	}

	idx := AddressLen - 1
	for i := 0; i < len(s); i += 3 {
		if i+2 < len(s) && s[i+2] != ':' {
			return addr, ErrInvalidAddress
		}

		hi, ok := fromHex(s[i])
		if !ok {
			return addr, ErrInvalidAddress
		}
		lo, ok := fromHex(s[i+1])
		if !ok {
			return addr, ErrInvalidAddress
		}

		addr[idx] = hi<<4 | lo
		idx--
	}

	return addr, nil
}

// MustParseAddress is like ParseAddress but panics on error.
func MustParseAddress(s string) Address {
	addr, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}

	return addr
}

// IsValidAddress reports whether s is a well-formed device address.
func IsValidAddress(s string) bool {
	_, err := ParseAddress(s)
	return err == nil
}

// String returns the address in 11:22:33:AA:BB:CC form.
func (a Address) String() string {
	b := bytes.NewBuffer(make([]byte, 0, addressStringLen))

	for i := AddressLen - 1; i >= 0; i-- {
		if i != AddressLen-1 {
			b.WriteByte(':')
		}
		b.WriteByte(toHex(a[i] >> 4))
		b.WriteByte(toHex(a[i] & 0x0f))
	}

	return b.String()
}

// BigEndian returns the address bytes in display order.
func (a Address) BigEndian() [AddressLen]byte {
	var out [AddressLen]byte
	for i := range a {
		out[i] = a[AddressLen-1-i]
	}

	return out
}

// IsZero reports whether the address is all zeros.
func (a Address) IsZero() bool {
	return a == Address{}
}

// MarshalText implements encoding.TextMarshaler.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Address) UnmarshalText(data []byte) error {
	addr, err := ParseAddress(string(data))
	if err != nil {
		return err
	}

	*a = addr

	return nil
}

func fromHex(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 0xA, true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 0xA, true
	}

	return 0, false
}

func toHex(nibble byte) byte {
	if nibble <= 9 {
		return nibble + '0'
	}

	return nibble + 'A' - 10
}
