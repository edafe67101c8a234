// Package connmgr talks to BlueZ over D-Bus to find nearby hands-free and
// headset devices and to obtain control channel sockets for them through
// registered external profiles.
//
// Thread-safety: ScanAudio, Device and Connect may be called concurrently
// with Close. Connect calls are serialized internally. Close is idempotent.
package connmgr

import (
	"context"
	"errors"

	"bluetooth-audio/internal/bluetooth"
)

var (
	// ErrClosed is returned by every method after Close.
	ErrClosed = errors.New("connmgr: closed")

	// ErrDeviceNotFound is returned when BlueZ has no object for an address.
	ErrDeviceNotFound = errors.New("connmgr: device not found")

	// ErrNoAudioProfile is returned by Connect for devices that advertise
	// neither Hands-Free nor Headset.
	ErrNoAudioProfile = errors.New("connmgr: device has no hands-free or headset profile")
)

// Device is a BlueZ device object.
type Device struct {
	Path    string // D-Bus object path, e.g. /org/bluez/hci0/dev_XX_XX_XX_XX_XX_XX
	Address bluetooth.Address
	Name    string
	Alias   string

	// Class is the best audio profile the device advertises.
	Class bluetooth.ServiceClass

	Paired    bool
	Connected bool
}

// DisplayName returns the alias, the name or the address, whichever is set
// first.
func (d Device) DisplayName() string {
	switch {
	case d.Alias != "":
		return d.Alias
	case d.Name != "":
		return d.Name
	}

	return d.Address.String()
}

// Mgr is the BlueZ side of the audio gateway.
type Mgr interface {
	// ScanAudio runs discovery on every adapter until ctx is done and
	// returns the devices advertising Hands-Free or Headset, including those
	// already known to BlueZ.
	ScanAudio(ctx context.Context) ([]Device, error)

	// Device looks up the device object for addr without scanning.
	Device(ctx context.Context, addr bluetooth.Address) (Device, error)

	// Connect asks BlueZ to connect the audio gateway profile matching the
	// device's class and returns the RFCOMM socket it hands over. The caller
	// owns the descriptor. Unpaired devices are paired first, which needs an
	// agent registered outside this package.
	Connect(ctx context.Context, dev Device) (fd int, err error)

	// Close unregisters the profiles and releases the bus connection.
	Close() error
}
