package hfp

import (
	"context"
	"errors"
	"io"
	"time"

	"bluetooth-audio/internal/bluetooth"
)

// ErrNoTransport is returned by New when no dialer is available for a
// required transport on this platform.
var ErrNoTransport = errors.New("hfp: no transport configured")

// Conn is a connected control or audio socket.
type Conn interface {
	io.ReadWriteCloser
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
}

// AudioConn is a connected audio socket with a negotiated packet size.
type AudioConn interface {
	Conn
	MTU() int
}

// Discoverer finds the control channel of a device. found is false, with a
// nil error, when the device offers no suitable service.
type Discoverer interface {
	FindChannel(ctx context.Context, addr bluetooth.Address) (channel uint8, found bool, err error)
}

// ControlDialer opens control channels.
type ControlDialer interface {
	DialControl(ctx context.Context, addr bluetooth.Address, channel uint8) (Conn, error)
}

// AudioDialer opens audio channels.
type AudioDialer interface {
	DialAudio(ctx context.Context, addr bluetooth.Address) (AudioConn, error)
}

type controlDialerFunc func(ctx context.Context, addr bluetooth.Address, channel uint8) (Conn, error)

func (f controlDialerFunc) DialControl(ctx context.Context, addr bluetooth.Address, channel uint8) (Conn, error) {
	return f(ctx, addr, channel)
}

type audioDialerFunc func(ctx context.Context, addr bluetooth.Address) (AudioConn, error)

func (f audioDialerFunc) DialAudio(ctx context.Context, addr bluetooth.Address) (AudioConn, error) {
	return f(ctx, addr)
}

// ControlDialerOf adapts a dial function returning a concrete connection
// type to a ControlDialer.
func ControlDialerOf[C Conn](dial func(ctx context.Context, addr bluetooth.Address, channel uint8) (C, error)) ControlDialer {
	return controlDialerFunc(func(ctx context.Context, addr bluetooth.Address, channel uint8) (Conn, error) {
		c, err := dial(ctx, addr, channel)
		if err != nil {
			return nil, err
		}

		return c, nil
	})
}

// AudioDialerOf adapts a dial function returning a concrete connection type
// to an AudioDialer.
func AudioDialerOf[C AudioConn](dial func(ctx context.Context, addr bluetooth.Address) (C, error)) AudioDialer {
	return audioDialerFunc(func(ctx context.Context, addr bluetooth.Address) (AudioConn, error) {
		c, err := dial(ctx, addr)
		if err != nil {
			return nil, err
		}

		return c, nil
	})
}
