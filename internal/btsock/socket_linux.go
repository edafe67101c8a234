//go:build linux

// Package btsock opens the raw Bluetooth sockets used by the audio gateway:
// an L2CAP socket to the remote SDP server, an RFCOMM control channel and
// a SCO audio channel.
//
// Every connect is non-blocking and bounded by the dialer's timeout and by
// context cancellation. Connected sockets are wrapped in *os.File, so read
// deadlines are served by the runtime poller.
package btsock

import (
	"context"
	"errors"
	"os"
	"strconv"
	"time"
	"unsafe"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fctx"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	"golang.org/x/sys/unix"

	"bluetooth-audio/internal/bluetooth"
	"bluetooth-audio/internal/sdp"
)

// ErrConnectTimeout is returned when a connect does not complete in time.
var ErrConnectTimeout = errors.New("bluetooth connect timed out")

// Socket option levels and names from the kernel Bluetooth headers.
const (
	solBluetooth = 274
	solSCO       = 17
	btVoice      = 11
	scoOptions   = 1

	sdpPSM = 1
)

// connectPollInterval bounds each wait for connect completion so that
// context cancellation is observed promptly.
const connectPollInterval = 100 * time.Millisecond

// DefaultConnectTimeout is used when a Dialer has no ConnectTimeout.
const DefaultConnectTimeout = 10 * time.Second

// Dialer opens Bluetooth sockets.
type Dialer struct {
	// ConnectTimeout bounds every connect attempt.
	ConnectTimeout time.Duration

	// Voice is written to audio sockets before they connect.
	Voice VoiceSetting
}

// Conn is a connected stream or packet Bluetooth socket.
type Conn struct {
	f *os.File
}

// NewConn takes ownership of a connected Bluetooth socket descriptor, such
// as one handed over by BlueZ.
func NewConn(fd int, name string) (*Conn, error) {
	if err := unix.SetNonblock(fd, true); err != nil {
		_ = unix.Close(fd)
		return nil, err
	}

	return &Conn{f: os.NewFile(uintptr(fd), name)}, nil
}

// Read reads from the socket.
func (c *Conn) Read(p []byte) (int, error) { return c.f.Read(p) }

// Write writes to the socket.
func (c *Conn) Write(p []byte) (int, error) { return c.f.Write(p) }

// SetReadDeadline sets the deadline for future Read calls.
func (c *Conn) SetReadDeadline(t time.Time) error { return c.f.SetReadDeadline(t) }

// SetWriteDeadline sets the deadline for future Write calls.
func (c *Conn) SetWriteDeadline(t time.Time) error { return c.f.SetWriteDeadline(t) }

// Close closes the socket.
func (c *Conn) Close() error { return c.f.Close() }

// AudioConn is a connected SCO socket.
type AudioConn struct {
	Conn

	mtu int
}

// MTU returns the negotiated SCO packet size.
func (a *AudioConn) MTU() int { return a.mtu }

// DialSDP connects to the SDP server of addr.
func (d *Dialer) DialSDP(ctx context.Context, addr bluetooth.Address) (sdp.Conn, error) {
	sa := &unix.SockaddrL2{PSM: sdpPSM, Addr: addr.BigEndian()}

	fd, err := d.connect(ctx, unix.SOCK_SEQPACKET, unix.BTPROTO_L2CAP, nil, func(fd int) error {
		return unix.Connect(fd, sa)
	})
	if err != nil {
		return nil, wrap(ctx, err, "sdp-connect", addr, "Cannot connect to service discovery server")
	}

	return &Conn{f: os.NewFile(uintptr(fd), "sdp")}, nil
}

// DialControl opens an RFCOMM control channel to addr.
func (d *Dialer) DialControl(ctx context.Context, addr bluetooth.Address, channel uint8) (*Conn, error) {
	sa := &unix.SockaddrRFCOMM{Addr: addr, Channel: channel}

	fd, err := d.connect(ctx, unix.SOCK_STREAM, unix.BTPROTO_RFCOMM, nil, func(fd int) error {
		return unix.Connect(fd, sa)
	})
	if err != nil {
		return nil, wrap(ctx, err, "rfcomm-connect", addr, "Cannot connect control channel",
			"channel", strconv.Itoa(int(channel)))
	}

	return &Conn{f: os.NewFile(uintptr(fd), "rfcomm")}, nil
}

// DialAudio opens a SCO audio channel to addr using the dialer's voice
// setting, and reads back the negotiated MTU.
func (d *Dialer) DialAudio(ctx context.Context, addr bluetooth.Address) (*AudioConn, error) {
	voice := d.Voice
	if voice == 0 {
		voice = VoiceCVSD16Bit
	}

	setup := func(fd int) error {
		return unix.SetsockoptString(fd, solBluetooth, btVoice, string(encodeVoice(voice)))
	}

	fd, err := d.connect(ctx, unix.SOCK_SEQPACKET, unix.BTPROTO_SCO, setup, func(fd int) error {
		return connectSCO(fd, addr)
	})
	if err != nil {
		return nil, wrap(ctx, err, "sco-connect", addr, "Cannot connect audio channel",
			"voice", voice.String())
	}

	mtu, err := readSCOMTU(fd)
	if err != nil {
		_ = unix.Close(fd)
		return nil, wrap(ctx, err, "sco-options", addr, "Cannot read audio channel MTU")
	}

	return &AudioConn{Conn: Conn{f: os.NewFile(uintptr(fd), "sco")}, mtu: mtu}, nil
}

// connect creates a non-blocking socket, applies setup and waits for the
// connect started by dial to complete. The returned descriptor is owned by
// the caller.
func (d *Dialer) connect(ctx context.Context, typ, proto int, setup, dial func(fd int) error) (int, error) {
	fd, err := unix.Socket(unix.AF_BLUETOOTH, typ|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, proto)
	if err != nil {
		return -1, err
	}

	if setup != nil {
		if err := setup(fd); err != nil {
			_ = unix.Close(fd)
			return -1, err
		}
	}

	if err := dial(fd); err != nil && !errors.Is(err, unix.EINPROGRESS) && !errors.Is(err, unix.EAGAIN) {
		_ = unix.Close(fd)
		return -1, err
	}

	if err := d.waitConnected(ctx, fd); err != nil {
		_ = unix.Close(fd)
		return -1, err
	}

	return fd, nil
}

// waitConnected polls fd for connect completion.
func (d *Dialer) waitConnected(ctx context.Context, fd int) error {
	timeout := d.ConnectTimeout
	if timeout <= 0 {
		timeout = DefaultConnectTimeout
	}
	deadline := time.Now().Add(timeout)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		wait := time.Until(deadline)
		if wait <= 0 {
			return ErrConnectTimeout
		}
		wait = min(wait, connectPollInterval)

		fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLOUT}}
		n, err := unix.Poll(fds, int(wait.Milliseconds())+1)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return err
		}
		if n == 0 {
			continue
		}

		soerr, err := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ERROR)
		if err != nil {
			return err
		}
		if soerr != 0 {
			return unix.Errno(soerr)
		}

		return nil
	}
}

// rawSockaddrSCO is struct sockaddr_sco, which x/sys/unix does not provide.
type rawSockaddrSCO struct {
	Family uint16
	Bdaddr [bluetooth.AddressLen]byte
}

func connectSCO(fd int, addr bluetooth.Address) error {
	sa := rawSockaddrSCO{Family: unix.AF_BLUETOOTH, Bdaddr: addr}

	_, _, errno := unix.Syscall(unix.SYS_CONNECT, uintptr(fd), uintptr(unsafe.Pointer(&sa)), unsafe.Sizeof(sa))
	if errno != 0 {
		return errno
	}

	return nil
}

// readSCOMTU reads struct sco_options from a connected SCO socket.
func readSCOMTU(fd int) (int, error) {
	var (
		buf [scoOptionsLen]byte
		l   = uint32(len(buf))
	)

	_, _, errno := unix.Syscall6(unix.SYS_GETSOCKOPT, uintptr(fd), solSCO, scoOptions,
		uintptr(unsafe.Pointer(&buf[0])), uintptr(unsafe.Pointer(&l)), 0)
	if errno != 0 {
		return 0, errno
	}

	return decodeSCOOptions(buf[:l])
}

// wrap attaches the failing operation and address to a socket error.
func wrap(ctx context.Context, err error, at string, addr bluetooth.Address, message string, metadata ...string) error {
	md := append([]string{"error_at", at, "address", addr.String()}, metadata...)

	return fault.Wrap(err,
		fctx.With(ctx, md...),
		ftag.With(ftag.Internal),
		fmsg.With(message),
	)
}
