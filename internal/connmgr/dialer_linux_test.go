//go:build linux

package connmgr

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"bluetooth-audio/internal/bluetooth"
)

type fakeMgr struct {
	dev       Device
	fd        int
	connected []Device
}

func (m *fakeMgr) ScanAudio(ctx context.Context) ([]Device, error) { return []Device{m.dev}, nil }

func (m *fakeMgr) Device(ctx context.Context, addr bluetooth.Address) (Device, error) {
	if addr != m.dev.Address {
		return Device{}, ErrDeviceNotFound
	}

	return m.dev, nil
}

func (m *fakeMgr) Connect(ctx context.Context, dev Device) (int, error) {
	m.connected = append(m.connected, dev)
	return m.fd, nil
}

func (m *fakeMgr) Close() error { return nil }

func TestProfileDialer(t *testing.T) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	require.NoError(t, err)

	peer := os.NewFile(uintptr(fds[1]), "peer")
	defer peer.Close()

	addr := bluetooth.MustParseAddress("00:11:22:AA:BB:CC")
	m := &fakeMgr{
		dev: Device{Path: string(devPath), Address: addr, Class: bluetooth.ClassHandsfree},
		fd:  fds[0],
	}

	d := NewProfileDialer(m, 0, nil)

	conn, err := d.DialControl(context.Background(), addr, 3)
	require.NoError(t, err)
	defer conn.Close()

	require.Len(t, m.connected, 1)
	assert.Equal(t, string(devPath), m.connected[0].Path)

	_, err = conn.Write([]byte("\r\nOK\r\n"))
	require.NoError(t, err)

	buf := make([]byte, 16)
	n, err := peer.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "\r\nOK\r\n", string(buf[:n]))
}

func TestProfileDialerUnknownDevice(t *testing.T) {
	m := &fakeMgr{dev: Device{Address: bluetooth.MustParseAddress("00:11:22:AA:BB:CC")}}

	_, err := NewProfileDialer(m, 0, nil).DialControl(context.Background(), bluetooth.MustParseAddress("66:55:44:33:22:11"), 1)
	assert.ErrorIs(t, err, ErrDeviceNotFound)
	assert.Empty(t, m.connected)
}
