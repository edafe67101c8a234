//go:build linux

package connmgr

import (
	"context"
	"io"
	"log/slog"
	"time"

	"bluetooth-audio/internal/bluetooth"
	"bluetooth-audio/internal/btsock"
)

// ProfileDialer opens control channels through BlueZ instead of raw RFCOMM
// sockets. BlueZ picks the RFCOMM channel itself from the device's records,
// so the discovered channel is only logged.
type ProfileDialer struct {
	mgr     Mgr
	timeout time.Duration
	logger  *slog.Logger
}

// NewProfileDialer returns a dialer using m. timeout bounds each connect;
// zero means no bound beyond the caller's context.
func NewProfileDialer(m Mgr, timeout time.Duration, logger *slog.Logger) *ProfileDialer {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &ProfileDialer{mgr: m, timeout: timeout, logger: logger}
}

// DialControl connects the audio gateway profile for addr and wraps the
// socket BlueZ hands over.
func (d *ProfileDialer) DialControl(ctx context.Context, addr bluetooth.Address, channel uint8) (*btsock.Conn, error) {
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	dev, err := d.mgr.Device(ctx, addr)
	if err != nil {
		return nil, err
	}

	d.logger.Debug("connecting control channel through bluez",
		"address", addr.String(),
		"path", dev.Path,
		"profile", dev.Class.String(),
		"channel", channel,
	)

	fd, err := d.mgr.Connect(ctx, dev)
	if err != nil {
		return nil, err
	}

	return btsock.NewConn(fd, "rfcomm")
}
