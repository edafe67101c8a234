// Package sdp implements the client side of the Bluetooth Service Discovery
// Protocol, as far as it is needed to locate the RFCOMM channel of a
// hands-free or headset service on a remote device.
//
// The package does not open sockets itself: a Conn carrying whole SDP PDUs
// (an L2CAP SEQPACKET socket on PSM 1 in practice) is supplied by a Dialer.
package sdp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"bluetooth-audio/internal/bluetooth"
)

var (
	// ErrMalformed is returned when a PDU or data element cannot be decoded.
	ErrMalformed = errors.New("sdp: malformed data")

	// ErrServer is returned when the remote SDP server answers with an
	// error response.
	ErrServer = errors.New("sdp: server error")
)

const (
	// maxContinuations bounds the number of partial responses per query.
	maxContinuations = 64

	readBufferSize = 4096
)

// Conn is a packet connection to an SDP server. Each Read returns exactly
// one PDU.
type Conn interface {
	io.ReadWriteCloser
	SetReadDeadline(t time.Time) error
}

// Dialer opens a connection to the SDP server of a device.
type Dialer interface {
	DialSDP(ctx context.Context, addr bluetooth.Address) (Conn, error)
}

// Client issues SDP requests over a single connection.
type Client struct {
	conn    Conn
	timeout time.Duration
	tid     uint16
}

// NewClient returns a client using conn. timeout bounds the wait for each
// response PDU.
func NewClient(conn Conn, timeout time.Duration) *Client {
	return &Client{conn: conn, timeout: timeout}
}

// Search returns every service record matching all UUIDs in pattern,
// following continuation states until the response is complete.
func (c *Client) Search(ctx context.Context, pattern ...uuid.UUID) ([]Record, error) {
	var lists, cont []byte

	buf := make([]byte, readBufferSize)
	for i := 0; ; i++ {
		if i == maxContinuations {
			return nil, fmt.Errorf("%w: more than %d continuations", ErrMalformed, maxContinuations)
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		c.tid++

		req, err := encodeSearchAttributeRequest(c.tid, pattern, cont)
		if err != nil {
			return nil, err
		}
		if _, err := c.conn.Write(req); err != nil {
			return nil, fmt.Errorf("sdp: send request: %w", err)
		}

		deadline := time.Now().Add(c.timeout)
		if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
			deadline = d
		}
		if err := c.conn.SetReadDeadline(deadline); err != nil {
			return nil, fmt.Errorf("sdp: set deadline: %w", err)
		}

		n, err := c.conn.Read(buf)
		if err != nil {
			return nil, fmt.Errorf("sdp: read response: %w", err)
		}

		part, next, err := decodeSearchAttributeResponse(c.tid, buf[:n])
		if err != nil {
			return nil, err
		}

		lists = append(lists, part...)
		if len(next) == 0 {
			break
		}
		cont = next
	}

	if len(lists) == 0 {
		return nil, nil
	}

	return decodeRecords(lists)
}

// Discoverer finds the audio control channel of a device.
type Discoverer struct {
	dialer  Dialer
	timeout time.Duration
	logger  *slog.Logger
}

// NewDiscoverer returns a Discoverer querying devices through dialer.
func NewDiscoverer(dialer Dialer, timeout time.Duration, logger *slog.Logger) *Discoverer {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Discoverer{dialer: dialer, timeout: timeout, logger: logger}
}

// FindChannel queries the device for audio services reachable over L2CAP
// and returns the preferred RFCOMM channel. found is false, with a nil
// error, when the device does not advertise any.
func (d *Discoverer) FindChannel(ctx context.Context, addr bluetooth.Address) (channel uint8, found bool, err error) {
	conn, err := d.dialer.DialSDP(ctx, addr)
	if err != nil {
		return 0, false, err
	}
	defer conn.Close()

	records, err := NewClient(conn, d.timeout).Search(ctx, bluetooth.L2CAPUUID)
	if err != nil {
		return 0, false, err
	}

	for _, rec := range records {
		d.logger.Debug("service record",
			"handle", fmt.Sprintf("0x%08x", rec.Handle),
			"name", rec.Name,
			"channel", rec.Channel,
			"classes", len(rec.Classes),
		)
	}

	channel, class, found := SelectChannel(records)
	if found {
		d.logger.Debug("audio service selected", "channel", channel, "class", class.String())
	}

	return channel, found, nil
}
