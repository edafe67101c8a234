package hfp

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"

	"bluetooth-audio/internal/bluetooth"
)

var testAddr = bluetooth.MustParseAddress("00:11:22:33:44:55")

const (
	testPoll    = 50 * time.Millisecond
	testBackoff = 20 * time.Millisecond
	testWait    = 2 * time.Second
)

type fakeDiscoverer struct {
	mu      sync.Mutex
	channel uint8
	found   bool
	err     error
	calls   int
	onCall  func(n int)
}

func (d *fakeDiscoverer) FindChannel(ctx context.Context, addr bluetooth.Address) (uint8, bool, error) {
	d.mu.Lock()
	d.calls++
	n, hook := d.calls, d.onCall
	d.mu.Unlock()

	if hook != nil {
		hook(n)
	}

	return d.channel, d.found, d.err
}

func (d *fakeDiscoverer) Calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.calls
}

// trackedConn records whether the worker closed its end of a pipe.
type trackedConn struct {
	net.Conn
	closed *atomic.Bool
}

func (c *trackedConn) Close() error {
	c.closed.Store(true)
	return c.Conn.Close()
}

type pipeDialer struct {
	mu       sync.Mutex
	fail     int
	calls    int
	channels []uint8
	dialedAt []time.Time
	conns    []*trackedConn
	peers    chan net.Conn
}

func newPipeDialer() *pipeDialer {
	return &pipeDialer{peers: make(chan net.Conn, 16)}
}

func (d *pipeDialer) DialControl(ctx context.Context, addr bluetooth.Address, channel uint8) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.calls++
	d.channels = append(d.channels, channel)
	if d.fail > 0 {
		d.fail--
		return nil, errors.New("connection refused")
	}

	local, remote := net.Pipe()
	c := &trackedConn{Conn: local, closed: atomic.NewBool(false)}
	d.conns = append(d.conns, c)
	d.dialedAt = append(d.dialedAt, time.Now())
	d.peers <- remote

	return c, nil
}

func (d *pipeDialer) Calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.calls
}

func (d *pipeDialer) conn(i int) *trackedConn {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.conns[i]
}

func (d *pipeDialer) dialTime(i int) time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.dialedAt[i]
}

// next returns the device side of the next control connection.
func (d *pipeDialer) next(t *testing.T) net.Conn {
	t.Helper()

	select {
	case c := <-d.peers:
		t.Cleanup(func() { _ = c.Close() })
		return c
	case <-time.After(testWait):
		require.FailNow(t, "no control connection was dialed")
		return nil
	}
}

type fakeAudioConn struct {
	mtu    int
	closed *atomic.Bool
	frames chan []byte

	mu       sync.Mutex
	deadline time.Time
	written  [][]byte
}

func newFakeAudioConn(mtu int) *fakeAudioConn {
	return &fakeAudioConn{mtu: mtu, closed: atomic.NewBool(false), frames: make(chan []byte, 16)}
}

func (c *fakeAudioConn) Read(p []byte) (int, error) {
	if c.closed.Load() {
		return 0, io.ErrClosedPipe
	}

	c.mu.Lock()
	wait := time.Until(c.deadline)
	c.mu.Unlock()

	select {
	case f := <-c.frames:
		return copy(p, f), nil
	case <-time.After(wait):
		return 0, os.ErrDeadlineExceeded
	}
}

func (c *fakeAudioConn) Write(p []byte) (int, error) {
	if c.closed.Load() {
		return 0, io.ErrClosedPipe
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.written = append(c.written, append([]byte(nil), p...))

	return len(p), nil
}

func (c *fakeAudioConn) Written() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.written
}

func (c *fakeAudioConn) SetReadDeadline(t time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deadline = t

	return nil
}

func (c *fakeAudioConn) SetWriteDeadline(time.Time) error { return nil }

func (c *fakeAudioConn) Close() error {
	c.closed.Store(true)
	return nil
}

func (c *fakeAudioConn) MTU() int { return c.mtu }

type fakeAudioDialer struct {
	mu    sync.Mutex
	mtu   int
	fail  int
	calls []time.Time
	conns []*fakeAudioConn
}

func (d *fakeAudioDialer) DialAudio(ctx context.Context, addr bluetooth.Address) (AudioConn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.calls = append(d.calls, time.Now())
	if d.fail > 0 {
		d.fail--
		return nil, errors.New("host is down")
	}

	c := newFakeAudioConn(d.mtu)
	d.conns = append(d.conns, c)

	return c, nil
}

func (d *fakeAudioDialer) Calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return len(d.calls)
}

func (d *fakeAudioDialer) callTime(i int) time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.calls[i]
}

func (d *fakeAudioDialer) conn(i int) *fakeAudioConn {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.conns[i]
}

type harness struct {
	disc  *fakeDiscoverer
	ctrl  *pipeDialer
	audio *fakeAudioDialer
}

func newHarness() *harness {
	return &harness{
		disc:  &fakeDiscoverer{channel: 3, found: true},
		ctrl:  newPipeDialer(),
		audio: &fakeAudioDialer{mtu: 48},
	}
}

func (h *harness) start(t *testing.T, opts ...Option) *Manager {
	t.Helper()

	base := []Option{
		WithDiscoverer(h.disc),
		WithControlDialer(h.ctrl),
		WithAudioDialer(h.audio),
		WithPollInterval(testPoll),
		WithAudioTimeout(time.Minute),
		WithBackoff(testBackoff),
	}

	m, err := New(testAddr, append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })

	return m
}

func sendCommand(t *testing.T, c net.Conn, cmd string) {
	t.Helper()

	require.NoError(t, c.SetWriteDeadline(time.Now().Add(testWait)))
	_, err := c.Write([]byte(cmd))
	require.NoError(t, err)
}

func expectReply(t *testing.T, c net.Conn, want string) {
	t.Helper()

	require.NoError(t, c.SetReadDeadline(time.Now().Add(testWait)))
	buf := make([]byte, len(want))
	_, err := io.ReadFull(c, buf)
	require.NoError(t, err)
	assert.Equal(t, want, string(buf))
}
