// Package hfp keeps a hands-free or headset device connected as an audio
// gateway.
//
// A Manager runs a single background worker that finds the device's control
// channel, answers the service level AT handshake, opens the SCO audio
// channel and starts over whenever the control channel fails. Callers only
// move audio frames with Read and Write; connection failures are never
// reported to them, audio is simply unavailable until the next cycle
// succeeds.
package hfp

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"go.uber.org/atomic"

	"bluetooth-audio/internal/bluetooth"
)

// Default timings.
const (
	DefaultPollInterval   = time.Second
	DefaultAudioTimeout   = 10 * time.Second
	DefaultBackoff        = time.Second
	DefaultConnectTimeout = 10 * time.Second
)

// notifyQueueLen bounds the unsolicited result codes waiting to be sent.
const notifyQueueLen = 8

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger. The default discards all records.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithDiscoverer sets how the control channel is found.
func WithDiscoverer(d Discoverer) Option {
	return func(m *Manager) { m.discoverer = d }
}

// WithControlDialer sets how control channels are opened.
func WithControlDialer(d ControlDialer) Option {
	return func(m *Manager) { m.control = d }
}

// WithAudioDialer sets how audio channels are opened.
func WithAudioDialer(d AudioDialer) Option {
	return func(m *Manager) { m.audioDialer = d }
}

// WithInterpreter replaces the AT command interpreter.
func WithInterpreter(in *Interpreter) Option {
	return func(m *Manager) { m.interp = in }
}

// WithPollInterval sets the control channel receive timeout, which is also
// the granularity at which a stop request is observed.
func WithPollInterval(d time.Duration) Option {
	return func(m *Manager) { m.pollInterval = d }
}

// WithAudioTimeout sets how long after the control channel connects the
// audio channel is attempted even without a completed handshake.
func WithAudioTimeout(d time.Duration) Option {
	return func(m *Manager) { m.audioTimeout = d }
}

// WithBackoff sets the pause between connection cycles.
func WithBackoff(d time.Duration) Option {
	return func(m *Manager) { m.backoff = d }
}

// WithConnectTimeout bounds each connect of the platform default dialers.
func WithConnectTimeout(d time.Duration) Option {
	return func(m *Manager) { m.connectTimeout = d }
}

// WithStateHook registers a function called on every worker state change,
// from the worker goroutine.
func WithStateHook(fn func(State)) Option {
	return func(m *Manager) { m.onState = fn }
}

// Manager maintains the control and audio connections to one device.
type Manager struct {
	addr bluetooth.Address

	logger      *slog.Logger
	discoverer  Discoverer
	control     ControlDialer
	audioDialer AudioDialer
	interp      *Interpreter
	onState     func(State)

	pollInterval   time.Duration
	audioTimeout   time.Duration
	backoff        time.Duration
	connectTimeout time.Duration

	// Written by the worker only.
	state   *atomic.Int32
	channel *atomic.Uint32
	audio   *atomic.Pointer[audioSession]

	notify chan string

	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

// audioSession is an open audio channel and its packet size.
type audioSession struct {
	conn AudioConn
	mtu  int
}

// New starts maintaining a connection to addr. It returns without waiting
// for the first connection attempt.
func New(addr bluetooth.Address, opts ...Option) (*Manager, error) {
	m := &Manager{
		addr:           addr,
		pollInterval:   DefaultPollInterval,
		audioTimeout:   DefaultAudioTimeout,
		backoff:        DefaultBackoff,
		connectTimeout: DefaultConnectTimeout,
		state:          atomic.NewInt32(int32(Idle)),
		channel:        atomic.NewUint32(0),
		audio:          atomic.NewPointer[audioSession](nil),
		notify:         make(chan string, notifyQueueLen),
		done:           make(chan struct{}),
	}

	for _, opt := range opts {
		opt(m)
	}

	if m.logger == nil {
		m.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if m.interp == nil {
		m.interp = NewInterpreter()
	}

	platformDefaults(m)
	if m.discoverer == nil || m.control == nil || m.audioDialer == nil {
		return nil, ErrNoTransport
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel

	go m.run(ctx)

	return m, nil
}

// Read returns the next audio frame, at most MTU bytes long. ok is false
// when no audio channel is open or no frame arrived within the poll
// interval.
func (m *Manager) Read() (frame []byte, ok bool) {
	s := m.audio.Load()
	if s == nil {
		return nil, false
	}

	if err := s.conn.SetReadDeadline(time.Now().Add(m.pollInterval)); err != nil {
		return nil, false
	}

	buf := make([]byte, s.mtu)
	n, err := s.conn.Read(buf)
	if err != nil || n == 0 {
		return nil, false
	}

	return buf[:n], true
}

// Write sends an audio frame. ok is false when no audio channel is open or
// the frame could not be delivered; such frames are dropped.
func (m *Manager) Write(frame []byte) (n int, ok bool) {
	s := m.audio.Load()
	if s == nil {
		return 0, false
	}

	if err := s.conn.SetWriteDeadline(time.Now().Add(m.pollInterval)); err != nil {
		return 0, false
	}

	n, err := s.conn.Write(frame)
	if err != nil {
		return n, false
	}

	return n, true
}

// Notify queues an unsolicited result code, such as RING, to be sent on the
// control channel. It reports false if the queue is full or the manager is
// closed.
func (m *Manager) Notify(code string) bool {
	select {
	case <-m.done:
		return false
	default:
	}

	select {
	case m.notify <- code:
		return true
	default:
		return false
	}
}

// Connected reports whether an audio channel is open.
func (m *Manager) Connected() bool {
	return m.audio.Load() != nil
}

// MTU returns the packet size of the open audio channel, or zero.
func (m *Manager) MTU() int {
	if s := m.audio.Load(); s != nil {
		return s.mtu
	}

	return 0
}

// Channel returns the control channel of the current cycle, or zero.
func (m *Manager) Channel() uint8 {
	return uint8(m.channel.Load())
}

// State returns the current worker state.
func (m *Manager) State() State {
	return State(m.state.Load())
}

// Close stops the worker, waits for it to unwind and releases any open
// sockets. It is safe to call more than once.
func (m *Manager) Close() error {
	m.closeOnce.Do(func() {
		m.cancel()
		<-m.done
		m.teardown(nil)
	})

	return nil
}
