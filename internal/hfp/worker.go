package hfp

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/rs/xid"
)

// controlBufferSize is the largest AT chunk read at once.
const controlBufferSize = 1024

// run is the worker loop. Each iteration is one full connection cycle.
func (m *Manager) run(ctx context.Context) {
	defer close(m.done)
	defer m.setState(Stopped)

	m.logger.Info("hands-free worker started", "address", m.addr.String())

	for {
		m.cycle(ctx, m.logger.With("cycle", xid.New().String()))
		if ctx.Err() != nil {
			return
		}

		m.setState(Idle)
		if !sleep(ctx, m.backoff) {
			return
		}
	}
}

// cycle runs discovery, control connect and negotiation once. Both sockets
// are closed when it returns.
func (m *Manager) cycle(ctx context.Context, log *slog.Logger) {
	m.setState(Discovering)

	channel, found, err := m.discoverer.FindChannel(ctx, m.addr)
	switch {
	case ctx.Err() != nil:
		return
	case err != nil:
		log.Warn("service discovery failed", "error", err)
		return
	case !found:
		log.Info("no hands-free or headset service found")
		return
	}

	m.channel.Store(uint32(channel))
	log.Info("HSP/HFP found on RFCOMM channel", "channel", channel)

	m.setState(ConnectingControl)

	ctrl, err := m.control.DialControl(ctx, m.addr, channel)
	if err != nil {
		m.channel.Store(0)
		if ctx.Err() == nil {
			log.Warn("failed to establish service level connection", "error", err)
		}
		return
	}
	log.Info("service level connection established")

	m.setState(Negotiating)
	err = m.negotiate(ctx, log, ctrl)

	m.setState(TornDown)
	m.teardown(ctrl)

	if err != nil {
		log.Warn("service level connection disconnected", "error", err)
	}
}

// negotiate serves the control channel until it fails or ctx is done. It
// opens the audio channel once the peer enables indicator reporting, or
// once the audio timeout has elapsed.
func (m *Manager) negotiate(ctx context.Context, log *slog.Logger, ctrl Conn) error {
	var (
		audioDue    = time.Now().Add(m.audioTimeout)
		nextAttempt = audioDue
		milestone   bool
		warned      bool
		buf         = make([]byte, controlBufferSize)
	)

	for ctx.Err() == nil {
		if err := m.flushNotifications(log, ctrl); err != nil {
			return err
		}

		data, err := m.readControl(ctrl, buf)
		if err != nil {
			return err
		}

		if data != nil {
			log.Debug("> " + printable(data))

			res := m.interp.Handle(data)
			if err := m.send(log, ctrl, res.Reply); err != nil {
				return err
			}

			if res.Event == EventIndicatorsEnabled && !milestone {
				milestone = true
				m.connectAudio(ctx, log)
			}
		}

		if m.audio.Load() != nil || ctx.Err() != nil {
			continue
		}

		now := time.Now()
		if now.Before(audioDue) || now.Before(nextAttempt) {
			continue
		}

		if !milestone && !warned {
			log.Warn("service level connection timed out, trying audio anyway")
			warned = true
		}

		if !m.connectAudio(ctx, log) {
			nextAttempt = time.Now().Add(m.pollInterval)
		}
	}

	return nil
}

// readControl waits up to one poll interval for data. A timeout yields nil
// data and a nil error.
func (m *Manager) readControl(ctrl Conn, buf []byte) ([]byte, error) {
	if err := ctrl.SetReadDeadline(time.Now().Add(m.pollInterval)); err != nil {
		return nil, err
	}

	n, err := ctrl.Read(buf)
	if err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return nil, nil
		}

		return nil, err
	}
	if n == 0 {
		return nil, nil
	}

	return append([]byte(nil), buf[:n]...), nil
}

// send writes an encoded response to the control channel.
func (m *Manager) send(log *slog.Logger, ctrl Conn, data []byte) error {
	log.Debug("< " + printable(data))

	if err := ctrl.SetWriteDeadline(time.Now().Add(m.pollInterval)); err != nil {
		return err
	}

	_, err := ctrl.Write(data)

	return err
}

// flushNotifications sends every queued unsolicited result code.
func (m *Manager) flushNotifications(log *slog.Logger, ctrl Conn) error {
	for {
		select {
		case code := <-m.notify:
			if err := m.send(log, ctrl, Encode(code)); err != nil {
				return err
			}
		default:
			return nil
		}
	}
}

// connectAudio opens the audio channel unless one is already open, and
// reports whether one is open afterwards. Failures are logged only.
func (m *Manager) connectAudio(ctx context.Context, log *slog.Logger) bool {
	if m.audio.Load() != nil {
		return true
	}

	conn, err := m.audioDialer.DialAudio(ctx, m.addr)
	if err != nil {
		log.Info("failed to establish audio connection", "error", err)
		return false
	}

	mtu := conn.MTU()
	if mtu <= 0 {
		_ = conn.Close()
		log.Warn("audio connection reported no usable mtu", "mtu", mtu)
		return false
	}

	m.audio.Store(&audioSession{conn: conn, mtu: mtu})
	log.Info("audio connection established", "mtu", mtu)

	return true
}

// teardown closes the audio channel and ctrl, if open, and forgets the
// cycle's channel.
func (m *Manager) teardown(ctrl Conn) {
	if s := m.audio.Swap(nil); s != nil {
		_ = s.conn.Close()
	}

	if ctrl != nil {
		_ = ctrl.Close()
	}

	m.channel.Store(0)
}

func (m *Manager) setState(s State) {
	m.state.Store(int32(s))

	if m.onState != nil {
		m.onState(s)
	}
}

// sleep waits for d, returning false if ctx is done first.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// printable renders AT traffic on a single log line.
func printable(b []byte) string {
	return strings.TrimSpace(strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ").Replace(string(b)))
}
