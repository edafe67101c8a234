//go:build linux

package hfp

import (
	"bluetooth-audio/internal/btsock"
	"bluetooth-audio/internal/sdp"
)

// platformDefaults fills unset transports with raw Bluetooth sockets.
func platformDefaults(m *Manager) {
	d := &btsock.Dialer{ConnectTimeout: m.connectTimeout, Voice: btsock.VoiceCVSD16Bit}

	if m.discoverer == nil {
		m.discoverer = sdp.NewDiscoverer(d, m.connectTimeout, m.logger)
	}
	if m.control == nil {
		m.control = ControlDialerOf(d.DialControl)
	}
	if m.audioDialer == nil {
		m.audioDialer = AudioDialerOf(d.DialAudio)
	}
}
