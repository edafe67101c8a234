//go:build !linux

package hfp

// platformDefaults leaves transports unset; they must be supplied as
// options on this platform.
func platformDefaults(*Manager) {}
