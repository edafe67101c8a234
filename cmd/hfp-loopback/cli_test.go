//go:build linux

package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"bluetooth-audio/internal/bluetooth"
	"bluetooth-audio/internal/config"
)

func runApp(t *testing.T, args ...string) error {
	t.Helper()

	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())

	return newApp().Run(append([]string{"hfp-loopback"}, args...))
}

func TestAppRequiresAddress(t *testing.T) {
	err := runApp(t)
	assert.ErrorContains(t, err, "exactly one device address is required")
}

func TestAppRejectsInvalidAddress(t *testing.T) {
	err := runApp(t, "00:11:22:33:44")
	assert.ErrorIs(t, err, bluetooth.ErrInvalidAddress)
}

func TestAppRejectsInvalidConfig(t *testing.T) {
	err := runApp(t, "--control", "serial", "00:11:22:33:44:55")
	assert.ErrorIs(t, err, config.ErrInvalid)
}

func TestCompareAddr(t *testing.T) {
	a := bluetooth.MustParseAddress("00:11:22:33:44:55")
	b := bluetooth.MustParseAddress("00:11:22:33:44:66")
	c := bluetooth.MustParseAddress("01:00:00:00:00:00")

	assert.Negative(t, compareAddr(a, b))
	assert.Negative(t, compareAddr(b, c))
	assert.Zero(t, compareAddr(a, a))
}
