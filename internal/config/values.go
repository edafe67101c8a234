package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"bluetooth-audio/internal/btsock"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Control channel modes.
const (
	ControlRFCOMM = "rfcomm"
	ControlBlueZ  = "bluez"
)

// Values describes the configuration a user can supply through the
// configuration file or command-line flags.
type Values struct {
	Control        string        `koanf:"control"`
	Voice          string        `koanf:"voice"`
	PollInterval   time.Duration `koanf:"poll-interval"`
	AudioTimeout   time.Duration `koanf:"audio-timeout"`
	Backoff        time.Duration `koanf:"backoff"`
	ConnectTimeout time.Duration `koanf:"connect-timeout"`
	LogLevel       string        `koanf:"log-level"`
	LogFormat      string        `koanf:"log-format"`
	LogOutput      string        `koanf:"log-output"`
	Ring           bool          `koanf:"ring"`

	VoiceSetting btsock.VoiceSetting `koanf:"-"`
}

// Logger holds the logging part of the configuration.
type Logger struct {
	Level  string
	Format string
	Output string
}

// Default returns the built-in configuration.
func Default() Values {
	return Values{
		Control:        ControlRFCOMM,
		Voice:          "cvsd",
		PollInterval:   time.Second,
		AudioTimeout:   10 * time.Second,
		Backoff:        time.Second,
		ConnectTimeout: 10 * time.Second,
		LogLevel:       "info",
		LogFormat:      "text",
		LogOutput:      "stderr",
		VoiceSetting:   btsock.VoiceCVSD16Bit,
	}
}

// Logger returns the logging configuration.
func (v *Values) Logger() Logger {
	return Logger{Level: v.LogLevel, Format: v.LogFormat, Output: v.LogOutput}
}

// Validate checks all values and resolves derived ones.
func (v *Values) Validate() error {
	for _, validate := range []func() error{
		v.validateControl,
		v.validateVoice,
		v.validateDurations,
		v.validateLogging,
	} {
		if err := validate(); err != nil {
			return err
		}
	}

	return nil
}

func (v *Values) validateControl() error {
	v.Control = strings.ToLower(v.Control)

	switch v.Control {
	case ControlRFCOMM, ControlBlueZ:
		return nil
	}

	return fmt.Errorf("%w: control mode '%s' is incorrect.\nValid modes are '%s'",
		ErrInvalid, v.Control, strings.Join([]string{ControlRFCOMM, ControlBlueZ}, ", "))
}

func (v *Values) validateVoice() error {
	voice, err := btsock.ParseVoiceSetting(v.Voice)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	v.VoiceSetting = voice

	return nil
}

func (v *Values) validateDurations() error {
	for _, d := range []struct {
		name  string
		value time.Duration
	}{
		{"poll-interval", v.PollInterval},
		{"backoff", v.Backoff},
		{"connect-timeout", v.ConnectTimeout},
	} {
		if d.value <= 0 {
			return fmt.Errorf("%w: %s must be positive, got %s", ErrInvalid, d.name, d.value)
		}
	}

	if v.AudioTimeout < 0 {
		return fmt.Errorf("%w: audio-timeout cannot be negative, got %s", ErrInvalid, v.AudioTimeout)
	}

	return nil
}

func (v *Values) validateLogging() error {
	switch strings.ToLower(v.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("%w: log level '%s' is incorrect", ErrInvalid, v.LogLevel)
	}

	switch strings.ToLower(v.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("%w: log format '%s' is incorrect", ErrInvalid, v.LogFormat)
	}

	return nil
}
