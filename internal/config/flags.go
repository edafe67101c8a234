package config

import (
	"github.com/urfave/cli/v2"
)

// Flags returns the global command-line flags mapped onto Values. Defaults
// are not set on the flags themselves so that only explicitly given flags
// override the configuration file.
func Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			EnvVars: []string{"HFP_LOOPBACK_CONFIG"},
			Usage:   "Read configuration from this hjson file.",
		},
		&cli.StringFlag{
			Name:        "control",
			EnvVars:     []string{"HFP_LOOPBACK_CONTROL"},
			Usage:       "How to open the control channel: 'rfcomm' or 'bluez'.",
			DefaultText: ControlRFCOMM,
		},
		&cli.StringFlag{
			Name:        "voice",
			EnvVars:     []string{"HFP_LOOPBACK_VOICE"},
			Usage:       "SCO voice setting: 'cvsd' or 'transparent'.",
			DefaultText: "cvsd",
		},
		&cli.DurationFlag{
			Name:        "poll-interval",
			EnvVars:     []string{"HFP_LOOPBACK_POLL_INTERVAL"},
			Usage:       "Control channel receive timeout.",
			DefaultText: "1s",
		},
		&cli.DurationFlag{
			Name:        "audio-timeout",
			EnvVars:     []string{"HFP_LOOPBACK_AUDIO_TIMEOUT"},
			Usage:       "Open audio this long after the control channel connects, even without a finished handshake.",
			DefaultText: "10s",
		},
		&cli.DurationFlag{
			Name:        "backoff",
			EnvVars:     []string{"HFP_LOOPBACK_BACKOFF"},
			Usage:       "Pause between connection attempts.",
			DefaultText: "1s",
		},
		&cli.DurationFlag{
			Name:        "connect-timeout",
			EnvVars:     []string{"HFP_LOOPBACK_CONNECT_TIMEOUT"},
			Usage:       "Bound on every socket connect.",
			DefaultText: "10s",
		},
		&cli.StringFlag{
			Name:        "log-level",
			Aliases:     []string{"l"},
			EnvVars:     []string{"HFP_LOOPBACK_LOG_LEVEL"},
			Usage:       "Log level: debug, info, warn or error.",
			DefaultText: "info",
		},
		&cli.StringFlag{
			Name:        "log-format",
			EnvVars:     []string{"HFP_LOOPBACK_LOG_FORMAT"},
			Usage:       "Log format: text or json.",
			DefaultText: "text",
		},
		&cli.StringFlag{
			Name:        "log-output",
			EnvVars:     []string{"HFP_LOOPBACK_LOG_OUTPUT"},
			Usage:       "Log destination: stderr, stdout or a file path.",
			DefaultText: "stderr",
		},
		&cli.BoolFlag{
			Name:    "ring",
			Aliases: []string{"r"},
			EnvVars: []string{"HFP_LOOPBACK_RING"},
			Usage:   "Send RING to the device once the control channel is up.",
		},
	}
}
