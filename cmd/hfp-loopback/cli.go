//go:build linux

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/knadh/koanf/v2"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"bluetooth-audio/internal/bluetooth"
	"bluetooth-audio/internal/btsock"
	"bluetooth-audio/internal/config"
	"bluetooth-audio/internal/connmgr"
	"bluetooth-audio/internal/hfp"
	"bluetooth-audio/internal/logger"
	"bluetooth-audio/internal/sdp"
)

// These values are set at compile-time.
var (
	Version  = ""
	Revision = ""
)

// run runs the commandline application until it finishes or is
// interrupted.
func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return newApp().RunContext(ctx, os.Args)
}

// newApp returns a new commandline application.
func newApp() *cli.App {
	cli.VersionPrinter = func(cCtx *cli.Context) {
		fmt.Fprintf(cCtx.App.Writer, "%s (%s)\n", Version, Revision)
	}

	flags := append(config.Flags(),
		&cli.DurationFlag{
			Name:    "scan",
			Aliases: []string{"s"},
			Usage:   "Scan for hands-free and headset devices for the given time, list them and exit.",
		},
	)

	return &cli.App{
		Name:                   "hfp-loopback",
		Usage:                  "Hands-Free audio gateway loopback.",
		UsageText:              "hfp-loopback [options] ADDRESS\nhfp-loopback --scan 10s",
		Version:                Version + " (" + Revision + ")",
		Description:            "Keeps a hands-free or headset device connected as its audio gateway and echoes its microphone audio back to its speaker.",
		UseShortOptionHandling: true,
		Suggest:                true,
		Flags:                  flags,
		Action: func(cliCtx *cli.Context) error {
			// required for koanf to merge all global flags under the root namespace.
			cliCtx.Command.Name = "global"

			cfg := config.NewConfig(cliCtx.String("config"))
			if err := cfg.Load(koanf.New("."), cliCtx); err != nil {
				return err
			}

			log, closeLog, err := logger.New(cfg.Values.Logger())
			if err != nil {
				return err
			}
			defer closeLog()

			if path := cfg.Path(); path != "" {
				log.Debug("loaded configuration", "path", path)
			}

			if cliCtx.IsSet("scan") {
				return scan(cliCtx.Context, cliCtx.Duration("scan"), log)
			}

			if cliCtx.NArg() != 1 {
				return errors.New("exactly one device address is required (for example, 'AA:BB:CC:DD:EE:FF')")
			}

			addr, err := bluetooth.ParseAddress(cliCtx.Args().First())
			if err != nil {
				return err
			}

			return loopback(cliCtx.Context, addr, cfg.Values, log)
		},
		ExitErrHandler: func(_ *cli.Context, err error) {
			if err == nil {
				return
			}

			printError(err)
		},
	}
}

// loopback echoes audio frames from addr back to it until ctx is done.
func loopback(ctx context.Context, addr bluetooth.Address, v config.Values, log *slog.Logger) error {
	dialer := &btsock.Dialer{ConnectTimeout: v.ConnectTimeout, Voice: v.VoiceSetting}

	negotiating := make(chan struct{}, 1)
	opts := []hfp.Option{
		hfp.WithLogger(log),
		hfp.WithPollInterval(v.PollInterval),
		hfp.WithAudioTimeout(v.AudioTimeout),
		hfp.WithBackoff(v.Backoff),
		hfp.WithConnectTimeout(v.ConnectTimeout),
		hfp.WithDiscoverer(sdp.NewDiscoverer(dialer, v.ConnectTimeout, log)),
		hfp.WithAudioDialer(hfp.AudioDialerOf(dialer.DialAudio)),
		hfp.WithStateHook(func(s hfp.State) {
			log.Debug("worker state changed", "state", s.String())

			if s == hfp.Negotiating {
				select {
				case negotiating <- struct{}{}:
				default:
				}
			}
		}),
	}

	switch v.Control {
	case config.ControlBlueZ:
		mgr := connmgr.New(log)
		defer mgr.Close()

		pd := connmgr.NewProfileDialer(mgr, v.ConnectTimeout, log)
		opts = append(opts, hfp.WithControlDialer(hfp.ControlDialerOf(pd.DialControl)))

	default:
		opts = append(opts, hfp.WithControlDialer(hfp.ControlDialerOf(dialer.DialControl)))
	}

	m, err := hfp.New(addr, opts...)
	if err != nil {
		return err
	}

	log.Info("audio loopback started",
		"address", addr.String(),
		"control", v.Control,
		"voice", v.VoiceSetting.String(),
	)

	var echoed, dropped int

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		idle := time.NewTicker(max(v.PollInterval/10, time.Millisecond))
		defer idle.Stop()

		for gctx.Err() == nil {
			frame, ok := m.Read()
			if !ok {
				if !m.Connected() {
					select {
					case <-gctx.Done():
					case <-idle.C:
					}
				}
				continue
			}

			if _, ok := m.Write(frame); ok {
				echoed++
			} else {
				dropped++
			}
		}

		return nil
	})

	if v.Ring {
		g.Go(func() error {
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-negotiating:
					if !m.Notify("RING") {
						log.Warn("could not queue RING")
					}
				}
			}
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		return m.Close()
	})

	if err := g.Wait(); err != nil {
		return err
	}

	log.Info("audio loopback stopped", "echoed", echoed, "dropped", dropped)

	return nil
}

// scan lists nearby hands-free and headset devices found within d.
func scan(ctx context.Context, d time.Duration, log *slog.Logger) error {
	mgr := connmgr.New(log)
	defer mgr.Close()

	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	devices, err := mgr.ScanAudio(ctx)
	if err != nil {
		return err
	}

	if len(devices) == 0 {
		printWarn("no hands-free or headset devices were found")
		return nil
	}

	slices.SortFunc(devices, func(a, b connmgr.Device) int {
		if a.Class != b.Class {
			return int(b.Class) - int(a.Class)
		}

		return compareAddr(a.Address, b.Address)
	})
	printDevices(devices)

	return nil
}

func compareAddr(a, b bluetooth.Address) int {
	x, y := a.BigEndian(), b.BigEndian()

	return slices.Compare(x[:], y[:])
}
