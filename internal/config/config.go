// Package config loads the audio gateway configuration from built-in
// defaults, an optional hjson file and command-line flags, in that order.
package config

import (
	"os"
	"path/filepath"

	"github.com/knadh/koanf/parsers/hjson"
	"github.com/knadh/koanf/providers/cliflagv2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/urfave/cli/v2"
)

const (
	appName    = "hfp-loopback"
	configFile = appName + ".conf"
)

// Config describes the configuration for the app.
type Config struct {
	path string

	Values Values
}

// NewConfig returns a configuration holding the defaults. path is the
// configuration file; an empty path uses DefaultPath.
func NewConfig(path string) *Config {
	if path == "" {
		path = DefaultPath()
	}

	return &Config{path: path, Values: Default()}
}

// Path returns the configuration file in use, or "" if there is none.
func (c *Config) Path() string {
	return c.path
}

// Load merges the configuration file, if any, and the flags set on cliCtx
// over the current values, then validates the result. cliCtx must be the
// root context with its command named "global" so that flags land in the
// root namespace.
func (c *Config) Load(k *koanf.Koanf, cliCtx *cli.Context) error {
	if c.path != "" {
		if err := k.Load(file.Provider(c.path), hjson.Parser()); err != nil {
			return err
		}
	}

	if err := k.Load(cliflagv2.Provider(cliCtx, "."), nil); err != nil {
		return err
	}

	if err := k.UnmarshalWithConf("", &c.Values, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return err
	}

	return c.Values.Validate()
}

// DefaultPath returns the first existing configuration file among
// $XDG_CONFIG_HOME/hfp-loopback, ~/.config/hfp-loopback and ~/.hfp-loopback,
// or "" if none exists.
func DefaultPath() string {
	var dirs []string

	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		dirs = append(dirs, filepath.Join(xdg, appName))
	}
	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs,
			filepath.Join(home, ".config", appName),
			filepath.Join(home, "."+appName),
		)
	}

	for _, dir := range dirs {
		p := filepath.Join(dir, configFile)
		if _, err := os.Stat(filepath.Clean(p)); err == nil {
			return p
		}
	}

	return ""
}
