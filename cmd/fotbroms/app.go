package main

import (
	"io"
	"log/slog"
	"maps"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tongue/fotbroms/internal/config"
	"github.com/tongue/fotbroms/internal/errors"
)

// app carries what every command shares once configuration is loaded.
type app struct {
	v       *viper.Viper
	cfgFile string

	cfg    *config.Config
	logger *slog.Logger
}

var persistentKeys = map[string]string{
	"log-level":  "log.level",
	"log-format": "log.format",
}

// load returns a PreRunE that binds the running command's flags to their
// config keys and loads the configuration. Binding happens per command so
// that commands sharing a key don't overwrite each other's flag.
func (a *app) load(keys map[string]string) func(*cobra.Command, []string) error {
	all := maps.Clone(persistentKeys)
	maps.Copy(all, keys)

	return func(cmd *cobra.Command, _ []string) error {
		for name, key := range all {
			if f := cmd.Flags().Lookup(name); f != nil {
				if err := a.v.BindPFlag(key, f); err != nil {
					return errors.New("C002").Wrap(err)
				}
			}
		}

		cfg, err := config.Load(a.v, a.cfgFile)
		if err != nil {
			return err
		}
		logger, err := newLogger(cfg.Log, cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		a.cfg, a.logger = cfg, logger
		return nil
	}
}

// newLogger builds the process logger.
func newLogger(cfg config.LogConfig, w io.Writer) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return nil, errors.New("C001").WithDetailf("log.level: %v", err)
	}

	opts := &slog.HandlerOptions{Level: level}
	switch strings.ToLower(cfg.Format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, errors.New("C001").WithDetailf("log.format must be text or json, got %q", cfg.Format)
	}
}
