package config

import (
	"errors"

	"github.com/jpalmerr/raypak"
)

// BuildOptions converts parsed configuration into SDK options.
//
// The logger is not part of the configuration; callers append
// [raypak.WithLogger] built from [Config.Level].
func BuildOptions(cfg *Config) ([]raypak.Option, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}

	opts := []raypak.Option{
		raypak.WithDevice(cfg.Server, cfg.Token),
		raypak.WithPort(cfg.Port),
	}

	if cfg.Title != "" {
		opts = append(opts, raypak.WithTitle(cfg.Title))
	}
	if cfg.PollInterval != 0 {
		opts = append(opts, raypak.WithPollingInterval(cfg.PollInterval.Duration()))
	}
	if cfg.Timeout != 0 {
		opts = append(opts, raypak.WithTimeout(cfg.Timeout.Duration()))
	}

	return opts, nil
}
