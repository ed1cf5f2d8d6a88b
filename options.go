package raypak

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Polling interval bounds, inclusive.
const (
	MinPollingInterval = 10 * time.Second
	MaxPollingInterval = 300 * time.Second
)

// monitorConfig holds mutable state during Monitor construction.
type monitorConfig struct {
	title             string
	server            string
	token             string
	pollingInterval   time.Duration
	timeout           time.Duration
	port              int
	logger            *slog.Logger
	registry          *prometheus.Registry
	snapshotCallbacks []func(Snapshot)
	readingsCallbacks []func([]Reading)
}

// Option is a function that configures a [Monitor] instance during construction.
//
// Options return an error if validation fails.
//
// Built-in options: [WithDevice], [WithPollingInterval], [WithTimeout],
// [WithPort], [WithLogger], [WithTitle], [WithSnapshotCallback],
// [WithReadingsCallback], [WithRegistry].
type Option func(*monitorConfig) error

// WithDevice sets the device API server and credential token. Required.
//
// server is a host name such as [DefaultServer]; a value with an explicit
// scheme ("http://127.0.0.1:9999") is used as-is.
//
// Example:
//
//	m, err := raypak.New(
//	    raypak.WithDevice(raypak.DefaultServer, os.Getenv("RAYPAK_TOKEN")),
//	)
//
// Returns an error if either value is empty.
func WithDevice(server, token string) Option {
	return func(cfg *monitorConfig) error {
		server = strings.TrimSpace(server)
		token = strings.TrimSpace(token)
		if server == "" {
			return errors.New("server cannot be empty")
		}
		if token == "" {
			return errors.New("token cannot be empty")
		}
		cfg.server = server
		cfg.token = token
		return nil
	}
}

// WithPollingInterval sets how often the device is refreshed.
//
// Defaults to 30 seconds. Returns an error unless the interval is within
// [MinPollingInterval, MaxPollingInterval].
func WithPollingInterval(d time.Duration) Option {
	return func(cfg *monitorConfig) error {
		if d < MinPollingInterval || d > MaxPollingInterval {
			return fmt.Errorf("polling interval must be between %s and %s, got %s",
				MinPollingInterval, MaxPollingInterval, d)
		}
		cfg.pollingInterval = d
		return nil
	}
}

// WithTimeout sets the per-call timeout for device API requests.
//
// Defaults to 10 seconds. A timed-out call is a transient failure.
// Returns an error if the duration is zero or negative.
func WithTimeout(d time.Duration) Option {
	return func(cfg *monitorConfig) error {
		if d <= 0 {
			return errors.New("timeout must be positive")
		}
		cfg.timeout = d
		return nil
	}
}

// WithPort sets the HTTP port for the dashboard server.
//
// Defaults to 8080. Returns an error if the port is outside 1-65535.
func WithPort(port int) Option {
	return func(cfg *monitorConfig) error {
		if port < 1 || port > 65535 {
			return errors.New("port must be between 1 and 65535")
		}
		cfg.port = port
		return nil
	}
}

// WithLogger sets a custom [slog.Logger] for the Monitor.
//
// If not specified, [slog.Default] is used. Returns an error if the logger is nil.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *monitorConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}

// WithTitle sets the dashboard title. Defaults to "Raypak".
func WithTitle(title string) Option {
	return func(cfg *monitorConfig) error {
		cfg.title = title
		return nil
	}
}

// WithSnapshotCallback registers a function called with every newly
// published [Snapshot].
//
// Callbacks run synchronously on the refreshing goroutine, after the
// snapshot is published, in registration order. They must be non-blocking
// and must not call [Monitor.Refresh]; use [Monitor.RequestRefresh] instead.
// Panics are recovered and logged. Nil callbacks are silently ignored.
//
// Example:
//
//	m, err := raypak.New(
//	    raypak.WithDevice(server, token),
//	    raypak.WithSnapshotCallback(func(s raypak.Snapshot) {
//	        if !s.Connected {
//	            log.Printf("heater offline at revision %d", s.Revision)
//	        }
//	    }),
//	)
func WithSnapshotCallback(cb func(Snapshot)) Option {
	return func(cfg *monitorConfig) error {
		if cb == nil {
			return nil
		}
		cfg.snapshotCallbacks = append(cfg.snapshotCallbacks, cb)
		return nil
	}
}

// WithReadingsCallback registers a function called with the derived
// readings of every newly published snapshot. The same rules as
// [WithSnapshotCallback] apply.
func WithReadingsCallback(cb func([]Reading)) Option {
	return func(cfg *monitorConfig) error {
		if cb == nil {
			return nil
		}
		cfg.readingsCallbacks = append(cfg.readingsCallbacks, cb)
		return nil
	}
}

// WithRegistry registers the Monitor's metrics with reg and serves reg at
// /metrics.
//
// If not specified, a private registry with Go runtime and process
// collectors is used. Returns an error if reg is nil.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(cfg *monitorConfig) error {
		if reg == nil {
			return errors.New("registry cannot be nil")
		}
		cfg.registry = reg
		return nil
	}
}
