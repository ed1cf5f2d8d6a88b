// Package raypak monitors and controls a Raypak pool heater through its
// cloud device API, and serves the heater's state on an embeddable live
// dashboard.
//
// # Quick Start
//
//	m, _ := raypak.New(raypak.WithDevice(raypak.DefaultServer, os.Getenv("RAYPAK_TOKEN")))
//
//	// Set up graceful shutdown on SIGINT/SIGTERM
//	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer stop()
//
//	m.Start(ctx) // blocks until ctx is cancelled or the token is rejected
//
// # Snapshots and Readings
//
// Every refresh fetches all pin values and the hardware connectivity flag
// and, if both succeed, publishes a new immutable [Snapshot]. A failed
// refresh never replaces the current Snapshot. Concurrent refresh triggers
// (the polling interval, [Monitor.Refresh], writes) share one round trip.
//
// Typed values are computed from a Snapshot on demand by [Derive], driven by
// a fixed table of [Descriptor] entries (see [Descriptors]). Derivation is
// total: a missing or malformed pin produces an absent [Value], never an
// error.
//
//	for _, r := range m.Readings() {
//	    fmt.Printf("%s: %s %s\n", r.Name, r.Value, r.Unit)
//	}
//
// # Heater Control
//
// [Monitor.Heater] exposes the setpoint and operation mode. Writes go to the
// device and then request a refresh; the new setting appears once that
// refresh confirms it.
//
//	err := m.Heater().SetTarget(ctx, 84)
//
// # Errors
//
// Device API failures match either [ErrAuth] or [ErrTransient] via
// [errors.Is]. A rejected token suspends polling; transient failures keep
// the last snapshot and polling continues.
//
// # Architecture
//
// The Monitor consists of several internal packages (under internal/):
//
//   - internal/poller: device API client and the refresh coordinator
//   - internal/store: In-memory storage with pub/sub for real-time updates
//   - internal/server: HTTP server with REST API, Server-Sent Events and websockets
//   - dashboard: Embedded web UI assets
//
// The internal packages are not part of the public API and may change
// without notice.
package raypak
