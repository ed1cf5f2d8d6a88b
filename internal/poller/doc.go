// Package poller keeps the authoritative snapshot of one Raypak heater.
//
// This package is internal to raypak. It owns the device API client, the
// refresh coordinator, and the polling session lifecycle.
//
// The main components are:
//
//   - [Client]: Blynk external API client with per-call timeouts
//   - [Coordinator]: single-flight refresh cycle, periodic loop, and snapshot publication
//   - [Snapshot]: immutable result of one successful refresh
//   - [Error]: classified API failure (transient or authentication)
//   - [Metrics]: prometheus collectors for refreshes and writes
//
// Users of the raypak library should not need to interact with this
// package directly. Configuration is done through the main raypak package.
package poller
