// Package server provides the HTTP dashboard, streaming, and control API.
//
// This package is internal to raypak. It serves the embedded dashboard, the
// current state as JSON, live updates over Server-Sent Events and
// websockets, Prometheus metrics, and the heater control endpoints.
//
// Users of the raypak library should not need to interact with this
// package directly. The server is started by the main raypak package.
package server
