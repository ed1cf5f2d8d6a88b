// Package store holds the presentation state of the device.
//
// This package is internal to raypak. It keeps the latest [State] (session,
// derived readings, heater view) in memory and pushes every replacement to
// subscribers such as the SSE and websocket handlers.
//
// The main components are:
//
//   - [Store]: Interface defining publish and subscription operations
//   - [MemoryStore]: In-memory implementation of Store with pub/sub
//   - [State]: JSON representation of everything the dashboard shows
//
// Subscribers receive updates via channels with non-blocking sends (slow
// subscribers will miss updates rather than block the refresh path).
package store
