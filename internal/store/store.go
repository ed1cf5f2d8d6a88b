package store

import "time"

// Reading is one derived device value in storage.
type Reading struct {
	Key  string `json:"key"`
	Name string `json:"name"`

	// Value encodes to JSON as null, a boolean, a number, or a string.
	Value any `json:"value"`

	Unit        string `json:"unit,omitempty"`
	Role        string `json:"role"`
	DeviceClass string `json:"device_class,omitempty"`
	StateClass  string `json:"state_class,omitempty"`
}

// Heater is the heater control view in storage.
type Heater struct {
	CurrentTemperature any      `json:"current_temperature"`
	TargetTemperature  any      `json:"target_temperature"`
	Mode               string   `json:"mode"`
	MinTemperature     float64  `json:"min_temperature"`
	MaxTemperature     float64  `json:"max_temperature"`
	Operations         []string `json:"operations"`
}

// State is everything the dashboard shows for the device.
//
// State is decoupled from the poller's and the root package's types so the
// JSON shape served by the API can evolve independently.
type State struct {
	// Session is the polling session state ("idle", "polling", "auth_failed", "stopped").
	Session string `json:"session"`

	// Revision of the snapshot the readings were derived from; 0 before the first refresh.
	Revision uint64 `json:"revision"`

	Connected bool      `json:"connected"`
	FetchedAt time.Time `json:"fetched_at,omitzero"`

	// LastError is the most recent refresh error; nil after a successful refresh.
	LastError *string `json:"last_error"`

	Readings []Reading `json:"readings"`
	Heater   Heater    `json:"heater"`
}

// Store holds the current [State] and fans out replacements to subscribers.
//
// Store implementations must be safe for concurrent access.
type Store interface {
	// Publish replaces the current state and notifies all subscribers.
	Publish(state State)

	// Get returns the current state.
	Get() State

	// Subscribe returns a channel that receives every published state.
	// The returned channel has a buffer; slow consumers may miss updates.
	// Caller must call Unsubscribe when done to prevent resource leaks.
	Subscribe() <-chan State

	// Unsubscribe removes a subscription and closes the channel.
	// Safe to call with a channel that was already unsubscribed.
	Unsubscribe(ch <-chan State)
}
