package poller

import (
	"maps"
	"time"
)

// Snapshot is the device state produced by one completed refresh cycle.
//
// A Snapshot is immutable once published: the coordinator never writes to
// Values after handing it out, and readers must not either. The zero
// Snapshot (revision 0, no values) is current until the first refresh
// succeeds.
type Snapshot struct {
	// Values maps pin identifiers to the raw values reported by getAll.
	Values map[string]any

	// Connected is the hardware connectivity flag from the same cycle.
	Connected bool

	// Revision increases by one with every successful refresh.
	Revision uint64

	// FetchedAt is when the cycle completed.
	FetchedAt time.Time
}

// Value returns the raw value for pin and whether it was reported.
func (s Snapshot) Value(pin string) (any, bool) {
	v, ok := s.Values[pin]
	return v, ok
}

// IsZero reports whether no refresh has succeeded yet.
func (s Snapshot) IsZero() bool {
	return s.Revision == 0
}

// Clone returns a copy with its own Values map.
func (s Snapshot) Clone() Snapshot {
	s.Values = maps.Clone(s.Values)
	return s
}
