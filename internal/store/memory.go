package store

import (
	"slices"
	"sync"
)

// subscriberBuffer is the channel buffer given to each subscriber.
const subscriberBuffer = 16

// MemoryStore is an in-memory implementation of [Store].
//
// The state is replaced wholesale on every publish; readers never observe
// a mix of two publishes. Subscribers receive updates via buffered channels.
// Updates are sent non-blocking; if a subscriber's buffer is full, the
// update is dropped for that subscriber. Since every State is complete, a
// dropped update is superseded by the next one.
type MemoryStore struct {
	mu          sync.RWMutex
	state       State
	subscribers map[chan State]struct{}
	subMu       sync.RWMutex
}

// NewMemoryStore creates a new in-memory [Store] implementation.
//
// The store starts with an empty state in session "idle".
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		state:       State{Session: "idle", Readings: []Reading{}},
		subscribers: make(map[chan State]struct{}),
	}
}

// Publish replaces the current state and notifies all subscribers.
func (m *MemoryStore) Publish(state State) {
	state = clone(state)

	m.mu.Lock()
	m.state = state
	m.mu.Unlock()

	m.notifySubscribers(state)
}

// Get returns a copy of the current state.
func (m *MemoryStore) Get() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return clone(m.state)
}

// Subscribe creates a new subscription and returns a channel for receiving updates.
//
// Caller must call [MemoryStore.Unsubscribe] when done to prevent resource leaks.
func (m *MemoryStore) Subscribe() <-chan State {
	ch := make(chan State, subscriberBuffer)

	m.subMu.Lock()
	m.subscribers[ch] = struct{}{}
	m.subMu.Unlock()

	return ch
}

// Unsubscribe removes a subscription and closes its channel.
//
// Safe to call multiple times or with an unknown channel.
func (m *MemoryStore) Unsubscribe(ch <-chan State) {
	m.subMu.Lock()
	defer m.subMu.Unlock()

	for subCh := range m.subscribers {
		if subCh == ch {
			delete(m.subscribers, subCh)
			close(subCh)
			break
		}
	}
}

// notifySubscribers sends the state to all active subscribers without blocking.
func (m *MemoryStore) notifySubscribers(state State) {
	m.subMu.RLock()
	defer m.subMu.RUnlock()

	for ch := range m.subscribers {
		select {
		case ch <- state:
		default:
			// subscriber is slow, drop the message
		}
	}
}

// clone copies the slices so callers cannot mutate stored state.
func clone(s State) State {
	s.Readings = slices.Clone(s.Readings)
	s.Heater.Operations = slices.Clone(s.Heater.Operations)
	if s.LastError != nil {
		msg := *s.LastError
		s.LastError = &msg
	}
	return s
}
