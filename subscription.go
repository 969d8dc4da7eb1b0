package securedm

import (
	"strconv"
	"sync"
	"sync/atomic"
)

// subscription represents an active message subscription.
type subscription struct {
	id       string
	roomID   string
	callback func(*Message)
	active   atomic.Bool
}

// subscriptionManager handles message subscriptions with safe lifecycle
// management. It ensures callbacks are never invoked after unsubscription
// completes.
type subscriptionManager struct {
	mu     sync.RWMutex
	subs   map[string]map[string]*subscription // roomID -> subID -> subscription
	nextID atomic.Uint64
}

// newSubscriptionManager creates a new subscription manager.
func newSubscriptionManager() *subscriptionManager {
	return &subscriptionManager{
		subs: make(map[string]map[string]*subscription),
	}
}

// subscribe registers a callback for messages arriving in the given room.
// The callback will be invoked synchronously when messages arrive.
// Returns an unsubscribe function that must be called to clean up.
func (m *subscriptionManager) subscribe(roomID string, callback func(*Message)) func() {
	id := strconv.FormatUint(m.nextID.Add(1), 10)

	sub := &subscription{
		id:       id,
		roomID:   roomID,
		callback: callback,
	}
	sub.active.Store(true)

	m.mu.Lock()
	if m.subs[roomID] == nil {
		m.subs[roomID] = make(map[string]*subscription)
	}
	m.subs[roomID][id] = sub
	m.mu.Unlock()

	return func() {
		m.unsubscribe(roomID, id)
	}
}

// unsubscribe removes a subscription. Safe to call multiple times.
func (m *subscriptionManager) unsubscribe(roomID, subID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if roomSubs, ok := m.subs[roomID]; ok {
		if sub, ok := roomSubs[subID]; ok {
			sub.active.Store(false) // Mark inactive before removing
			delete(roomSubs, subID)
			if len(roomSubs) == 0 {
				delete(m.subs, roomID)
			}
		}
	}
}

// notify calls all registered callbacks for the given room.
// Callbacks are invoked synchronously after releasing the read lock.
// The active flag is checked before invoking to prevent calls after unsubscribe.
func (m *subscriptionManager) notify(roomID string, msg *Message) {
	m.mu.RLock()
	roomSubs := m.subs[roomID]
	if len(roomSubs) == 0 {
		m.mu.RUnlock()
		return
	}

	// Copy subscriptions to avoid holding lock during callbacks
	subs := make([]*subscription, 0, len(roomSubs))
	for _, sub := range roomSubs {
		subs = append(subs, sub)
	}
	m.mu.RUnlock()

	for _, sub := range subs {
		if sub.active.Load() {
			sub.callback(msg)
		}
	}
}

// clear removes all subscriptions. Called during Client.Close().
func (m *subscriptionManager) clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, roomSubs := range m.subs {
		for _, sub := range roomSubs {
			sub.active.Store(false)
		}
	}
	m.subs = make(map[string]map[string]*subscription)
}
