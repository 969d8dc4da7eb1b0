package securedm

import (
	"sync"
)

// Subscription represents an active subscription that can be unsubscribed.
type Subscription interface {
	// Unsubscribe stops the subscription and releases resources.
	Unsubscribe()
}

// MessageCallback is called when a new message arrives.
type MessageCallback func(room *Room, msg *Message)

// RoomMonitor monitors multiple rooms for new messages.
// It provides an event-emitter like pattern for receiving message
// notifications across conversations, e.g. for an unread badge or a
// conversation list view.
type RoomMonitor struct {
	client        *Client
	rooms         []*Room
	callbacks     []MessageCallback
	subscriptions []Subscription
	mu            sync.RWMutex
	started       bool
	unsubscribers map[string]func() // roomID -> unsubscribe function
}

// internalSubscription implements the Subscription interface.
type internalSubscription struct {
	cancel func()
}

func (s *internalSubscription) Unsubscribe() {
	if s.cancel != nil {
		s.cancel()
	}
}

// MonitorRooms creates a monitor over the given rooms. Callbacks are
// registered with OnMessage.
func (c *Client) MonitorRooms(rooms ...*Room) *RoomMonitor {
	return &RoomMonitor{
		client:        c,
		rooms:         rooms,
		callbacks:     make([]MessageCallback, 0),
		unsubscribers: make(map[string]func()),
	}
}

// OnMessage registers a callback to be called when a new message arrives in
// any monitored room. Returns a Subscription that can be used to
// unsubscribe this specific callback.
func (m *RoomMonitor) OnMessage(callback MessageCallback) Subscription {
	m.mu.Lock()
	m.callbacks = append(m.callbacks, callback)
	callbackIndex := len(m.callbacks) - 1
	m.mu.Unlock()

	// Start monitoring if not already started
	m.startMonitoring()

	sub := &internalSubscription{
		cancel: func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			// Mark this callback as nil (don't remove to preserve indices)
			if callbackIndex < len(m.callbacks) {
				m.callbacks[callbackIndex] = nil
			}
		},
	}

	m.mu.Lock()
	m.subscriptions = append(m.subscriptions, sub)
	m.mu.Unlock()

	return sub
}

// Unsubscribe stops monitoring all rooms and releases all resources.
func (m *RoomMonitor) Unsubscribe() {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Unregister callbacks from the client's event system
	for _, unsub := range m.unsubscribers {
		unsub()
	}

	// Clear all callbacks and subscriptions
	m.callbacks = nil
	m.subscriptions = nil
	m.unsubscribers = make(map[string]func())
	m.started = false
}

// startMonitoring begins the monitoring process if not already started.
func (m *RoomMonitor) startMonitoring() {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return
	}
	m.started = true
	m.mu.Unlock()

	// Register a callback with the client's event system for each room
	for _, room := range m.rooms {
		roomRef := room // capture for closure
		unsub := m.client.registerMessageCallback(room.id, func(msg *Message) {
			m.emitMessage(roomRef, msg)
		})
		m.mu.Lock()
		m.unsubscribers[room.id] = unsub
		m.mu.Unlock()
	}
}

// emitMessage calls all registered callbacks with the new message.
func (m *RoomMonitor) emitMessage(room *Room, msg *Message) {
	m.mu.RLock()
	callbacks := make([]MessageCallback, len(m.callbacks))
	copy(callbacks, m.callbacks)
	m.mu.RUnlock()

	// Low volume expected; spawning per-message is fine.
	for _, callback := range callbacks {
		if callback != nil {
			go callback(room, msg)
		}
	}
}
