package securedm

import (
	"context"
	"sync"
)

// ReceiptTracker drives read receipts for one room. Read state moves in one
// direction only: unread to read, flipped on the server the first time the
// recipient actually sees the message.
type ReceiptTracker struct {
	room *Room

	mu       sync.Mutex
	inFlight map[string]struct{} // envelope IDs with a read call in progress
}

// newReceiptTracker creates a tracker bound to a room.
func newReceiptTracker(room *Room) *ReceiptTracker {
	return &ReceiptTracker{
		room:     room,
		inFlight: make(map[string]struct{}),
	}
}

// MarkVisible reports that msg became visible to the viewer.
//
// Sender's own messages and already-read messages are no-ops. Otherwise the
// server is called at most once per visibility trigger; concurrent triggers
// for the same message coalesce into a single call. On success the message
// is flipped to read locally. On failure nothing changes, so the next
// visibility trigger retries.
func (t *ReceiptTracker) MarkVisible(ctx context.Context, msg *Message) error {
	c := t.room.client
	if err := c.checkClosed(); err != nil {
		return err
	}
	if msg == nil {
		return nil
	}
	if msg.SenderID == c.self.ID {
		return nil
	}
	if msg.IsRead {
		return nil
	}

	t.mu.Lock()
	if _, busy := t.inFlight[msg.ID]; busy {
		t.mu.Unlock()
		return nil
	}
	t.inFlight[msg.ID] = struct{}{}
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		delete(t.inFlight, msg.ID)
		t.mu.Unlock()
	}()

	updated, err := c.apiClient.MarkEnvelopeRead(ctx, t.room.id, msg.ID)
	if err != nil {
		return wrapError(err)
	}

	msg.IsRead = updated.IsRead
	return nil
}
