package securedm

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/chirpsocial/securedm-go/internal/api"
	"github.com/chirpsocial/securedm-go/internal/crypto"
)

// Send encrypts text and delivers it to the room. The envelope is durably
// persisted first; only then is it published on the live channel. A publish
// failure is reported through the transport error handler and does not fail
// the send: the peer recovers the message from history or the next sync.
func (r *Room) Send(ctx context.Context, text string) (*Message, error) {
	c := r.client
	if err := c.checkClosed(); err != nil {
		return nil, err
	}

	c.mu.RLock()
	identity := c.identity
	c.mu.RUnlock()
	if identity == nil {
		return nil, ErrNoIdentity
	}

	if max := c.serverInfo.MaxMessageBytes; max > 0 && len(text) > max {
		return nil, &ValidationError{Errors: []string{
			fmt.Sprintf("message is %d bytes, server maximum is %d", len(text), max),
		}}
	}

	envelope, err := crypto.EncryptForTransit(text, identity.PublicKey(), r.peer.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("encrypt message: %w", err)
	}

	wire := &api.Envelope{
		ID:              uuid.NewString(),
		ChatRoomID:      r.id,
		SenderID:        c.self.ID,
		KeyForSender:    envelope.KeyForSender,
		KeyForRecipient: envelope.KeyForRecipient,
		Ciphertext:      envelope.Ciphertext,
		IV:              envelope.IV,
	}

	// Durable write first. If this fails the message was not sent, period.
	stored, err := c.apiClient.AppendEnvelope(ctx, r.id, wire)
	if err != nil {
		return nil, &SendError{RoomID: r.id, Err: wrapError(err)}
	}

	// Mark our own envelope as seen so the push echo and reconnection sync
	// don't redeliver it.
	c.mu.Lock()
	if state := c.syncStates[r.id]; state != nil {
		state.seenEnvelopes[stored.ID] = struct{}{}
	}
	c.mu.Unlock()

	// Best-effort live publish. The envelope ID makes redelivery harmless.
	if err := c.strategy.Publish(ctx, r.id, stored); err != nil {
		c.reportTransportError(err)
	}

	msg := &Message{
		ID:       stored.ID,
		RoomID:   r.id,
		SenderID: c.self.ID,
		Text:     text,
		SentAt:   stored.Timestamp,
		IsRead:   stored.IsRead,
	}

	c.subs.notify(r.id, msg)
	return msg, nil
}

// History fetches and decrypts the room's message history, ascending by
// timestamp. Envelopes that fail receipt verification or decryption are
// skipped and reported through the sync error handler; one bad envelope
// never hides the rest of the conversation.
func (r *Room) History(ctx context.Context) ([]*Message, error) {
	c := r.client
	if err := c.checkClosed(); err != nil {
		return nil, err
	}

	envelopes, err := c.apiClient.GetHistory(ctx, r.id)
	if err != nil {
		return nil, wrapError(err)
	}

	messages := make([]*Message, 0, len(envelopes))
	for i := range envelopes {
		msg, err := c.decryptEnvelope(r, &envelopes[i])
		if err != nil {
			c.reportSyncError(err)
			continue
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

// MarkRead reports that the recipient has seen a message. No-op when the
// caller is the message's sender or the message is already read; otherwise
// the read flag is flipped on the server exactly once. On failure the
// message stays unread and the next visibility trigger retries.
func (r *Room) MarkRead(ctx context.Context, msg *Message) error {
	return r.reads.MarkVisible(ctx, msg)
}
