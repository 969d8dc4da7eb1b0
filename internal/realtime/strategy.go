package realtime

import (
	"context"
	"time"

	"github.com/chirpsocial/securedm-go/internal/api"
)

// Event is an inbound envelope pushed from the live channel.
type Event struct {
	// RoomID is the room the envelope belongs to.
	RoomID string
	// Envelope is the full encrypted envelope. The live channel carries
	// ciphertext only; decryption happens in the session layer.
	Envelope *api.Envelope
}

// EventHandler is invoked for each inbound envelope. The handler receives
// the strategy's context; returning an error marks the event as failed but
// does not stop delivery of subsequent events.
type EventHandler func(ctx context.Context, event *Event) error

// Strategy defines the interface for live-channel delivery mechanisms.
//
// The typical lifecycle is:
//  1. Create a strategy with NewXxxStrategy(cfg)
//  2. Call Start(ctx, handler) to begin receiving events
//  3. Call JoinRoom/LeaveRoom as rooms open and close
//  4. Call Stop() when done to release resources
type Strategy interface {
	// Start begins listening for envelopes. Start returns immediately;
	// event delivery is asynchronous.
	Start(ctx context.Context, handler EventHandler) error

	// Stop gracefully shuts down the strategy. After Stop returns, no
	// more events are delivered. Stop is idempotent.
	Stop() error

	// JoinRoom subscribes the client to a room's broadcast group.
	// Idempotent; joining an already-joined room is a no-op.
	JoinRoom(roomID string) error

	// LeaveRoom unsubscribes from a room. In-flight events for the room
	// may still be delivered.
	LeaveRoom(roomID string) error

	// Publish broadcasts an envelope to the other members of a room.
	// Fire-and-forget: durability is the outbox write's concern, and a
	// publish failure never invalidates an already-persisted envelope.
	Publish(ctx context.Context, roomID string, env *api.Envelope) error

	// Name returns the strategy name for logging and debugging.
	Name() string

	// OnReconnect sets a callback invoked after each successful
	// connection or reconnection, used to resync envelopes that may have
	// arrived during the gap. No-op for polling.
	OnReconnect(fn func(ctx context.Context))
}

// Config holds configuration shared by all delivery strategies.
type Config struct {
	// APIClient is used for polling endpoints and for deriving the
	// WebSocket URL and credentials.
	APIClient *api.Client

	// PollingInitialInterval is the starting interval between polls.
	PollingInitialInterval time.Duration

	// PollingMaxBackoff is the maximum interval between polls.
	PollingMaxBackoff time.Duration

	// PollingBackoffMultiplier is the factor by which the interval
	// increases after each poll with no changes.
	PollingBackoffMultiplier float64

	// PollingJitterFactor is the maximum random jitter added to poll
	// intervals, as a fraction of the interval.
	PollingJitterFactor float64
}

// Default configuration values.
const (
	DefaultPollingInitialInterval   = 2 * time.Second
	DefaultPollingMaxBackoff        = 30 * time.Second
	DefaultPollingBackoffMultiplier = 1.5
	DefaultPollingJitterFactor      = 0.3
)
