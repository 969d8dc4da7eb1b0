// Package realtime provides delivery strategies for the live messaging
// channel. A strategy joins the client into per-room broadcast groups,
// publishes outbound envelopes, and surfaces inbound pushes to a handler.
//
// # Delivery Strategies
//
//   - [WebSocketStrategy]: a persistent WebSocket connection carrying join
//     and message frames. Lowest latency; reconnects with exponential
//     backoff and re-joins all active rooms on each reconnection.
//
//   - [PollingStrategy]: periodically polls each room's sync status and
//     fetches history when the server-side hash changes. Uses adaptive
//     backoff with jitter. Publishing is a no-op under polling: the durable
//     outbox write has already happened, and peers discover the envelope
//     through their own polls.
//
// Delivery is at-least-once and best-effort; duplicate suppression by
// envelope ID is the caller's responsibility. All strategy types are safe
// for concurrent use.
package realtime
