package securedm

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/chirpsocial/securedm-go/internal/api"
	"github.com/chirpsocial/securedm-go/internal/crypto"
	"github.com/chirpsocial/securedm-go/internal/realtime"
)

// syncState tracks the synchronization state for a room to enable
// efficient reconnection sync using the /sync endpoint.
type syncState struct {
	seenEnvelopes map[string]struct{} // Set of envelope IDs already delivered to subscribers
}

// computeMessagesHash computes the hash of seen envelopes to compare with the
// server's sync hash. Algorithm: sort IDs alphabetically, join with comma,
// SHA256, base64url encode (no padding).
func (s *syncState) computeMessagesHash() string {
	if len(s.seenEnvelopes) == 0 {
		// Empty set has a specific hash
		hash := sha256.Sum256([]byte(""))
		return base64.RawURLEncoding.EncodeToString(hash[:])
	}

	ids := make([]string, 0, len(s.seenEnvelopes))
	for id := range s.seenEnvelopes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	joined := strings.Join(ids, ",")
	hash := sha256.Sum256([]byte(joined))
	return base64.RawURLEncoding.EncodeToString(hash[:])
}

// ServerInfo contains server configuration.
type ServerInfo struct {
	// Algs is the canonical algorithm-suite string.
	Algs string
	// MaxMessageBytes is the largest plaintext the server accepts once
	// encrypted, or 0 for no limit.
	MaxMessageBytes int
	// ReceiptsEnabled reports whether the server signs storage receipts.
	ReceiptsEnabled bool
}

// Client is the main messaging client. It owns the API boundary, the live
// delivery channel, and the loaded identity. A Client must be constructed
// with New and released with Close; there is no package-level instance.
type Client struct {
	apiClient  *api.Client
	strategy   realtime.Strategy
	serverInfo *api.ServerInfo
	receiptPk  []byte // pinned ML-DSA-65 receipt key, nil if receipts disabled
	self       api.UserInfo
	identity   *Identity
	rooms      map[string]*Room      // keyed by room ID
	syncStates map[string]*syncState // keyed by room ID for sync optimization
	mu         sync.RWMutex
	closed     bool

	// Subscription manager for message notifications
	subs *subscriptionManager

	strategyCtx    context.Context
	strategyCancel context.CancelFunc

	// Error callbacks for background failures
	onSyncError      func(error)
	onTransportError func(error)
}

// buildAPIClient creates and configures an API client from the given config.
func buildAPIClient(token string, cfg *clientConfig) (*api.Client, error) {
	apiOpts := []api.Option{
		api.WithBaseURL(cfg.baseURL),
	}
	if cfg.timeout > 0 {
		apiOpts = append(apiOpts, api.WithTimeout(cfg.timeout))
	}
	if cfg.retries > 0 {
		apiOpts = append(apiOpts, api.WithRetries(cfg.retries))
	}
	if len(cfg.retryOn) > 0 {
		apiOpts = append(apiOpts, api.WithRetryOn(cfg.retryOn))
	}

	apiClient, err := api.New(token, apiOpts...)
	if err != nil {
		return nil, err
	}

	if cfg.httpClient != nil {
		apiClient.SetHTTPClient(cfg.httpClient)
	}

	return apiClient, nil
}

// createDeliveryStrategy creates a delivery strategy based on the config.
func createDeliveryStrategy(cfg *clientConfig, apiClient *api.Client) realtime.Strategy {
	realtimeCfg := realtime.Config{
		APIClient:                apiClient,
		PollingInitialInterval:   cfg.pollingInitialInterval,
		PollingMaxBackoff:        cfg.pollingMaxBackoff,
		PollingBackoffMultiplier: cfg.pollingBackoffMultiplier,
		PollingJitterFactor:      cfg.pollingJitterFactor,
	}
	switch cfg.deliveryStrategy {
	case StrategyPolling:
		return realtime.NewPollingStrategy(realtimeCfg)
	default:
		return realtime.NewWebSocketStrategy(realtimeCfg)
	}
}

// New creates a new messaging client authenticated by the given session token.
func New(token string, opts ...Option) (*Client, error) {
	if token == "" {
		return nil, ErrMissingToken
	}

	cfg := &clientConfig{
		baseURL:          defaultBaseURL,
		deliveryStrategy: StrategyWebSocket,
		timeout:          defaultWaitTimeout,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	apiClient, err := buildAPIClient(token, cfg)
	if err != nil {
		return nil, err
	}

	// Validate the session token and resolve the authenticated user
	ctx, cancel := context.WithTimeout(context.Background(), cfg.timeout)
	defer cancel()

	self, err := apiClient.CheckToken(ctx)
	if err != nil {
		return nil, wrapError(err)
	}

	// Fetch server info and pin the receipt key
	serverInfo, err := apiClient.GetServerInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch server info: %w", wrapError(err))
	}

	var receiptPk []byte
	if serverInfo.ReceiptPk != "" {
		if !crypto.ValidateReceiptPublicKey(serverInfo.ReceiptPk) {
			return nil, fmt.Errorf("%w: server receipt key", ErrMalformedKey)
		}
		receiptPk, _ = crypto.FromBase64(serverInfo.ReceiptPk)
	}

	strategy := createDeliveryStrategy(cfg, apiClient)

	strategyCtx, strategyCancel := context.WithCancel(context.Background())

	c := &Client{
		apiClient:        apiClient,
		strategy:         strategy,
		serverInfo:       serverInfo,
		receiptPk:        receiptPk,
		self:             *self,
		rooms:            make(map[string]*Room),
		syncStates:       make(map[string]*syncState),
		subs:             newSubscriptionManager(),
		strategyCtx:      strategyCtx,
		strategyCancel:   strategyCancel,
		onSyncError:      cfg.onSyncError,
		onTransportError: cfg.onTransportError,
	}

	// Start the strategy with an event handler
	if err := strategy.Start(strategyCtx, c.handleTransportEvent); err != nil {
		strategyCancel()
		return nil, fmt.Errorf("start delivery strategy: %w", err)
	}

	// Register reconnect handler to sync rooms after reconnection.
	// This catches any messages that arrived during the reconnection window.
	strategy.OnReconnect(c.syncAllRooms)

	return c, nil
}

// checkClosed returns ErrClientClosed if the client has been closed.
func (c *Client) checkClosed() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrClientClosed
	}
	return nil
}

// UserID returns the authenticated user's ID.
func (c *Client) UserID() string {
	return c.self.ID
}

// Username returns the authenticated user's username.
func (c *Client) Username() string {
	return c.self.Username
}

// ServerInfo returns the server configuration.
func (c *Client) ServerInfo() *ServerInfo {
	return &ServerInfo{
		Algs:            c.serverInfo.Algs,
		MaxMessageBytes: c.serverInfo.MaxMessageBytes,
		ReceiptsEnabled: len(c.receiptPk) > 0,
	}
}

// CheckToken validates the session token.
// Returns nil if the token is valid, otherwise returns an error.
func (c *Client) CheckToken(ctx context.Context) error {
	if err := c.checkClosed(); err != nil {
		return err
	}
	_, err := c.apiClient.CheckToken(ctx)
	return wrapError(err)
}

// LookupUser resolves a peer's public profile and key material by user ID.
// An unknown ID yields ErrUserNotFound.
func (c *Client) LookupUser(ctx context.Context, userID string) (*Participant, error) {
	if err := c.checkClosed(); err != nil {
		return nil, err
	}
	keys, err := c.apiClient.GetUserKeys(ctx, userID)
	if err != nil {
		return nil, wrapError(err)
	}
	return &Participant{
		ID:        keys.UserID,
		Username:  keys.Username,
		PublicKey: keys.PublicKey,
	}, nil
}

// GetRoom returns an already-open room by ID.
func (c *Client) GetRoom(roomID string) (*Room, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	room, exists := c.rooms[roomID]
	return room, exists
}

// Rooms returns all rooms opened by this client.
func (c *Client) Rooms() []*Room {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make([]*Room, 0, len(c.rooms))
	for _, room := range c.rooms {
		result = append(result, room)
	}
	return result
}

// RoomEvent represents a message arriving in a specific room.
type RoomEvent struct {
	Room    *Room
	Message *Message
}

// WatchRooms returns a channel that receives events from multiple rooms.
// The channel is not closed when the context is cancelled; use a select
// on ctx.Done() to detect cancellation.
//
// Example:
//
//	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
//	defer cancel()
//
//	ch := client.WatchRooms(ctx, room1, room2)
//	for {
//	    select {
//	    case <-ctx.Done():
//	        return
//	    case event := <-ch:
//	        fmt.Printf("Message in %s: %s\n", event.Room.ID(), event.Message.Text)
//	    }
//	}
func (c *Client) WatchRooms(ctx context.Context, rooms ...*Room) <-chan *RoomEvent {
	ch := make(chan *RoomEvent, 16)

	if len(rooms) == 0 {
		close(ch)
		return ch
	}

	// Track unsubscribe functions
	unsubscribes := make([]func(), 0, len(rooms))

	for _, room := range rooms {
		room := room
		unsub := c.subs.subscribe(room.id, func(msg *Message) {
			// Spawn goroutine to guarantee delivery without blocking event source
			go func(m *Message) { ch <- &RoomEvent{Room: room, Message: m} }(msg)
		})
		unsubscribes = append(unsubscribes, unsub)
	}

	// Cleanup goroutine: unsubscribe when context is cancelled.
	// We intentionally do not close(ch) to avoid a race where an
	// in-flight callback tries to send after close.
	go func() {
		<-ctx.Done()
		for _, unsub := range unsubscribes {
			unsub()
		}
	}()

	return ch
}

// WatchRoomsFunc calls fn for each event from multiple rooms until the
// context is cancelled. This is a convenience wrapper around WatchRooms for
// simpler use cases.
func (c *Client) WatchRoomsFunc(ctx context.Context, fn func(*RoomEvent), rooms ...*Room) {
	events := c.WatchRooms(ctx, rooms...)
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-events:
			if event != nil {
				fn(event)
			}
		}
	}
}

// registerMessageCallback registers a callback for a room's messages and
// returns its unsubscribe function. Used by RoomMonitor.
func (c *Client) registerMessageCallback(roomID string, fn func(*Message)) func() {
	return c.subs.subscribe(roomID, fn)
}

// syncAllRooms fetches envelopes for all open rooms and notifies watchers.
// This is called after transport reconnection to catch any messages that
// arrived during the reconnection window.
func (c *Client) syncAllRooms(ctx context.Context) {
	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		return
	}
	// Copy room list to avoid holding lock during API calls
	rooms := make([]*Room, 0, len(c.rooms))
	for _, room := range c.rooms {
		rooms = append(rooms, room)
	}
	c.mu.RUnlock()

	for _, room := range rooms {
		c.syncRoom(ctx, room)
	}
}

// syncRoom fetches envelopes for a single room and notifies subscribers for
// new messages. It uses the sync endpoint to check for changes before
// fetching, and only decrypts envelopes that haven't been seen before. It
// also handles deletions by removing IDs from seenEnvelopes that are no
// longer on the server.
func (c *Client) syncRoom(ctx context.Context, room *Room) {
	// Get sync state for this room and compute current hash
	c.mu.RLock()
	state := c.syncStates[room.id]
	var localHash string
	if state != nil {
		localHash = state.computeMessagesHash()
	}
	c.mu.RUnlock()

	if state == nil {
		// Room was closed or not registered, skip
		return
	}

	// Check sync status first (lightweight call)
	status, err := room.SyncStatus(ctx)
	if err != nil {
		c.reportSyncError(err)
		return
	}

	// If hash unchanged, no changes - skip fetching
	if status.MessagesHash == localHash {
		return
	}

	// Hash changed - fetch history to find changes
	envelopes, err := c.apiClient.GetHistory(ctx, room.id)
	if err != nil {
		c.reportSyncError(wrapError(err))
		return
	}

	// Build set of server envelope IDs
	serverIDs := make(map[string]struct{}, len(envelopes))
	for i := range envelopes {
		serverIDs[envelopes[i].ID] = struct{}{}
	}

	// Find new envelopes and prune deleted ones
	c.mu.Lock()
	state = c.syncStates[room.id]
	if state == nil {
		c.mu.Unlock()
		return
	}

	var fresh []*api.Envelope
	for i := range envelopes {
		env := &envelopes[i]
		if _, seen := state.seenEnvelopes[env.ID]; !seen {
			fresh = append(fresh, env)
		}
	}

	// Remove envelopes that are in seenEnvelopes but no longer on the server
	for id := range state.seenEnvelopes {
		if _, exists := serverIDs[id]; !exists {
			delete(state.seenEnvelopes, id)
		}
	}
	c.mu.Unlock()

	// Decrypt and deliver only the new envelopes, in history order
	for _, env := range fresh {
		msg, err := c.decryptEnvelope(room, env)
		if err != nil {
			c.reportSyncError(err)
			continue
		}

		// Mark as seen and notify
		c.mu.Lock()
		state = c.syncStates[room.id]
		if state == nil {
			c.mu.Unlock()
			return
		}
		state.seenEnvelopes[env.ID] = struct{}{}
		c.mu.Unlock()

		c.subs.notify(room.id, msg)
	}
}

// handleTransportEvent processes incoming pushes from the delivery strategy.
func (c *Client) handleTransportEvent(ctx context.Context, event *realtime.Event) error {
	if event == nil || event.Envelope == nil {
		return nil
	}

	// Find the room using O(1) lookup
	c.mu.RLock()
	room := c.rooms[event.RoomID]
	state := c.syncStates[event.RoomID]
	c.mu.RUnlock()

	if room == nil || state == nil {
		return nil
	}

	env := event.Envelope

	// Suppress duplicates: the same envelope can arrive both as a push and
	// through a reconnection sync.
	c.mu.Lock()
	if _, seen := state.seenEnvelopes[env.ID]; seen {
		c.mu.Unlock()
		return nil
	}
	state.seenEnvelopes[env.ID] = struct{}{}
	c.mu.Unlock()

	msg, err := c.decryptEnvelope(room, env)
	if err != nil {
		c.reportSyncError(err)
		return err
	}

	c.subs.notify(room.id, msg)
	return nil
}

// decryptEnvelope verifies an envelope's storage receipt (when the server
// signs receipts) and decrypts it with the loaded identity, resolving the
// caller's role from the sender ID.
func (c *Client) decryptEnvelope(room *Room, env *api.Envelope) (*Message, error) {
	c.mu.RLock()
	identity := c.identity
	receiptPk := c.receiptPk
	c.mu.RUnlock()

	if identity == nil {
		return nil, ErrNoIdentity
	}

	if len(receiptPk) > 0 && env.Receipt != "" {
		info := crypto.ReceiptInfo{
			RoomID:          env.ChatRoomID,
			EnvelopeID:      env.ID,
			SenderID:        env.SenderID,
			KeyForSender:    env.KeyForSender,
			KeyForRecipient: env.KeyForRecipient,
			Ciphertext:      env.Ciphertext,
			IV:              env.IV,
			Timestamp:       env.Timestamp,
		}
		if err := crypto.VerifyReceipt(receiptPk, info, env.Receipt); err != nil {
			return nil, &ReceiptError{EnvelopeID: env.ID, Err: err}
		}
	}

	role := room.roleFor(env.SenderID)

	text, err := crypto.DecryptEnvelope(&crypto.Envelope{
		KeyForSender:    env.KeyForSender,
		KeyForRecipient: env.KeyForRecipient,
		Ciphertext:      env.Ciphertext,
		IV:              env.IV,
	}, identity.keyPair.PrivateKey, role)
	if err != nil {
		return nil, &DecryptionError{EnvelopeID: env.ID, Err: err}
	}

	return &Message{
		ID:       env.ID,
		RoomID:   env.ChatRoomID,
		SenderID: env.SenderID,
		Text:     text,
		SentAt:   env.Timestamp,
		IsRead:   env.IsRead,
	}, nil
}

// reportSyncError forwards a background failure to the sync error handler.
func (c *Client) reportSyncError(err error) {
	if c.onSyncError != nil {
		c.onSyncError(err)
	}
}

// reportTransportError forwards a live-channel failure to the transport
// error handler.
func (c *Client) reportTransportError(err error) {
	if c.onTransportError != nil {
		c.onTransportError(&TransportError{Strategy: c.strategy.Name(), Err: err})
	}
}

// Close closes the client and releases resources.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}

	c.closed = true

	// Cancel strategy context
	if c.strategyCancel != nil {
		c.strategyCancel()
	}

	// Stop delivery strategy
	if c.strategy != nil {
		if err := c.strategy.Stop(); err != nil {
			return err
		}
	}

	// Clear rooms and subscriptions
	c.rooms = make(map[string]*Room)
	c.syncStates = make(map[string]*syncState)
	c.subs.clear()

	return nil
}
