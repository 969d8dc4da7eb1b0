package api

import (
	"context"
	"fmt"
	"net/url"
)

// CheckToken validates the session token and returns the authenticated user.
func (c *Client) CheckToken(ctx context.Context) (*UserInfo, error) {
	var result UserInfo
	if err := c.Do(ctx, "GET", "/api/check-token", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetServerInfo retrieves server configuration, including the receipt
// public key pinned for storage-receipt verification.
func (c *Client) GetServerInfo(ctx context.Context) (*ServerInfo, error) {
	var result ServerInfo
	if err := c.Do(ctx, "GET", "/api/server-info", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// RegisterKeys uploads the signup key material: the public key plus the
// wrapped private-key backup blob.
func (c *Client) RegisterKeys(ctx context.Context, req *RegisterKeysRequest) error {
	return c.Do(ctx, "POST", "/api/keys", req, nil)
}

// GetOwnKeys fetches the caller's stored key material (the backup blob).
func (c *Client) GetOwnKeys(ctx context.Context) (*StoredKeys, error) {
	var result StoredKeys
	if err := c.Do(ctx, "GET", "/api/keys", nil, &result); err != nil {
		return nil, WithResourceType(err, ResourceUser)
	}
	return &result, nil
}

// GetUserKeys fetches a peer's public key material.
func (c *Client) GetUserKeys(ctx context.Context, userID string) (*UserKeys, error) {
	path := fmt.Sprintf("/api/users/%s/keys", url.PathEscape(userID))
	var result UserKeys
	if err := c.Do(ctx, "GET", path, nil, &result); err != nil {
		return nil, WithResourceType(err, ResourceUser)
	}
	return &result, nil
}

// CreateOrGetRoom returns the room pairing the caller with peerID,
// creating it on first contact. The lookup is idempotent: the same pair
// always resolves to the same room regardless of who asks.
func (c *Client) CreateOrGetRoom(ctx context.Context, peerID string) (*Room, error) {
	var result Room
	if err := c.Do(ctx, "POST", "/api/rooms", &CreateRoomRequest{PeerID: peerID}, &result); err != nil {
		return nil, WithResourceType(err, ResourceUser)
	}
	return &result, nil
}

// ListRooms returns the caller's rooms sorted by most recent activity.
func (c *Client) ListRooms(ctx context.Context) ([]Room, error) {
	var result []Room
	if err := c.Do(ctx, "GET", "/api/rooms", nil, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// GetHistory fetches a room's envelope history, ascending by timestamp.
func (c *Client) GetHistory(ctx context.Context, roomID string) ([]Envelope, error) {
	path := fmt.Sprintf("/api/rooms/%s/messages", url.PathEscape(roomID))
	var result []Envelope
	if err := c.Do(ctx, "GET", path, nil, &result); err != nil {
		return nil, WithResourceType(err, ResourceRoom)
	}
	return result, nil
}

// GetRoomSync returns a room's sync status for cheap change detection.
func (c *Client) GetRoomSync(ctx context.Context, roomID string) (*SyncStatus, error) {
	path := fmt.Sprintf("/api/rooms/%s/sync", url.PathEscape(roomID))
	var result SyncStatus
	if err := c.Do(ctx, "GET", path, nil, &result); err != nil {
		return nil, WithResourceType(err, ResourceRoom)
	}
	return &result, nil
}

// AppendEnvelope durably persists an envelope in a room. This is the first
// leg of the outbox: the live publish happens only after this succeeds.
// The response carries the server-assigned timestamp and storage receipt.
func (c *Client) AppendEnvelope(ctx context.Context, roomID string, env *Envelope) (*Envelope, error) {
	path := fmt.Sprintf("/api/rooms/%s/messages", url.PathEscape(roomID))
	var result Envelope
	if err := c.Do(ctx, "POST", path, env, &result); err != nil {
		return nil, WithResourceType(err, ResourceRoom)
	}
	return &result, nil
}

// MarkEnvelopeRead flips isRead on a single envelope. The server treats
// duplicate calls as no-ops and returns the envelope's current state.
func (c *Client) MarkEnvelopeRead(ctx context.Context, roomID, envelopeID string) (*Envelope, error) {
	path := fmt.Sprintf("/api/rooms/%s/messages/%s/read",
		url.PathEscape(roomID), url.PathEscape(envelopeID))
	var result Envelope
	if err := c.Do(ctx, "PATCH", path, nil, &result); err != nil {
		return nil, WithResourceType(err, ResourceMessage)
	}
	return &result, nil
}
