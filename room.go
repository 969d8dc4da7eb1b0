package securedm

import (
	"context"
	"fmt"
	"time"
)

// Room is an open 1:1 conversation between the authenticated user and one
// peer. Rooms are created lazily: OpenRoom with the same peer always
// resolves to the same room, regardless of which side asks first.
type Room struct {
	id     string
	peer   Participant
	client *Client
	reads  *ReceiptTracker
}

// ID returns the room ID.
func (r *Room) ID() string {
	return r.id
}

// Peer returns the other participant's public profile.
func (r *Room) Peer() Participant {
	return r.peer
}

// SyncStatus retrieves the synchronization status of the room.
// This includes the number of envelopes and a hash of the envelope list,
// which can be used to efficiently check for changes.
func (r *Room) SyncStatus(ctx context.Context) (*SyncStatus, error) {
	status, err := r.client.apiClient.GetRoomSync(ctx, r.id)
	if err != nil {
		return nil, wrapError(err)
	}
	return status, nil
}

// roleFor resolves which wrapped key copy unlocks an envelope authored by
// senderID, from this client's point of view.
func (r *Room) roleFor(senderID string) Role {
	if senderID == r.client.self.ID {
		return RoleSender
	}
	return RoleRecipient
}

// Leave closes the room locally: the live subscription is dropped and the
// room is forgotten. Server-side history is unaffected.
func (r *Room) Leave() error {
	c := r.client
	c.mu.Lock()
	delete(c.rooms, r.id)
	delete(c.syncStates, r.id)
	c.mu.Unlock()

	return c.strategy.LeaveRoom(r.id)
}

// RoomInfo is a room summary as listed by the server.
type RoomInfo struct {
	ID           string
	Peer         Participant
	LastActivity time.Time
	UnreadCount  int
}

// OpenRoom opens the conversation with the given peer, creating the room on
// first contact. Opening joins the room's live broadcast group, so messages
// published by the peer are delivered to watchers and sessions.
//
// An identity must be loaded first; room messages cannot be read or written
// without key material.
func (c *Client) OpenRoom(ctx context.Context, peerID string) (*Room, error) {
	if err := c.checkClosed(); err != nil {
		return nil, err
	}

	c.mu.RLock()
	identity := c.identity
	c.mu.RUnlock()
	if identity == nil {
		return nil, ErrNoIdentity
	}

	apiRoom, err := c.apiClient.CreateOrGetRoom(ctx, peerID)
	if err != nil {
		return nil, wrapError(err)
	}

	var peer Participant
	found := false
	for _, p := range apiRoom.Participants {
		if p.ID != c.self.ID {
			peer = p
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("room %s has no peer participant", apiRoom.ID)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClientClosed
	}
	if existing, ok := c.rooms[apiRoom.ID]; ok {
		c.mu.Unlock()
		return existing, nil
	}

	room := &Room{
		id:     apiRoom.ID,
		peer:   peer,
		client: c,
	}
	room.reads = newReceiptTracker(room)
	c.rooms[room.id] = room
	c.syncStates[room.id] = &syncState{
		seenEnvelopes: make(map[string]struct{}),
	}
	c.mu.Unlock()

	if err := c.strategy.JoinRoom(room.id); err != nil {
		c.reportTransportError(err)
	}

	return room, nil
}

// ListRooms returns the caller's conversations, most recent activity first.
// Listing does not open rooms; use OpenRoom with the peer ID to join one.
func (c *Client) ListRooms(ctx context.Context) ([]RoomInfo, error) {
	if err := c.checkClosed(); err != nil {
		return nil, err
	}

	apiRooms, err := c.apiClient.ListRooms(ctx)
	if err != nil {
		return nil, wrapError(err)
	}

	result := make([]RoomInfo, 0, len(apiRooms))
	for _, ar := range apiRooms {
		info := RoomInfo{
			ID:           ar.ID,
			LastActivity: ar.LastActivity,
			UnreadCount:  ar.UnreadCount,
		}
		for _, p := range ar.Participants {
			if p.ID != c.self.ID {
				info.Peer = p
				break
			}
		}
		result = append(result, info)
	}
	return result, nil
}
