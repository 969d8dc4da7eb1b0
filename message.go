package securedm

import (
	"time"

	"github.com/chirpsocial/securedm-go/internal/api"
	"github.com/chirpsocial/securedm-go/internal/crypto"
)

// Message is a decrypted direct message.
type Message struct {
	// ID is the envelope ID, unique within the room.
	ID string
	// RoomID is the conversation the message belongs to.
	RoomID string
	// SenderID is the author's user ID.
	SenderID string
	// Text is the decrypted plaintext.
	Text string
	// SentAt is the server-assigned persistence timestamp.
	SentAt time.Time
	// IsRead reports whether the recipient has seen the message.
	IsRead bool
}

// Role identifies which participant's wrapped key copy unlocks an envelope.
type Role = crypto.Role

// Role constants.
const (
	// RoleSender decrypts with the sender's wrapped key copy.
	RoleSender = crypto.RoleSender
	// RoleRecipient decrypts with the recipient's wrapped key copy.
	RoleRecipient = crypto.RoleRecipient
)

// Participant is a room member's public profile.
type Participant = api.Participant

// SyncStatus is a type alias for api.SyncStatus.
// It represents the synchronization status of a room.
type SyncStatus = api.SyncStatus
