package api

import "time"

// ServerInfo represents the /api/server-info response.
type ServerInfo struct {
	// ReceiptPk is the server's ML-DSA-65 receipt public key (base64).
	// Pinned at client construction and used to verify storage receipts.
	ReceiptPk string `json:"serverReceiptPk"`
	// Algs is the canonical algorithm-suite string.
	Algs string `json:"algs"`
	// MaxMessageBytes is the largest plaintext the server will accept
	// once encrypted, or 0 for no limit.
	MaxMessageBytes int `json:"maxMessageBytes"`
}

// UserInfo is the authenticated user resolved from the session token.
type UserInfo struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	PublicKey string `json:"publicKey,omitempty"`
}

// UserKeys is the publicly readable key material of a peer.
type UserKeys struct {
	UserID    string `json:"userId"`
	Username  string `json:"username"`
	PublicKey string `json:"publicKey"`
}

// RegisterKeysRequest is the POST /api/keys payload sent at signup.
// The private key appears only wrapped; no endpoint ever accepts or
// returns plaintext private-key material.
type RegisterKeysRequest struct {
	PublicKey           string `json:"publicKey"`
	EncryptedPrivateKey string `json:"encryptedPrivateKey"`
	IV                  string `json:"iv"`
	WrappingKey         string `json:"wrappingKey"`
}

// StoredKeys is the GET /api/keys response: the caller's own backup blob.
type StoredKeys struct {
	PublicKey           string `json:"publicKey"`
	EncryptedPrivateKey string `json:"encryptedPrivateKey"`
	IV                  string `json:"iv"`
	WrappingKey         string `json:"wrappingKey"`
}

// CreateRoomRequest is the POST /api/rooms payload. The server resolves the
// caller from the session token and pairs them with PeerID; the lookup is
// idempotent and order-insensitive.
type CreateRoomRequest struct {
	PeerID string `json:"peerId"`
}

// Participant is a room member's public profile.
type Participant struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	PublicKey string `json:"publicKey"`
}

// Room identifies an unordered pair of exactly two participants.
type Room struct {
	ID           string        `json:"id"`
	Participants []Participant `json:"participants"`
	LastActivity time.Time     `json:"lastActivity"`
	UnreadCount  int           `json:"unreadCount"`
}

// Envelope is the wire form of one encrypted message: the five-field
// cryptographic payload plus routing metadata. Binary values are base64.
type Envelope struct {
	ID              string    `json:"id"`
	ChatRoomID      string    `json:"chatRoomId"`
	SenderID        string    `json:"senderId"`
	KeyForSender    string    `json:"encryptedAESKeyForSender"`
	KeyForRecipient string    `json:"encryptedAESKeyForRecipient"`
	Ciphertext      string    `json:"encryptedMessage"`
	IV              string    `json:"iv"`
	Timestamp       time.Time `json:"timestamp"`
	IsRead          bool      `json:"isRead"`
	// Receipt is the server's ML-DSA-65 storage receipt, set once the
	// envelope has been durably persisted.
	Receipt string `json:"receipt,omitempty"`
}

// SyncStatus represents the /api/rooms/{id}/sync response, used for cheap
// change detection before fetching full history.
type SyncStatus struct {
	MessageCount int    `json:"messageCount"`
	MessagesHash string `json:"messagesHash"`
}
