package crypto

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"fmt"
)

// Role identifies which wrapped copy of the message key an envelope reader
// is entitled to. It replaces the historical isSender boolean so that a
// silent inversion cannot type-check.
type Role uint8

const (
	// RoleSender selects the message key wrapped under the sender's
	// public key.
	RoleSender Role = iota + 1
	// RoleRecipient selects the message key wrapped under the recipient's
	// public key.
	RoleRecipient
)

// String returns the role name for logging.
func (r Role) String() string {
	switch r {
	case RoleSender:
		return "sender"
	case RoleRecipient:
		return "recipient"
	default:
		return fmt.Sprintf("role(%d)", uint8(r))
	}
}

// Envelope is the cryptographic payload of a single message: one ciphertext
// body and two independently RSA-wrapped copies of the same AES-256 key, so
// that either party can re-read the message with only their own private key.
// All fields are base64.
type Envelope struct {
	// KeyForSender is the message key wrapped under the sender's public key.
	KeyForSender string
	// KeyForRecipient is the message key wrapped under the recipient's
	// public key.
	KeyForRecipient string
	// Ciphertext is the AES-256-GCM sealed message body (ciphertext || tag).
	Ciphertext string
	// IV is the 12-byte GCM IV for the body.
	IV string
}

// EncryptForTransit encrypts message for a dual-recipient envelope.
//
// A fresh AES-256 message key and a fresh 12-byte IV are generated per call,
// so encrypting the same message twice never yields identical output. Both
// public keys are validated before any cryptographic work; a malformed key
// fails fast with ErrMalformedKey and no partial envelope is produced.
func EncryptForTransit(message string, senderPublicKey, recipientPublicKey string) (*Envelope, error) {
	senderPub, err := DecodePublicKey(senderPublicKey)
	if err != nil {
		return nil, fmt.Errorf("sender key: %w", err)
	}
	recipientPub, err := DecodePublicKey(recipientPublicKey)
	if err != nil {
		return nil, fmt.Errorf("recipient key: %w", err)
	}

	msgKey := make([]byte, AESKeySize)
	if _, err := rand.Read(msgKey); err != nil {
		return nil, fmt.Errorf("generate message key: %w", err)
	}
	iv := make([]byte, GCMNonceSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, fmt.Errorf("generate IV: %w", err)
	}

	sealed, err := sealAESGCM(msgKey, iv, []byte(message))
	if err != nil {
		return nil, err
	}

	forSender, err := wrapMessageKey(senderPub, msgKey)
	if err != nil {
		return nil, fmt.Errorf("wrap key for sender: %w", err)
	}
	forRecipient, err := wrapMessageKey(recipientPub, msgKey)
	if err != nil {
		return nil, fmt.Errorf("wrap key for recipient: %w", err)
	}

	return &Envelope{
		KeyForSender:    ToBase64(forSender),
		KeyForRecipient: ToBase64(forRecipient),
		Ciphertext:      ToBase64(sealed),
		IV:              ToBase64(iv),
	}, nil
}

// DecryptEnvelope recovers the plaintext of env using the caller's private
// key and role. Tag mismatches and corrupt inputs surface as
// ErrDecryptionFailed, which is distinct from any not-found condition.
func DecryptEnvelope(env *Envelope, priv *rsa.PrivateKey, role Role) (string, error) {
	var wrappedB64 string
	switch role {
	case RoleSender:
		wrappedB64 = env.KeyForSender
	case RoleRecipient:
		wrappedB64 = env.KeyForRecipient
	default:
		return "", ErrInvalidRole
	}

	wrapped, err := FromBase64(wrappedB64)
	if err != nil {
		return "", fmt.Errorf("decode wrapped key: %w", err)
	}
	iv, err := FromBase64(env.IV)
	if err != nil {
		return "", fmt.Errorf("decode IV: %w", err)
	}
	sealed, err := FromBase64(env.Ciphertext)
	if err != nil {
		return "", fmt.Errorf("decode ciphertext: %w", err)
	}

	msgKey, err := unwrapMessageKey(priv, wrapped)
	if err != nil {
		return "", err
	}
	if len(msgKey) != AESKeySize {
		return "", fmt.Errorf("%w: unwrapped key is %d bytes", ErrDecryptionFailed, len(msgKey))
	}

	plaintext, err := openAESGCM(msgKey, iv, sealed)
	if err != nil {
		return "", err
	}

	return string(plaintext), nil
}

// wrapMessageKey RSA-OAEP/SHA-256 encrypts a message key under pub.
func wrapMessageKey(pub *rsa.PublicKey, msgKey []byte) ([]byte, error) {
	return rsa.EncryptOAEP(sha256.New(), rand.Reader, pub, msgKey, nil)
}

// unwrapMessageKey reverses wrapMessageKey. Failures are reported as
// ErrDecryptionFailed without detail, to avoid acting as a padding oracle.
func unwrapMessageKey(priv *rsa.PrivateKey, wrapped []byte) ([]byte, error) {
	msgKey, err := rsa.DecryptOAEP(sha256.New(), rand.Reader, priv, wrapped, nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return msgKey, nil
}
