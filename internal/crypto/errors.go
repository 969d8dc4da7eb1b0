package crypto

import "errors"

var (
	// ErrMalformedKey is returned when a portable-encoded key fails format
	// validation before any cryptographic call.
	ErrMalformedKey = errors.New("malformed key")

	// ErrDecryptionFailed is returned when an authentication tag mismatch or
	// corrupt ciphertext prevents decryption.
	ErrDecryptionFailed = errors.New("decryption failed")

	// ErrInvalidKeySize is returned when a symmetric key has the wrong size.
	ErrInvalidKeySize = errors.New("invalid key size")

	// ErrInvalidIVSize is returned when an IV has the wrong size.
	ErrInvalidIVSize = errors.New("invalid IV size")

	// ErrInvalidRole is returned when an envelope is decrypted with a role
	// other than RoleSender or RoleRecipient.
	ErrInvalidRole = errors.New("invalid envelope role")

	// ErrReceiptInvalid is returned when a storage-receipt signature does not
	// verify against the pinned server receipt key.
	ErrReceiptInvalid = errors.New("storage receipt verification failed")

	// ErrInvalidReceiptKeySize is returned when the server receipt public key
	// has the wrong size.
	ErrInvalidReceiptKeySize = errors.New("invalid receipt public key size")
)
