package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"fmt"
)

// WrappedPrivateKey is a user's private key encrypted under the wrapping key.
// It is the only form in which private-key material is sent to the server.
type WrappedPrivateKey struct {
	// Ciphertext is the AES-256-GCM sealed PKCS#8 DER, base64-encoded.
	Ciphertext string
	// IV is the 12-byte GCM IV, base64-encoded. Fresh per wrap call.
	IV string
}

// GenerateWrappingKey creates a random AES-256 key used only to encrypt the
// user's private key for server-side backup. It is intentionally independent
// of the login password.
func GenerateWrappingKey() ([]byte, error) {
	key := make([]byte, AESKeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate wrapping key: %w", err)
	}
	return key, nil
}

// WrapPrivateKey seals the private key under wrappingKey with AES-256-GCM.
// The IV is freshly random on every call; a repeated (key, IV) pair would
// break GCM, so callers must never cache or replay wrap results with
// substituted plaintext.
func WrapPrivateKey(priv *rsa.PrivateKey, wrappingKey []byte) (*WrappedPrivateKey, error) {
	if len(wrappingKey) != AESKeySize {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrInvalidKeySize, len(wrappingKey), AESKeySize)
	}

	der, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return nil, fmt.Errorf("marshal private key: %w", err)
	}

	iv := make([]byte, GCMNonceSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, fmt.Errorf("generate IV: %w", err)
	}

	sealed, err := sealAESGCM(wrappingKey, iv, der)
	if err != nil {
		return nil, err
	}

	return &WrappedPrivateKey{
		Ciphertext: ToBase64(sealed),
		IV:         ToBase64(iv),
	}, nil
}

// UnwrapPrivateKey reverses WrapPrivateKey. A wrong wrapping key or a
// tampered blob yields ErrDecryptionFailed.
func UnwrapPrivateKey(wrapped *WrappedPrivateKey, wrappingKey []byte) (*rsa.PrivateKey, error) {
	if len(wrappingKey) != AESKeySize {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrInvalidKeySize, len(wrappingKey), AESKeySize)
	}

	sealed, err := FromBase64(wrapped.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("decode wrapped key: %w", err)
	}

	iv, err := FromBase64(wrapped.IV)
	if err != nil {
		return nil, fmt.Errorf("decode IV: %w", err)
	}

	der, err := openAESGCM(wrappingKey, iv, sealed)
	if err != nil {
		return nil, err
	}

	return ParsePrivateKeyDER(der)
}

// sealAESGCM encrypts plaintext with AES-256-GCM. The returned bytes are
// ciphertext || tag; the IV travels separately.
func sealAESGCM(key, iv, plaintext []byte) ([]byte, error) {
	gcm, err := newGCM(key, len(iv))
	if err != nil {
		return nil, err
	}
	return gcm.Seal(nil, iv, plaintext, nil), nil
}

// openAESGCM decrypts ciphertext || tag produced by sealAESGCM.
func openAESGCM(key, iv, sealed []byte) ([]byte, error) {
	gcm, err := newGCM(key, len(iv))
	if err != nil {
		return nil, err
	}
	plaintext, err := gcm.Open(nil, iv, sealed, nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}

func newGCM(key []byte, ivLen int) (cipher.AEAD, error) {
	if len(key) != AESKeySize {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrInvalidKeySize, len(key), AESKeySize)
	}
	if ivLen != GCMNonceSize {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrInvalidIVSize, ivLen, GCMNonceSize)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
