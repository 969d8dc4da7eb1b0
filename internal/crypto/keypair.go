package crypto

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"fmt"
	"io"
)

// randReader is the random source used for key generation. It defaults to
// crypto/rand but can be overridden for testing.
var randReader io.Reader = rand.Reader

// KeyPair represents a user's long-lived RSA encryption keypair.
type KeyPair struct {
	// PublicKey is the parsed RSA public key.
	PublicKey *rsa.PublicKey
	// PrivateKey is the parsed RSA private key.
	PrivateKey *rsa.PrivateKey
	// PublicKeyB64 is the public key as base64 of SPKI DER, the portable
	// form stored server-side and handed to peers.
	PublicKeyB64 string
}

// GenerateKeyPair creates a fresh RSA-2048 keypair. Every call draws new
// randomness; keypairs are never cached or reused across calls.
func GenerateKeyPair() (*KeyPair, error) {
	priv, err := rsa.GenerateKey(randReader, RSAKeyBits)
	if err != nil {
		return nil, fmt.Errorf("generate keypair: %w", err)
	}

	pubB64, err := EncodePublicKey(&priv.PublicKey)
	if err != nil {
		return nil, err
	}

	return &KeyPair{
		PublicKey:    &priv.PublicKey,
		PrivateKey:   priv,
		PublicKeyB64: pubB64,
	}, nil
}

// EncodePublicKey encodes an RSA public key as base64 of SPKI DER.
func EncodePublicKey(pub *rsa.PublicKey) (string, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return "", fmt.Errorf("marshal public key: %w", err)
	}
	return ToBase64(der), nil
}

// DecodePublicKey parses a base64/SPKI portable public key. It validates the
// encoding and key type before any cryptographic use; malformed input yields
// ErrMalformedKey.
func DecodePublicKey(s string) (*rsa.PublicKey, error) {
	if s == "" {
		return nil, fmt.Errorf("%w: empty public key", ErrMalformedKey)
	}

	der, err := FromBase64(s)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid base64", ErrMalformedKey)
	}

	parsed, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, fmt.Errorf("%w: not SPKI DER", ErrMalformedKey)
	}

	pub, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: not an RSA key", ErrMalformedKey)
	}

	return pub, nil
}

// EncodePrivateKey encodes an RSA private key as base64 of PKCS#8 DER.
// The result is plaintext key material and must never leave the client
// unwrapped; see WrapPrivateKey.
func EncodePrivateKey(priv *rsa.PrivateKey) (string, error) {
	der, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return "", fmt.Errorf("marshal private key: %w", err)
	}
	return ToBase64(der), nil
}

// DecodePrivateKey parses a base64/PKCS#8 portable private key.
func DecodePrivateKey(s string) (*rsa.PrivateKey, error) {
	if s == "" {
		return nil, fmt.Errorf("%w: empty private key", ErrMalformedKey)
	}

	der, err := FromBase64(s)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid base64", ErrMalformedKey)
	}

	return ParsePrivateKeyDER(der)
}

// ParsePrivateKeyDER parses PKCS#8 DER bytes into an RSA private key.
func ParsePrivateKeyDER(der []byte) (*rsa.PrivateKey, error) {
	parsed, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, fmt.Errorf("%w: not PKCS#8 DER", ErrMalformedKey)
	}

	priv, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: not an RSA key", ErrMalformedKey)
	}

	return priv, nil
}

// ValidatePublicKey reports whether s is a well-formed portable public key.
func ValidatePublicKey(s string) bool {
	_, err := DecodePublicKey(s)
	return err == nil
}
