package securedm

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/chirpsocial/securedm-go/internal/api"
	"github.com/chirpsocial/securedm-go/internal/crypto"
	"github.com/chirpsocial/securedm-go/internal/keystore"
)

// ExportVersion is the current identity export format version.
const ExportVersion = 1

// Identity holds the user's messaging key material. The private key never
// leaves the client in plaintext; the server stores only the wrapped backup
// blob uploaded at registration.
type Identity struct {
	userID  string
	keyPair *crypto.KeyPair
}

// UserID returns the user this identity belongs to.
func (id *Identity) UserID() string {
	return id.userID
}

// PublicKey returns the base64-encoded SPKI public key.
func (id *Identity) PublicKey() string {
	return id.keyPair.PublicKeyB64
}

// Register generates a fresh RSA-2048 keypair, wraps the private key under a
// random wrapping key, and uploads the public key plus the wrapped backup
// blob to the server. The plaintext private key stays in memory on this
// client only.
//
// Registration is once per user: a second call fails with ErrIdentityExists,
// as does registering when the server already holds keys for this user.
func (c *Client) Register(ctx context.Context) (*Identity, error) {
	if err := c.checkClosed(); err != nil {
		return nil, err
	}

	c.mu.RLock()
	loaded := c.identity != nil
	c.mu.RUnlock()
	if loaded {
		return nil, ErrIdentityExists
	}

	keyPair, err := crypto.GenerateKeyPair()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyGeneration, err)
	}

	wrappingKey, err := crypto.GenerateWrappingKey()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyGeneration, err)
	}

	wrapped, err := crypto.WrapPrivateKey(keyPair.PrivateKey, wrappingKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyGeneration, err)
	}

	req := &api.RegisterKeysRequest{
		PublicKey:           keyPair.PublicKeyB64,
		EncryptedPrivateKey: wrapped.Ciphertext,
		IV:                  wrapped.IV,
		WrappingKey:         crypto.ToBase64(wrappingKey),
	}
	if err := c.apiClient.RegisterKeys(ctx, req); err != nil {
		return nil, wrapError(err)
	}

	identity := &Identity{
		userID:  c.self.ID,
		keyPair: keyPair,
	}

	c.mu.Lock()
	c.identity = identity
	c.mu.Unlock()

	return identity, nil
}

// RestoreIdentity downloads the wrapped backup blob stored at registration
// and unwraps the private key locally. Use this when the client has no local
// key material, e.g. after reinstalling.
func (c *Client) RestoreIdentity(ctx context.Context) (*Identity, error) {
	if err := c.checkClosed(); err != nil {
		return nil, err
	}

	stored, err := c.apiClient.GetOwnKeys(ctx)
	if err != nil {
		return nil, wrapError(err)
	}

	wrappingKey, err := crypto.FromBase64(stored.WrappingKey)
	if err != nil {
		return nil, fmt.Errorf("%w: wrapping key", ErrMalformedKey)
	}

	priv, err := crypto.UnwrapPrivateKey(&crypto.WrappedPrivateKey{
		Ciphertext: stored.EncryptedPrivateKey,
		IV:         stored.IV,
	}, wrappingKey)
	if err != nil {
		return nil, fmt.Errorf("unwrap private key: %w", err)
	}

	identity := &Identity{
		userID: c.self.ID,
		keyPair: &crypto.KeyPair{
			PublicKey:    &priv.PublicKey,
			PrivateKey:   priv,
			PublicKeyB64: stored.PublicKey,
		},
	}

	c.mu.Lock()
	c.identity = identity
	c.mu.Unlock()

	return identity, nil
}

// Identity returns the loaded identity, or nil if none is loaded.
func (c *Client) Identity() *Identity {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.identity
}

// ExportedIdentity contains all data needed to load an identity on another
// device. WARNING: this contains private key material - handle securely.
type ExportedIdentity struct {
	// Version is the export format version. MUST be 1.
	Version int `json:"version"`
	// UserID is the user the identity belongs to. Non-empty.
	UserID string `json:"userId"`
	// PublicKey is the base64-encoded SPKI public key.
	PublicKey string `json:"publicKey"`
	// PrivateKey is the base64-encoded PKCS#8 private key.
	PrivateKey string `json:"privateKey"`
	// ExportedAt is the export timestamp. Informational only.
	ExportedAt time.Time `json:"exportedAt"`
}

// Validate checks that the exported data is well-formed.
func (e *ExportedIdentity) Validate() error {
	if e.Version != ExportVersion {
		return fmt.Errorf("%w: unsupported version %d, expected %d", ErrInvalidImportData, e.Version, ExportVersion)
	}
	if e.UserID == "" {
		return fmt.Errorf("%w: userId is required", ErrInvalidImportData)
	}
	if e.PublicKey == "" || !crypto.ValidatePublicKey(e.PublicKey) {
		return fmt.Errorf("%w: invalid publicKey", ErrInvalidImportData)
	}
	if e.PrivateKey == "" {
		return fmt.Errorf("%w: privateKey is required", ErrInvalidImportData)
	}
	if _, err := crypto.DecodePrivateKey(e.PrivateKey); err != nil {
		return fmt.Errorf("%w: invalid privateKey encoding", ErrInvalidImportData)
	}
	return nil
}

// Export returns exportable identity data including the private key.
func (id *Identity) Export() (*ExportedIdentity, error) {
	privB64, err := crypto.EncodePrivateKey(id.keyPair.PrivateKey)
	if err != nil {
		return nil, err
	}
	return &ExportedIdentity{
		Version:    ExportVersion,
		UserID:     id.userID,
		PublicKey:  id.keyPair.PublicKeyB64,
		PrivateKey: privB64,
		ExportedAt: time.Now().UTC(),
	}, nil
}

// ExportIdentityToFile exports the loaded identity to a JSON file with
// secure permissions (0600).
func (c *Client) ExportIdentityToFile(filePath string) error {
	c.mu.RLock()
	identity := c.identity
	c.mu.RUnlock()
	if identity == nil {
		return ErrNoIdentity
	}

	data, err := identity.Export()
	if err != nil {
		return fmt.Errorf("export identity: %w", err)
	}

	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal identity data: %w", err)
	}

	if err := os.WriteFile(filePath, jsonData, 0600); err != nil {
		return fmt.Errorf("write file: %w", err)
	}

	return nil
}

// ImportIdentity loads a previously exported identity.
func (c *Client) ImportIdentity(data *ExportedIdentity) (*Identity, error) {
	if err := c.checkClosed(); err != nil {
		return nil, err
	}
	if data == nil {
		return nil, fmt.Errorf("%w: exported identity is nil", ErrInvalidImportData)
	}
	if err := data.Validate(); err != nil {
		return nil, err
	}

	// Validate() already verified the key decodes
	priv, _ := crypto.DecodePrivateKey(data.PrivateKey)

	identity := &Identity{
		userID: data.UserID,
		keyPair: &crypto.KeyPair{
			PublicKey:    &priv.PublicKey,
			PrivateKey:   priv,
			PublicKeyB64: data.PublicKey,
		},
	}

	c.mu.Lock()
	c.identity = identity
	c.mu.Unlock()

	return identity, nil
}

// ImportIdentityFromFile imports an identity from a JSON file.
// Returns the imported identity or an error if the file cannot be read or
// parsed.
func (c *Client) ImportIdentityFromFile(filePath string) (*Identity, error) {
	if err := c.checkClosed(); err != nil {
		return nil, err
	}

	jsonData, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var data ExportedIdentity
	if err := json.Unmarshal(jsonData, &data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImportData, err)
	}

	return c.ImportIdentity(&data)
}

// SealIdentityToFile seals the loaded identity's private key to a file
// under a passphrase, using scrypt key derivation and ChaCha20-Poly1305.
func (c *Client) SealIdentityToFile(filePath, passphrase string) error {
	c.mu.RLock()
	identity := c.identity
	c.mu.RUnlock()
	if identity == nil {
		return ErrNoIdentity
	}

	privB64, err := crypto.EncodePrivateKey(identity.keyPair.PrivateKey)
	if err != nil {
		return err
	}
	der, err := crypto.FromBase64(privB64)
	if err != nil {
		return err
	}
	return keystore.Seal(filePath, passphrase, der)
}

// UnsealIdentityFromFile loads an identity sealed with SealIdentityToFile.
func (c *Client) UnsealIdentityFromFile(filePath, passphrase string) (*Identity, error) {
	if err := c.checkClosed(); err != nil {
		return nil, err
	}

	der, err := keystore.Open(filePath, passphrase)
	if err != nil {
		return nil, err
	}

	priv, err := crypto.ParsePrivateKeyDER(der)
	if err != nil {
		return nil, fmt.Errorf("%w: sealed private key", ErrMalformedKey)
	}

	pubB64, err := crypto.EncodePublicKey(&priv.PublicKey)
	if err != nil {
		return nil, err
	}

	identity := &Identity{
		userID: c.self.ID,
		keyPair: &crypto.KeyPair{
			PublicKey:    &priv.PublicKey,
			PrivateKey:   priv,
			PublicKeyB64: pubB64,
		},
	}

	c.mu.Lock()
	c.identity = identity
	c.mu.Unlock()

	return identity, nil
}
