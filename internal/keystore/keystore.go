package keystore

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/scrypt"
)

// Current version of the sealed blob format.
const formatVersion = 1

// ErrWrongPassphrase is returned when the passphrase is incorrect or the
// sealed file has been modified or corrupted.
var ErrWrongPassphrase = errors.New("keystore: wrong passphrase or corrupted file")

// blob is the on-disk JSON structure holding the ciphertext and KDF
// parameters.
type blob struct {
	V      int    `json:"v"`
	Salt   []byte `json:"salt"`
	N      int    `json:"scrypt_N"`
	R      int    `json:"scrypt_r"`
	P      int    `json:"scrypt_p"`
	Cipher []byte `json:"cipher"`
}

// Seal derives a key from passphrase and writes raw, sealed, to path with
// mode 0600.
func Seal(path, passphrase string, raw []byte) error {
	N, r, p := scryptParams()

	var salt [16]byte
	if _, err := rand.Read(salt[:]); err != nil {
		return err
	}
	key, err := scrypt.Key([]byte(passphrase), salt[:], N, r, p, chacha20poly1305.KeySize)
	if err != nil {
		return err
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return err
	}
	// Zero nonce; the salt-bound key is unique per seal.
	var nonce [chacha20poly1305.NonceSize]byte
	ct := aead.Seal(nil, nonce[:], raw, salt[:])

	data, err := json.Marshal(blob{
		V:      formatVersion,
		Salt:   salt[:],
		N:      N,
		R:      r,
		P:      p,
		Cipher: ct,
	})
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// Open reads the sealed file at path and unseals it with a key derived
// from passphrase.
func Open(path, passphrase string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var bl blob
	if err := json.Unmarshal(data, &bl); err != nil {
		return nil, fmt.Errorf("keystore: malformed file: %w", err)
	}
	if bl.V > formatVersion {
		return nil, fmt.Errorf("keystore: unsupported version %d", bl.V)
	}

	key, err := scrypt.Key([]byte(passphrase), bl.Salt, bl.N, bl.R, bl.P, chacha20poly1305.KeySize)
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	var nonce [chacha20poly1305.NonceSize]byte
	pt, err := aead.Open(nil, nonce[:], bl.Cipher, bl.Salt)
	if err != nil {
		return nil, ErrWrongPassphrase
	}
	return pt, nil
}

// scryptParams returns the scrypt tunables used for new files.
func scryptParams() (N, r, p int) { return 1 << 15, 8, 1 }
