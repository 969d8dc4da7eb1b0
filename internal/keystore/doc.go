// Package keystore seals a private key to disk under a passphrase.
//
// The key is derived with scrypt and the payload sealed with
// ChaCha20-Poly1305. The on-disk file is a small JSON blob carrying the
// KDF parameters alongside the ciphertext, so parameters can be tuned
// without breaking existing files.
package keystore
