// Package crypto implements the cryptographic core of the messaging SDK:
// RSA-OAEP keypair generation and portable encoding, AES-GCM key custody
// for the private-key backup blob, the dual-recipient message envelope
// cipher, and ML-DSA-65 verification of server storage receipts.
//
// All portable encodings are standard base64 with padding, matching the
// JSON wire format. IVs are 12 bytes, message keys are AES-256, and the
// asymmetric keys are 2048-bit RSA with OAEP/SHA-256 padding. These sizes
// are fixed by the protocol and are not configurable per message.
package crypto
