package crypto

const (
	// RSAKeyBits is the modulus size of user keypairs.
	RSAKeyBits = 2048

	// AESKeySize is the size of an AES-256 key in bytes.
	AESKeySize = 32
	// GCMNonceSize is the size of an AES-GCM IV in bytes.
	GCMNonceSize = 12
	// GCMTagSize is the size of an AES-GCM authentication tag in bytes.
	GCMTagSize = 16

	// ReceiptPublicKeySize is the size of an ML-DSA-65 public key in bytes.
	ReceiptPublicKeySize = 1952
	// ReceiptSignatureSize is the size of an ML-DSA-65 signature in bytes.
	ReceiptSignatureSize = 3309

	// ReceiptContext is the domain-separation string mixed into every
	// storage-receipt transcript.
	ReceiptContext = "securedm:envelope:v1"
)

// AlgsCiphersuite is the canonical string representation of the algorithm suite.
var AlgsCiphersuite = "RSA-2048-OAEP-SHA256:AES-256-GCM:ML-DSA-65"
