package crypto

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/cloudflare/circl/sign/mldsa/mldsa65"
)

// ReceiptInfo is the canonical view of a persisted envelope covered by the
// server's storage receipt. The server signs the transcript built from these
// fields when it durably stores an envelope; clients verify the receipt
// before decrypting history.
type ReceiptInfo struct {
	RoomID          string
	EnvelopeID      string
	SenderID        string
	KeyForSender    string
	KeyForRecipient string
	Ciphertext      string
	IV              string
	Timestamp       time.Time
}

// BuildReceiptTranscript constructs the byte string the server signs.
// Fields are length-prefixed so no two distinct envelopes share a transcript.
func BuildReceiptTranscript(info ReceiptInfo) []byte {
	fields := []string{
		info.RoomID,
		info.EnvelopeID,
		info.SenderID,
		info.KeyForSender,
		info.KeyForRecipient,
		info.Ciphertext,
		info.IV,
		info.Timestamp.UTC().Format(time.RFC3339Nano),
	}

	transcript := []byte(ReceiptContext)
	var lenBuf [4]byte
	for _, f := range fields {
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(f)))
		transcript = append(transcript, lenBuf[:]...)
		transcript = append(transcript, f...)
	}
	return transcript
}

// VerifyReceipt checks the ML-DSA-65 storage receipt over info against the
// pinned server receipt key. A missing or forged receipt yields
// ErrReceiptInvalid.
func VerifyReceipt(receiptPk []byte, info ReceiptInfo, receiptB64 string) error {
	if len(receiptPk) != ReceiptPublicKeySize {
		return ErrInvalidReceiptKeySize
	}

	sig, err := FromBase64(receiptB64)
	if err != nil {
		return fmt.Errorf("decode receipt: %w", err)
	}

	var pubKey mldsa65.PublicKey
	if err := pubKey.UnmarshalBinary(receiptPk); err != nil {
		return fmt.Errorf("unmarshal receipt public key: %w", err)
	}

	if !mldsa65.Verify(&pubKey, BuildReceiptTranscript(info), nil, sig) {
		return ErrReceiptInvalid
	}
	return nil
}

// ValidateReceiptPublicKey reports whether a base64-encoded server receipt
// key has the expected format and size.
func ValidateReceiptPublicKey(receiptPkB64 string) bool {
	pk, err := FromBase64(receiptPkB64)
	if err != nil {
		return false
	}
	return len(pk) == ReceiptPublicKeySize
}
