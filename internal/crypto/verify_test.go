package crypto

import (
	"crypto/rand"
	"errors"
	"testing"
	"time"

	"github.com/cloudflare/circl/sign/mldsa/mldsa65"
)

func testReceiptInfo() ReceiptInfo {
	return ReceiptInfo{
		RoomID:          "room-1",
		EnvelopeID:      "env-1",
		SenderID:        "alice",
		KeyForSender:    "a2V5LXNlbmRlcg==",
		KeyForRecipient: "a2V5LXJlY2lwaWVudA==",
		Ciphertext:      "Y2lwaGVydGV4dA==",
		IV:              "aXZpdml2aXZpdg==",
		Timestamp:       time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC),
	}
}

func signReceipt(t *testing.T, sk *mldsa65.PrivateKey, info ReceiptInfo) string {
	t.Helper()
	sig := make([]byte, mldsa65.SignatureSize)
	if err := mldsa65.SignTo(sk, BuildReceiptTranscript(info), nil, false, sig); err != nil {
		t.Fatalf("sign receipt: %v", err)
	}
	return ToBase64(sig)
}

func TestVerifyReceipt(t *testing.T) {
	pk, sk, err := mldsa65.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate receipt keypair: %v", err)
	}
	pkBytes, err := pk.MarshalBinary()
	if err != nil {
		t.Fatalf("marshal receipt public key: %v", err)
	}

	info := testReceiptInfo()
	receipt := signReceipt(t, sk, info)

	if err := VerifyReceipt(pkBytes, info, receipt); err != nil {
		t.Errorf("valid receipt failed verification: %v", err)
	}

	// Any change to a covered field must invalidate the receipt.
	altered := info
	altered.SenderID = "mallory"
	if err := VerifyReceipt(pkBytes, altered, receipt); !errors.Is(err, ErrReceiptInvalid) {
		t.Errorf("altered sender error = %v, want ErrReceiptInvalid", err)
	}

	altered = info
	altered.Ciphertext = "b3RoZXI="
	if err := VerifyReceipt(pkBytes, altered, receipt); !errors.Is(err, ErrReceiptInvalid) {
		t.Errorf("altered ciphertext error = %v, want ErrReceiptInvalid", err)
	}
}

func TestVerifyReceipt_BadKeySize(t *testing.T) {
	info := testReceiptInfo()
	err := VerifyReceipt(make([]byte, 10), info, "c2ln")
	if !errors.Is(err, ErrInvalidReceiptKeySize) {
		t.Errorf("error = %v, want ErrInvalidReceiptKeySize", err)
	}
}

func TestBuildReceiptTranscript_FieldBoundaries(t *testing.T) {
	// Length prefixes must keep adjacent fields from sliding into each other.
	a := ReceiptInfo{RoomID: "ab", EnvelopeID: "c", Timestamp: time.Unix(0, 0)}
	b := ReceiptInfo{RoomID: "a", EnvelopeID: "bc", Timestamp: time.Unix(0, 0)}

	ta := string(BuildReceiptTranscript(a))
	tb := string(BuildReceiptTranscript(b))
	if ta == tb {
		t.Error("distinct receipt infos produced identical transcripts")
	}
}

func TestValidateReceiptPublicKey(t *testing.T) {
	if ValidateReceiptPublicKey("not base64 !!!") {
		t.Error("malformed key validated")
	}
	if ValidateReceiptPublicKey(ToBase64(make([]byte, 100))) {
		t.Error("wrong-size key validated")
	}
	if !ValidateReceiptPublicKey(ToBase64(make([]byte, ReceiptPublicKeySize))) {
		t.Error("correct-size key rejected")
	}
}
