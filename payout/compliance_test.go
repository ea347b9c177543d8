package payout

import (
	"encoding/hex"
	"testing"

	"lukechampine.com/blake3"
)

func TestVerifyComplianceSignatureAccepts(t *testing.T) {
	kycHash := "some-kyc-material-hash"
	sum := blake3.Sum256([]byte(kycHash))
	sig := hex.EncodeToString(sum[:])
	if !verifyComplianceSignature(kycHash, sig) {
		t.Fatal("expected a correctly derived signature to verify")
	}
}

func TestVerifyComplianceSignatureRejectsMismatch(t *testing.T) {
	if verifyComplianceSignature("kyc-material", "0000000000000000000000000000000000000000000000000000000000000000") {
		t.Fatal("expected a mismatched signature to fail verification")
	}
}

func TestVerifyComplianceSignatureRejectsWrongLength(t *testing.T) {
	if verifyComplianceSignature("kyc-material", "abcd") {
		t.Fatal("expected a short signature to fail verification")
	}
}
