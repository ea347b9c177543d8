package payout

// compliance.go verifies the compliance signature attached to kyc_gated
// payout requests. Mirrors the pure-function BLAKE3 signature convention
// used throughout the spec (core's TaskProof/Transaction schemes) without
// importing core — payout reimplements the same pattern independently to
// keep the isolation boundary intact (spec §4.10).

import (
	"encoding/hex"

	"lukechampine.com/blake3"
)

// verifyComplianceSignature checks that complianceSig is the hex-encoded
// BLAKE3 digest of kycHash, i.e. a placeholder attestation binding the
// signature to the exact KYC material it approves. A production deployment
// would substitute a real compliance-provider signature scheme here while
// keeping this same pure-function shape (spec §4.7's note that
// verification MAY be replaced with a real asymmetric scheme).
func verifyComplianceSignature(kycHash, complianceSig string) bool {
	sum := blake3.Sum256([]byte(kycHash))
	expected := hex.EncodeToString(sum[:])
	return len(complianceSig) == len(expected) && complianceSig == expected
}
