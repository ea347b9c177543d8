package payout

// types.go defines the payout router's request/batch record types (spec
// §3, §4.10). TRON addresses are plain validated strings, deliberately
// never converted to or from the primary chain's core.Address — the two
// address schemes are kept apart by package boundary (spec §9 "the source
// has fragments of both an Ethereum-style and a TRON address scheme
// appearing in the same field").

import (
	"regexp"
	"time"
)

// RouterType selects which logical router handles a payout request (spec
// §4.10).
type RouterType string

const (
	RouterNonKYC   RouterType = "non_kyc"
	RouterKYCGated RouterType = "kyc_gated"
)

// PayoutStatus is the lifecycle status of a PayoutRequest or PayoutBatch
// (spec §3).
type PayoutStatus string

const (
	PayoutPending    PayoutStatus = "pending"
	PayoutProcessing PayoutStatus = "processing"
	PayoutCompleted  PayoutStatus = "completed"
	PayoutFailed     PayoutStatus = "failed"
	PayoutCancelled  PayoutStatus = "cancelled"
)

// Amount bounds and batch size (spec §4.10).
const (
	MinPayoutAmount     = 1.0
	MaxPayoutAmount     = 10000.0
	DefaultBatchSize    = 50
	DefaultFeeLimitSun  = 100_000_000 // 100 TRX, in sun
	defaultResourceSlop = 0.1         // fixed fraction, spec §4.10 guardrail
)

var tronAddressRE = regexp.MustCompile(`^T[A-Za-z0-9]{33}$`)

// ValidateTronAddress reports whether s matches the TRON base58 address
// shape required by recipientAddress (spec §4.10).
func ValidateTronAddress(s string) bool {
	return tronAddressRE.MatchString(s)
}

// Metadata is the closed, typed variant carried by a payout request,
// replacing the source's free-form key/value bag (SPEC_FULL §3,
// Design Notes §9 "dynamic typing / dict-bag metadata").
type Metadata struct {
	NodeID     string `json:"nodeId,omitempty" bson:"nodeId,omitempty"`
	SessionID  string `json:"sessionId,omitempty" bson:"sessionId,omitempty"`
	ReasonCode string `json:"reasonCode" bson:"reasonCode"`
}

// PayoutRequest is one recipient payment to be batched and submitted (spec
// §3, §4.10).
type PayoutRequest struct {
	PayoutID         string       `json:"payoutId" bson:"payoutId"`
	RecipientAddress string       `json:"recipientAddress" bson:"recipientAddress"`
	AmountUSDT       float64      `json:"amountUsdt" bson:"amountUsdt"`
	RouterType       RouterType   `json:"routerType" bson:"routerType"`
	Reason           Metadata     `json:"reason" bson:"reason"`
	KYCHash          string       `json:"kycHash,omitempty" bson:"kycHash,omitempty"`
	ComplianceSig    string       `json:"complianceSig,omitempty" bson:"complianceSig,omitempty"`
	Status           PayoutStatus `json:"status" bson:"status"`
	BatchID          string       `json:"batchId,omitempty" bson:"batchId,omitempty"`
	TxID             string       `json:"txid,omitempty" bson:"txid,omitempty"`
	ErrorMessage     string       `json:"errorMessage,omitempty" bson:"errorMessage,omitempty"`
	CreatedAt        time.Time    `json:"createdAt" bson:"createdAt"`
	ProcessedAt      *time.Time   `json:"processedAt,omitempty" bson:"processedAt,omitempty"`
}

// PayoutBatch groups requests of the same router type submitted together
// (spec §3, §4.10).
type PayoutBatch struct {
	BatchID      string       `json:"batchId" bson:"batchId"`
	RouterType   RouterType   `json:"routerType" bson:"routerType"`
	PayoutIDs    []string     `json:"payoutIds" bson:"payoutIds"`
	TotalAmount  float64      `json:"totalAmount" bson:"totalAmount"`
	Status       PayoutStatus `json:"status" bson:"status"`
	TxID         string       `json:"txid,omitempty" bson:"txid,omitempty"`
	ErrorMessage string       `json:"errorMessage,omitempty" bson:"errorMessage,omitempty"`
	CreatedAt    time.Time    `json:"createdAt" bson:"createdAt"`
	ProcessedAt  *time.Time   `json:"processedAt,omitempty" bson:"processedAt,omitempty"`
}

// ValidateRequest enforces amount bounds, address shape, and the KYC-gated
// signature requirement (spec §4.10).
func ValidateRequest(r *PayoutRequest) error {
	if !ValidateTronAddress(r.RecipientAddress) {
		return validationErrorf("recipientAddress", "payout: invalid TRON address %q", r.RecipientAddress)
	}
	if r.AmountUSDT < MinPayoutAmount || r.AmountUSDT > MaxPayoutAmount {
		return validationErrorf("amountUsdt", "payout: amount %.2f out of bounds [%.1f, %.1f]", r.AmountUSDT, MinPayoutAmount, MaxPayoutAmount)
	}
	if r.RouterType == RouterKYCGated {
		if r.KYCHash == "" || r.ComplianceSig == "" {
			return kycRejectedErrorf("payout: kyc_gated request %s missing kycHash or complianceSig", r.PayoutID)
		}
		if !verifyComplianceSignature(r.KYCHash, r.ComplianceSig) {
			return kycRejectedErrorf("payout: kyc_gated request %s failed compliance verification", r.PayoutID)
		}
	}
	return nil
}
