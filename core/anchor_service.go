package core

// anchor_service.go submits session manifests to the primary-chain client,
// persists anchoring records, sweeps for confirmations, and exposes
// verification primitives (spec §4.9, C9). Grounded on the teacher's
// core/blockchain_synchronization.go polling-loop shape, generalized from
// chain-height polling to per-anchor confirmation polling.

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// AnchorStatus enumerates a SessionAnchor's lifecycle status (spec §3).
type AnchorStatus string

const (
	AnchorPending   AnchorStatus = "pending"
	AnchorConfirmed AnchorStatus = "confirmed"
	AnchorFailed    AnchorStatus = "failed"
)

// SessionAnchor is one anchoring attempt record (spec §3).
type SessionAnchor struct {
	AnchoringID  string       `json:"anchoringId" bson:"anchoringId"`
	SessionID    string       `json:"sessionId" bson:"sessionId"`
	TxID         string       `json:"txid" bson:"txid"`
	BlockNumber  *uint64      `json:"blockNumber,omitempty" bson:"blockNumber,omitempty"`
	Status       AnchorStatus `json:"status" bson:"status"`
	MerkleRoot   Hash         `json:"merkleRoot" bson:"merkleRoot"`
	SubmittedAt  time.Time    `json:"submittedAt" bson:"submittedAt"`
	ConfirmedAt  *time.Time   `json:"confirmedAt,omitempty" bson:"confirmedAt,omitempty"`
	GasUsed      uint64       `json:"gasUsed,omitempty" bson:"gasUsed,omitempty"`
	ErrorMessage string       `json:"errorMessage,omitempty" bson:"errorMessage,omitempty"`
}

// AnchorStore is the narrow seam into the anchoring-record collection
// (spec §3 "Ownership summary": anchor service owns anchoring records).
type AnchorStore interface {
	SaveAnchor(a *SessionAnchor) error
	AnchorBySessionID(sessionID string) (*SessionAnchor, error)
	PendingAnchors() ([]*SessionAnchor, error)
}

// AnchorService submits manifests to the primary chain and tracks
// confirmation (spec §4.9).
type AnchorService struct {
	mu     sync.Mutex
	chain  *ChainClient
	store  AnchorStore
	logger *logrus.Logger
}

// NewAnchorService wires the anchor service to a ChainClient and store.
func NewAnchorService(chain *ChainClient, store AnchorStore, logger *logrus.Logger) *AnchorService {
	if logger == nil {
		logger = logrus.New()
	}
	return &AnchorService{chain: chain, store: store, logger: logger}
}

// AnchoringResult is the submission response (spec §4.9).
type AnchoringResult struct {
	AnchoringID   string       `json:"anchoringId"`
	SessionID     string       `json:"sessionId"`
	Status        AnchorStatus `json:"status"`
	TransactionID string       `json:"transactionId"`
	BlockNumber   *uint64      `json:"blockNumber"`
	SubmittedAt   time.Time    `json:"submittedAt"`
}

// AnchorSession implements anchorSession(sessionId, ownerAddress,
// merkleRoot, chunkCount, metadata?) (spec §4.9). It also satisfies the
// AnchorSubmitter seam consumed by SessionOrchestrator.
func (s *AnchorService) AnchorSession(manifest *SessionManifest) (*AnchoringResult, error) {
	ctx := context.Background()
	tx, err := s.chain.RegisterSession(ctx, manifest.SessionID, manifest.ManifestHash, manifest.StartedAt, manifest.OwnerAddress, manifest.MerkleRoot, manifest.ChunkCount)
	if err != nil {
		return nil, fmt.Errorf("anchor_service: registerSession: %w", err)
	}

	anchor := &SessionAnchor{
		AnchoringID: uuid.NewString(),
		SessionID:   manifest.SessionID,
		TxID:        tx.TxID,
		Status:      AnchorPending,
		MerkleRoot:  manifest.MerkleRoot,
		SubmittedAt: time.Now().UTC(),
		GasUsed:     tx.GasUsed,
	}
	if err := s.store.SaveAnchor(anchor); err != nil {
		return nil, fmt.Errorf("anchor_service: persisting anchor: %w", err)
	}

	s.logger.WithFields(logrus.Fields{"sessionId": manifest.SessionID, "anchoringId": anchor.AnchoringID}).Info("anchor_service: session submitted")

	return &AnchoringResult{
		AnchoringID:   anchor.AnchoringID,
		SessionID:     anchor.SessionID,
		Status:        AnchorPending,
		TransactionID: anchor.TxID,
		BlockNumber:   nil,
		SubmittedAt:   anchor.SubmittedAt,
	}, nil
}

// SubmitAnchor implements the AnchorSubmitter seam used by
// SessionOrchestrator (spec §4.4).
func (s *AnchorService) SubmitAnchor(manifest *SessionManifest) (anchoringID string, status string, err error) {
	res, err := s.AnchorSession(manifest)
	if err != nil {
		return "", "", err
	}
	return res.AnchoringID, string(res.Status), nil
}

// GetAnchoringStatus implements getAnchoringStatus(sessionId) (spec §4.9);
// if the stored status is pending, a confirmation sweep runs first.
func (s *AnchorService) GetAnchoringStatus(sessionID string) (*SessionAnchor, error) {
	anchor, err := s.store.AnchorBySessionID(sessionID)
	if err != nil {
		return nil, fmt.Errorf("anchor_service: lookup: %w", err)
	}
	if anchor == nil {
		return nil, nil
	}
	if anchor.Status == AnchorPending {
		if err := s.sweepOne(anchor); err != nil {
			s.logger.WithFields(logrus.Fields{"sessionId": sessionID}).Warnf("anchor_service: sweep: %v", err)
		}
	}
	return anchor, nil
}

// SweepConfirmations polls every pending anchor and updates status (spec
// §4.9 "Confirmation sweep").
func (s *AnchorService) SweepConfirmations() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	pending, err := s.store.PendingAnchors()
	if err != nil {
		return fmt.Errorf("anchor_service: loading pending anchors: %w", err)
	}
	for _, a := range pending {
		if err := s.sweepOne(a); err != nil {
			s.logger.WithFields(logrus.Fields{"sessionId": a.SessionID}).Warnf("anchor_service: sweep: %v", err)
		}
	}
	return nil
}

func (s *AnchorService) sweepOne(a *SessionAnchor) error {
	ctx := context.Background()
	status, blockNumber, err := s.chain.GetTransactionStatus(ctx, a.TxID)
	if err != nil {
		return err
	}
	switch status {
	case "success":
		now := time.Now().UTC()
		a.Status = AnchorConfirmed
		a.ConfirmedAt = &now
		a.BlockNumber = blockNumber
	case "failed":
		a.Status = AnchorFailed
	default:
		return nil // still pending, nothing to persist
	}
	return s.store.SaveAnchor(a)
}

// VerificationResult is the result of verifyAnchoring (spec §4.9).
type VerificationResult struct {
	SessionID string `json:"sessionId"`
	Verified  bool   `json:"verified"`
	Reason    string `json:"reason,omitempty"`
}

// VerifyAnchoring implements verifyAnchoring(sessionId, expectedMerkleRoot?)
// (spec §4.9).
func (s *AnchorService) VerifyAnchoring(sessionID string, expectedMerkleRoot *Hash) (*VerificationResult, error) {
	anchor, err := s.store.AnchorBySessionID(sessionID)
	if err != nil {
		return nil, fmt.Errorf("anchor_service: lookup: %w", err)
	}
	if anchor == nil {
		return &VerificationResult{SessionID: sessionID, Verified: false, Reason: "no anchor record"}, nil
	}

	status, _, err := s.chain.GetTransactionStatus(context.Background(), anchor.TxID)
	if err != nil {
		// Fall back to locally stored status (spec §4.9).
		status = string(anchor.Status)
	}

	if status != "success" && string(anchor.Status) != string(AnchorConfirmed) {
		return &VerificationResult{SessionID: sessionID, Verified: false, Reason: "not confirmed"}, nil
	}
	if expectedMerkleRoot != nil && !strings.EqualFold(anchor.MerkleRoot.Hex(), expectedMerkleRoot.Hex()) {
		return &VerificationResult{SessionID: sessionID, Verified: false, Reason: "merkle root mismatch"}, nil
	}
	return &VerificationResult{SessionID: sessionID, Verified: true}, nil
}

// VerifyAnchoringBatch audits many sessions at once (SPEC_FULL §4.4,
// recovered from original_source/blockchain/anchoring/verification.py).
func (s *AnchorService) VerifyAnchoringBatch(sessionIDs []string) (map[string]*VerificationResult, error) {
	results := make(map[string]*VerificationResult, len(sessionIDs))
	for _, id := range sessionIDs {
		res, err := s.VerifyAnchoring(id, nil)
		if err != nil {
			return nil, fmt.Errorf("anchor_service: verifying %s: %w", id, err)
		}
		results[id] = res
	}
	return results, nil
}

// VerifyTransaction is a test-harness primitive exported for direct use
// (spec §4.9).
func (s *AnchorService) VerifyTransaction(txid string) (string, error) {
	status, _, err := s.chain.GetTransactionStatus(context.Background(), txid)
	return status, err
}

// VerifyMerkleRoot is a test-harness primitive exported for direct use
// (spec §4.9).
func (s *AnchorService) VerifyMerkleRoot(sessionID string, expectedRoot Hash) (bool, error) {
	anchor, err := s.store.AnchorBySessionID(sessionID)
	if err != nil {
		return false, err
	}
	if anchor == nil {
		return false, nil
	}
	return strings.EqualFold(anchor.MerkleRoot.Hex(), expectedRoot.Hex()), nil
}
