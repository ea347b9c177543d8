package core

// consensus_poot.go implements the Proof-of-Operational-Tasks engine:
// work-credit tally, cooldown-constrained leader election with a
// deterministic VRF tie-break, and the density threshold (spec §4.8, C8).
// Grounded on the teacher's core/consensus.go SynnergyConsensus shape
// (immutable tunables as package constants, a slot/block loop driven by an
// external ticker, mutex-guarded scheduling state) replacing PoW/PoS/PoH
// sub-block sealing with work-credit ranking and leader selection.

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"lukechampine.com/blake3"
)

// Immutable PoOT parameters (spec §4.8). These are never runtime-mutable.
const (
	SlotDurationSec  = 120
	SlotTimeoutMS    = 5000
	CooldownSlots    = 16
	LeaderWindowDays = 7
	DMin             = 0.2
	BaseMBPerSession = 5
)

// TaskProofType enumerates operational-work proof kinds (spec §3).
type TaskProofType string

const (
	ProofRelayBandwidth      TaskProofType = "relay_bandwidth"
	ProofStorageAvailability TaskProofType = "storage_availability"
	ProofValidationSignature TaskProofType = "validation_signature"
	ProofUptimeBeacon        TaskProofType = "uptime_beacon"
)

// TaskProof is one operational-work proof (spec §3).
type TaskProof struct {
	NodeID    string        `json:"nodeId" bson:"nodeId"`
	PoolID    string        `json:"poolId,omitempty" bson:"poolId,omitempty"`
	Slot      uint64        `json:"slot" bson:"slot"`
	Type      TaskProofType `json:"type" bson:"type"`
	Value     float64       `json:"value" bson:"value"`
	Signature []byte        `json:"signature" bson:"signature"`
	Timestamp time.Time     `json:"timestamp" bson:"timestamp"`
}

// taskProofPreimage mirrors the pure-function signature convention used
// throughout the spec (§4.7, §4.8): BLAKE3 over the proof's own fields.
func (tp *TaskProof) taskProofPreimage() []byte {
	buf := make([]byte, 0, len(tp.NodeID)+len(tp.PoolID)+8+len(tp.Type)+8+8)
	buf = append(buf, []byte(tp.NodeID)...)
	buf = append(buf, []byte(tp.PoolID)...)
	buf = appendUint64(buf, tp.Slot)
	buf = append(buf, []byte(tp.Type)...)
	bits := math.Float64bits(tp.Value)
	buf = appendUint64(buf, bits)
	buf = appendUint64(buf, uint64(tp.Timestamp.UTC().UnixNano()))
	return buf
}

// VerifySignature validates tp.signature as a pure function of the proof's
// fields (spec §4.8 submitTaskProof).
func (tp *TaskProof) VerifySignature() bool {
	expected := blake3Sum(tp.taskProofPreimage())
	if len(tp.Signature) != len(expected) {
		return false
	}
	for i := range expected {
		if tp.Signature[i] != expected[i] {
			return false
		}
	}
	return true
}

// WorkCredit is a derived, per-entity-per-window ranking record (spec §3).
type WorkCredit struct {
	EntityID  string  `json:"entityId" bson:"entityId"`
	Credits   float64 `json:"credit" bson:"credit"`
	LiveScore float64 `json:"liveScore" bson:"liveScore"`
	Rank      int     `json:"rank" bson:"rank"`
}

// LeaderScheduleReason enumerates why a given primary (or lack of one) was
// chosen (spec §3).
type LeaderScheduleReason string

const (
	ReasonHighestCredits        LeaderScheduleReason = "highest_credits"
	ReasonCooldownSkip          LeaderScheduleReason = "cooldown_skip"
	ReasonVRFTieBreak           LeaderScheduleReason = "vrf_tie_break"
	ReasonDensityThresholdUnmet LeaderScheduleReason = "density_threshold_not_met"
)

// LeaderSchedule is one record per slot (spec §3).
type LeaderSchedule struct {
	Slot      uint64               `json:"slot" bson:"slot"`
	Primary   *string              `json:"primary" bson:"primary"`
	Fallbacks []string             `json:"fallbacks,omitempty" bson:"fallbacks,omitempty"`
	Reason    LeaderScheduleReason `json:"reason" bson:"reason"`
}

// TaskProofStore is the narrow seam into the task_proofs collection (spec
// §4.8, §3 "Ownership summary").
type TaskProofStore interface {
	InsertTaskProof(tp *TaskProof) error
	ProofsInWindow(startSlot, endSlot uint64) ([]*TaskProof, error)
}

// LeaderScheduleStore is the narrow seam into leader_schedule persistence.
type LeaderScheduleStore interface {
	SaveLeaderSchedule(sched *LeaderSchedule) error
	RecentPrimaries(sinceSlot uint64) (map[string]bool, error)
}

// ConsensusEngine computes work credits and runs slot-based leader
// selection (spec §4.8).
type ConsensusEngine struct {
	mu          sync.Mutex
	proofs      TaskProofStore
	schedules   LeaderScheduleStore
	vrfSeed     []byte
	clusterSize int
}

// NewConsensusEngine constructs the PoOT engine. vrfSeed seeds the
// deterministic tie-break VRF; clusterSize bounds how many top-ranked
// entities ComputeWorkCredits returns (spec §4.8 "top-k"). The engine does
// not persist WorkCredit records.
func NewConsensusEngine(proofs TaskProofStore, schedules LeaderScheduleStore, vrfSeed []byte, clusterSize int) *ConsensusEngine {
	if clusterSize <= 0 {
		clusterSize = 21
	}
	return &ConsensusEngine{proofs: proofs, schedules: schedules, vrfSeed: vrfSeed, clusterSize: clusterSize}
}

// SubmitTaskProof validates tp's signature and admits it (spec §4.8).
// Duplicate (nodeId, slot, type) tuples are accepted and aggregate in the
// value dimension — the store layer does not reject them.
func (ce *ConsensusEngine) SubmitTaskProof(tp *TaskProof) error {
	if !tp.VerifySignature() {
		return validationErrorf("signature", "task_proof: signature verification failed")
	}
	return ce.proofs.InsertTaskProof(tp)
}

func bytesEquivalentToSessions(totalBytes float64) float64 {
	baseBytes := float64(BaseMBPerSession) * (1 << 20)
	return math.Ceil(totalBytes / baseBytes)
}

// ComputeWorkCredits ranks entities over [startSlot, endSlot] per the spec
// §4.8 formula: W_E = max(S_t, ceil(B_t / (BASE_MB_PER_SESSION*1MiB))),
// liveScore_E = fraction of slots with at least one proof. Returns the
// top-`clusterSize` entities; the ranking is not persisted.
func (ce *ConsensusEngine) ComputeWorkCredits(startSlot, endSlot uint64) ([]WorkCredit, error) {
	proofs, err := ce.proofs.ProofsInWindow(startSlot, endSlot)
	if err != nil {
		return nil, fmt.Errorf("consensus: loading proofs: %w", err)
	}
	totalSlots := endSlot - startSlot + 1

	type accum struct {
		sessionEquivalent float64
		bandwidthBytes    float64
		activeSlots       map[uint64]bool
	}
	byEntity := make(map[string]*accum)
	entityOf := func(tp *TaskProof) string {
		if tp.PoolID != "" {
			return tp.PoolID
		}
		return tp.NodeID
	}
	for _, tp := range proofs {
		id := entityOf(tp)
		a, ok := byEntity[id]
		if !ok {
			a = &accum{activeSlots: make(map[uint64]bool)}
			byEntity[id] = a
		}
		switch tp.Type {
		case ProofRelayBandwidth:
			a.bandwidthBytes += tp.Value
		default:
			a.sessionEquivalent += tp.Value
		}
		a.activeSlots[tp.Slot] = true
	}

	credits := make([]WorkCredit, 0, len(byEntity))
	for id, a := range byEntity {
		w := math.Max(a.sessionEquivalent, bytesEquivalentToSessions(a.bandwidthBytes))
		live := float64(len(a.activeSlots)) / float64(totalSlots)
		credits = append(credits, WorkCredit{EntityID: id, Credits: w, LiveScore: live})
	}

	sort.Slice(credits, func(i, j int) bool {
		if credits[i].Credits != credits[j].Credits {
			return credits[i].Credits > credits[j].Credits
		}
		return credits[i].LiveScore > credits[j].LiveScore
	})
	if len(credits) > ce.clusterSize {
		credits = credits[:ce.clusterSize]
	}
	for i := range credits {
		credits[i].Rank = i + 1
	}
	return credits, nil
}

// vrfTieBreak computes a deterministic score over (slot, entityId) for
// tie-breaking (spec §4.8 step 3).
func (ce *ConsensusEngine) vrfTieBreak(slot uint64, entityID string) [32]byte {
	buf := make([]byte, 0, len(ce.vrfSeed)+8+len(entityID))
	buf = append(buf, ce.vrfSeed...)
	buf = appendUint64(buf, slot)
	buf = append(buf, []byte(entityID)...)
	return blake3.Sum256(buf)
}

// RunSlot selects the leader for slot per the five-step algorithm of spec
// §4.8 and persists the result.
func (ce *ConsensusEngine) RunSlot(slot uint64, ranking []WorkCredit) (*LeaderSchedule, error) {
	ce.mu.Lock()
	defer ce.mu.Unlock()

	cooldownStart := uint64(0)
	if slot > CooldownSlots {
		cooldownStart = slot - CooldownSlots
	}
	recentPrimaries, err := ce.schedules.RecentPrimaries(cooldownStart)
	if err != nil {
		return nil, fmt.Errorf("consensus: loading recent primaries: %w", err)
	}

	var fallbacks []string
	var primary *WorkCredit
	reason := ReasonHighestCredits

	for i := range ranking {
		e := ranking[i]
		if recentPrimaries[e.EntityID] {
			fallbacks = append(fallbacks, e.EntityID)
			reason = ReasonCooldownSkip
			continue
		}
		// Tie detection against the next non-cooldown candidate.
		j := i + 1
		for j < len(ranking) && recentPrimaries[ranking[j].EntityID] {
			j++
		}
		if j < len(ranking) {
			next := ranking[j]
			if next.Credits == e.Credits && next.LiveScore == e.LiveScore {
				scoreA := ce.vrfTieBreak(slot, e.EntityID)
				scoreB := ce.vrfTieBreak(slot, next.EntityID)
				winner := e
				if lexLess(scoreB[:], scoreA[:]) {
					winner = next
					fallbacks = append(fallbacks, e.EntityID)
				} else {
					fallbacks = append(fallbacks, next.EntityID)
				}
				primary = &winner
				reason = ReasonVRFTieBreak
				break
			}
		}
		cand := e
		primary = &cand
		break
	}

	sched := &LeaderSchedule{Slot: slot, Fallbacks: fallbacks}

	if primary == nil {
		sched.Primary = nil
		sched.Reason = ReasonDensityThresholdUnmet
	} else if primary.LiveScore < DMin {
		sched.Primary = nil
		sched.Reason = ReasonDensityThresholdUnmet
	} else {
		id := primary.EntityID
		sched.Primary = &id
		sched.Reason = reason
	}

	if err := ce.schedules.SaveLeaderSchedule(sched); err != nil {
		return nil, fmt.Errorf("consensus: saving leader schedule: %w", err)
	}
	return sched, nil
}

func lexLess(a, b []byte) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}
