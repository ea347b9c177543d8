package core

// node_work_ledger.go is the thin append-only write layer external node
// software uses to submit task proofs into the task_proofs collection
// (spec §4.12, C12). It is a feed for the PoOT engine (C8), validating
// signatures before accepting. Grounded on the teacher's thin "registry"
// wrapper pattern (core/compliance.go's narrow write-through helpers).

import "fmt"

// NodeWorkLedger accepts externally submitted task proofs on behalf of
// node software, validating before writing through to the store (spec
// §4.12).
type NodeWorkLedger struct {
	proofs TaskProofStore
}

// NewNodeWorkLedger wires the ledger to the task_proofs store.
func NewNodeWorkLedger(proofs TaskProofStore) *NodeWorkLedger {
	return &NodeWorkLedger{proofs: proofs}
}

// AppendProof validates tp.Signature as a pure function of its fields and
// appends it to task_proofs (spec §4.12). Duplicate (nodeId, slot, type)
// tuples are accepted and aggregate in the consensus engine's value
// dimension.
func (l *NodeWorkLedger) AppendProof(tp *TaskProof) error {
	if tp.NodeID == "" {
		return validationErrorf("nodeId", "node_work_ledger: nodeId is required")
	}
	if !tp.VerifySignature() {
		return validationErrorf("signature", "node_work_ledger: signature verification failed")
	}
	if err := l.proofs.InsertTaskProof(tp); err != nil {
		return fmt.Errorf("node_work_ledger: append: %w", err)
	}
	return nil
}
