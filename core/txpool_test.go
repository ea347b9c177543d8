package core

import (
	"testing"
	"time"
)

func txWithFee(t *testing.T, id string, fee float64, ts time.Time) *Transaction {
	t.Helper()
	from, err := ParseAddress("0x1111111111111111111111111111111111111111")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	to, err := ParseAddress("0x2222222222222222222222222222222222222222")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return &Transaction{TxID: id, From: from, To: to, Fee: fee, Timestamp: ts}
}

func TestMempoolEvictionUnderLoad(t *testing.T) {
	// Scenario D (spec §8): capacity=3, submit A(0.005), B(0.003), C(0.010),
	// then D(0.004); after D is admitted, the pool holds {A, C, D} and B was
	// evicted for having the strictly lowest fee.
	m := NewMempool(3)
	now := time.Now().UTC()

	if err := m.Submit(txWithFee(t, "A", 0.005, now)); err != nil {
		t.Fatalf("submit A: %v", err)
	}
	if err := m.Submit(txWithFee(t, "B", 0.003, now)); err != nil {
		t.Fatalf("submit B: %v", err)
	}
	if err := m.Submit(txWithFee(t, "C", 0.010, now)); err != nil {
		t.Fatalf("submit C: %v", err)
	}
	if err := m.Submit(txWithFee(t, "D", 0.004, now)); err != nil {
		t.Fatalf("submit D: %v", err)
	}

	if m.Len() != 3 {
		t.Fatalf("expected pool size 3 after eviction, got %d", m.Len())
	}
	for _, id := range []string{"A", "C", "D"} {
		if exists, _ := m.TxIDExists(id); !exists {
			t.Errorf("expected %s to remain admitted", id)
		}
	}
	if exists, _ := m.TxIDExists("B"); exists {
		t.Error("expected B to be evicted as the lowest-fee transaction")
	}
}

func TestMempoolRejectsDuplicateTxID(t *testing.T) {
	m := NewMempool(10)
	now := time.Now().UTC()
	if err := m.Submit(txWithFee(t, "dup", 0.01, now)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := m.Submit(txWithFee(t, "dup", 0.01, now)); err == nil {
		t.Fatal("expected error submitting a duplicate txId")
	}
}

func TestMempoolPendingForBlockOrdering(t *testing.T) {
	m := NewMempool(10)
	now := time.Now().UTC()
	if err := m.Submit(txWithFee(t, "low-old", 0.001, now.Add(-2*time.Minute))); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := m.Submit(txWithFee(t, "high", 0.01, now)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := m.Submit(txWithFee(t, "low-new", 0.001, now.Add(-1*time.Minute))); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ordered := m.PendingForBlock(0)
	if len(ordered) != 3 {
		t.Fatalf("expected 3 pending transactions, got %d", len(ordered))
	}
	if ordered[0].TxID != "high" {
		t.Fatalf("expected highest-fee transaction first, got %s", ordered[0].TxID)
	}
	if ordered[1].TxID != "low-old" || ordered[2].TxID != "low-new" {
		t.Fatalf("expected fee ties broken by earliest timestamp, got order %s, %s", ordered[1].TxID, ordered[2].TxID)
	}
}

func TestMempoolExpireOlderThan(t *testing.T) {
	m := NewMempool(10)
	past := time.Now().UTC().Add(-48 * time.Hour)
	if err := m.Submit(txWithFee(t, "stale", 0.01, past)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Submit stamps admitted=now regardless of tx.Timestamp, so manipulate
	// the pool's bookkeeping indirectly: expire relative to a point far in
	// the future to exercise the TTL path deterministically.
	expired := m.ExpireOlderThan(time.Now().UTC().Add(25 * time.Hour))
	if len(expired) != 1 || expired[0] != "stale" {
		t.Fatalf("expected 'stale' to expire, got %v", expired)
	}
	if m.Len() != 0 {
		t.Fatalf("expected empty pool after expiry, got size %d", m.Len())
	}
}

func TestOnBlockCommittedRemovesFromPool(t *testing.T) {
	m := NewMempool(10)
	tx := txWithFee(t, "included", 0.01, time.Now().UTC())
	if err := m.Submit(tx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m.OnBlockCommitted([]*Transaction{tx}, 42)
	if m.Len() != 0 {
		t.Fatalf("expected mempool empty after commit, got size %d", m.Len())
	}
	if tx.Status != "confirmed" || tx.BlockHeight == nil || *tx.BlockHeight != 42 {
		t.Fatal("expected transaction marked confirmed with block height 42")
	}
}

func TestConfirmations(t *testing.T) {
	if got := Confirmations(100, 95); got != 6 {
		t.Fatalf("expected 6 confirmations, got %d", got)
	}
	if got := Confirmations(10, 20); got != 0 {
		t.Fatalf("expected 0 confirmations when chain behind block height, got %d", got)
	}
}
