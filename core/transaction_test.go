package core

import (
	"testing"
	"time"
)

type fakeBalanceLookup struct{ balances map[Address]uint64 }

func (f *fakeBalanceLookup) ConfirmedBalance(address Address) (uint64, error) {
	return f.balances[address], nil
}

type fakeDuplicateChecker struct{ existing map[string]bool }

func (f *fakeDuplicateChecker) TxIDExists(txID string) (bool, error) {
	return f.existing[txID], nil
}

func TestSignAndVerifySignatureRoundTrip(t *testing.T) {
	tx := newTestTx(t, "tx-sig", 10)
	if !tx.VerifySignature() {
		t.Fatal("expected freshly signed transaction to verify")
	}
	tx.Value = 999
	if tx.VerifySignature() {
		t.Fatal("expected signature verification to fail after mutating a signed field")
	}
}

func TestMinFeeScalesWithDataSize(t *testing.T) {
	small := newTestTx(t, "tx-small", 0)
	small.Data = nil
	large := newTestTx(t, "tx-large", 0)
	large.Data = make([]byte, 10_000)
	if large.MinFee() <= small.MinFee() {
		t.Fatalf("expected larger payload to raise the minimum fee: small=%v large=%v", small.MinFee(), large.MinFee())
	}
}

func TestValidateTransactionHappyPath(t *testing.T) {
	tx := newTestTx(t, "tx-valid", 0)
	tx.Fee = tx.MinFee()
	if err := ValidateTransaction(tx, time.Now().UTC(), nil, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateTransactionRejectsMissingTxID(t *testing.T) {
	tx := newTestTx(t, "tx-x", 0)
	tx.TxID = ""
	if err := ValidateTransaction(tx, time.Now().UTC(), nil, nil); err == nil {
		t.Fatal("expected error for missing txId")
	}
}

func TestValidateTransactionRejectsStaleTimestamp(t *testing.T) {
	tx := newTestTx(t, "tx-stale", 0)
	tx.Timestamp = time.Now().UTC().Add(-2 * time.Hour)
	tx.Sign()
	tx.Fee = tx.MinFee()
	if err := ValidateTransaction(tx, time.Now().UTC(), nil, nil); err == nil {
		t.Fatal("expected error for timestamp outside the admissible window")
	}
}

func TestValidateTransactionRejectsFutureTimestamp(t *testing.T) {
	tx := newTestTx(t, "tx-future", 0)
	tx.Timestamp = time.Now().UTC().Add(10 * time.Minute)
	tx.Sign()
	tx.Fee = tx.MinFee()
	if err := ValidateTransaction(tx, time.Now().UTC(), nil, nil); err == nil {
		t.Fatal("expected error for timestamp too far in the future")
	}
}

func TestValidateTransactionRejectsBelowMinFee(t *testing.T) {
	tx := newTestTx(t, "tx-cheap", 0)
	tx.Fee = 0
	if err := ValidateTransaction(tx, time.Now().UTC(), nil, nil); err == nil {
		t.Fatal("expected error for fee below minimum")
	}
}

func TestValidateTransactionRejectsDuplicateTxID(t *testing.T) {
	tx := newTestTx(t, "tx-dup", 0)
	tx.Fee = tx.MinFee()
	dup := &fakeDuplicateChecker{existing: map[string]bool{"tx-dup": true}}
	if err := ValidateTransaction(tx, time.Now().UTC(), nil, dup); err == nil {
		t.Fatal("expected error for duplicate txId")
	}
}

func TestValidateTransactionRejectsInsufficientBalance(t *testing.T) {
	tx := newTestTx(t, "tx-poor", 1000)
	tx.Fee = tx.MinFee()
	balances := &fakeBalanceLookup{balances: map[Address]uint64{tx.From: 10}}
	if err := ValidateTransaction(tx, time.Now().UTC(), balances, nil); err == nil {
		t.Fatal("expected error for insufficient balance")
	}
}

func TestValidateTransactionSufficientBalancePasses(t *testing.T) {
	tx := newTestTx(t, "tx-rich", 1000)
	tx.Fee = tx.MinFee()
	balances := &fakeBalanceLookup{balances: map[Address]uint64{tx.From: 1_000_000}}
	if err := ValidateTransaction(tx, time.Now().UTC(), balances, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
