package core

// transaction.go defines the chain Transaction type, its placeholder
// signature scheme, and validation rules (spec §4.7, C7). Grounded on the
// teacher's core/transactions.go Tx hashing/signing shape, replacing the
// teacher's ECDSA scheme with the spec's pure-function BLAKE3 scheme
// (§4.7's note that a production implementer MAY substitute a real
// asymmetric scheme provided verification stays a pure function of the
// fields).

import (
	"fmt"
	"time"
)

const (
	maxTransactionBytes = 1 << 20 // 1 MiB
	baseFee             = 0.001
	feePerByte          = 1e-6
)

// Transaction is a chain transaction: opaque payload plus routing fields
// (spec §3).
type Transaction struct {
	TxID        string    `json:"txId" bson:"txId"`
	From        Address   `json:"fromAddress" bson:"fromAddress"`
	To          Address   `json:"toAddress" bson:"toAddress"`
	Value       uint64    `json:"value" bson:"value"`
	Data        []byte    `json:"data,omitempty" bson:"data,omitempty"`
	Timestamp   time.Time `json:"timestamp" bson:"timestamp"`
	Signature   []byte    `json:"signature" bson:"signature"`
	Fee         float64   `json:"fee,omitempty" bson:"fee,omitempty"`
	BlockHeight *uint64   `json:"blockHeight,omitempty" bson:"blockHeight,omitempty"`
	Status      string    `json:"status,omitempty" bson:"status,omitempty"` // pending | confirmed
}

// signaturePreimage builds the byte string
// txId || fromAddress || toAddress || value || data || timestamp
// that ExpectedSignature hashes with BLAKE3 (spec §4.7).
func (tx *Transaction) signaturePreimage() []byte {
	buf := make([]byte, 0, len(tx.TxID)+40+8+len(tx.Data)+8)
	buf = append(buf, []byte(tx.TxID)...)
	buf = append(buf, []byte(tx.From.Hex())...)
	buf = append(buf, []byte(tx.To.Hex())...)
	buf = appendUint64(buf, tx.Value)
	buf = append(buf, tx.Data...)
	buf = appendUint64(buf, uint64(tx.Timestamp.UTC().UnixNano()))
	return buf
}

// ExpectedSignature computes BLAKE3(fromAddress || ":" || BLAKE3(preimage))
// (spec §4.7).
func (tx *Transaction) ExpectedSignature() []byte {
	inner := blake3Sum(tx.signaturePreimage())
	outer := blake3Sum(append([]byte(tx.From.Hex()+":"), inner[:]...))
	return outer[:]
}

// Sign stamps tx.Signature with the expected value, simulating the
// placeholder signing step (spec §4.7).
func (tx *Transaction) Sign() {
	tx.Signature = tx.ExpectedSignature()
}

// VerifySignature is a pure function of the transaction's fields (spec
// §4.7, §3 invariant).
func (tx *Transaction) VerifySignature() bool {
	expected := tx.ExpectedSignature()
	if len(tx.Signature) != len(expected) {
		return false
	}
	for i := range expected {
		if tx.Signature[i] != expected[i] {
			return false
		}
	}
	return true
}

// MinFee implements fee ≥ base + sizeBytes*1e-6 + dataBytes*1e-6,
// returning the minimum admissible fee (spec §4.7).
func (tx *Transaction) MinFee() float64 {
	size := float64(len(tx.TxID) + 40 + 8 + len(tx.Data) + 8)
	return baseFee + size*feePerByte + float64(len(tx.Data))*feePerByte
}

// BalanceLookup computes a confirmed balance for validateTransaction's
// balance check; implemented by the store package (spec §4.7).
type BalanceLookup interface {
	ConfirmedBalance(address Address) (uint64, error)
}

// DuplicateChecker reports whether a txId already exists in the mempool or
// the confirmed transactions collection (spec §4.7).
type DuplicateChecker interface {
	TxIDExists(txID string) (bool, error)
}

// ValidateTransaction implements the ordered validation rules of spec
// §4.7. now is injected for deterministic tests.
func ValidateTransaction(tx *Transaction, now time.Time, balances BalanceLookup, dup DuplicateChecker) error {
	if tx.TxID == "" {
		return validationErrorf("txId", "transaction: txId is required")
	}
	if len(tx.Signature) == 0 {
		return validationErrorf("signature", "transaction: signature is required")
	}
	if tx.From == ZeroAddress && tx.TxID != "genesis" {
		return validationErrorf("fromAddress", "transaction: fromAddress is required")
	}
	if tx.To == ZeroAddress && tx.TxID != "genesis" {
		return validationErrorf("toAddress", "transaction: toAddress is required")
	}

	size, err := transactionSize(tx)
	if err != nil {
		return fmt.Errorf("transaction: measuring size: %w", err)
	}
	if size > maxTransactionBytes {
		return validationErrorf("size", "transaction: serialized size %d exceeds %d bytes", size, maxTransactionBytes)
	}

	earliest := now.Add(-1 * time.Hour)
	latest := now.Add(5 * time.Minute)
	if tx.Timestamp.Before(earliest) || tx.Timestamp.After(latest) {
		return validationErrorf("timestamp", "transaction: timestamp %s outside window [%s, %s]", tx.Timestamp, earliest, latest)
	}

	if !tx.VerifySignature() {
		return validationErrorf("signature", "transaction: signature verification failed")
	}

	if dup != nil {
		exists, err := dup.TxIDExists(tx.TxID)
		if err != nil {
			return fmt.Errorf("transaction: duplicate check: %w", err)
		}
		if exists {
			return duplicateTxErrorf("transaction: txId %s already exists", tx.TxID)
		}
	}

	minFee := tx.MinFee()
	if tx.Fee < minFee {
		return validationErrorf("fee", "transaction: fee %.6f below minimum %.6f", tx.Fee, minFee)
	}

	if tx.Value > 0 && balances != nil {
		balance, err := balances.ConfirmedBalance(tx.From)
		if err != nil {
			return fmt.Errorf("transaction: balance lookup: %w", err)
		}
		required := tx.Value + uint64(tx.Fee*1e6)
		if balance < required {
			return insufficientBalanceErrorf("transaction: balance %d insufficient for value+fee %d", balance, required)
		}
	}

	return nil
}

func transactionSize(tx *Transaction) (int, error) {
	return len(tx.TxID) + 40 + 8 + len(tx.Data) + 8 + len(tx.Signature), nil
}
