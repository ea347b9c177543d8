package core

import (
	"testing"
	"time"
)

func newTestTx(t *testing.T, id string, value uint64) *Transaction {
	t.Helper()
	from, err := ParseAddress("0x1111111111111111111111111111111111111111")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	to, err := ParseAddress("0x2222222222222222222222222222222222222222")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tx := &Transaction{
		TxID:      id,
		From:      from,
		To:        to,
		Value:     value,
		Timestamp: time.Now().UTC(),
	}
	tx.Sign()
	tx.Fee = tx.MinFee()
	return tx
}

func TestBlockMerkleRootSingleTransaction(t *testing.T) {
	tx := newTestTx(t, "tx-only", 0)
	root, err := blockMerkleRoot([]*Transaction{tx})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expected := blake3Sum([]byte(tx.TxID))
	if root != Hash(expected) {
		t.Fatal("single-transaction merkleRoot must equal BLAKE3(tx.id)")
	}
}

func TestBlockMerkleRootEmpty(t *testing.T) {
	root, err := blockMerkleRoot(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if root != ZeroHash {
		t.Fatal("empty transaction set must yield the zero hash")
	}
}

func TestNewGenesisBlock(t *testing.T) {
	blk := newGenesisBlock("producer-1", []byte("network description"))
	if blk.Header.Height != 0 {
		t.Fatalf("expected genesis height 0, got %d", blk.Header.Height)
	}
	if blk.Header.PreviousHash != ZeroHash {
		t.Fatal("genesis previousHash must be all zero")
	}
	if len(blk.Transactions) != 1 {
		t.Fatalf("expected exactly one genesis transaction, got %d", len(blk.Transactions))
	}
	gtx := blk.Transactions[0]
	if gtx.From != ZeroAddress || gtx.To != ZeroAddress || gtx.Value != 0 {
		t.Fatal("genesis transaction must have zero from/to/value")
	}
	if string(gtx.Signature) != genesisSignature {
		t.Fatalf("expected literal genesis signature, got %q", gtx.Signature)
	}
	if computeBlockHash(blk.Header) != blk.BlockHash {
		t.Fatal("genesis block hash does not match its own header")
	}
}
