package core

import (
	"testing"
	"time"
)

func newTestBlockManager(t *testing.T) *BlockManager {
	t.Helper()
	bm, err := NewBlockManager(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return bm
}

func TestEnsureGenesisIdempotent(t *testing.T) {
	bm := newTestBlockManager(t)
	first, err := bm.EnsureGenesis("producer-1", []byte("net"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := bm.EnsureGenesis("producer-1", []byte("net"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.BlockHash != second.BlockHash {
		t.Fatal("EnsureGenesis must be idempotent across calls")
	}
	if bm.CurrentHeight() != 0 {
		t.Fatalf("expected current height 0 after genesis, got %d", bm.CurrentHeight())
	}
}

func TestCreateAddGetBlock(t *testing.T) {
	bm := newTestBlockManager(t)
	if _, err := bm.EnsureGenesis("producer-1", []byte("net")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tx := newTestTx(t, "tx-1", 0)
	blk, err := bm.CreateBlock([]*Transaction{tx}, "producer-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	blk.Signature = []byte("test-signature")

	if err := bm.AddBlock(blk); err != nil {
		t.Fatalf("unexpected error adding valid block: %v", err)
	}
	if bm.CurrentHeight() != 1 {
		t.Fatalf("expected current height 1, got %d", bm.CurrentHeight())
	}

	byHeight, ok := bm.GetByHeight(1)
	if !ok {
		t.Fatal("expected block retrievable by height")
	}
	if byHeight.BlockHash != blk.BlockHash {
		t.Fatal("block retrieved by height does not match added block")
	}

	byHash, ok := bm.GetByHash(blk.BlockHash)
	if !ok {
		t.Fatal("expected block retrievable by hash")
	}
	if byHash.Header.Height != 1 {
		t.Fatalf("expected height 1, got %d", byHash.Header.Height)
	}
}

func TestValidateBlockRejectsTamperedMerkleAndHash(t *testing.T) {
	bm := newTestBlockManager(t)
	if _, err := bm.EnsureGenesis("producer-1", []byte("net")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tx1 := newTestTx(t, "tx-1", 0)
	tx2 := newTestTx(t, "tx-2", 0)
	blk, err := bm.CreateBlock([]*Transaction{tx1, tx2}, "producer-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	blk.Signature = []byte("test-signature")

	// mutate a transaction id after hashing, as in spec Scenario B.
	blk.Transactions[1].TxID = "tampered"

	result := bm.ValidateBlock(blk)
	if result.Valid {
		t.Fatal("expected validation to fail for tampered transaction tree")
	}
	foundMerkle, foundHash := false, false
	for _, e := range result.Errors {
		if e == "merkleRoot mismatch" {
			foundMerkle = true
		}
		if e == "blockHash mismatch" {
			foundHash = true
		}
	}
	if !foundMerkle {
		t.Errorf("expected a merkleRoot mismatch error, got %v", result.Errors)
	}
	if !foundHash {
		t.Errorf("expected a blockHash mismatch error, got %v", result.Errors)
	}
}

func TestValidateBlockGenesisPreviousHash(t *testing.T) {
	bm := newTestBlockManager(t)
	genesis := newGenesisBlock("producer-1", []byte("net"))
	genesis.Header.PreviousHash = Hash{0x01}
	genesis.BlockHash = computeBlockHash(genesis.Header)

	result := bm.ValidateBlock(genesis)
	if result.Valid {
		t.Fatal("expected genesis with non-zero previousHash to be invalid")
	}
}

func TestAddBlockRejectsMissingPrevious(t *testing.T) {
	bm := newTestBlockManager(t)
	tx := newTestTx(t, "tx-orphan", 0)
	header := BlockHeader{
		Height:           5,
		PreviousHash:     Hash{0xAB},
		Timestamp:        time.Now().UTC(),
		TransactionCount: 1,
	}
	root, err := blockMerkleRoot([]*Transaction{tx})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	header.MerkleRoot = root
	blk := &Block{Header: header, Transactions: []*Transaction{tx}, Signature: []byte("sig")}
	blk.BlockHash = computeBlockHash(header)

	if err := bm.AddBlock(blk); err == nil {
		t.Fatal("expected error adding a block whose previous height doesn't exist")
	}
}
