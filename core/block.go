package core

// block.go defines the chain Block/BlockHeader types and hashing/validation
// rules (spec §4.6, C6). Grounded on the teacher's core/common_structs.go
// Block/BlockHeader shape, switched from the teacher's PoW SHA-256 block
// hash to the spec's BLAKE3 serialization and extended with full
// validation and genesis creation.

import (
	"encoding/json"
	"fmt"
	"time"
)

const (
	// MaxTransactionsPerBlock bounds block size (spec §4.6).
	MaxTransactionsPerBlock = 1000
	// MaxBlockSerializedBytes bounds block size (spec §4.6).
	MaxBlockSerializedBytes = 1 << 20 // 1 MiB
	// ClockSkewTolerance bounds acceptable future timestamps (spec §4.6).
	ClockSkewTolerance = 5 * time.Minute

	genesisSignature = "genesis_signature"
)

// BlockHeader carries the first four Block fields plus producer and
// transaction count, for light clients (spec §3).
type BlockHeader struct {
	Height           uint64    `json:"height" bson:"height"`
	PreviousHash     Hash      `json:"previousHash" bson:"previousHash"`
	Timestamp        time.Time `json:"timestamp" bson:"timestamp"`
	MerkleRoot       Hash      `json:"merkleRoot" bson:"merkleRoot"`
	Producer         string    `json:"producer" bson:"producer"`
	TransactionCount int       `json:"transactionCount" bson:"transactionCount"`
}

// Block is one chain block (spec §3).
type Block struct {
	Header       BlockHeader    `json:"header" bson:"header"`
	Transactions []*Transaction `json:"transactions" bson:"transactions"`
	BlockHash    Hash           `json:"blockHash" bson:"blockHash"`
	Signature    []byte         `json:"signature" bson:"signature"`
}

// ValidationResult is the outcome of validateBlock (spec §4.6).
type ValidationResult struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// blockMerkleRoot builds a BLAKE3 Merkle root over transaction ids, in
// order, with last-node duplication (spec §4.6 reuses the C3 algorithm over
// a different leaf set than session chunks — see DESIGN.md Open Question
// resolution on the two Merkle leaf algorithms).
func blockMerkleRoot(txs []*Transaction) (Hash, error) {
	if len(txs) == 0 {
		var z Hash
		return z, nil
	}
	leaves := make([][]byte, len(txs))
	for i, tx := range txs {
		leaves[i] = []byte(tx.TxID)
	}
	levels, err := buildLevels(leaves)
	if err != nil {
		return Hash{}, err
	}
	return levels[len(levels)-1][0], nil
}

// blockHashTimeLayout is the fixed-width timestamp form pinned by spec §9
// (trailing zero nanoseconds are significant to the hash, unlike RFC3339Nano).
const blockHashTimeLayout = "2006-01-02T15:04:05.000000000Z"

// computeBlockHash implements
// blockHash = BLAKE3(height || previousHash || timestamp || merkleRoot || producer || transactionCount)
// (spec §4.6, §9).
func computeBlockHash(h BlockHeader) Hash {
	buf := make([]byte, 0, 8+32+32+32+len(h.Producer)+8)
	buf = appendUint64(buf, h.Height)
	buf = append(buf, h.PreviousHash[:]...)
	buf = append(buf, []byte(h.Timestamp.UTC().Format(blockHashTimeLayout))...)
	buf = append(buf, h.MerkleRoot[:]...)
	buf = append(buf, []byte(h.Producer)...)
	buf = appendUint64(buf, uint64(h.TransactionCount))
	return blake3Sum(buf)
}

func appendUint64(b []byte, v uint64) []byte {
	var tmp [8]byte
	for i := 0; i < 8; i++ {
		tmp[i] = byte(v >> (8 * i))
	}
	return append(b, tmp[:]...)
}

func serializedSize(b *Block) (int, error) {
	raw, err := json.Marshal(b)
	if err != nil {
		return 0, err
	}
	return len(raw), nil
}

// newGenesisBlock creates the single genesis transaction and block (spec
// §4.6: from/to = zero address, value 0, literal signature
// "genesis_signature").
func newGenesisBlock(producer string, networkDescription []byte) *Block {
	genesisTx := &Transaction{
		TxID:      "genesis",
		From:      ZeroAddress,
		To:        ZeroAddress,
		Value:     0,
		Data:      networkDescription,
		Timestamp: time.Unix(0, 0).UTC(),
		Signature: []byte(genesisSignature),
	}
	root, _ := blockMerkleRoot([]*Transaction{genesisTx})
	header := BlockHeader{
		Height:           0,
		PreviousHash:     ZeroHash,
		Timestamp:        time.Unix(0, 0).UTC(),
		MerkleRoot:       root,
		Producer:         producer,
		TransactionCount: 1,
	}
	blk := &Block{
		Header:       header,
		Transactions: []*Transaction{genesisTx},
		Signature:    []byte(genesisSignature),
	}
	blk.BlockHash = computeBlockHash(header)
	return blk
}

func blockFileName(height uint64) string {
	return fmt.Sprintf("block_%010d.json", height)
}
