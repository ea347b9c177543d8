package core

// merkle.go builds and verifies Merkle trees over encrypted session chunks
// (spec §4.3, C3). Leaves and inner nodes are hashed with BLAKE3. When a
// level has an odd number of nodes, the last node is duplicated as its own
// sibling — grounded on the teacher's core/merkle_tree_operations.go
// (BuildMerkleTree/MerkleProof/VerifyMerklePath), switched from SHA-256 to
// BLAKE3 and extended with a persisted MerkleRoot record (spec §6.4).

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"lukechampine.com/blake3"
)

func blake3Sum(b []byte) [32]byte {
	return blake3.Sum256(b)
}

// MerkleRoot is the persisted descriptor of a session's Merkle tree
// (spec §3, §6.4).
type MerkleRoot struct {
	SessionID  string    `json:"sessionId"`
	RootHash   Hash      `json:"rootHash"`
	TreeDepth  int       `json:"treeDepth"`
	LeafCount  int       `json:"leafCount"`
	TotalNodes int       `json:"totalNodes"`
	Timestamp  time.Time `json:"timestamp"`
}

// MerkleProof is a single-leaf inclusion proof (spec §4.3).
type MerkleProof struct {
	LeafHash  Hash   `json:"leafHash"`
	ProofPath []Hash `json:"proofPath"`
	LeafIndex int    `json:"leafIndex"`
	RootHash  Hash   `json:"rootHash"`
}

// MerkleBuilder builds and persists Merkle roots for encrypted chunk
// sequences and answers proof queries.
type MerkleBuilder struct {
	storageDir string
}

// NewMerkleBuilder constructs a builder that persists root metadata files
// under storageDir (spec §6.4's "Merkle root file").
func NewMerkleBuilder(storageDir string) *MerkleBuilder {
	return &MerkleBuilder{storageDir: storageDir}
}

// buildLevels returns every level of the tree, leaves first, duplicating the
// final node of an odd-length level (spec §4.3, §8 invariant 3).
func buildLevels(leaves [][]byte) ([][]Hash, error) {
	if len(leaves) == 0 {
		return nil, errors.New("merkle: no leaves")
	}
	level := make([]Hash, len(leaves))
	for i, l := range leaves {
		level[i] = blake3Sum(l)
	}
	tree := [][]Hash{level}
	for len(level) > 1 {
		if len(level)%2 == 1 {
			level = append(level, level[len(level)-1])
		}
		next := make([]Hash, len(level)/2)
		for i := 0; i < len(level); i += 2 {
			pair := append(append([]byte{}, level[i][:]...), level[i+1][:]...)
			next[i/2] = blake3Sum(pair)
		}
		tree = append(tree, next)
		level = next
	}
	return tree, nil
}

// BuildTree builds the Merkle root over the encrypted bytes of chunks, in
// index order, and persists a MerkleRoot record keyed by sessionID
// (spec §4.3). It fails if encryptedChunks is empty.
func (b *MerkleBuilder) BuildTree(sessionID string, encryptedChunks [][]byte) (*MerkleRoot, error) {
	if len(encryptedChunks) == 0 {
		return nil, errors.New("merkle: cannot build tree over zero chunks")
	}
	tree, err := buildLevels(encryptedChunks)
	if err != nil {
		return nil, err
	}
	total := 0
	for _, lvl := range tree {
		total += len(lvl)
	}
	root := &MerkleRoot{
		SessionID:  sessionID,
		RootHash:   tree[len(tree)-1][0],
		TreeDepth:  len(tree) - 1,
		LeafCount:  len(encryptedChunks),
		TotalNodes: total,
		Timestamp:  time.Now().UTC(),
	}
	if b.storageDir != "" {
		if err := b.persist(root); err != nil {
			return nil, err
		}
	}
	return root, nil
}

func (b *MerkleBuilder) persist(root *MerkleRoot) error {
	if err := os.MkdirAll(b.storageDir, 0o755); err != nil {
		return fmt.Errorf("merkle: mkdir: %w", err)
	}
	payload := struct {
		SessionID  string `json:"sessionId"`
		RootHash   string `json:"rootHash"`
		TreeDepth  int    `json:"treeDepth"`
		LeafCount  int    `json:"leafCount"`
		TotalNodes int    `json:"totalNodes"`
		Timestamp  string `json:"timestamp"`
	}{
		SessionID:  root.SessionID,
		RootHash:   root.RootHash.Hex(),
		TreeDepth:  root.TreeDepth,
		LeafCount:  root.LeafCount,
		TotalNodes: root.TotalNodes,
		Timestamp:  root.Timestamp.Format(time.RFC3339Nano),
	}
	raw, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return err
	}
	path := filepath.Join(b.storageDir, fmt.Sprintf("merkle_%s.json", root.SessionID))
	return os.WriteFile(path, raw, 0o644)
}

// GenerateProof rebuilds the tree and collects the sibling hash path for
// chunkIndex (spec §4.3).
func (b *MerkleBuilder) GenerateProof(sessionID string, chunkIndex int, encryptedChunks [][]byte) (*MerkleProof, error) {
	if chunkIndex < 0 || chunkIndex >= len(encryptedChunks) {
		return nil, fmt.Errorf("merkle: leaf index %d out of range [0,%d)", chunkIndex, len(encryptedChunks))
	}
	tree, err := buildLevels(encryptedChunks)
	if err != nil {
		return nil, err
	}
	proof := make([]Hash, 0, len(tree)-1)
	idx := chunkIndex
	for i := 0; i < len(tree)-1; i++ {
		level := tree[i]
		if idx%2 == 0 {
			if idx+1 >= len(level) {
				// last node of an odd-length level: its sibling is itself
				// (last-node duplication), which buildLevels never stores.
				proof = append(proof, level[idx])
			} else {
				proof = append(proof, level[idx+1])
			}
		} else {
			proof = append(proof, level[idx-1])
		}
		idx /= 2
	}
	return &MerkleProof{
		LeafHash:  tree[0][chunkIndex],
		ProofPath: proof,
		LeafIndex: chunkIndex,
		RootHash:  tree[len(tree)-1][0],
	}, nil
}

// VerifyProof is a pure function of the proof: it does not consult any
// persisted root (spec §4.3).
func VerifyProof(proof *MerkleProof) bool {
	hash := proof.LeafHash
	idx := proof.LeafIndex
	for _, sibling := range proof.ProofPath {
		var pair []byte
		if idx%2 == 0 {
			pair = append(append([]byte{}, hash[:]...), sibling[:]...)
		} else {
			pair = append(append([]byte{}, sibling[:]...), hash[:]...)
		}
		hash = blake3Sum(pair)
		idx /= 2
	}
	return bytes.Equal(hash[:], proof.RootHash[:])
}
