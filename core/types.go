// Package core implements the session→chunk→encrypt→Merkle→anchor pipeline,
// the PoOT consensus engine, and the block/transaction layer of the primary
// On-System Data Chain. The isolated TRON payout router lives in the
// sibling `payout` package and never imports this one (spec §4.10, §9).
package core

import (
	"encoding/hex"
	"fmt"
	"regexp"
)

// Address is a 20-byte hex-encoded primary-chain account identifier,
// formatted with a "0x" prefix (spec §3). Mirrors the teacher's
// core/common_structs.go Address type.
type Address [20]byte

func (a Address) Bytes() []byte { return a[:] }
func (a Address) Hex() string   { return "0x" + hex.EncodeToString(a[:]) }

func (a Address) Short() string {
	full := hex.EncodeToString(a[:])
	return fmt.Sprintf("%s..%s", full[:4], full[len(full)-4:])
}

// Hash is a 32-byte content hash (BLAKE3 or SHA-256 depending on field, see
// spec §3's ChunkMetadata note on documenting the algorithm per field).
type Hash [32]byte

func (h Hash) Hex() string { return hex.EncodeToString(h[:]) }

var hexAddressRE = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// ParseAddress validates and decodes a "0x"-prefixed 40-hex-char address
// (spec §4.7 validateTransaction address format).
func ParseAddress(s string) (Address, error) {
	var a Address
	if !hexAddressRE.MatchString(s) {
		return a, fmt.Errorf("invalid address format: %q", s)
	}
	b, err := hex.DecodeString(s[2:])
	if err != nil {
		return a, err
	}
	copy(a[:], b)
	return a, nil
}

// ParseHash decodes a 64-char lowercase hex string into a Hash.
func ParseHash(s string) (Hash, error) {
	var h Hash
	b, err := hex.DecodeString(s)
	if err != nil {
		return h, err
	}
	if len(b) != len(h) {
		return h, fmt.Errorf("invalid hash length: %d", len(b))
	}
	copy(h[:], b)
	return h, nil
}

// ZeroAddress is the all-zero 20-byte address used by the genesis
// transaction (spec §4.6).
var ZeroAddress Address

// ZeroHash is the all-zero 32-byte hash used as genesis previousHash
// (spec §3 Block invariants).
var ZeroHash Hash
