package core

// txpool.go is the transaction mempool: admission, capacity eviction, TTL
// expiry, and ordered batches for block producers (spec §4.7, C7). Grounded
// on the teacher's core/consensus.go txPool wire-up interface and
// core/ledger.go's pending-pool bookkeeping, rebuilt as a standalone
// fee/TTL-aware pool.

import (
	"sort"
	"sync"
	"time"
)

const (
	// DefaultMempoolCapacity is the default N (spec §4.7).
	DefaultMempoolCapacity = 10_000
	// MempoolTTL is the transaction time-to-live (spec §4.7).
	MempoolTTL = 24 * time.Hour
)

type mempoolEntry struct {
	tx       *Transaction
	admitted time.Time
}

// Mempool holds pending transactions awaiting block inclusion (spec §4.7).
type Mempool struct {
	mu       sync.Mutex
	capacity int
	byTxID   map[string]*mempoolEntry
	byFrom   map[Address][]string
}

// NewMempool constructs a Mempool with the given capacity (0 selects the
// default).
func NewMempool(capacity int) *Mempool {
	if capacity <= 0 {
		capacity = DefaultMempoolCapacity
	}
	return &Mempool{
		capacity: capacity,
		byTxID:   make(map[string]*mempoolEntry),
		byFrom:   make(map[Address][]string),
	}
}

// Submit admits tx, evicting the lowest-fee transaction if at capacity
// (spec §4.7). Callers MUST validate tx via ValidateTransaction first.
func (m *Mempool) Submit(tx *Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.byTxID[tx.TxID]; exists {
		return duplicateTxErrorf("mempool: txId %s already admitted", tx.TxID)
	}

	if len(m.byTxID) >= m.capacity {
		m.evictLowestFeeLocked()
	}

	entry := &mempoolEntry{tx: tx, admitted: time.Now().UTC()}
	m.byTxID[tx.TxID] = entry
	m.byFrom[tx.From] = append(m.byFrom[tx.From], tx.TxID)
	return nil
}

func (m *Mempool) evictLowestFeeLocked() {
	var lowestID string
	var lowestFee float64
	first := true
	for id, e := range m.byTxID {
		if first || e.tx.Fee < lowestFee {
			lowestID = id
			lowestFee = e.tx.Fee
			first = false
		}
	}
	if lowestID != "" {
		m.removeLocked(lowestID)
	}
}

func (m *Mempool) removeLocked(txID string) {
	entry, ok := m.byTxID[txID]
	if !ok {
		return
	}
	delete(m.byTxID, txID)
	ids := m.byFrom[entry.tx.From]
	for i, id := range ids {
		if id == txID {
			m.byFrom[entry.tx.From] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	if len(m.byFrom[entry.tx.From]) == 0 {
		delete(m.byFrom, entry.tx.From)
	}
}

// ExpireOlderThan removes every transaction admitted more than MempoolTTL
// ago, returning the removed txIds (spec §4.7 "reason expired").
func (m *Mempool) ExpireOlderThan(now time.Time) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var expired []string
	for id, e := range m.byTxID {
		if now.Sub(e.admitted) > MempoolTTL {
			expired = append(expired, id)
		}
	}
	for _, id := range expired {
		m.removeLocked(id)
	}
	return expired
}

// TxIDExists implements DuplicateChecker against the in-memory pool only;
// callers typically compose this with a persisted-collection check.
func (m *Mempool) TxIDExists(txID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.byTxID[txID]
	return ok, nil
}

// PendingForBlock returns up to limit transactions sorted by
// (-fee, timestamp ascending) (spec §4.7).
func (m *Mempool) PendingForBlock(limit int) []*Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()

	all := make([]*Transaction, 0, len(m.byTxID))
	for _, e := range m.byTxID {
		all = append(all, e.tx)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Fee != all[j].Fee {
			return all[i].Fee > all[j].Fee
		}
		return all[i].Timestamp.Before(all[j].Timestamp)
	})
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all
}

// OnBlockCommitted removes the included transactions from the mempool;
// callers are responsible for persisting them to the confirmed
// transactions collection with status=confirmed, blockHeight=blockHeight
// (spec §4.7 — collection ownership lives in the store package).
func (m *Mempool) OnBlockCommitted(transactions []*Transaction, blockHeight uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, tx := range transactions {
		tx.Status = "confirmed"
		height := blockHeight
		tx.BlockHeight = &height
		m.removeLocked(tx.TxID)
	}
}

// Len reports the current pool size.
func (m *Mempool) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byTxID)
}

// Confirmations computes currentChainHeight - blockHeight + 1 (spec §4.7).
func Confirmations(currentChainHeight, blockHeight uint64) uint64 {
	if currentChainHeight < blockHeight {
		return 0
	}
	return currentChainHeight - blockHeight + 1
}
