package store

// ledger.go implements core.BalanceLookup and core.DuplicateChecker (spec
// §4.7) against the confirmed transactions and mempool collections, plus
// SaveConfirmedTransaction for persisting committed transactions.

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/HamiGames/Lucid-sub001/core"
)

// LedgerStore implements core.BalanceLookup and core.DuplicateChecker, and
// persists confirmed transactions.
type LedgerStore struct {
	client *Client
}

// NewLedgerStore wires a LedgerStore to the shared document store.
func NewLedgerStore(c *Client) *LedgerStore {
	return &LedgerStore{client: c}
}

// ConfirmedBalance sums confirmed transactions crediting and debiting
// address into a single balance (spec §4.7 "sufficient balance"). Computed
// via an aggregation pipeline rather than loading every transaction.
func (s *LedgerStore) ConfirmedBalance(address core.Address) (uint64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	pipeline := mongo.Pipeline{
		bson.D{{Key: "$match", Value: bson.D{
			{Key: "status", Value: "confirmed"},
			{Key: "$or", Value: bson.A{
				bson.D{{Key: "toAddress", Value: address}},
				bson.D{{Key: "fromAddress", Value: address}},
			}},
		}}},
		bson.D{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: nil},
			{Key: "credited", Value: bson.D{{Key: "$sum", Value: bson.D{
				{Key: "$cond", Value: bson.A{bson.D{{Key: "$eq", Value: bson.A{"$toAddress", address}}}, "$value", 0}},
			}}}},
			{Key: "debited", Value: bson.D{{Key: "$sum", Value: bson.D{
				{Key: "$cond", Value: bson.A{bson.D{{Key: "$eq", Value: bson.A{"$fromAddress", address}}}, "$value", 0}},
			}}}},
		}}},
	}

	cur, err := s.client.collection(CollTransactions).Aggregate(ctx, pipeline)
	if err != nil {
		return 0, fmt.Errorf("store: aggregating balance: %w", err)
	}
	defer cur.Close(ctx)

	var row struct {
		Credited int64 `bson:"credited"`
		Debited  int64 `bson:"debited"`
	}
	if cur.Next(ctx) {
		if err := cur.Decode(&row); err != nil {
			return 0, fmt.Errorf("store: decoding balance: %w", err)
		}
	}
	if row.Credited < row.Debited {
		return 0, nil
	}
	return uint64(row.Credited - row.Debited), nil
}

// TxIDExists reports whether txID already exists in mempool or confirmed
// transactions (spec §4.7 duplicate check).
func (s *LedgerStore) TxIDExists(txID string) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	n, err := s.client.collection(CollTransactions).CountDocuments(ctx, bson.D{{Key: "txId", Value: txID}})
	if err != nil {
		return false, fmt.Errorf("store: checking duplicate txid: %w", err)
	}
	if n > 0 {
		return true, nil
	}

	n, err = s.client.collection(CollMempool).CountDocuments(ctx, bson.D{{Key: "txId", Value: txID}})
	if err != nil {
		return false, fmt.Errorf("store: checking mempool duplicate: %w", err)
	}
	return n > 0, nil
}

// SaveConfirmedTransaction persists a transaction once its containing block
// is committed (spec §4.6 block commit).
func (s *LedgerStore) SaveConfirmedTransaction(tx *core.Transaction) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	tx.Status = "confirmed"
	_, err := s.client.collection(CollTransactions).ReplaceOne(
		ctx,
		bson.D{{Key: "txId", Value: tx.TxID}},
		tx,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("store: save confirmed transaction: %w", err)
	}
	return nil
}
