package store

// payouts.go implements payout.PayoutStore (spec §4.10) against the
// payouts and payout_batches collections. This is the one place the
// store package imports payout's types — the isolation rule in spec §4.10
// binds the payout package itself, not its storage seam.

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/HamiGames/Lucid-sub001/payout"
)

// PayoutStore implements payout.PayoutStore against the payouts and
// payout_batches collections.
type PayoutStore struct {
	client *Client
}

// NewPayoutStore wires a PayoutStore to the shared document store.
func NewPayoutStore(c *Client) *PayoutStore {
	return &PayoutStore{client: c}
}

// SaveRequest upserts one payout request by payoutId.
func (s *PayoutStore) SaveRequest(r *payout.PayoutRequest) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := s.client.collection(CollPayouts).ReplaceOne(
		ctx,
		bson.D{{Key: "payoutId", Value: r.PayoutID}},
		r,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("store: save payout request: %w", err)
	}
	return nil
}

// PendingRequests loads up to limit pending requests of routerType, oldest
// first, for batch assembly (spec §4.10 control flow).
func (s *PayoutStore) PendingRequests(routerType payout.RouterType, limit int) ([]*payout.PayoutRequest, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	filter := bson.D{
		{Key: "routerType", Value: routerType},
		{Key: "status", Value: payout.PayoutPending},
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})
	if limit > 0 {
		opts = opts.SetLimit(int64(limit))
	}
	cur, err := s.client.collection(CollPayouts).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("store: list pending payouts: %w", err)
	}
	defer cur.Close(ctx)

	var out []*payout.PayoutRequest
	for cur.Next(ctx) {
		var r payout.PayoutRequest
		if err := cur.Decode(&r); err != nil {
			return nil, fmt.Errorf("store: decoding payout request: %w", err)
		}
		out = append(out, &r)
	}
	return out, cur.Err()
}

// SaveBatch upserts one payout batch by batchId.
func (s *PayoutStore) SaveBatch(b *payout.PayoutBatch) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := s.client.collection(CollPayoutBatches).ReplaceOne(
		ctx,
		bson.D{{Key: "batchId", Value: b.BatchID}},
		b,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("store: save payout batch: %w", err)
	}
	return nil
}

// UpdateRequestsStatus bulk-updates every request named in ids after a
// batch resolves (spec §4.10 "inherit the batch's txid and processedAt").
func (s *PayoutStore) UpdateRequestsStatus(ids []string, status payout.PayoutStatus, txid string, processedAt *time.Time, errMsg string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	set := bson.D{{Key: "status", Value: status}}
	if txid != "" {
		set = append(set, bson.E{Key: "txid", Value: txid})
	}
	if processedAt != nil {
		set = append(set, bson.E{Key: "processedAt", Value: *processedAt})
	}
	if errMsg != "" {
		set = append(set, bson.E{Key: "errorMessage", Value: errMsg})
	}

	filter := bson.D{{Key: "payoutId", Value: bson.D{{Key: "$in", Value: ids}}}}
	_, err := s.client.collection(CollPayouts).UpdateMany(ctx, filter, bson.D{{Key: "$set", Value: set}})
	if err != nil {
		return fmt.Errorf("store: updating payout request statuses: %w", err)
	}
	return nil
}
