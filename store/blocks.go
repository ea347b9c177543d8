package store

// blocks.go mirrors committed blocks into the shared document store for the
// read-facing query API (spec §6.1 session/chain query endpoints); the
// BlockManager (C6) remains the authoritative, locally-persisted writer,
// consistent with the "ownership summary" in spec §3 where external readers
// never write directly to a component's owned collection.

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/HamiGames/Lucid-sub001/core"
)

// BlockIndexStore is a read-replica mirror of committed blocks, queried by
// external tooling without touching the BlockManager's local files.
type BlockIndexStore struct {
	client *Client
}

// NewBlockIndexStore wires a BlockIndexStore to the shared document store.
func NewBlockIndexStore(c *Client) *BlockIndexStore {
	return &BlockIndexStore{client: c}
}

// MirrorBlock upserts a committed block by height for query purposes.
func (s *BlockIndexStore) MirrorBlock(b *core.Block) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := s.client.collection(CollBlocks).ReplaceOne(
		ctx,
		bson.D{{Key: "height", Value: b.Header.Height}},
		b,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("store: mirror block: %w", err)
	}
	return nil
}

// BlockByHeight loads a mirrored block, or nil if not yet mirrored.
func (s *BlockIndexStore) BlockByHeight(height uint64) (*core.Block, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var b core.Block
	err := s.client.collection(CollBlocks).FindOne(ctx, bson.D{{Key: "height", Value: height}}).Decode(&b)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: load block: %w", err)
	}
	return &b, nil
}

// LatestBlocks returns up to limit most recent mirrored blocks, newest
// first.
func (s *BlockIndexStore) LatestBlocks(limit int64) ([]*core.Block, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "height", Value: -1}})
	if limit > 0 {
		opts = opts.SetLimit(limit)
	}
	cur, err := s.client.collection(CollBlocks).Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("store: list blocks: %w", err)
	}
	defer cur.Close(ctx)

	var out []*core.Block
	for cur.Next(ctx) {
		var b core.Block
		if err := cur.Decode(&b); err != nil {
			return nil, fmt.Errorf("store: decoding block: %w", err)
		}
		out = append(out, &b)
	}
	return out, cur.Err()
}
