// Package store is the sharded document store client (spec §4.11, C11),
// backed by go.mongodb.org/mongo-driver. It is the only cross-component
// shared mutable state (spec §5); each collection has exactly one writer
// component per the ownership summary in spec §3.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Collection names (spec §3 "Ownership summary").
const (
	CollSessions       = "sessions"
	CollChunks         = "chunks"
	CollSessionAnchors = "session_anchors"
	CollBlocks         = "blocks"
	CollBlockHeaders   = "block_headers"
	CollBlockMetadata  = "block_metadata"
	CollTransactions   = "transactions"
	CollMempool        = "mempool"
	CollTaskProofs     = "task_proofs"
	CollWorkCredits    = "work_credits"
	CollLeaderSchedule = "leader_schedule"
	CollPayouts        = "payouts"
	CollPayoutBatches  = "payout_batches"
	CollPipelineState  = "pipeline_state"
)

// Client wraps a mongo.Client with the database handle and per-collection
// accessors used throughout core, payout, and the cmd entrypoints.
type Client struct {
	mongo  *mongo.Client
	db     *mongo.Database
	logger *logrus.Logger
}

// Connect dials mongoURL and selects dbName, applying ConnectTimeoutSec and
// MaxPoolSize from configuration (spec §6.5).
func Connect(ctx context.Context, mongoURL, dbName string, connectTimeoutSec int, maxPoolSize uint64, logger *logrus.Logger) (*Client, error) {
	if logger == nil {
		logger = logrus.New()
	}
	if connectTimeoutSec <= 0 {
		connectTimeoutSec = 10
	}
	ctx, cancel := context.WithTimeout(ctx, time.Duration(connectTimeoutSec)*time.Second)
	defer cancel()

	opts := options.Client().ApplyURI(mongoURL)
	if maxPoolSize > 0 {
		opts = opts.SetMaxPoolSize(maxPoolSize)
	}
	mc, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("store: connect: %w", err)
	}
	if err := mc.Ping(ctx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("store: ping: %w", err)
	}

	c := &Client{mongo: mc, db: mc.Database(dbName), logger: logger}
	logger.WithFields(logrus.Fields{"db": dbName}).Info("store: connected")
	return c, nil
}

// Disconnect closes the underlying connection.
func (c *Client) Disconnect(ctx context.Context) error {
	return c.mongo.Disconnect(ctx)
}

func (c *Client) collection(name string) *mongo.Collection {
	return c.db.Collection(name)
}

// EnsureIndexes creates the unique/compound indexes named in spec §3/§4.11.
// Safe to call repeatedly (Mongo is idempotent on identical index specs).
func (c *Client) EnsureIndexes(ctx context.Context) error {
	specs := []struct {
		collection string
		model      mongo.IndexModel
	}{
		{CollSessions, indexModel(bsonD("ownerAddress", 1, "startedAt", 1), false)},
		{CollSessions, indexModel(bsonD("sessionId", 1), true)},
		{CollChunks, indexModel(bsonD("sessionId", 1, "sequenceIndex", 1), true)},
		{CollSessionAnchors, indexModel(bsonD("sessionId", 1), true)},
		{CollSessionAnchors, indexModel(bsonD("status", 1), false)},
		{CollBlocks, indexModel(bsonD("height", 1), true)},
		{CollTransactions, indexModel(bsonD("txId", 1), true)},
		{CollMempool, indexModel(bsonD("txId", 1), true)},
		{CollTaskProofs, indexModel(bsonD("slot", 1, "nodeId", 1), false)},
		{CollLeaderSchedule, indexModel(bsonD("slot", 1), true)},
		{CollPayouts, indexModel(bsonD("payoutId", 1), true)},
		{CollPayoutBatches, indexModel(bsonD("batchId", 1), true)},
	}
	for _, s := range specs {
		if _, err := c.collection(s.collection).Indexes().CreateOne(ctx, s.model); err != nil {
			return fmt.Errorf("store: creating index on %s: %w", s.collection, err)
		}
	}
	return nil
}
