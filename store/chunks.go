package store

// chunks.go persists per-chunk metadata ahead of Merkle-root assembly,
// keyed by (sessionId, sequenceIndex) per the collection's compound unique
// index (spec §3, §4.11).

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/HamiGames/Lucid-sub001/core"
)

// ChunkStore persists chunk metadata independent of the final manifest, so
// progress survives a crash mid-session (spec §4.2 "at-least-once").
type ChunkStore struct {
	client *Client
}

// NewChunkStore wires a ChunkStore to the shared document store.
func NewChunkStore(c *Client) *ChunkStore {
	return &ChunkStore{client: c}
}

// SaveChunk upserts one chunk's metadata by (sessionId, sequenceIndex).
func (s *ChunkStore) SaveChunk(cm core.ChunkMetadata) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	filter := bson.D{{Key: "sessionId", Value: cm.SessionID}, {Key: "sequenceIndex", Value: cm.SequenceIndex}}
	_, err := s.client.collection(CollChunks).ReplaceOne(ctx, filter, cm, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("store: save chunk: %w", err)
	}
	return nil
}

// ChunksBySession loads all chunk records for a session, ordered by
// sequenceIndex, for Merkle-root recomputation or manifest assembly.
func (s *ChunkStore) ChunksBySession(sessionID string) ([]core.ChunkMetadata, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "sequenceIndex", Value: 1}})
	cur, err := s.client.collection(CollChunks).Find(ctx, bson.D{{Key: "sessionId", Value: sessionID}}, opts)
	if err != nil {
		return nil, fmt.Errorf("store: list chunks: %w", err)
	}
	defer cur.Close(ctx)

	var out []core.ChunkMetadata
	for cur.Next(ctx) {
		var cm core.ChunkMetadata
		if err := cur.Decode(&cm); err != nil {
			return nil, fmt.Errorf("store: decoding chunk: %w", err)
		}
		out = append(out, cm)
	}
	return out, cur.Err()
}
