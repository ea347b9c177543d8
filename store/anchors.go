package store

// anchors.go implements core.AnchorStore (spec §4.9, C9) against the
// session_anchors collection.

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/HamiGames/Lucid-sub001/core"
)

// AnchorStore implements core.AnchorStore against the session_anchors
// collection.
type AnchorStore struct {
	client *Client
}

// NewAnchorStore wires an AnchorStore to the shared document store.
func NewAnchorStore(c *Client) *AnchorStore {
	return &AnchorStore{client: c}
}

// SaveAnchor upserts one anchoring record by anchoringId (spec §4.9).
func (s *AnchorStore) SaveAnchor(a *core.SessionAnchor) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := s.client.collection(CollSessionAnchors).ReplaceOne(
		ctx,
		bson.D{{Key: "anchoringId", Value: a.AnchoringID}},
		a,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("store: save anchor: %w", err)
	}
	return nil
}

// AnchorBySessionID returns the most recent anchoring attempt for a
// session, or nil if none exists.
func (s *AnchorStore) AnchorBySessionID(sessionID string) (*core.SessionAnchor, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	opts := options.FindOne().SetSort(bson.D{{Key: "submittedAt", Value: -1}})
	var a core.SessionAnchor
	err := s.client.collection(CollSessionAnchors).FindOne(ctx, bson.D{{Key: "sessionId", Value: sessionID}}, opts).Decode(&a)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: load anchor: %w", err)
	}
	return &a, nil
}

// PendingAnchors lists every anchor still awaiting confirmation, used by
// the confirmation sweep (spec §4.9).
func (s *AnchorStore) PendingAnchors() ([]*core.SessionAnchor, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cur, err := s.client.collection(CollSessionAnchors).Find(ctx, bson.D{{Key: "status", Value: core.AnchorPending}})
	if err != nil {
		return nil, fmt.Errorf("store: list pending anchors: %w", err)
	}
	defer cur.Close(ctx)

	var out []*core.SessionAnchor
	for cur.Next(ctx) {
		var a core.SessionAnchor
		if err := cur.Decode(&a); err != nil {
			return nil, fmt.Errorf("store: decoding anchor: %w", err)
		}
		out = append(out, &a)
	}
	return out, cur.Err()
}
