package store

// sessions.go implements the session_orchestrator's PipelineStatePersister
// seam plus session manifest accessors (spec §4.4, §3).

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/HamiGames/Lucid-sub001/core"
)

// SessionStore persists pipeline state and session manifests. It has no
// accessor for core.SessionRecord.
type SessionStore struct {
	client *Client
}

// NewSessionStore wires a SessionStore to the shared document store.
func NewSessionStore(c *Client) *SessionStore {
	return &SessionStore{client: c}
}

// SavePipelineState implements core.PipelineStatePersister, upserting by
// sessionId (spec §4.4 "persist after every transition").
func (s *SessionStore) SavePipelineState(state core.PipelineState) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := s.client.collection(CollPipelineState).ReplaceOne(
		ctx,
		bson.D{{Key: "sessionId", Value: state.SessionID}},
		state,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("store: save pipeline state: %w", err)
	}
	return nil
}

// PipelineStateBySessionID loads the last persisted pipeline state, used by
// recovery/resume tooling (spec §4.4).
func (s *SessionStore) PipelineStateBySessionID(sessionID string) (*core.PipelineState, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var state core.PipelineState
	err := s.client.collection(CollPipelineState).FindOne(ctx, bson.D{{Key: "sessionId", Value: sessionID}}).Decode(&state)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: load pipeline state: %w", err)
	}
	return &state, nil
}

// SaveManifest upserts a completed session's manifest (spec §4.4 ANCHORING
// stage output).
func (s *SessionStore) SaveManifest(m *core.SessionManifest) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := s.client.collection(CollSessions).ReplaceOne(
		ctx,
		bson.D{{Key: "sessionId", Value: m.SessionID}},
		m,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("store: save manifest: %w", err)
	}
	return nil
}

// ManifestBySessionID loads a previously anchored session's manifest.
func (s *SessionStore) ManifestBySessionID(sessionID string) (*core.SessionManifest, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var m core.SessionManifest
	err := s.client.collection(CollSessions).FindOne(ctx, bson.D{{Key: "sessionId", Value: sessionID}}).Decode(&m)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: load manifest: %w", err)
	}
	return &m, nil
}

// ManifestsByOwner lists sessions for an owner ordered by startedAt, backing
// the owner-facing session list API (spec §6.1).
func (s *SessionStore) ManifestsByOwner(owner core.Address, limit int64) ([]*core.SessionManifest, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "startedAt", Value: -1}})
	if limit > 0 {
		opts = opts.SetLimit(limit)
	}
	cur, err := s.client.collection(CollSessions).Find(ctx, bson.D{{Key: "ownerAddress", Value: owner}}, opts)
	if err != nil {
		return nil, fmt.Errorf("store: list manifests: %w", err)
	}
	defer cur.Close(ctx)

	var out []*core.SessionManifest
	for cur.Next(ctx) {
		var m core.SessionManifest
		if err := cur.Decode(&m); err != nil {
			return nil, fmt.Errorf("store: decoding manifest: %w", err)
		}
		out = append(out, &m)
	}
	return out, cur.Err()
}
