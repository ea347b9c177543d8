package store

// consensus.go implements core.TaskProofStore and core.LeaderScheduleStore
// (spec §4.8, §4.12) plus work-credit persistence for the PoOT engine.

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/HamiGames/Lucid-sub001/core"
)

// ConsensusStore implements core.TaskProofStore and
// core.LeaderScheduleStore, and persists derived WorkCredit rankings.
type ConsensusStore struct {
	client *Client
}

// NewConsensusStore wires a ConsensusStore to the shared document store.
func NewConsensusStore(c *Client) *ConsensusStore {
	return &ConsensusStore{client: c}
}

// InsertTaskProof appends one task proof (spec §4.8, §4.12). Duplicate
// (nodeId, slot, type) tuples are allowed; they contribute independently to
// work-credit tallies.
func (s *ConsensusStore) InsertTaskProof(tp *core.TaskProof) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := s.client.collection(CollTaskProofs).InsertOne(ctx, tp); err != nil {
		return fmt.Errorf("store: insert task proof: %w", err)
	}
	return nil
}

// ProofsInWindow loads every task proof with slot in [startSlot, endSlot]
// (spec §4.8 work-credit window).
func (s *ConsensusStore) ProofsInWindow(startSlot, endSlot uint64) ([]*core.TaskProof, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	filter := bson.D{{Key: "slot", Value: bson.D{{Key: "$gte", Value: startSlot}, {Key: "$lte", Value: endSlot}}}}
	cur, err := s.client.collection(CollTaskProofs).Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("store: list task proofs: %w", err)
	}
	defer cur.Close(ctx)

	var out []*core.TaskProof
	for cur.Next(ctx) {
		var tp core.TaskProof
		if err := cur.Decode(&tp); err != nil {
			return nil, fmt.Errorf("store: decoding task proof: %w", err)
		}
		out = append(out, &tp)
	}
	return out, cur.Err()
}

// SaveLeaderSchedule upserts one slot's leader-schedule record (spec §4.8).
func (s *ConsensusStore) SaveLeaderSchedule(sched *core.LeaderSchedule) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := s.client.collection(CollLeaderSchedule).ReplaceOne(
		ctx,
		bson.D{{Key: "slot", Value: sched.Slot}},
		sched,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("store: save leader schedule: %w", err)
	}
	return nil
}

// RecentPrimaries returns the set of entity IDs that were primary in any
// slot at or after sinceSlot, for the cooldown check (spec §4.8 step 1).
func (s *ConsensusStore) RecentPrimaries(sinceSlot uint64) (map[string]bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	filter := bson.D{
		{Key: "slot", Value: bson.D{{Key: "$gte", Value: sinceSlot}}},
		{Key: "primary", Value: bson.D{{Key: "$ne", Value: nil}}},
	}
	cur, err := s.client.collection(CollLeaderSchedule).Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("store: list recent primaries: %w", err)
	}
	defer cur.Close(ctx)

	out := make(map[string]bool)
	for cur.Next(ctx) {
		var sched core.LeaderSchedule
		if err := cur.Decode(&sched); err != nil {
			return nil, fmt.Errorf("store: decoding leader schedule: %w", err)
		}
		if sched.Primary != nil {
			out[*sched.Primary] = true
		}
	}
	return out, cur.Err()
}

// SaveWorkCredits replaces the work_credits snapshot for a ranking window,
// used by read APIs and test harnesses (spec §4.8 "top-k").
func (s *ConsensusStore) SaveWorkCredits(ranking []core.WorkCredit) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := s.client.collection(CollWorkCredits).DeleteMany(ctx, bson.D{}); err != nil {
		return fmt.Errorf("store: clearing work credits: %w", err)
	}
	if len(ranking) == 0 {
		return nil
	}
	docs := make([]interface{}, len(ranking))
	for i := range ranking {
		docs[i] = ranking[i]
	}
	if _, err := s.client.collection(CollWorkCredits).InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("store: save work credits: %w", err)
	}
	return nil
}
