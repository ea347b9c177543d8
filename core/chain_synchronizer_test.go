package core

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"
)

// buildRemoteChain constructs a standalone BlockManager seeded with genesis
// plus count additional single-transaction blocks, returning it alongside
// the blocks slice (index 0 is genesis).
func buildRemoteChain(t *testing.T, count int) (*BlockManager, []*Block) {
	t.Helper()
	bm, err := NewBlockManager(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("NewBlockManager: %v", err)
	}
	genesis, err := bm.EnsureGenesis("producer-1", []byte("net"))
	if err != nil {
		t.Fatalf("EnsureGenesis: %v", err)
	}
	blocks := []*Block{genesis}
	for i := 0; i < count; i++ {
		tx := newTestTx(t, "tx-"+strconv.Itoa(i), 0)
		blk, err := bm.CreateBlock([]*Transaction{tx}, "producer-1")
		if err != nil {
			t.Fatalf("CreateBlock: %v", err)
		}
		blk.Signature = []byte("test-signature")
		if err := bm.AddBlock(blk); err != nil {
			t.Fatalf("AddBlock: %v", err)
		}
		blocks = append(blocks, blk)
	}
	return bm, blocks
}

// newTestRemoteServer serves /status and /blocks/{height} off a fixed
// blocks slice (index == height), mirroring the single-remote-node HTTP
// contract ChainSynchronizer expects.
func newTestRemoteServer(t *testing.T, blocks []*Block) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	tip := blocks[len(blocks)-1]
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"height": tip.Header.Height,
			"hash":   tip.BlockHash.Hex(),
		})
	})
	mux.HandleFunc("/blocks/", func(w http.ResponseWriter, r *http.Request) {
		heightStr := strings.TrimPrefix(r.URL.Path, "/blocks/")
		height, err := strconv.ParseUint(heightStr, 10, 64)
		if err != nil || height >= uint64(len(blocks)) {
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode(blocks[height])
	})
	return httptest.NewServer(mux)
}

func TestSynchronizeBackfillsMissingBlocks(t *testing.T) {
	_, remoteBlocks := buildRemoteChain(t, 2)
	srv := newTestRemoteServer(t, remoteBlocks)
	defer srv.Close()

	localBM, err := NewBlockManager(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("NewBlockManager: %v", err)
	}
	if _, err := localBM.EnsureGenesis("producer-1", []byte("net")); err != nil {
		t.Fatalf("EnsureGenesis: %v", err)
	}

	sync := NewChainSynchronizer(srv.URL, localBM, 2*time.Second, nil)
	result, err := sync.Synchronize(context.Background())
	if err != nil {
		t.Fatalf("Synchronize: %v", err)
	}
	if !result.Synchronized {
		t.Fatalf("expected synchronized result, got %+v", result)
	}
	if result.SyncedBlocks != 2 {
		t.Fatalf("expected 2 blocks synced, got %d", result.SyncedBlocks)
	}
	if localBM.CurrentHeight() != 2 {
		t.Fatalf("expected local height 2, got %d", localBM.CurrentHeight())
	}
	if localBM.LatestHash() != remoteBlocks[2].BlockHash {
		t.Fatal("expected local tip hash to match remote tip hash after sync")
	}
}

func TestSynchronizeAlreadyCurrent(t *testing.T) {
	_, remoteBlocks := buildRemoteChain(t, 0)
	srv := newTestRemoteServer(t, remoteBlocks)
	defer srv.Close()

	localBM, err := NewBlockManager(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("NewBlockManager: %v", err)
	}
	if _, err := localBM.EnsureGenesis("producer-1", []byte("net")); err != nil {
		t.Fatalf("EnsureGenesis: %v", err)
	}

	sync := NewChainSynchronizer(srv.URL, localBM, 2*time.Second, nil)
	result, err := sync.Synchronize(context.Background())
	if err != nil {
		t.Fatalf("Synchronize: %v", err)
	}
	if !result.Synchronized || result.SyncedBlocks != 0 {
		t.Fatalf("expected already-synchronized result with no blocks synced, got %+v", result)
	}
}

func TestSynchronizeDetectsForkAtTip(t *testing.T) {
	_, remoteBlocks := buildRemoteChain(t, 0)
	// Mutate the served genesis hash to simulate a diverged remote tip at
	// the same height.
	tampered := *remoteBlocks[0]
	tampered.BlockHash = Hash{0xEE}
	srv := newTestRemoteServer(t, []*Block{&tampered})
	defer srv.Close()

	localBM, err := NewBlockManager(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("NewBlockManager: %v", err)
	}
	if _, err := localBM.EnsureGenesis("producer-1", []byte("net")); err != nil {
		t.Fatalf("EnsureGenesis: %v", err)
	}

	sync := NewChainSynchronizer(srv.URL, localBM, 2*time.Second, nil)
	result, err := sync.Synchronize(context.Background())
	if err != nil {
		t.Fatalf("Synchronize: %v", err)
	}
	if result.Synchronized {
		t.Fatal("expected fork detection to report not synchronized")
	}
	if result.ForkPoint == nil {
		t.Fatal("expected a reported fork point")
	}
}

func TestSynchronizeRemoteBehindIsNotSynchronized(t *testing.T) {
	_, remoteBlocks := buildRemoteChain(t, 0)
	srv := newTestRemoteServer(t, remoteBlocks)
	defer srv.Close()

	localBM, remoteForLocal := buildRemoteChain(t, 2)
	_ = remoteForLocal

	sync := NewChainSynchronizer(srv.URL, localBM, 2*time.Second, nil)
	result, err := sync.Synchronize(context.Background())
	if err != nil {
		t.Fatalf("Synchronize: %v", err)
	}
	if result.Synchronized {
		t.Fatal("expected not synchronized when remote is behind local")
	}
}

func TestStartStopIsIdempotent(t *testing.T) {
	_, remoteBlocks := buildRemoteChain(t, 0)
	srv := newTestRemoteServer(t, remoteBlocks)
	defer srv.Close()

	localBM, err := NewBlockManager(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("NewBlockManager: %v", err)
	}
	if _, err := localBM.EnsureGenesis("producer-1", []byte("net")); err != nil {
		t.Fatalf("EnsureGenesis: %v", err)
	}

	sync := NewChainSynchronizer(srv.URL, localBM, 2*time.Second, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sync.Start(ctx, 10*time.Millisecond)
	sync.Start(ctx, 10*time.Millisecond) // second call must be a no-op
	time.Sleep(30 * time.Millisecond)
	sync.Stop()
	sync.Stop() // second call must be a no-op
}
