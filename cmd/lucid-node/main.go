// Command lucid-node runs the primary-chain daemon: chain synchronizer and
// anchor confirmation sweeps on their own schedules, wired to the shared
// document store. Session pipeline runs are driven through `lucid session
// run` (cmd/cli) rather than this long-running process, matching the
// teacher's split between one-shot CLI operations and persistent servers
// (cmd/xchainserver vs cmd/cli).
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/HamiGames/Lucid-sub001/core"
	"github.com/HamiGames/Lucid-sub001/pkg/config"
	"github.com/HamiGames/Lucid-sub001/store"
)

func main() {
	logger := logrus.New()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("lucid-node: loading config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := store.Connect(ctx, cfg.Store.MongoURL, cfg.Store.MongoDB, cfg.Store.ConnectTimeoutSec, cfg.Store.MaxPoolSize, logger)
	if err != nil {
		logger.Fatalf("lucid-node: connecting to store: %v", err)
	}
	defer db.Disconnect(context.Background())

	if err := db.EnsureIndexes(ctx); err != nil {
		logger.Fatalf("lucid-node: ensuring indexes: %v", err)
	}

	blocks, err := core.NewBlockManager(cfg.Pipeline.ChunkStorageDir, logger)
	if err != nil {
		logger.Fatalf("lucid-node: constructing block manager: %v", err)
	}
	if _, err := blocks.EnsureGenesis(os.Getenv("LUCID_NODE_ID"), []byte("lucid-primary-chain")); err != nil {
		logger.Fatalf("lucid-node: ensuring genesis block: %v", err)
	}

	remoteURL := os.Getenv("LUCID_REMOTE_NODE_URL")
	if remoteURL != "" {
		synchronizer := core.NewChainSynchronizer(remoteURL, blocks, core.DefaultSyncTimeout, logger)
		synchronizer.Start(ctx, 30*time.Second)
		defer synchronizer.Stop()
	} else {
		logger.Warn("lucid-node: LUCID_REMOTE_NODE_URL not set, synchronizer disabled")
	}

	chainClient, err := core.NewChainClient(ctx, cfg.Chain.RPCURL, cfg.Chain.AnchorsAddress, cfg.Chain.ChunkStoreAddress, os.Getenv("LUCID_CHAIN_FROM_ADDRESS"), cfg.Chain.GasLimitCircuitBrk, time.Duration(cfg.Chain.RPCTimeoutSec)*time.Second, logger)
	if err != nil {
		logger.Fatalf("lucid-node: constructing chain client: %v", err)
	}
	anchorStore := store.NewAnchorStore(db)
	anchorSvc := core.NewAnchorService(chainClient, anchorStore, logger)

	go runConfirmationSweeps(ctx, anchorSvc, logger)

	logger.Info("lucid-node: started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("lucid-node: shutting down")
	cancel()
}

func runConfirmationSweeps(ctx context.Context, svc *core.AnchorService, logger *logrus.Logger) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := svc.SweepConfirmations(); err != nil {
				logger.Warnf("lucid-node: confirmation sweep: %v", err)
			}
		}
	}
}
