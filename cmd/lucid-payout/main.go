// Command lucid-payout runs the isolated TRON payout daemon: a ticker-driven
// loop draining pending payout requests into batches. It deliberately shares
// no package with cmd/lucid-node beyond pkg/config, pkg/utils and store,
// mirroring the payout package's own isolation from core.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/HamiGames/Lucid-sub001/payout"
	"github.com/HamiGames/Lucid-sub001/pkg/config"
	"github.com/HamiGames/Lucid-sub001/store"
)

func main() {
	logger := logrus.New()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("lucid-payout: loading config: %v", err)
	}
	if err := cfg.Validate(true); err != nil {
		logger.Fatalf("lucid-payout: invalid TRON configuration: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := store.Connect(ctx, cfg.Store.MongoURL, cfg.Store.MongoDB, cfg.Store.ConnectTimeoutSec, cfg.Store.MaxPoolSize, logger)
	if err != nil {
		logger.Fatalf("lucid-payout: connecting to store: %v", err)
	}
	defer db.Disconnect(context.Background())

	if err := db.EnsureIndexes(ctx); err != nil {
		logger.Fatalf("lucid-payout: ensuring indexes: %v", err)
	}

	client := payout.NewTronClient(
		cfg.Tron.NodeURL,
		os.Getenv("LUCID_USDT_CONTRACT"),
		os.Getenv("LUCID_TRON_FROM_ADDRESS"),
		cfg.Tron.PrivateKey,
		cfg.Tron.FeeLimitSun,
		time.Duration(cfg.Tron.RPCTimeoutSec)*time.Second,
	)
	payoutStore := store.NewPayoutStore(db)
	router, err := payout.NewRouter(payoutStore, client, payout.DefaultBatchSize, logger)
	if err != nil {
		logger.Fatalf("lucid-payout: constructing router: %v", err)
	}
	defer router.Close()

	interval := 15 * time.Second
	go runProcessingLoop(ctx, router, interval, logger)

	logger.Info("lucid-payout: started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("lucid-payout: shutting down")
	cancel()
}

func runProcessingLoop(ctx context.Context, router *payout.Router, interval time.Duration, logger *logrus.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := router.ProcessPending(ctx)
			if err != nil {
				logger.Warnf("lucid-payout: processing pending payouts: %v", err)
				continue
			}
			if n > 0 {
				logger.Infof("lucid-payout: processed %d payout requests", n)
			}
		}
	}
}
