package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/HamiGames/Lucid-sub001/core"
	"github.com/HamiGames/Lucid-sub001/pkg/config"
	"github.com/HamiGames/Lucid-sub001/store"
)

func secondsToDuration(s int) time.Duration {
	return time.Duration(s) * time.Second
}

func sessionHandleRun(cmd *cobra.Command, args []string) error {
	inputPath := args[0]
	sessionID, _ := cmd.Flags().GetString("session-id")
	owner, _ := cmd.Flags().GetString("owner")
	if sessionID == "" {
		return fmt.Errorf("--session-id is required")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	ownerAddr, err := core.ParseAddress(owner)
	if err != nil {
		return fmt.Errorf("invalid --owner address: %w", err)
	}

	logger := logrus.New()
	ctx := cmd.Context()

	db, err := store.Connect(ctx, cfg.Store.MongoURL, cfg.Store.MongoDB, cfg.Store.ConnectTimeoutSec, cfg.Store.MaxPoolSize, logger)
	if err != nil {
		return fmt.Errorf("connecting to store: %w", err)
	}
	defer db.Disconnect(ctx)

	chunker := core.NewChunker(cfg.Pipeline.ChunkStorageDir)
	masterKey := []byte(os.Getenv("LUCID_MASTER_KEY"))
	encryptor, err := core.NewEncryptor(cfg.Pipeline.ChunkStorageDir, masterKey)
	if err != nil {
		return fmt.Errorf("constructing encryptor: %w", err)
	}
	merkle := core.NewMerkleBuilder(cfg.Pipeline.ChunkStorageDir)

	chainClient, err := core.NewChainClient(ctx, cfg.Chain.RPCURL, cfg.Chain.AnchorsAddress, cfg.Chain.ChunkStoreAddress, os.Getenv("LUCID_CHAIN_FROM_ADDRESS"), cfg.Chain.GasLimitCircuitBrk, secondsToDuration(cfg.Chain.RPCTimeoutSec), logger)
	if err != nil {
		return fmt.Errorf("constructing chain client: %w", err)
	}
	anchorStore := store.NewAnchorStore(db)
	anchorSvc := core.NewAnchorService(chainClient, anchorStore, logger)

	pipelinePersister := store.NewSessionStore(db)
	orchestrator := core.NewSessionOrchestrator(chunker, encryptor, merkle, anchorSvc, pipelinePersister, logger)

	f, err := os.Open(inputPath)
	if err != nil {
		return fmt.Errorf("opening input: %w", err)
	}
	defer f.Close()

	manifest, err := orchestrator.RunSession(ctx, sessionID, ownerAddr, f, cfg.Pipeline.ChunkTargetByte, nil, nil)
	if err != nil {
		return fmt.Errorf("running session: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "session %s anchored, merkleRoot=%s chunks=%d\n", manifest.SessionID, manifest.MerkleRoot.Hex(), manifest.ChunkCount)
	return nil
}

func sessionHandleStatus(cmd *cobra.Command, args []string) error {
	sessionID := args[0]
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	ctx := cmd.Context()

	db, err := store.Connect(ctx, cfg.Store.MongoURL, cfg.Store.MongoDB, cfg.Store.ConnectTimeoutSec, cfg.Store.MaxPoolSize, nil)
	if err != nil {
		return fmt.Errorf("connecting to store: %w", err)
	}
	defer db.Disconnect(ctx)

	sessionStore := store.NewSessionStore(db)
	state, err := sessionStore.PipelineStateBySessionID(sessionID)
	if err != nil {
		return fmt.Errorf("loading pipeline state: %w", err)
	}
	if state == nil {
		fmt.Fprintf(cmd.OutOrStdout(), "no pipeline state found for session %s\n", sessionID)
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "session %s: stage=%s updatedAt=%s\n", state.SessionID, state.Stage, state.UpdatedAt)
	return nil
}

var (
	sessionCmd       = &cobra.Command{Use: "session", Short: "Session pipeline operations"}
	sessionRunCmd    = &cobra.Command{Use: "run <input-file>", Short: "Run a session through chunk/encrypt/Merkle/anchor", Args: cobra.ExactArgs(1), RunE: sessionHandleRun}
	sessionStatusCmd = &cobra.Command{Use: "status <session-id>", Short: "Show a session's pipeline stage", Args: cobra.ExactArgs(1), RunE: sessionHandleStatus}
)

func init() {
	sessionRunCmd.Flags().String("session-id", "", "session identifier")
	sessionRunCmd.Flags().String("owner", "", "owner address (0x-prefixed hex)")
	sessionCmd.AddCommand(sessionRunCmd, sessionStatusCmd)
}

// SessionCmd is the top-level session subcommand.
var SessionCmd = sessionCmd

// RegisterSession wires the session subcommand onto root.
func RegisterSession(root *cobra.Command) { root.AddCommand(SessionCmd) }
