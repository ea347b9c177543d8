package cli

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/HamiGames/Lucid-sub001/core"
	"github.com/HamiGames/Lucid-sub001/pkg/config"
	"github.com/HamiGames/Lucid-sub001/store"
)

func newAnchorService(cmd *cobra.Command) (*core.AnchorService, *store.Client, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	ctx := cmd.Context()
	logger := logrus.New()

	db, err := store.Connect(ctx, cfg.Store.MongoURL, cfg.Store.MongoDB, cfg.Store.ConnectTimeoutSec, cfg.Store.MaxPoolSize, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to store: %w", err)
	}
	chainClient, err := core.NewChainClient(ctx, cfg.Chain.RPCURL, cfg.Chain.AnchorsAddress, cfg.Chain.ChunkStoreAddress, "", cfg.Chain.GasLimitCircuitBrk, secondsToDuration(cfg.Chain.RPCTimeoutSec), logger)
	if err != nil {
		db.Disconnect(ctx)
		return nil, nil, fmt.Errorf("constructing chain client: %w", err)
	}
	anchorStore := store.NewAnchorStore(db)
	return core.NewAnchorService(chainClient, anchorStore, logger), db, nil
}

func anchorHandleStatus(cmd *cobra.Command, args []string) error {
	svc, db, err := newAnchorService(cmd)
	if err != nil {
		return err
	}
	defer db.Disconnect(cmd.Context())

	anchor, err := svc.GetAnchoringStatus(args[0])
	if err != nil {
		return fmt.Errorf("getting anchoring status: %w", err)
	}
	if anchor == nil {
		fmt.Fprintf(cmd.OutOrStdout(), "no anchor found for session %s\n", args[0])
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "session=%s status=%s txid=%s\n", anchor.SessionID, anchor.Status, anchor.TxID)
	return nil
}

func anchorHandleVerify(cmd *cobra.Command, args []string) error {
	svc, db, err := newAnchorService(cmd)
	if err != nil {
		return err
	}
	defer db.Disconnect(cmd.Context())

	res, err := svc.VerifyAnchoring(args[0], nil)
	if err != nil {
		return fmt.Errorf("verifying anchoring: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "session=%s verified=%v reason=%s\n", res.SessionID, res.Verified, res.Reason)
	return nil
}

func anchorHandleSweep(cmd *cobra.Command, args []string) error {
	svc, db, err := newAnchorService(cmd)
	if err != nil {
		return err
	}
	defer db.Disconnect(cmd.Context())

	if err := svc.SweepConfirmations(); err != nil {
		return fmt.Errorf("sweeping confirmations: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "confirmation sweep complete")
	return nil
}

var (
	anchorCmd       = &cobra.Command{Use: "anchor", Short: "Session anchoring operations"}
	anchorStatusCmd = &cobra.Command{Use: "status <session-id>", Short: "Show a session's anchoring status", Args: cobra.ExactArgs(1), RunE: anchorHandleStatus}
	anchorVerifyCmd = &cobra.Command{Use: "verify <session-id>", Short: "Verify a session's anchoring", Args: cobra.ExactArgs(1), RunE: anchorHandleVerify}
	anchorSweepCmd  = &cobra.Command{Use: "sweep", Short: "Sweep pending anchors for confirmation", Args: cobra.NoArgs, RunE: anchorHandleSweep}
)

func init() {
	anchorCmd.AddCommand(anchorStatusCmd, anchorVerifyCmd, anchorSweepCmd)
}

// AnchorCmd is the top-level anchor subcommand.
var AnchorCmd = anchorCmd

// RegisterAnchor wires the anchor subcommand onto root.
func RegisterAnchor(root *cobra.Command) { root.AddCommand(AnchorCmd) }
