package cli

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/HamiGames/Lucid-sub001/core"
	"github.com/HamiGames/Lucid-sub001/pkg/config"
)

func syncHandleOnce(cmd *cobra.Command, args []string) error {
	remoteURL, _ := cmd.Flags().GetString("remote")
	if remoteURL == "" {
		return fmt.Errorf("--remote is required")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logger := logrus.New()
	blocks, err := core.NewBlockManager(cfg.Pipeline.ChunkStorageDir, logger)
	if err != nil {
		return fmt.Errorf("constructing block manager: %w", err)
	}

	synchronizer := core.NewChainSynchronizer(remoteURL, blocks, core.DefaultSyncTimeout, logger)
	result, err := synchronizer.Synchronize(cmd.Context())
	if err != nil {
		return fmt.Errorf("synchronizing: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "localHeight=%d remoteHeight=%d syncedBlocks=%d synchronized=%v\n",
		result.LocalHeight, result.RemoteHeight, result.SyncedBlocks, result.Synchronized)
	if result.ForkPoint != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "fork detected at height=%d local=%s remote=%s\n",
			result.ForkPoint.Height, result.ForkPoint.LocalHash.Hex(), result.ForkPoint.RemoteHash.Hex())
	}
	return nil
}

var (
	syncCmd     = &cobra.Command{Use: "sync", Short: "Chain synchronization operations"}
	syncOnceCmd = &cobra.Command{Use: "once", Short: "Run one synchronization round against a remote node", Args: cobra.NoArgs, RunE: syncHandleOnce}
)

func init() {
	syncOnceCmd.Flags().String("remote", "", "remote node base URL")
	syncCmd.AddCommand(syncOnceCmd)
}

// SyncCmd is the top-level sync subcommand.
var SyncCmd = syncCmd

// RegisterSync wires the sync subcommand onto root.
func RegisterSync(root *cobra.Command) { root.AddCommand(SyncCmd) }
