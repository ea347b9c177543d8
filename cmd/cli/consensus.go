package cli

import (
	"fmt"
	"os"
	"strconv"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/HamiGames/Lucid-sub001/core"
	"github.com/HamiGames/Lucid-sub001/pkg/config"
	"github.com/HamiGames/Lucid-sub001/store"
)

func newConsensusEngine(cmd *cobra.Command) (*core.ConsensusEngine, *store.Client, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	ctx := cmd.Context()
	db, err := store.Connect(ctx, cfg.Store.MongoURL, cfg.Store.MongoDB, cfg.Store.ConnectTimeoutSec, cfg.Store.MaxPoolSize, logrus.New())
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to store: %w", err)
	}
	_ = cfg
	consensusStore := store.NewConsensusStore(db)
	vrfSeed := []byte(os.Getenv("LUCID_VRF_SEED"))
	return core.NewConsensusEngine(consensusStore, consensusStore, vrfSeed, 21), db, nil
}

func consensusHandleCredits(cmd *cobra.Command, args []string) error {
	startSlot, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid start slot: %w", err)
	}
	endSlot, err := strconv.ParseUint(args[1], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid end slot: %w", err)
	}

	engine, db, err := newConsensusEngine(cmd)
	if err != nil {
		return err
	}
	defer db.Disconnect(cmd.Context())

	credits, err := engine.ComputeWorkCredits(startSlot, endSlot)
	if err != nil {
		return fmt.Errorf("computing work credits: %w", err)
	}
	for _, c := range credits {
		fmt.Fprintf(cmd.OutOrStdout(), "rank=%d entity=%s credits=%.2f liveScore=%.4f\n", c.Rank, c.EntityID, c.Credits, c.LiveScore)
	}
	return nil
}

func consensusHandleRunSlot(cmd *cobra.Command, args []string) error {
	slot, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid slot: %w", err)
	}

	engine, db, err := newConsensusEngine(cmd)
	if err != nil {
		return err
	}
	defer db.Disconnect(cmd.Context())

	windowSlots := uint64(core.LeaderWindowDays) * uint64(86400/core.SlotDurationSec)
	var startSlot uint64
	if slot > windowSlots {
		startSlot = slot - windowSlots
	}
	credits, err := engine.ComputeWorkCredits(startSlot, slot)
	if err != nil {
		return fmt.Errorf("computing work credits: %w", err)
	}

	sched, err := engine.RunSlot(slot, credits)
	if err != nil {
		return fmt.Errorf("running slot: %w", err)
	}
	primary := "none"
	if sched.Primary != nil {
		primary = *sched.Primary
	}
	fmt.Fprintf(cmd.OutOrStdout(), "slot=%d primary=%s reason=%s fallbacks=%v\n", sched.Slot, primary, sched.Reason, sched.Fallbacks)
	return nil
}

var (
	consensusCmd        = &cobra.Command{Use: "consensus", Short: "PoOT consensus operations"}
	consensusCreditsCmd = &cobra.Command{Use: "credits <start-slot> <end-slot>", Short: "Compute work credits for a slot window", Args: cobra.ExactArgs(2), RunE: consensusHandleCredits}
	consensusRunSlotCmd = &cobra.Command{Use: "run-slot <slot>", Short: "Run leader selection for a slot", Args: cobra.ExactArgs(1), RunE: consensusHandleRunSlot}
)

func init() {
	consensusCmd.AddCommand(consensusCreditsCmd, consensusRunSlotCmd)
}

// ConsensusCmd is the top-level consensus subcommand.
var ConsensusCmd = consensusCmd

// RegisterConsensus wires the consensus subcommand onto root.
func RegisterConsensus(root *cobra.Command) { root.AddCommand(ConsensusCmd) }
