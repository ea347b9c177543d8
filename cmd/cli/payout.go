package cli

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/HamiGames/Lucid-sub001/payout"
	"github.com/HamiGames/Lucid-sub001/pkg/config"
	"github.com/HamiGames/Lucid-sub001/store"
)

func newPayoutRouter(cmd *cobra.Command) (*payout.Router, *store.Client, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(true); err != nil {
		return nil, nil, fmt.Errorf("invalid TRON configuration: %w", err)
	}
	ctx := cmd.Context()
	logger := logrus.New()

	db, err := store.Connect(ctx, cfg.Store.MongoURL, cfg.Store.MongoDB, cfg.Store.ConnectTimeoutSec, cfg.Store.MaxPoolSize, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to store: %w", err)
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
		db.Disconnect(ctx)
		return nil, nil, fmt.Errorf("constructing payout router: %w", err)
	}
	return router, db, nil
}

func payoutHandleSubmit(cmd *cobra.Command, args []string) error {
	recipient := args[0]
	amount, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return fmt.Errorf("invalid amount: %w", err)
	}
	routerType, _ := cmd.Flags().GetString("router-type")
	reason, _ := cmd.Flags().GetString("reason")

	router, db, err := newPayoutRouter(cmd)
	if err != nil {
		return err
	}
	defer router.Close()
	defer db.Disconnect(cmd.Context())

	req := &payout.PayoutRequest{
		RecipientAddress: recipient,
		AmountUSDT:       amount,
		RouterType:       payout.RouterType(routerType),
		Reason:           payout.Metadata{ReasonCode: reason},
	}
	if err := router.SubmitRequest(req); err != nil {
		return fmt.Errorf("submitting payout request: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "submitted payout %s\n", req.PayoutID)
	return nil
}

func payoutHandleProcess(cmd *cobra.Command, args []string) error {
	router, db, err := newPayoutRouter(cmd)
	if err != nil {
		return err
	}
	defer router.Close()
	defer db.Disconnect(cmd.Context())

	n, err := router.ProcessPending(cmd.Context())
	if err != nil {
		return fmt.Errorf("processing pending payouts: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "processed %d payout requests\n", n)
	return nil
}

var (
	payoutCmd        = &cobra.Command{Use: "payout", Short: "Isolated TRON payout operations"}
	payoutSubmitCmd  = &cobra.Command{Use: "submit <recipient> <amount>", Short: "Submit a payout request", Args: cobra.ExactArgs(2), RunE: payoutHandleSubmit}
	payoutProcessCmd = &cobra.Command{Use: "process", Short: "Drain pending payout requests into batches", Args: cobra.NoArgs, RunE: payoutHandleProcess}
)

func init() {
	payoutSubmitCmd.Flags().String("router-type", string(payout.RouterNonKYC), "non_kyc | kyc_gated")
	payoutSubmitCmd.Flags().String("reason", "", "reason code")
	payoutCmd.AddCommand(payoutSubmitCmd, payoutProcessCmd)
}

// PayoutCmd is the top-level payout subcommand.
var PayoutCmd = payoutCmd

// RegisterPayout wires the payout subcommand onto root.
func RegisterPayout(root *cobra.Command) { root.AddCommand(PayoutCmd) }
