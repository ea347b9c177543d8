package cli

import (
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// RootCmd is the top-level `lucid` CLI entrypoint, wiring one subcommand
// per component the way the teacher's cmd/cli root composes per-module
// subcommands.
var RootCmd = &cobra.Command{
	Use:   "lucid",
	Short: "Operational CLI for the Lucid session and payout infrastructure",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load()
		level, _ := cmd.Flags().GetString("log-level")
		parsed, err := logrus.ParseLevel(level)
		if err != nil {
			parsed = logrus.InfoLevel
		}
		logrus.SetLevel(parsed)
		return nil
	},
}

func init() {
	RootCmd.PersistentFlags().String("log-level", "info", "log level (trace, debug, info, warn, error)")
	RegisterSession(RootCmd)
	RegisterAnchor(RootCmd)
	RegisterConsensus(RootCmd)
	RegisterPayout(RootCmd)
	RegisterSync(RootCmd)
}
