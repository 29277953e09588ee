package main

import (
	"encoding/json"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "launchpad",
		Short:        "Capital-raising pools with linear vesting",
		SilenceUsage: true,
	}

	flags := root.PersistentFlags()
	flags.String("config", "", "config file path")
	flags.String("store", "", "store backend (memory, badger, postgres)")
	flags.String("pg-dsn", "", "Postgres DSN")
	flags.String("badger-path", "", "BadgerDB directory")
	flags.String("rpc", "", "EVM RPC URL for the chain clock and token metadata")
	flags.String("clock", "", "clock source (system, chain)")
	flags.String("amqp-url", "", "AMQP broker URL for event publishing")
	flags.String("exchange", "", "AMQP exchange name")
	flags.String("journal", "", "event journal JSONL path")
	flags.String("program-id", "", "program id custody accounts are derived from")
	flags.Int("max-retries", 5, "maximum retry attempts for RPC calls")
	flags.Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(
		newInitPoolCmd(),
		newInvestCmd(),
		newClaimCmd(),
		newVestingCmd(),
		newReportCmd(),
		newFundCmd(),
		newBalanceCmd(),
		newMigrateCmd(),
		newServeCmd(),
	)
	return root
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
