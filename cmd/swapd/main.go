package main

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	// a .env beside the binary seeds SWAPD_* variables; absence is fine
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintln(os.Stderr, "load .env:", err)
	}

	root := &cobra.Command{
		Use:          "swapd",
		Short:        "DEX trade derivation and submission",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	quoteCmd := &cobra.Command{
		Use:   "quote",
		Short: "Derive the best trade for a pair",
		RunE:  runQuote,
	}
	addPipelineFlags(quoteCmd.Flags())
	addPairFlags(quoteCmd.Flags())
	root.AddCommand(quoteCmd)

	swapCmd := &cobra.Command{
		Use:   "swap",
		Short: "Derive, estimate, and submit a swap",
		RunE:  runSwap,
	}
	addPipelineFlags(swapCmd.Flags())
	addPairFlags(swapCmd.Flags())
	swapCmd.Flags().String("recipient", "", "output recipient (address or ENS name), default the connected account")
	swapCmd.Flags().Duration("deadline-ttl", 20*time.Minute, "transaction deadline past the latest block timestamp")
	swapCmd.Flags().Uint64("gas-margin-bips", 1000, "margin added to gas estimates in bips")
	swapCmd.Flags().String("account", "", "node-managed account to submit from")
	swapCmd.Flags().String("private-key", "", "hex private key to sign with locally")
	swapCmd.Flags().Bool("typed-data", true, "node account can sign EIP-712 typed data")
	swapCmd.Flags().String("permit-allowlist", "", "JSON file overriding the permit allow-list")
	swapCmd.Flags().String("tx-log", "./data/transactions.jsonl", "transaction log JSONL path")
	swapCmd.Flags().String("pg-dsn", "", "Postgres DSN for the transaction log")
	swapCmd.Flags().Bool("wait", true, "wait for the receipt before exiting")
	swapCmd.Flags().Duration("wait-timeout", 5*time.Minute, "how long to wait for receipts")
	swapCmd.Flags().Duration("poll-interval", 5*time.Second, "receipt poll interval")
	swapCmd.Flags().Int("max-retries", 5, "maximum retry attempts")
	swapCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	root.AddCommand(swapCmd)

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP quote API and finalize pending transactions",
		RunE:  runServe,
	}
	addPipelineFlags(serveCmd.Flags())
	serveCmd.Flags().String("listen", ":8080", "HTTP listen address")
	serveCmd.Flags().Duration("deadline-ttl", 20*time.Minute, "deadline attached to built calls")
	serveCmd.Flags().String("watch-input", "", "standing quote input token")
	serveCmd.Flags().String("watch-output", "", "standing quote output token")
	serveCmd.Flags().String("watch-amount", "", "standing quote amount in base units")
	serveCmd.Flags().String("watch-mode", "ExactIn", "standing quote mode (ExactIn, ExactOut)")
	serveCmd.Flags().Duration("poll-interval", 15*time.Second, "standing quote refresh interval")
	serveCmd.Flags().Duration("watch-interval", 15*time.Second, "pending transaction sweep interval")
	serveCmd.Flags().Int("max-retries", 5, "maximum retry attempts")
	serveCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	serveCmd.Flags().String("pg-dsn", "", "Postgres DSN holding pending transactions to finalize")
	root.AddCommand(serveCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// addPipelineFlags covers the derivation stack every command shares.
func addPipelineFlags(flags *pflag.FlagSet) {
	flags.String("rpc", "", "Ethereum JSON-RPC URL")
	flags.String("quoter", "local", "route quoter backend (local, contract)")
	flags.String("router-api", "", "routing service base URL, empty disables it")
	flags.Int("max-hops", 3, "maximum pools per route")
	flags.Uint64("max-block-age", 10, "blocks before a remote quote is stale")
	flags.Int("quoter-rps", 10, "quoter contract calls per second")
	flags.Int("concurrency", 8, "parallel pool snapshot fetches")
	flags.Uint64("slippage-bips", 50, "slippage tolerance in bips")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
}

func addPairFlags(flags *pflag.FlagSet) {
	flags.String("input", "", "input token address, or the native symbol")
	flags.String("output", "", "output token address, or the native symbol")
	flags.String("amount", "", "amount in base units")
	flags.String("swap-mode", "ExactIn", "which side the amount fixes (ExactIn, ExactOut)")
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
