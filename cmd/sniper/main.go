package main

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"tokenSniper/internal/config"
)

func main() {
	// Endpoint and key material conventionally live in a .env file.
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:   "sniper [fromBlock toBlock]",
		Short: "Token deployment sniper",
		Long: "Watches the chain for newly deployed token contracts from a trusted deployer\n" +
			"and fires a single swap the instant one appears. With no arguments it monitors\n" +
			"live and trades at most once; with two block numbers it replays that inclusive\n" +
			"range and reports every qualifying candidate.",
		SilenceUsage: true,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 0 && len(args) != 2 {
				return fmt.Errorf("expects no arguments (live mode) or exactly two block numbers (replay mode)")
			}
			return nil
		},
		RunE: run,
	}

	root.PersistentFlags().String("config", "", "config file path")

	root.Flags().String("rpc", "", "node WebSocket RPC URL")
	root.Flags().String("private-key", "", "hex private key for signing")
	root.Flags().Uint64("chain-id", 8453, "chain id for signing")
	root.Flags().String("event-topic", config.DefaultEventTopic, "deployment event signature (topic0)")
	root.Flags().StringSlice("deployer", nil, "emitting contract addresses (comma-separated)")
	root.Flags().String("target-owner", "", "exact new-owner address (strict variant)")
	root.Flags().String("wanted", "", "caller address that triggers a trade")
	root.Flags().String("unwanted", "", "caller address that is always rejected")
	root.Flags().Bool("verify", true, "verify unknown callers via transaction lookup")
	root.Flags().String("router", "0x4752ba5dbc23f44d87826276bf6fd6b1c372ad24", "V2 router address")
	root.Flags().String("token-in", "", "input token address")
	root.Flags().String("amount-in", "", "fixed input amount in wei")
	root.Flags().String("amount-out-min", "1", "minimum output amount (slippage floor)")
	root.Flags().String("gas-tier", "standard", "gas tier (standard, fast, turbo)")
	root.Flags().Duration("trade-deadline", 5*time.Minute, "wall-clock deadline for a trade")
	root.Flags().Uint64("batch-size", 2000, "blocks per replay batch")
	root.Flags().Int("max-retries", 5, "maximum retry attempts")
	root.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	root.Flags().String("report-out", "./data/detections.jsonl", "replay report JSONL path")
	root.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
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
