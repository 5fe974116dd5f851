package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	root := &cobra.Command{
		Use:          "poolscope",
		Short:        "Uniswap v4 pool liquidity analytics",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the poller and the read API",
		RunE:  runServe,
	}

	serveCmd.Flags().String("subgraph", "", "indexer GraphQL endpoint")
	serveCmd.Flags().StringSlice("pool", nil, "pool ids to track (comma-separated)")
	serveCmd.Flags().String("addr", ":8080", "API listen address")
	serveCmd.Flags().Duration("poll-interval", 12*time.Second, "snapshot poll interval")
	serveCmd.Flags().Duration("drain-interval", time.Second, "pending swap drain interval")
	serveCmd.Flags().Int("drain-batch", 8, "swaps drained per tick")
	serveCmd.Flags().Int("queue-limit", 256, "pending swap queue size")
	serveCmd.Flags().Int("swaps-per-poll", 100, "swaps fetched per poll")
	serveCmd.Flags().Int("tick-page-size", 1000, "ticks fetched per page")
	serveCmd.Flags().String("cursor", "./data/cursor.json", "swap cursor file path")
	serveCmd.Flags().Bool("cursor-enabled", true, "persist the swap cursor")
	serveCmd.Flags().String("pg-dsn", "", "Postgres DSN (optional)")
	serveCmd.Flags().Duration("persist-interval", 5*time.Minute, "Postgres persist interval")
	serveCmd.Flags().Int("depth-buckets", 25, "default depth ladder width")
	serveCmd.Flags().Int("max-depth-buckets", 200, "maximum depth ladder width")
	serveCmd.Flags().String("hooks-url", "", "hook directory base URL (optional)")
	serveCmd.Flags().String("hooks-token", "", "hook directory API token")
	serveCmd.Flags().Duration("hooks-cache-ttl", 5*time.Minute, "hook metadata cache TTL")
	serveCmd.Flags().Int("max-retries", 5, "maximum retry attempts")
	serveCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	serveCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(serveCmd)

	snapshotCmd := &cobra.Command{
		Use:   "snapshot",
		Short: "One-shot pool snapshot into Postgres or JSONL",
		RunE:  runSnapshot,
	}

	snapshotCmd.Flags().String("subgraph", "", "indexer GraphQL endpoint")
	snapshotCmd.Flags().StringSlice("pool", nil, "pool ids to snapshot (comma-separated)")
	snapshotCmd.Flags().Uint64("chain", 0, "discover top pools on this chain id instead of --pool")
	snapshotCmd.Flags().Int("top", 20, "pools discovered with --chain")
	snapshotCmd.Flags().String("rpc", "", "RPC URL for drift checks (optional)")
	snapshotCmd.Flags().String("stateview", "", "StateView contract address")
	snapshotCmd.Flags().String("pg-dsn", "", "Postgres DSN (optional)")
	snapshotCmd.Flags().String("out", "", "depth rows JSONL path (optional)")
	snapshotCmd.Flags().Int("window", 0, "ladder width, 0 means all buckets")
	snapshotCmd.Flags().Int("tick-page-size", 1000, "ticks fetched per page")
	snapshotCmd.Flags().Int("max-retries", 5, "maximum retry attempts")
	snapshotCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	snapshotCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(snapshotCmd)

	depthCmd := &cobra.Command{
		Use:   "depth",
		Short: "Print one pool's liquidity ladder",
		RunE:  runDepth,
	}

	depthCmd.Flags().String("subgraph", "", "indexer GraphQL endpoint")
	depthCmd.Flags().String("pool", "", "pool id")
	depthCmd.Flags().Int("buckets", 25, "ladder width around the active tick")
	depthCmd.Flags().String("out", "", "JSONL path, empty prints to stdout")
	depthCmd.Flags().Int("tick-page-size", 1000, "ticks fetched per page")
	depthCmd.Flags().Int("max-retries", 5, "maximum retry attempts")
	depthCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	depthCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(depthCmd)

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
