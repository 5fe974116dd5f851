package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"poolscope/internal/chain"
	"poolscope/internal/config"
	"poolscope/internal/snapshot"
	"poolscope/internal/stateview"
	"poolscope/internal/storage"
	"poolscope/internal/storage/postgres"
	"poolscope/internal/subgraph"
)

func runSnapshot(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadSnapshot(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.SubgraphURL == "" {
		return fmt.Errorf("subgraph endpoint is required")
	}
	if len(cfg.Pools) == 0 && cfg.ChainID == 0 {
		return fmt.Errorf("either a pool list or a chain id is required")
	}
	if cfg.PGDSN == "" && cfg.Out == "" {
		return fmt.Errorf("either pg-dsn or out is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := subgraph.NewClient(subgraph.Config{
		Endpoint:     cfg.SubgraphURL,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
	}, logger)
	if err != nil {
		return err
	}

	if len(cfg.Pools) == 0 {
		pools, err := client.Pools(ctx, cfg.ChainID, cfg.Top)
		if err != nil {
			return fmt.Errorf("discover pools: %w", err)
		}
		for _, pool := range pools {
			cfg.Pools = append(cfg.Pools, pool.ID)
		}
		if len(cfg.Pools) == 0 {
			return fmt.Errorf("no pools indexed on chain %d", cfg.ChainID)
		}
		logger.Info("discovered pools", zap.Uint64("chain", cfg.ChainID), zap.Int("count", len(cfg.Pools)))
	}

	var verifier snapshot.Verifier
	var tokens snapshot.TokenMetaSource
	if cfg.RPCURL != "" {
		if !common.IsHexAddress(cfg.StateView) {
			return fmt.Errorf("stateview address is required with rpc")
		}

		chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
		if err != nil {
			return fmt.Errorf("connect rpc: %w", err)
		}
		defer chainClient.Close()

		reader, err := stateview.NewReader(chainClient, common.HexToAddress(cfg.StateView))
		if err != nil {
			return err
		}
		verifier = reader
		tokens = chain.NewTokenMetaReader(chainClient)
	}

	var store snapshot.Store
	if cfg.PGDSN != "" {
		pg, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer pg.Close()
		store = pg
	}

	var sink snapshot.DepthSink
	if cfg.Out != "" {
		sink = storage.NewJsonlStorage(cfg.Out)
	}

	runner, err := snapshot.NewRunner(snapshot.Config{
		Pools:        cfg.Pools,
		Window:       cfg.Window,
		TickPageSize: cfg.TickPageSize,
	}, client, store, sink, verifier, tokens, logger)
	if err != nil {
		return err
	}

	logger.Info("snapshot start",
		zap.String("subgraph", cfg.SubgraphURL),
		zap.Int("pools", len(cfg.Pools)),
		zap.Bool("postgres", store != nil),
		zap.String("out", cfg.Out),
		zap.Bool("drift_check", verifier != nil),
	)

	results, err := runner.Run(ctx)
	if err != nil {
		return err
	}

	for _, result := range results {
		logger.Info("pool snapshot",
			zap.String("pool", result.Pool.ID),
			zap.Uint64("chain", result.Pool.ChainID),
			zap.Int64("active_tick", result.Ladder.ActiveTick),
			zap.Int("buckets", len(result.Ladder.Buckets)),
		)
	}

	return nil
}
