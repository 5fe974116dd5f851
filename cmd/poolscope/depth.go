package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"poolscope/internal/config"
	"poolscope/internal/model"
	"poolscope/internal/snapshot"
	"poolscope/internal/storage"
	"poolscope/internal/subgraph"
)

func runDepth(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadDepth(cfgFile, cmd.Flags())
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
	if cfg.Pool == "" {
		return fmt.Errorf("pool id is required")
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

	var sink snapshot.DepthSink
	if cfg.Out != "" {
		sink = storage.NewJsonlStorage(cfg.Out)
	}

	runner, err := snapshot.NewRunner(snapshot.Config{
		Pools:        []string{cfg.Pool},
		Window:       cfg.Buckets,
		TickPageSize: cfg.TickPageSize,
	}, client, nil, sink, nil, nil, logger)
	if err != nil {
		return err
	}

	results, err := runner.Run(ctx)
	if err != nil {
		return err
	}

	if cfg.Out != "" {
		return nil
	}

	result := results[0]
	out := struct {
		Pool       string                `json:"pool"`
		ChainID    uint64                `json:"chain_id"`
		ActiveTick int64                 `json:"active_tick"`
		Rows       []model.DepthSnapshot `json:"rows"`
	}{
		Pool:       result.Pool.ID,
		ChainID:    result.Pool.ChainID,
		ActiveTick: result.Ladder.ActiveTick,
		Rows:       result.Rows,
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(out)
}
