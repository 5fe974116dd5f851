package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"poolscope/internal/config"
	"poolscope/internal/hooks"
	"poolscope/internal/metrics"
	"poolscope/internal/model"
	"poolscope/internal/poller"
	"poolscope/internal/server"
	"poolscope/internal/snapshot"
	"poolscope/internal/stats"
	"poolscope/internal/storage/postgres"
	"poolscope/internal/subgraph"
	"poolscope/internal/univ4/depth"
)

func runServe(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadServe(cfgFile, cmd.Flags())
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
	if len(cfg.Pools) == 0 {
		return fmt.Errorf("pool list is required")
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

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	var store *postgres.Store
	var remote poller.RemoteCursor
	if cfg.PGDSN != "" {
		store, err = postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer store.Close()
		remote = store
	}

	p, err := poller.New(poller.Config{
		PoolIDs:       cfg.Pools,
		PollInterval:  cfg.PollInterval,
		DrainInterval: cfg.DrainInterval,
		DrainBatch:    cfg.DrainBatch,
		QueueLimit:    cfg.QueueLimit,
		SwapsPerPoll:  cfg.SwapsPerPoll,
		TickPageSize:  cfg.TickPageSize,
		CursorPath:    cfg.Cursor,
		CursorEnabled: cfg.CursorEnabled,
		RemoteCursor:  remote,
	}, client, m, logger)
	if err != nil {
		return err
	}

	var hookDir server.HookDirectory
	if cfg.HooksURL != "" {
		hookClient, err := hooks.NewClient(hooks.Config{
			BaseURL:  cfg.HooksURL,
			APIToken: cfg.HooksToken,
			CacheTTL: cfg.HooksCacheTTL,
		}, logger)
		if err != nil {
			return err
		}
		hookDir = hookClient
	}

	srv, err := server.New(server.Config{
		Addr:                cfg.Addr,
		DefaultDepthBuckets: cfg.DepthBuckets,
		MaxDepthBuckets:     cfg.MaxDepthBuckets,
	}, p, hookDir, registry, logger)
	if err != nil {
		return err
	}

	logger.Info("serve start",
		zap.String("subgraph", cfg.SubgraphURL),
		zap.Int("pools", len(cfg.Pools)),
		zap.String("addr", cfg.Addr),
		zap.Duration("poll_interval", cfg.PollInterval),
		zap.Bool("postgres", store != nil),
		zap.Bool("hooks", hookDir != nil),
	)

	errCh := make(chan error, 2)
	go func() { errCh <- p.Run(ctx) }()
	go func() { errCh <- srv.Run(ctx) }()
	if store != nil {
		go persistLoop(ctx, p, store, cfg.PersistInterval, logger)
	}

	err = <-errCh
	stop()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// persistLoop periodically flushes the poller's live state to
// Postgres so restarts and offline analysis have history to work
// with. Failures are logged and retried on the next tick.
func persistLoop(ctx context.Context, p *poller.Poller, store *postgres.Store, interval time.Duration, logger *zap.Logger) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := persistOnce(ctx, p, store); err != nil {
				logger.Warn("persist failed", zap.Error(err))
			}
		}
	}
}

func persistOnce(ctx context.Context, p *poller.Poller, store *postgres.Store) error {
	snaps := p.Snapshots()
	if len(snaps) == 0 {
		return nil
	}

	pools := make([]model.Pool, 0, len(snaps))
	statRows := make([]model.PoolStats, 0, len(snaps))
	depthRows := make([]model.DepthSnapshot, 0)

	for _, snap := range snaps {
		ladder, err := depth.Build(poller.BuildDepthInput(snap, 0))
		if err != nil {
			return fmt.Errorf("build ladder for %s: %w", snap.Pool.ID, err)
		}
		swapCount := uint64(len(p.RecentSwaps(snap.Pool.ID)))

		pools = append(pools, snap.Pool)
		statRows = append(statRows, stats.Compute(snap.Pool, swapCount, len(snap.Ticks), snap.FetchedAt))
		depthRows = append(depthRows, snapshot.DepthRows(snap.Pool, ladder, snap.FetchedAt)...)
	}

	if err := store.UpsertPools(ctx, pools); err != nil {
		return fmt.Errorf("upsert pools: %w", err)
	}
	if err := store.UpsertPoolStats(ctx, statRows); err != nil {
		return fmt.Errorf("upsert stats: %w", err)
	}
	if err := store.InsertDepthSnapshots(ctx, depthRows); err != nil {
		return fmt.Errorf("insert depth: %w", err)
	}
	return nil
}
