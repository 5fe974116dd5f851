// Package snapshot drives the one-shot pipeline: fetch each pool's
// state from the indexer, cross-check it on-chain when an RPC is
// configured, compute the depth ladder and stats row, and hand the
// results to the configured sinks.
package snapshot

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"poolscope/internal/chain"
	"poolscope/internal/model"
	"poolscope/internal/poller"
	"poolscope/internal/stateview"
	"poolscope/internal/stats"
	"poolscope/internal/univ4/depth"
)

// Source is the slice of the subgraph client the runner needs.
type Source interface {
	Pool(ctx context.Context, id string) (model.Pool, bool, error)
	Ticks(ctx context.Context, poolID string, pageSize int) ([]model.TickSample, error)
	Bundle(ctx context.Context, chainID uint64) (model.Bundle, bool, error)
}

// Store is the Postgres surface the runner writes to.
type Store interface {
	UpsertPools(ctx context.Context, pools []model.Pool) error
	UpsertPoolStats(ctx context.Context, rows []model.PoolStats) error
	InsertDepthSnapshots(ctx context.Context, rows []model.DepthSnapshot) error
}

// DepthSink receives the computed ladder rows.
type DepthSink interface {
	PutDepthBatch(rows []model.DepthSnapshot) error
}

// Verifier reads live pool state for drift checks.
type Verifier interface {
	PoolState(ctx context.Context, poolID common.Hash) (stateview.PoolState, error)
}

// TokenMetaSource backfills token decimals/symbols the indexer left
// blank.
type TokenMetaSource interface {
	TokenMeta(ctx context.Context, token common.Address) (chain.TokenMeta, error)
}

// Config controls the snapshot run.
type Config struct {
	Pools        []string
	Window       int
	TickPageSize int
}

// Result is one pool's computed output.
type Result struct {
	Pool   model.Pool
	Stats  model.PoolStats
	Ladder depth.Ladder
	Rows   []model.DepthSnapshot
}

// Runner executes the pipeline. Store, sink, and verifier are all
// optional; a nil member disables that output.
type Runner struct {
	cfg      Config
	source   Source
	store    Store
	sink     DepthSink
	verifier Verifier
	tokens   TokenMetaSource
	logger   *zap.Logger
}

func NewRunner(cfg Config, source Source, store Store, sink DepthSink, verifier Verifier, tokens TokenMetaSource, logger *zap.Logger) (*Runner, error) {
	if source == nil {
		return nil, fmt.Errorf("source is nil")
	}
	if len(cfg.Pools) == 0 {
		return nil, fmt.Errorf("at least one pool id is required")
	}
	if cfg.TickPageSize <= 0 {
		cfg.TickPageSize = 1000
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Runner{
		cfg:      cfg,
		source:   source,
		store:    store,
		sink:     sink,
		verifier: verifier,
		tokens:   tokens,
		logger:   logger,
	}, nil
}

// Run processes every configured pool. A pool that cannot be fetched
// is skipped with a warning; the error return covers sink failures
// and the case where no pool produced output at all.
func (r *Runner) Run(ctx context.Context) ([]Result, error) {
	observedAt := time.Now().UTC()

	results := make([]Result, 0, len(r.cfg.Pools))
	for _, poolID := range r.cfg.Pools {
		select {
		case <-ctx.Done():
			return results, ctx.Err()
		default:
		}

		result, err := r.runOne(ctx, poolID, observedAt)
		if err != nil {
			r.logger.Warn("pool skipped", zap.String("pool", poolID), zap.Error(err))
			continue
		}
		results = append(results, result)
	}

	if len(results) == 0 {
		return nil, fmt.Errorf("no pool produced a snapshot")
	}

	if err := r.flush(ctx, results); err != nil {
		return results, err
	}
	return results, nil
}

func (r *Runner) runOne(ctx context.Context, poolID string, observedAt time.Time) (Result, error) {
	pool, ok, err := r.source.Pool(ctx, poolID)
	if err != nil {
		return Result{}, fmt.Errorf("fetch pool: %w", err)
	}
	if !ok {
		return Result{}, fmt.Errorf("pool not indexed")
	}

	ticks, err := r.source.Ticks(ctx, poolID, r.cfg.TickPageSize)
	if err != nil {
		return Result{}, fmt.Errorf("fetch ticks: %w", err)
	}

	bundle, bundleOK, err := r.source.Bundle(ctx, pool.ChainID)
	if err != nil {
		r.logger.Warn("bundle fetch failed", zap.String("pool", poolID), zap.Error(err))
		bundleOK = false
	}

	r.backfillTokenMeta(ctx, &pool)
	r.verifyDrift(ctx, pool)

	snap := poller.Snapshot{
		Pool:      pool,
		Ticks:     ticks,
		Bundle:    bundle,
		BundleOK:  bundleOK,
		FetchedAt: observedAt,
	}

	ladder, err := depth.Build(poller.BuildDepthInput(snap, r.cfg.Window))
	if err != nil {
		return Result{}, fmt.Errorf("build ladder: %w", err)
	}

	return Result{
		Pool:   pool,
		Stats:  stats.Compute(pool, 0, len(ticks), observedAt),
		Ladder: ladder,
		Rows:   DepthRows(pool, ladder, observedAt),
	}, nil
}

// backfillTokenMeta fills decimals/symbols the indexer left blank
// from on-chain ERC-20 metadata. Best-effort: a token that cannot be
// read keeps its indexer record.
func (r *Runner) backfillTokenMeta(ctx context.Context, pool *model.Pool) {
	if r.tokens == nil {
		return
	}

	for _, token := range []*model.Token{&pool.Token0, &pool.Token1} {
		if token.Symbol != "" && token.Decimals > 0 {
			continue
		}
		if !common.IsHexAddress(token.ID) {
			continue
		}

		meta, err := r.tokens.TokenMeta(ctx, common.HexToAddress(token.ID))
		if err != nil {
			r.logger.Debug("token meta fetch failed", zap.String("token", token.ID), zap.Error(err))
			continue
		}
		if token.Symbol == "" {
			token.Symbol = meta.Symbol
		}
		if token.Decimals == 0 {
			token.Decimals = meta.Decimals
		}
	}
}

// verifyDrift cross-checks the indexer values against live chain
// state. Drift is logged only; the indexer values still drive the
// computation.
func (r *Runner) verifyDrift(ctx context.Context, pool model.Pool) {
	if r.verifier == nil {
		return
	}
	if len(common.FromHex(pool.ID)) != common.HashLength {
		r.logger.Debug("pool id is not a 32-byte pool id, skipping drift check", zap.String("pool", pool.ID))
		return
	}

	live, err := r.verifier.PoolState(ctx, common.HexToHash(pool.ID))
	if err != nil {
		r.logger.Warn("live state fetch failed", zap.String("pool", pool.ID), zap.Error(err))
		return
	}

	drift := stateview.Compare(pool, live)
	if drift.InSync() {
		r.logger.Debug("indexer in sync with chain", zap.String("pool", pool.ID))
		return
	}
	r.logger.Warn("indexer drift detected",
		zap.String("pool", pool.ID),
		zap.Int64("tick_delta", drift.TickDelta),
		zap.Bool("liquidity_match", drift.LiquidityMatch),
		zap.Bool("sqrt_price_match", drift.SqrtPriceMatch),
	)
}

func (r *Runner) flush(ctx context.Context, results []Result) error {
	pools := make([]model.Pool, 0, len(results))
	statRows := make([]model.PoolStats, 0, len(results))
	depthRows := make([]model.DepthSnapshot, 0)
	for _, result := range results {
		pools = append(pools, result.Pool)
		statRows = append(statRows, result.Stats)
		depthRows = append(depthRows, result.Rows...)
	}

	if r.store != nil {
		if err := r.store.UpsertPools(ctx, pools); err != nil {
			return fmt.Errorf("upsert pools: %w", err)
		}
		if err := r.store.UpsertPoolStats(ctx, statRows); err != nil {
			return fmt.Errorf("upsert stats: %w", err)
		}
		if err := r.store.InsertDepthSnapshots(ctx, depthRows); err != nil {
			return fmt.Errorf("insert depth: %w", err)
		}
	}

	if r.sink != nil {
		if err := r.sink.PutDepthBatch(depthRows); err != nil {
			return fmt.Errorf("write depth rows: %w", err)
		}
	}

	r.logger.Info("snapshot complete",
		zap.Int("pools", len(pools)),
		zap.Int("depth_rows", len(depthRows)),
	)
	return nil
}

// DepthRows flattens a ladder into persistable rows.
func DepthRows(pool model.Pool, ladder depth.Ladder, observedAt time.Time) []model.DepthSnapshot {
	rows := make([]model.DepthSnapshot, 0, len(ladder.Buckets))
	for _, b := range ladder.Buckets {
		row := model.DepthSnapshot{
			ChainID:      pool.ChainID,
			PoolID:       pool.ID,
			ObservedAt:   observedAt,
			TickLower:    b.TickLower,
			TickUpper:    b.TickUpper,
			Liquidity:    "0",
			Amount0:      strconv.FormatFloat(b.Amount0, 'f', -1, 64),
			Amount1:      strconv.FormatFloat(b.Amount1, 'f', -1, 64),
			ActiveBucket: b.Active,
		}
		if b.Liquidity != nil {
			row.Liquidity = b.Liquidity.String()
		}
		if b.USDAvailable {
			usd := stats.FormatUSD(b.USDValue)
			row.USDValue = &usd
		}
		rows = append(rows, row)
	}
	return rows
}
