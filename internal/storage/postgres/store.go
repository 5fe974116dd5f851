package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"poolscope/internal/model"
)

// Store provides Postgres persistence for pool snapshots.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// UpsertPools inserts or updates pool records.
func (s *Store) UpsertPools(ctx context.Context, pools []model.Pool) error {
	if len(pools) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, p := range pools {
		batch.Queue(`
			INSERT INTO pools (
				chain_id, pool_id, token0, token0_symbol, token0_decimals,
				token1, token1_symbol, token1_decimals,
				fee_tier, tick_spacing, hooks, created_at_ts, created_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,now(),now())
			ON CONFLICT (chain_id, pool_id)
			DO UPDATE SET
				token0 = EXCLUDED.token0,
				token0_symbol = EXCLUDED.token0_symbol,
				token0_decimals = EXCLUDED.token0_decimals,
				token1 = EXCLUDED.token1,
				token1_symbol = EXCLUDED.token1_symbol,
				token1_decimals = EXCLUDED.token1_decimals,
				fee_tier = EXCLUDED.fee_tier,
				tick_spacing = EXCLUDED.tick_spacing,
				hooks = EXCLUDED.hooks,
				updated_at = now()
		`,
			int64(p.ChainID),
			p.ID,
			p.Token0.ID,
			p.Token0.Symbol,
			int16(p.Token0.Decimals),
			p.Token1.ID,
			p.Token1.Symbol,
			int16(p.Token1.Decimals),
			p.FeeTier,
			p.TickSpacing,
			p.Hooks,
			int64(p.CreatedAtTimestamp),
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range pools {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// UpsertPoolStats inserts or updates observed stats rows.
func (s *Store) UpsertPoolStats(ctx context.Context, rows []model.PoolStats) error {
	if len(rows) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, m := range rows {
		batch.Queue(`
			INSERT INTO pool_stats (
				chain_id, pool_id, observed_at, tick, price0, price1,
				tvl_usd, volume_usd, fees_usd, fee_apr, tx_count, swap_count, tick_samples,
				created_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,now(),now())
			ON CONFLICT (chain_id, pool_id, observed_at)
			DO UPDATE SET
				tick = EXCLUDED.tick,
				price0 = EXCLUDED.price0,
				price1 = EXCLUDED.price1,
				tvl_usd = EXCLUDED.tvl_usd,
				volume_usd = EXCLUDED.volume_usd,
				fees_usd = EXCLUDED.fees_usd,
				fee_apr = EXCLUDED.fee_apr,
				tx_count = EXCLUDED.tx_count,
				swap_count = EXCLUDED.swap_count,
				tick_samples = EXCLUDED.tick_samples,
				updated_at = now()
		`,
			int64(m.ChainID),
			m.PoolID,
			m.ObservedAt,
			m.Tick,
			m.Price0,
			m.Price1,
			m.TVLUSD,
			m.VolumeUSD,
			m.FeesUSD,
			m.FeeAPR,
			int64(m.TxCount),
			int64(m.SwapCount),
			m.TickSamples,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range rows {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// InsertDepthSnapshots appends depth bucket rows for one observation.
func (s *Store) InsertDepthSnapshots(ctx context.Context, rows []model.DepthSnapshot) error {
	if len(rows) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, d := range rows {
		batch.Queue(`
			INSERT INTO depth_snapshots (
				chain_id, pool_id, observed_at, tick_lower, tick_upper,
				liquidity, amount0, amount1, usd_value, active_bucket, created_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,now())
			ON CONFLICT (chain_id, pool_id, observed_at, tick_lower) DO NOTHING
		`,
			int64(d.ChainID),
			d.PoolID,
			d.ObservedAt,
			d.TickLower,
			d.TickUpper,
			d.Liquidity,
			d.Amount0,
			d.Amount1,
			d.USDValue,
			d.ActiveBucket,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range rows {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// LoadCursor returns the stored swap cursor for a pool.
func (s *Store) LoadCursor(ctx context.Context, poolID string) (uint64, bool, error) {
	if poolID == "" {
		return 0, false, fmt.Errorf("pool id required")
	}
	var ts uint64
	row := s.pool.QueryRow(ctx, `SELECT last_swap_ts FROM poll_cursors WHERE pool_id=$1`, poolID)
	if err := row.Scan(&ts); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return ts, true, nil
}

// SaveCursor upserts the swap cursor for a pool.
func (s *Store) SaveCursor(ctx context.Context, poolID string, ts uint64) error {
	if poolID == "" {
		return fmt.Errorf("pool id required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO poll_cursors (pool_id, last_swap_ts, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (pool_id) DO UPDATE
		SET last_swap_ts = EXCLUDED.last_swap_ts, updated_at = now()
	`, poolID, ts)
	return err
}
