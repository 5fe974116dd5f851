package stateview

import (
	"poolscope/internal/model"
)

// Drift summarizes how far the subgraph's view lags the chain. The
// subgraph values still win downstream; this is diagnostic only.
type Drift struct {
	TickDelta      int64
	LiquidityMatch bool
	SqrtPriceMatch bool
}

// InSync reports whether the subgraph matches the chain exactly.
func (d Drift) InSync() bool {
	return d.TickDelta == 0 && d.LiquidityMatch && d.SqrtPriceMatch
}

// Compare diffs a subgraph pool record against live state. Fields the
// record cannot be parsed from count as mismatches.
func Compare(pool model.Pool, live PoolState) Drift {
	d := Drift{TickDelta: pool.Tick - live.Tick}

	if liq, err := pool.LiquidityInt(); err == nil && live.Liquidity != nil {
		d.LiquidityMatch = liq.Cmp(live.Liquidity) == 0
	}
	if sqrtP, err := pool.SqrtPriceInt(); err == nil && live.SqrtPriceX96 != nil {
		d.SqrtPriceMatch = sqrtP.Cmp(live.SqrtPriceX96) == 0
	}
	return d
}

// Abs64 is a small helper for logging drift magnitudes.
func Abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
