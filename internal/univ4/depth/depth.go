// Package depth turns sparse initialized-tick samples into a dense,
// display-ready liquidity ladder anchored to the pool's reported
// active liquidity.
package depth

import (
	"math/big"
	"sort"

	"poolscope/internal/univ4/liquidity"
)

// TickSample is one initialized tick boundary with its signed
// liquidity delta.
type TickSample struct {
	Tick         int64
	LiquidityNet *big.Int
}

// TokenPricing carries the inputs needed to express a token amount in
// USD. Available is false when the indexer had no usable price, which
// must surface as "unavailable" rather than zero.
type TokenPricing struct {
	Decimals   uint8
	DerivedETH float64
	Available  bool
}

// Input is a consistent snapshot for one ladder computation.
type Input struct {
	Samples       []TickSample
	CurrentTick   int64
	TickSpacing   int64
	PoolLiquidity *big.Int
	SqrtPriceX96  *big.Int
	Token0        TokenPricing
	Token1        TokenPricing
	EthPriceUSD   float64
	EthPriceOK    bool
	// Window limits the ladder to this many buckets around the
	// active tick; zero means all sampled buckets.
	Window int
}

// Bucket is one rung of the ladder, covering [TickLower, TickUpper).
type Bucket struct {
	TickLower    int64    `json:"tick_lower"`
	TickUpper    int64    `json:"tick_upper"`
	Liquidity    *big.Int `json:"liquidity"`
	Amount0      float64  `json:"amount0"`
	Amount1      float64  `json:"amount1"`
	USDValue     float64  `json:"usd_value"`
	USDAvailable bool     `json:"usd_available"`
	Active       bool     `json:"active"`
}

// Ladder is the ordered bucket series keyed by ascending tick.
type Ladder struct {
	ActiveTick int64    `json:"active_tick"`
	Buckets    []Bucket `json:"buckets"`
}

// ActiveTick aligns currentTick down to a tick-spacing boundary,
// flooring toward negative infinity.
func ActiveTick(currentTick, tickSpacing int64) int64 {
	if tickSpacing <= 0 {
		return currentTick
	}
	q := currentTick / tickSpacing
	if currentTick%tickSpacing != 0 && currentTick < 0 {
		q--
	}
	return q * tickSpacing
}

// Build computes the anchored liquidity ladder for a snapshot. It is
// pure: the same input always yields a deeply equal ladder, and the
// input slices are never mutated. Missing or degenerate inputs yield
// an empty ladder rather than an error.
func Build(in Input) (Ladder, error) {
	if len(in.Samples) == 0 || in.TickSpacing <= 0 || in.PoolLiquidity == nil || in.SqrtPriceX96 == nil {
		return Ladder{ActiveTick: ActiveTick(in.CurrentTick, in.TickSpacing)}, nil
	}

	samples := make([]TickSample, len(in.Samples))
	copy(samples, in.Samples)
	sort.SliceStable(samples, func(i, j int) bool {
		return samples[i].Tick < samples[j].Tick
	})

	// Raw running sum of liquidityNet. The zero point is arbitrary:
	// only the pool's reported liquidity at the active tick gives the
	// stream an absolute reference.
	raw := make([]*big.Int, len(samples))
	running := new(big.Int)
	for i, s := range samples {
		if s.LiquidityNet != nil {
			running.Add(running, s.LiquidityNet)
		}
		raw[i] = new(big.Int).Set(running)
	}

	activeTick := ActiveTick(in.CurrentTick, in.TickSpacing)

	rawAtActive := new(big.Int)
	for i, s := range samples {
		if s.Tick > activeTick {
			break
		}
		rawAtActive.Set(raw[i])
	}

	offset := new(big.Int).Sub(in.PoolLiquidity, rawAtActive)

	buckets := make([]Bucket, 0, len(samples))
	activeIdx := -1
	for i, s := range samples {
		anchored := new(big.Int).Add(raw[i], offset)
		if anchored.Sign() < 0 {
			// Incomplete tick windows can leave the tails negative;
			// clamp so the display never shows negative depth.
			anchored.SetInt64(0)
		}

		bucket, ok := buildBucket(s.Tick, anchored, in)
		if !ok {
			continue
		}
		// The active price sits inside the bucket anchored at the
		// greatest sampled tick at or below it, which may not be an
		// exact sample when tick windows are sparse.
		if s.Tick <= activeTick {
			activeIdx = len(buckets)
		}
		buckets = append(buckets, bucket)
	}
	if activeIdx >= 0 {
		buckets[activeIdx].Active = true
	}

	buckets = window(buckets, activeTick, in.Window)

	return Ladder{ActiveTick: activeTick, Buckets: buckets}, nil
}

func buildBucket(tick int64, anchored *big.Int, in Input) (Bucket, bool) {
	amount0Raw, err := liquidity.Amount0(tick, tick+in.TickSpacing, in.CurrentTick, anchored, in.SqrtPriceX96)
	if err != nil {
		return Bucket{}, false
	}
	amount1Raw, err := liquidity.Amount1(tick, tick+in.TickSpacing, in.CurrentTick, anchored, in.SqrtPriceX96)
	if err != nil {
		return Bucket{}, false
	}

	bucket := Bucket{
		TickLower: tick,
		TickUpper: tick + in.TickSpacing,
		Liquidity: anchored,
		Amount0:   liquidity.AdjustedAmount(amount0Raw, in.Token0.Decimals),
		Amount1:   liquidity.AdjustedAmount(amount1Raw, in.Token1.Decimals),
	}

	if in.EthPriceOK && in.Token0.Available && in.Token1.Available {
		usd0 := bucket.Amount0 * in.Token0.DerivedETH * in.EthPriceUSD
		usd1 := bucket.Amount1 * in.Token1.DerivedETH * in.EthPriceUSD
		bucket.USDValue = usd0 + usd1
		bucket.USDAvailable = true
	}

	return bucket, true
}

// window trims the ladder to at most n buckets, keeping the active
// bucket inside the returned slice whenever the data allows. The
// window start is biased rather than dropping the active rung.
func window(buckets []Bucket, activeTick int64, n int) []Bucket {
	if n <= 0 || len(buckets) <= n {
		return buckets
	}

	activeIdx := 0
	for i, b := range buckets {
		if b.TickLower <= activeTick {
			activeIdx = i
		}
	}

	start := activeIdx - n/2
	if start < 0 {
		start = 0
	}
	if start+n > len(buckets) {
		start = len(buckets) - n
	}
	return buckets[start : start+n]
}
