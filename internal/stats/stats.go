// Package stats derives display metrics for a pool from its indexer
// record. Nullable outputs use nil to mean "input unavailable", never
// zero.
package stats

import (
	"math/big"
	"strconv"
	"time"

	"poolscope/internal/model"
	"poolscope/internal/univ4/tickmath"
)

const ratioScale = 6

// FormatTokenAmount renders a raw integer token amount as a decimal
// string shifted by the token's decimals.
func FormatTokenAmount(value *big.Int, decimals uint8) string {
	if value == nil {
		return "0"
	}
	if decimals == 0 {
		return value.String()
	}
	sign := value.Sign()
	abs := new(big.Int).Abs(value)
	denom := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	rat := new(big.Rat).SetFrac(abs, denom)
	text := rat.FloatString(int(decimals))
	if sign < 0 {
		return "-" + text
	}
	return text
}

// FormatUSD renders a USD amount for display with two decimals.
func FormatUSD(value float64) string {
	return strconv.FormatFloat(value, 'f', 2, 64)
}

// FeeAPR annualizes the pool's lifetime fee take against its current
// TVL. Both inputs are indexer decimal strings; nil when either is
// missing, zero, or malformed.
func FeeAPR(feesUSD, tvlUSD string, ageSeconds uint64) *string {
	if ageSeconds == 0 {
		return nil
	}
	fees, ok := new(big.Rat).SetString(feesUSD)
	if !ok || fees.Sign() <= 0 {
		return nil
	}
	tvl, ok := new(big.Rat).SetString(tvlUSD)
	if !ok || tvl.Sign() <= 0 {
		return nil
	}

	yearSeconds := big.NewRat(int64(365*24*time.Hour/time.Second), 1)
	age := new(big.Rat).SetInt64(int64(ageSeconds))

	apr := new(big.Rat).Quo(fees, tvl)
	apr.Mul(apr, yearSeconds)
	apr.Quo(apr, age)

	val := apr.FloatString(ratioScale)
	return &val
}

// Compute assembles the stats row for a pool snapshot. Price labels
// degrade to nil when the tick is out of range.
func Compute(pool model.Pool, swapCount uint64, tickSamples int, observedAt time.Time) model.PoolStats {
	out := model.PoolStats{
		ChainID:     pool.ChainID,
		PoolID:      pool.ID,
		ObservedAt:  observedAt,
		Tick:        pool.Tick,
		TVLUSD:      pool.TVLUSD,
		VolumeUSD:   pool.VolumeUSD,
		FeesUSD:     pool.FeesUSD,
		TxCount:     pool.TxCount,
		SwapCount:   swapCount,
		TickSamples: tickSamples,
	}

	if price0, err := tickmath.PriceFromTick(pool.Tick, pool.Token0.Decimals, pool.Token1.Decimals); err == nil {
		text := strconv.FormatFloat(price0, 'g', 10, 64)
		out.Price0 = &text
		if price0 != 0 {
			inverse := strconv.FormatFloat(1/price0, 'g', 10, 64)
			out.Price1 = &inverse
		}
	}

	var age uint64
	if pool.CreatedAtTimestamp > 0 {
		now := uint64(observedAt.Unix())
		if now > pool.CreatedAtTimestamp {
			age = now - pool.CreatedAtTimestamp
		}
	}
	out.FeeAPR = FeeAPR(pool.FeesUSD, pool.TVLUSD, age)

	return out
}
