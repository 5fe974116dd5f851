package server

import (
	"time"

	"poolscope/internal/chainmeta"
	"poolscope/internal/model"
	"poolscope/internal/poller"
	"poolscope/internal/stats"
	"poolscope/internal/univ4/depth"
)

// unavailable is the display placeholder for values that could not be
// computed from the snapshot.
const unavailable = "-"

type poolSummary struct {
	ID        string `json:"id"`
	ChainID   uint64 `json:"chain_id"`
	Chain     string `json:"chain"`
	Pair      string `json:"pair"`
	FeeTier   uint32 `json:"fee_tier"`
	Tick      int64  `json:"tick"`
	Price0    string `json:"price0"`
	Price1    string `json:"price1"`
	TVLUSD    string `json:"tvl_usd"`
	VolumeUSD string `json:"volume_usd"`
}

type poolDetail struct {
	poolSummary
	TickSpacing int64     `json:"tick_spacing"`
	Liquidity   string    `json:"liquidity"`
	SqrtPrice   string    `json:"sqrt_price"`
	Hooks       string    `json:"hooks"`
	FeesUSD     string    `json:"fees_usd"`
	TxCount     uint64    `json:"tx_count"`
	SwapCount   uint64    `json:"swap_count"`
	TickSamples int       `json:"tick_samples"`
	FeeAPR      string    `json:"fee_apr"`
	ExplorerURL string    `json:"explorer_url"`
	ObservedAt  time.Time `json:"observed_at"`
}

type swapRow struct {
	ID        string `json:"id"`
	Timestamp uint64 `json:"timestamp"`
	Amount0   string `json:"amount0"`
	Amount1   string `json:"amount1"`
	AmountUSD string `json:"amount_usd"`
	Tick      int64  `json:"tick"`
	Origin    string `json:"origin"`
	OriginURL string `json:"origin_url"`
}

type ladderBucket struct {
	TickLower int64   `json:"tick_lower"`
	TickUpper int64   `json:"tick_upper"`
	Liquidity string  `json:"liquidity"`
	Amount0   float64 `json:"amount0"`
	Amount1   float64 `json:"amount1"`
	USDValue  string  `json:"usd_value"`
	Active    bool    `json:"active"`
}

type ladderResponse struct {
	Pool       string         `json:"pool"`
	ChainID    uint64         `json:"chain_id"`
	ActiveTick int64          `json:"active_tick"`
	ObservedAt time.Time      `json:"observed_at"`
	Buckets    []ladderBucket `json:"buckets"`
}

func summarize(snap poller.Snapshot) poolSummary {
	row := statsFor(snap, 0)

	chainName := unavailable
	if network, ok := chainmeta.ByChainID(snap.Pool.ChainID); ok {
		chainName = network.Name
	}

	return poolSummary{
		ID:        snap.Pool.ID,
		ChainID:   snap.Pool.ChainID,
		Chain:     chainName,
		Pair:      snap.Pool.Token0.Symbol + "/" + snap.Pool.Token1.Symbol,
		FeeTier:   snap.Pool.FeeTier,
		Tick:      snap.Pool.Tick,
		Price0:    orDash(row.Price0),
		Price1:    orDash(row.Price1),
		TVLUSD:    snap.Pool.TVLUSD,
		VolumeUSD: snap.Pool.VolumeUSD,
	}
}

func statsFor(snap poller.Snapshot, swapCount int) model.PoolStats {
	return stats.Compute(snap.Pool, uint64(swapCount), len(snap.Ticks), snap.FetchedAt)
}

func renderLadder(snap poller.Snapshot, ladder depth.Ladder) ladderResponse {
	out := ladderResponse{
		Pool:       snap.Pool.ID,
		ChainID:    snap.Pool.ChainID,
		ActiveTick: ladder.ActiveTick,
		ObservedAt: snap.FetchedAt,
		Buckets:    make([]ladderBucket, 0, len(ladder.Buckets)),
	}

	for _, b := range ladder.Buckets {
		row := ladderBucket{
			TickLower: b.TickLower,
			TickUpper: b.TickUpper,
			Liquidity: "0",
			Amount0:   b.Amount0,
			Amount1:   b.Amount1,
			USDValue:  unavailable,
			Active:    b.Active,
		}
		if b.Liquidity != nil {
			row.Liquidity = b.Liquidity.String()
		}
		if b.USDAvailable {
			row.USDValue = stats.FormatUSD(b.USDValue)
		}
		out.Buckets = append(out.Buckets, row)
	}

	return out
}

func orDash(value *string) string {
	if value == nil {
		return unavailable
	}
	return *value
}
