package model

import "time"

// PoolStats stores display metrics computed for a pool at observation
// time. Nullable fields use pointers; nil means the input needed to
// compute the value was unavailable, which is distinct from zero.
type PoolStats struct {
	ChainID     uint64
	PoolID      string
	ObservedAt  time.Time
	Tick        int64
	Price0      *string
	Price1      *string
	TVLUSD      string
	VolumeUSD   string
	FeesUSD     string
	FeeAPR      *string
	TxCount     uint64
	SwapCount   uint64
	TickSamples int
}

// DepthSnapshot is one persisted depth bucket row.
type DepthSnapshot struct {
	ChainID      uint64    `json:"chain_id"`
	PoolID       string    `json:"pool_id"`
	ObservedAt   time.Time `json:"observed_at"`
	TickLower    int64     `json:"tick_lower"`
	TickUpper    int64     `json:"tick_upper"`
	Liquidity    string    `json:"liquidity"`
	Amount0      string    `json:"amount0"`
	Amount1      string    `json:"amount1"`
	USDValue     *string   `json:"usd_value"`
	ActiveBucket bool      `json:"active_bucket"`
}
