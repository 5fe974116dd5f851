package model

import (
	"fmt"
	"math/big"
)

// Pool mirrors a v4 pool record as reported by the indexer.
// Unbounded numeric fields travel as decimal strings and are parsed
// on demand.
type Pool struct {
	ID                 string `json:"id"`
	ChainID            uint64 `json:"chain_id"`
	Tick               int64  `json:"tick"`
	TickSpacing        int64  `json:"tick_spacing"`
	Liquidity          string `json:"liquidity"`
	SqrtPrice          string `json:"sqrt_price"`
	FeeTier            uint32 `json:"fee_tier"`
	Token0             Token  `json:"token0"`
	Token1             Token  `json:"token1"`
	Hooks              string `json:"hooks"`
	TVLUSD             string `json:"tvl_usd"`
	VolumeUSD          string `json:"volume_usd"`
	FeesUSD            string `json:"fees_usd"`
	TxCount            uint64 `json:"tx_count"`
	CreatedAtTimestamp uint64 `json:"created_at_timestamp"`
}

// LiquidityInt parses the pool's active liquidity.
func (p Pool) LiquidityInt() (*big.Int, error) {
	return parseBigInt("liquidity", p.Liquidity)
}

// SqrtPriceInt parses the pool's sqrt price in Q64.96.
func (p Pool) SqrtPriceInt() (*big.Int, error) {
	return parseBigInt("sqrt_price", p.SqrtPrice)
}

func parseBigInt(field, value string) (*big.Int, error) {
	if value == "" {
		return nil, fmt.Errorf("%s is empty", field)
	}
	n, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return nil, fmt.Errorf("%s is not a decimal integer: %q", field, value)
	}
	return n, nil
}
