package model

import (
	"math/big"
	"strconv"
)

// Token captures the token fields the dashboard needs from the indexer.
type Token struct {
	ID         string `json:"id"`
	Symbol     string `json:"symbol"`
	Decimals   uint8  `json:"decimals"`
	DerivedETH string `json:"derived_eth"`
}

// DerivedETHFloat parses the token's ETH-denominated price.
// The second return is false when the indexer has no price for the
// token, which is a common and expected condition.
func (t Token) DerivedETHFloat() (float64, bool) {
	if t.DerivedETH == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(t.DerivedETH, 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}

// Bundle carries the chain-wide ETH/USD rate.
type Bundle struct {
	EthPriceUSD string `json:"eth_price_usd"`
}

// EthPriceFloat parses the bundle rate; false when missing or unusable.
func (b Bundle) EthPriceFloat() (float64, bool) {
	if b.EthPriceUSD == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(b.EthPriceUSD, 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}

// TickSample is one initialized tick boundary from the indexer.
type TickSample struct {
	TickIdx        int64  `json:"tick_idx"`
	LiquidityNet   string `json:"liquidity_net"`
	LiquidityGross string `json:"liquidity_gross"`
}

// LiquidityNetInt parses the signed liquidity delta at this boundary.
func (s TickSample) LiquidityNetInt() (*big.Int, error) {
	return parseBigInt("liquidity_net", s.LiquidityNet)
}

// LiquidityGrossInt parses the total liquidity referencing this boundary.
func (s TickSample) LiquidityGrossInt() (*big.Int, error) {
	return parseBigInt("liquidity_gross", s.LiquidityGross)
}
