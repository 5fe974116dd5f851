package model

// SwapEvent is one swap row from the indexer, kept as reported.
type SwapEvent struct {
	ID           string `json:"id"`
	PoolID       string `json:"pool_id"`
	Timestamp    uint64 `json:"timestamp"`
	Amount0      string `json:"amount0"`
	Amount1      string `json:"amount1"`
	AmountUSD    string `json:"amount_usd"`
	Tick         int64  `json:"tick"`
	SqrtPriceX96 string `json:"sqrt_price_x96"`
	Origin       string `json:"origin"`
}
