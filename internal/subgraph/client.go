// Package subgraph is the polling GraphQL consumer of the external
// pool indexer. It owns no state: every call fetches a fresh snapshot
// and the caller decides how to merge it.
package subgraph

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/machinebox/graphql"
	"go.uber.org/zap"

	"poolscope/internal/model"
)

// Config controls the client's endpoint and retry behavior.
type Config struct {
	Endpoint     string
	MaxRetries   int
	RetryBackoff time.Duration
}

// Client wraps the GraphQL endpoint with typed queries and retries.
type Client struct {
	cfg    Config
	gql    *graphql.Client
	logger *zap.Logger
}

func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("subgraph endpoint is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 500 * time.Millisecond
	}

	return &Client{
		cfg:    cfg,
		gql:    graphql.NewClient(cfg.Endpoint),
		logger: logger,
	}, nil
}

type poolRecord struct {
	ID                 string      `json:"id"`
	ChainID            string      `json:"chainId"`
	Tick               string      `json:"tick"`
	TickSpacing        string      `json:"tickSpacing"`
	Liquidity          string      `json:"liquidity"`
	SqrtPrice          string      `json:"sqrtPrice"`
	FeeTier            string      `json:"feeTier"`
	Hooks              string      `json:"hooks"`
	TVLUSD             string      `json:"totalValueLockedUSD"`
	VolumeUSD          string      `json:"volumeUSD"`
	FeesUSD            string      `json:"feesUSD"`
	TxCount            string      `json:"txCount"`
	CreatedAtTimestamp string      `json:"createdAtTimestamp"`
	Token0             tokenRecord `json:"token0"`
	Token1             tokenRecord `json:"token1"`
}

type tokenRecord struct {
	ID         string `json:"id"`
	Symbol     string `json:"symbol"`
	Decimals   string `json:"decimals"`
	DerivedETH string `json:"derivedETH"`
}

type tickRecord struct {
	TickIdx        string `json:"tickIdx"`
	LiquidityNet   string `json:"liquidityNet"`
	LiquidityGross string `json:"liquidityGross"`
}

type swapRecord struct {
	ID           string `json:"id"`
	Timestamp    string `json:"timestamp"`
	Amount0      string `json:"amount0"`
	Amount1      string `json:"amount1"`
	AmountUSD    string `json:"amountUSD"`
	Tick         string `json:"tick"`
	SqrtPriceX96 string `json:"sqrtPriceX96"`
	Origin       string `json:"origin"`
}

// Pools returns the top pools for a chain by TVL.
func (c *Client) Pools(ctx context.Context, chainID uint64, first int) ([]model.Pool, error) {
	req := graphql.NewRequest(poolsQuery)
	req.Var("chainId", strconv.FormatUint(chainID, 10))
	req.Var("first", first)

	var resp struct {
		Pool []poolRecord `json:"Pool"`
	}
	if err := c.run(ctx, "pools", req, &resp); err != nil {
		return nil, err
	}

	pools := make([]model.Pool, 0, len(resp.Pool))
	for _, rec := range resp.Pool {
		pool, err := convertPool(rec)
		if err != nil {
			c.logger.Warn("skip malformed pool", zap.String("pool", rec.ID), zap.Error(err))
			continue
		}
		pools = append(pools, pool)
	}
	return pools, nil
}

// Pool returns a single pool by id; ok is false when the indexer has
// no record for it.
func (c *Client) Pool(ctx context.Context, id string) (model.Pool, bool, error) {
	req := graphql.NewRequest(poolByIDQuery)
	req.Var("id", id)

	var resp struct {
		Pool []poolRecord `json:"Pool"`
	}
	if err := c.run(ctx, "pool", req, &resp); err != nil {
		return model.Pool{}, false, err
	}
	if len(resp.Pool) == 0 {
		return model.Pool{}, false, nil
	}

	pool, err := convertPool(resp.Pool[0])
	if err != nil {
		return model.Pool{}, false, fmt.Errorf("pool %s: %w", id, err)
	}
	return pool, true, nil
}

// Ticks pages through all initialized ticks of a pool in ascending
// tick order. pageSize bounds each request, not the total.
func (c *Client) Ticks(ctx context.Context, poolID string, pageSize int) ([]model.TickSample, error) {
	if pageSize <= 0 {
		pageSize = 1000
	}

	var out []model.TickSample
	for skip := 0; ; skip += pageSize {
		req := graphql.NewRequest(ticksQuery)
		req.Var("pool", poolID)
		req.Var("first", pageSize)
		req.Var("skip", skip)

		var resp struct {
			Tick []tickRecord `json:"Tick"`
		}
		if err := c.run(ctx, "ticks", req, &resp); err != nil {
			return nil, err
		}

		for _, rec := range resp.Tick {
			idx, err := strconv.ParseInt(rec.TickIdx, 10, 64)
			if err != nil {
				c.logger.Warn("skip malformed tick", zap.String("pool", poolID), zap.String("tick_idx", rec.TickIdx))
				continue
			}
			out = append(out, model.TickSample{
				TickIdx:        idx,
				LiquidityNet:   rec.LiquidityNet,
				LiquidityGross: rec.LiquidityGross,
			})
		}

		if len(resp.Tick) < pageSize {
			return out, nil
		}
	}
}

// RecentSwaps returns swaps newer than sinceTs, newest first.
func (c *Client) RecentSwaps(ctx context.Context, poolID string, sinceTs uint64, first int) ([]model.SwapEvent, error) {
	req := graphql.NewRequest(swapsQuery)
	req.Var("pool", poolID)
	req.Var("since", strconv.FormatUint(sinceTs, 10))
	req.Var("first", first)

	var resp struct {
		Swap []swapRecord `json:"Swap"`
	}
	if err := c.run(ctx, "swaps", req, &resp); err != nil {
		return nil, err
	}

	swaps := make([]model.SwapEvent, 0, len(resp.Swap))
	for _, rec := range resp.Swap {
		ts, err := strconv.ParseUint(rec.Timestamp, 10, 64)
		if err != nil {
			c.logger.Warn("skip malformed swap", zap.String("swap", rec.ID))
			continue
		}
		tick, _ := strconv.ParseInt(rec.Tick, 10, 64)
		swaps = append(swaps, model.SwapEvent{
			ID:           rec.ID,
			PoolID:       poolID,
			Timestamp:    ts,
			Amount0:      rec.Amount0,
			Amount1:      rec.Amount1,
			AmountUSD:    rec.AmountUSD,
			Tick:         tick,
			SqrtPriceX96: rec.SqrtPriceX96,
			Origin:       rec.Origin,
		})
	}
	return swaps, nil
}

// Bundle returns the chain's ETH/USD rate; ok is false when absent.
func (c *Client) Bundle(ctx context.Context, chainID uint64) (model.Bundle, bool, error) {
	req := graphql.NewRequest(bundleQuery)
	req.Var("chainId", strconv.FormatUint(chainID, 10))

	var resp struct {
		Bundle []struct {
			EthPriceUSD string `json:"ethPriceUSD"`
		} `json:"Bundle"`
	}
	if err := c.run(ctx, "bundle", req, &resp); err != nil {
		return model.Bundle{}, false, err
	}
	if len(resp.Bundle) == 0 {
		return model.Bundle{}, false, nil
	}
	return model.Bundle{EthPriceUSD: resp.Bundle[0].EthPriceUSD}, true, nil
}

func (c *Client) run(ctx context.Context, name string, req *graphql.Request, resp interface{}) error {
	err := withRetry(ctx, c.cfg.MaxRetries, c.cfg.RetryBackoff, func(ctx context.Context) error {
		err := c.gql.Run(ctx, req, resp)
		if err != nil {
			c.logger.Warn("subgraph query failed", zap.String("query", name), zap.Error(err))
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("query %s: %w", name, err)
	}
	return nil
}

func convertPool(rec poolRecord) (model.Pool, error) {
	chainID, err := strconv.ParseUint(rec.ChainID, 10, 64)
	if err != nil {
		return model.Pool{}, fmt.Errorf("chainId %q: %w", rec.ChainID, err)
	}
	tick, err := strconv.ParseInt(rec.Tick, 10, 64)
	if err != nil {
		return model.Pool{}, fmt.Errorf("tick %q: %w", rec.Tick, err)
	}
	tickSpacing, err := strconv.ParseInt(rec.TickSpacing, 10, 64)
	if err != nil {
		return model.Pool{}, fmt.Errorf("tickSpacing %q: %w", rec.TickSpacing, err)
	}
	feeTier, err := strconv.ParseUint(rec.FeeTier, 10, 32)
	if err != nil {
		return model.Pool{}, fmt.Errorf("feeTier %q: %w", rec.FeeTier, err)
	}
	txCount, _ := strconv.ParseUint(rec.TxCount, 10, 64)
	createdAt, _ := strconv.ParseUint(rec.CreatedAtTimestamp, 10, 64)

	return model.Pool{
		ID:                 rec.ID,
		ChainID:            chainID,
		Tick:               tick,
		TickSpacing:        tickSpacing,
		Liquidity:          rec.Liquidity,
		SqrtPrice:          rec.SqrtPrice,
		FeeTier:            uint32(feeTier),
		Token0:             convertToken(rec.Token0),
		Token1:             convertToken(rec.Token1),
		Hooks:              rec.Hooks,
		TVLUSD:             rec.TVLUSD,
		VolumeUSD:          rec.VolumeUSD,
		FeesUSD:            rec.FeesUSD,
		TxCount:            txCount,
		CreatedAtTimestamp: createdAt,
	}, nil
}

func convertToken(rec tokenRecord) model.Token {
	decimals, _ := strconv.ParseUint(rec.Decimals, 10, 8)
	return model.Token{
		ID:         rec.ID,
		Symbol:     rec.Symbol,
		Decimals:   uint8(decimals),
		DerivedETH: rec.DerivedETH,
	}
}
