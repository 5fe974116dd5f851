// Package stateview reads live pool state from the v4 StateView
// periphery contract, used to cross-check what the subgraph reports.
package stateview

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"poolscope/internal/chain"
)

const stateViewABIJSON = `[
  {
    "name": "getSlot0",
    "type": "function",
    "stateMutability": "view",
    "inputs": [{"name": "poolId", "type": "bytes32"}],
    "outputs": [
      {"name": "sqrtPriceX96", "type": "uint160"},
      {"name": "tick", "type": "int24"},
      {"name": "protocolFee", "type": "uint24"},
      {"name": "lpFee", "type": "uint24"}
    ]
  },
  {
    "name": "getLiquidity",
    "type": "function",
    "stateMutability": "view",
    "inputs": [{"name": "poolId", "type": "bytes32"}],
    "outputs": [{"name": "liquidity", "type": "uint128"}]
  }
]`

var parsedABI abi.ABI

func init() {
	parsed, err := abi.JSON(strings.NewReader(stateViewABIJSON))
	if err != nil {
		panic(fmt.Sprintf("stateview: parse abi: %v", err))
	}
	parsedABI = parsed
}

// PoolState is the live slot0 plus active liquidity of a pool.
type PoolState struct {
	SqrtPriceX96 *big.Int
	Tick         int64
	Liquidity    *big.Int
}

// Reader fetches pool state through a chain client.
type Reader struct {
	client   *chain.Client
	contract common.Address
}

// NewReader builds a Reader for the StateView deployment on a chain.
func NewReader(client *chain.Client, contract common.Address) (*Reader, error) {
	if client == nil {
		return nil, fmt.Errorf("chain client is nil")
	}
	return &Reader{client: client, contract: contract}, nil
}

// PoolState reads slot0 and active liquidity for a v4 pool id.
func (r *Reader) PoolState(ctx context.Context, poolID common.Hash) (PoolState, error) {
	slot0, err := r.call(ctx, "getSlot0", poolID)
	if err != nil {
		return PoolState{}, fmt.Errorf("getSlot0: %w", err)
	}
	if len(slot0) < 2 {
		return PoolState{}, fmt.Errorf("getSlot0: short return")
	}

	sqrtPrice, err := asBigInt(slot0[0])
	if err != nil {
		return PoolState{}, fmt.Errorf("sqrtPriceX96: %w", err)
	}
	tickInt, err := asBigInt(slot0[1])
	if err != nil {
		return PoolState{}, fmt.Errorf("tick: %w", err)
	}
	if !tickInt.IsInt64() {
		return PoolState{}, fmt.Errorf("tick does not fit in int64: %s", tickInt)
	}

	liq, err := r.call(ctx, "getLiquidity", poolID)
	if err != nil {
		return PoolState{}, fmt.Errorf("getLiquidity: %w", err)
	}
	if len(liq) < 1 {
		return PoolState{}, fmt.Errorf("getLiquidity: short return")
	}
	liquidity, err := asBigInt(liq[0])
	if err != nil {
		return PoolState{}, fmt.Errorf("liquidity: %w", err)
	}

	return PoolState{
		SqrtPriceX96: sqrtPrice,
		Tick:         tickInt.Int64(),
		Liquidity:    liquidity,
	}, nil
}

func (r *Reader) call(ctx context.Context, method string, poolID common.Hash) ([]interface{}, error) {
	input, err := parsedABI.Pack(method, [32]byte(poolID))
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}

	output, err := r.client.CallContract(ctx, ethereum.CallMsg{
		To:   &r.contract,
		Data: input,
	})
	if err != nil {
		return nil, err
	}
	if len(output) == 0 {
		return nil, fmt.Errorf("%s: empty return (wrong contract address?)", method)
	}

	return parsedABI.Unpack(method, output)
}

func asBigInt(value interface{}) (*big.Int, error) {
	n, ok := value.(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected type %T", value)
	}
	return n, nil
}
