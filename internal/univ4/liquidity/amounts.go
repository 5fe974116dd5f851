// Package liquidity computes the token amounts backing a liquidity
// value over a tick range, using big-integer Q64.96 math throughout.
package liquidity

import (
	"errors"
	"fmt"
	"math/big"

	"poolscope/internal/univ4/tickmath"
)

// Q96Resolution is the bit width of the Q64.96 fractional part.
const Q96Resolution = uint(96)

// Q96 is 2^96, the Q64.96 representation of one.
var Q96 = new(big.Int).Lsh(big.NewInt(1), 96)

var ErrNegativeLiquidity = errors.New("liquidity is negative")

// Amount0 returns the token0 amount represented by liquidity over
// [tickLower, tickUpper) given the pool's current tick and sqrt price.
// Results round down, matching the pool's own accounting.
func Amount0(tickLower, tickUpper, currentTick int64, liquidity, sqrtPriceX96 *big.Int) (*big.Int, error) {
	sqrtA, sqrtB, err := rangeBounds(tickLower, tickUpper, liquidity)
	if err != nil {
		return nil, err
	}

	switch {
	case currentTick < tickLower:
		// Price below the range: position is entirely token0.
		return amount0Delta(sqrtA, sqrtB, liquidity), nil
	case currentTick >= tickUpper:
		// Price at or above the range: no token0 remains.
		return new(big.Int), nil
	default:
		if sqrtPriceX96 == nil || sqrtPriceX96.Sign() <= 0 {
			return nil, fmt.Errorf("current sqrt price required inside range")
		}
		return amount0Delta(sqrtPriceX96, sqrtB, liquidity), nil
	}
}

// Amount1 is the token1 counterpart of Amount0.
func Amount1(tickLower, tickUpper, currentTick int64, liquidity, sqrtPriceX96 *big.Int) (*big.Int, error) {
	sqrtA, sqrtB, err := rangeBounds(tickLower, tickUpper, liquidity)
	if err != nil {
		return nil, err
	}

	switch {
	case currentTick < tickLower:
		return new(big.Int), nil
	case currentTick >= tickUpper:
		return amount1Delta(sqrtA, sqrtB, liquidity), nil
	default:
		if sqrtPriceX96 == nil || sqrtPriceX96.Sign() <= 0 {
			return nil, fmt.Errorf("current sqrt price required inside range")
		}
		return amount1Delta(sqrtA, sqrtPriceX96, liquidity), nil
	}
}

// AdjustedAmount divides a raw token amount by 10^decimals for
// display. This is the only place float precision loss is tolerated.
func AdjustedAmount(amount *big.Int, decimals uint8) float64 {
	if amount == nil {
		return 0
	}
	denom := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	out, _ := new(big.Rat).SetFrac(amount, denom).Float64()
	return out
}

func rangeBounds(tickLower, tickUpper int64, liquidity *big.Int) (*big.Int, *big.Int, error) {
	if liquidity == nil || liquidity.Sign() < 0 {
		return nil, nil, ErrNegativeLiquidity
	}
	if tickLower >= tickUpper {
		return nil, nil, fmt.Errorf("tick range inverted: [%d, %d)", tickLower, tickUpper)
	}

	sqrtA := new(big.Int)
	if err := tickmath.GetSqrtRatioAtTick(sqrtA, tickLower); err != nil {
		return nil, nil, fmt.Errorf("lower tick %d: %w", tickLower, err)
	}
	sqrtB := new(big.Int)
	if err := tickmath.GetSqrtRatioAtTick(sqrtB, tickUpper); err != nil {
		return nil, nil, fmt.Errorf("upper tick %d: %w", tickUpper, err)
	}
	return sqrtA, sqrtB, nil
}

// amount0Delta is liquidity * 2^96 * (sqrtB - sqrtA) / (sqrtA * sqrtB),
// with sqrtA <= sqrtB.
func amount0Delta(sqrtA, sqrtB, liquidity *big.Int) *big.Int {
	if sqrtA.Cmp(sqrtB) > 0 {
		sqrtA, sqrtB = sqrtB, sqrtA
	}
	numerator := new(big.Int).Lsh(liquidity, Q96Resolution)
	numerator.Mul(numerator, new(big.Int).Sub(sqrtB, sqrtA))
	numerator.Div(numerator, sqrtB)
	return numerator.Div(numerator, sqrtA)
}

// amount1Delta is liquidity * (sqrtB - sqrtA) / 2^96, with sqrtA <= sqrtB.
func amount1Delta(sqrtA, sqrtB, liquidity *big.Int) *big.Int {
	if sqrtA.Cmp(sqrtB) > 0 {
		sqrtA, sqrtB = sqrtB, sqrtA
	}
	out := new(big.Int).Mul(liquidity, new(big.Int).Sub(sqrtB, sqrtA))
	return out.Div(out, Q96)
}
