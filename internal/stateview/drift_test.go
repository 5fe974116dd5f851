package stateview

import (
	"math/big"
	"testing"

	"poolscope/internal/model"
)

func TestCompareInSync(t *testing.T) {
	pool := model.Pool{
		Tick:      100,
		Liquidity: "5000",
		SqrtPrice: "79228162514264337593543950336",
	}
	live := PoolState{
		Tick:         100,
		Liquidity:    big.NewInt(5000),
		SqrtPriceX96: mustBig(t, "79228162514264337593543950336"),
	}

	d := Compare(pool, live)
	if !d.InSync() {
		t.Fatalf("expected in sync, got %+v", d)
	}
}

func TestCompareDrift(t *testing.T) {
	pool := model.Pool{Tick: 90, Liquidity: "5000", SqrtPrice: "1"}
	live := PoolState{Tick: 100, Liquidity: big.NewInt(6000), SqrtPriceX96: big.NewInt(2)}

	d := Compare(pool, live)
	if d.InSync() {
		t.Fatal("expected drift")
	}
	if d.TickDelta != -10 {
		t.Fatalf("tick delta %d", d.TickDelta)
	}
	if d.LiquidityMatch || d.SqrtPriceMatch {
		t.Fatalf("unexpected match: %+v", d)
	}
	if Abs64(d.TickDelta) != 10 {
		t.Fatalf("abs: %d", Abs64(d.TickDelta))
	}
}

func TestCompareUnparsableCountsAsMismatch(t *testing.T) {
	pool := model.Pool{Tick: 0, Liquidity: "", SqrtPrice: "nope"}
	live := PoolState{Tick: 0, Liquidity: big.NewInt(1), SqrtPriceX96: big.NewInt(1)}

	d := Compare(pool, live)
	if d.LiquidityMatch || d.SqrtPriceMatch {
		t.Fatalf("unparsable fields matched: %+v", d)
	}
}

func mustBig(t *testing.T, s string) *big.Int {
	t.Helper()
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		t.Fatalf("bad number %q", s)
	}
	return n
}
