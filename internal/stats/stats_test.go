package stats

import (
	"math/big"
	"testing"
	"time"

	"poolscope/internal/model"
)

func TestFormatTokenAmount(t *testing.T) {
	val := new(big.Int)
	val.SetString("1500000000000000000", 10)

	if got := FormatTokenAmount(val, 18); got != "1.500000000000000000" {
		t.Fatalf("format: %s", got)
	}
	if got := FormatTokenAmount(new(big.Int).Neg(val), 18); got != "-1.500000000000000000" {
		t.Fatalf("negative format: %s", got)
	}
	if got := FormatTokenAmount(big.NewInt(42), 0); got != "42" {
		t.Fatalf("zero decimals: %s", got)
	}
	if got := FormatTokenAmount(nil, 18); got != "0" {
		t.Fatalf("nil value: %s", got)
	}
}

func TestFeeAPR(t *testing.T) {
	// 365 days of age, fees equal to 10% of TVL -> APR 0.1.
	year := uint64(365 * 24 * 3600)
	apr := FeeAPR("100", "1000", year)
	if apr == nil {
		t.Fatal("apr nil")
	}
	if *apr != "0.100000" {
		t.Fatalf("apr %s", *apr)
	}

	if FeeAPR("0", "1000", year) != nil {
		t.Fatal("zero fees should yield nil")
	}
	if FeeAPR("100", "0", year) != nil {
		t.Fatal("zero tvl should yield nil")
	}
	if FeeAPR("100", "1000", 0) != nil {
		t.Fatal("zero age should yield nil")
	}
	if FeeAPR("garbage", "1000", year) != nil {
		t.Fatal("malformed fees should yield nil")
	}
}

func TestComputePrices(t *testing.T) {
	pool := model.Pool{
		ID:      "0xpool",
		ChainID: 1,
		Tick:    0,
		Token0:  model.Token{Decimals: 18},
		Token1:  model.Token{Decimals: 18},
	}

	stats := Compute(pool, 3, 12, time.Unix(1700000000, 0))
	if stats.Price0 == nil || *stats.Price0 != "1" {
		t.Fatalf("price0: %v", stats.Price0)
	}
	if stats.Price1 == nil || *stats.Price1 != "1" {
		t.Fatalf("price1: %v", stats.Price1)
	}
	if stats.SwapCount != 3 || stats.TickSamples != 12 {
		t.Fatalf("counters: %+v", stats)
	}
}

func TestComputeOutOfRangeTick(t *testing.T) {
	pool := model.Pool{ID: "0xpool", Tick: 10_000_000}
	stats := Compute(pool, 0, 0, time.Now())
	if stats.Price0 != nil || stats.Price1 != nil {
		t.Fatal("out-of-range tick should leave prices nil")
	}
}
