package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"poolscope/internal/hooks"
	"poolscope/internal/model"
	"poolscope/internal/poller"
	"poolscope/internal/univ4/depth"
)

const (
	testPoolID = "0x1111111111111111111111111111111111111111111111111111111111111111"
	sqrtAtZero = "79228162514264337593543950336"
)

type stubSource struct {
	snaps []poller.Snapshot
	swaps map[string][]model.SwapEvent
}

func (s *stubSource) Snapshots() []poller.Snapshot { return s.snaps }

func (s *stubSource) RecentSwaps(poolID string) []model.SwapEvent { return s.swaps[poolID] }

func (s *stubSource) DepthInput(poolID string, window int) (depth.Input, bool) {
	for _, snap := range s.snaps {
		if snap.Pool.ID == poolID {
			return poller.BuildDepthInput(snap, window), true
		}
	}
	return depth.Input{}, false
}

type stubHooks struct {
	meta  hooks.Metadata
	found bool
	err   error
}

func (s *stubHooks) Lookup(_ context.Context, _ string) (hooks.Metadata, bool, error) {
	return s.meta, s.found, s.err
}

func testSnapshot() poller.Snapshot {
	return poller.Snapshot{
		Pool: model.Pool{
			ID:          testPoolID,
			ChainID:     1,
			Tick:        5,
			TickSpacing: 10,
			Liquidity:   "5000",
			SqrtPrice:   sqrtAtZero,
			FeeTier:     3000,
			Token0:      model.Token{Symbol: "USDC", Decimals: 6, DerivedETH: "0.0004"},
			Token1:      model.Token{Symbol: "WETH", Decimals: 18, DerivedETH: "1"},
			Hooks:       "0x0000000000000000000000000000000000000000",
			TVLUSD:      "1000000",
			VolumeUSD:   "250000",
			FeesUSD:     "750",
			TxCount:     42,
		},
		Ticks: []model.TickSample{
			{TickIdx: -20, LiquidityNet: "3000", LiquidityGross: "3000"},
			{TickIdx: 0, LiquidityNet: "2000", LiquidityGross: "2000"},
			{TickIdx: 20, LiquidityNet: "-2000", LiquidityGross: "2000"},
		},
		Bundle:    model.Bundle{EthPriceUSD: "2500"},
		BundleOK:  true,
		FetchedAt: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}
}

func newTestServer(t *testing.T, hookDir HookDirectory) (*Server, *stubSource) {
	t.Helper()

	source := &stubSource{
		snaps: []poller.Snapshot{testSnapshot()},
		swaps: map[string][]model.SwapEvent{
			testPoolID: {
				{ID: "swap-2", PoolID: testPoolID, Timestamp: 200, AmountUSD: "15", Tick: 5, Origin: "0xfeed"},
				{ID: "swap-1", PoolID: testPoolID, Timestamp: 100, AmountUSD: "10", Tick: 4, Origin: "0xbeef"},
			},
		},
	}

	srv, err := New(Config{}, source, hookDir, prometheus.NewRegistry(), zap.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return srv, source
}

func doRequest(t *testing.T, srv *Server, path string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	srv.Handler().ServeHTTP(rec, req)

	var body map[string]interface{}
	if len(rec.Body.Bytes()) > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode %s: %v (%s)", path, err, rec.Body.String())
		}
	}
	return rec, body
}

func TestListPools(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rec, body := doRequest(t, srv, "/api/pools")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}

	pools := body["pools"].([]interface{})
	if len(pools) != 1 {
		t.Fatalf("expected 1 pool, got %d", len(pools))
	}
	first := pools[0].(map[string]interface{})
	if first["pair"] != "USDC/WETH" {
		t.Fatalf("unexpected pair %v", first["pair"])
	}
	if first["chain"] != "Ethereum" {
		t.Fatalf("unexpected chain %v", first["chain"])
	}
	if first["price0"] == unavailable {
		t.Fatal("expected a computed price0")
	}
}

func TestPoolDetailBySlugAndChainID(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	for _, chain := range []string{"ethereum", "1"} {
		rec, body := doRequest(t, srv, fmt.Sprintf("/api/pools/%s/%s", chain, testPoolID))
		if rec.Code != http.StatusOK {
			t.Fatalf("chain %s: status %d", chain, rec.Code)
		}
		if body["tick_spacing"].(float64) != 10 {
			t.Fatalf("chain %s: unexpected tick_spacing %v", chain, body["tick_spacing"])
		}
		if body["swap_count"].(float64) != 2 {
			t.Fatalf("chain %s: unexpected swap_count %v", chain, body["swap_count"])
		}
	}
}

func TestPoolDetailNotTracked(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rec, _ := doRequest(t, srv, "/api/pools/ethereum/0xdead")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status %d", rec.Code)
	}
}

func TestPoolDetailUnknownChain(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rec, _ := doRequest(t, srv, "/api/pools/nonsense/"+testPoolID)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d", rec.Code)
	}
}

func TestPoolDepth(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rec, body := doRequest(t, srv, "/api/pools/1/"+testPoolID+"/depth?buckets=3")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	if body["active_tick"].(float64) != 0 {
		t.Fatalf("unexpected active_tick %v", body["active_tick"])
	}

	buckets := body["buckets"].([]interface{})
	if len(buckets) == 0 {
		t.Fatal("expected buckets")
	}
	var sawActive bool
	for _, raw := range buckets {
		b := raw.(map[string]interface{})
		if b["active"].(bool) {
			sawActive = true
			if b["liquidity"] != "5000" {
				t.Fatalf("active bucket liquidity %v, want pool liquidity", b["liquidity"])
			}
			if b["usd_value"] == unavailable {
				t.Fatal("expected usd value with prices available")
			}
		}
	}
	if !sawActive {
		t.Fatal("no active bucket in window")
	}
}

func TestPoolDepthUSDUnavailable(t *testing.T) {
	srv, source := newTestServer(t, nil)
	source.snaps[0].BundleOK = false

	rec, body := doRequest(t, srv, "/api/pools/1/"+testPoolID+"/depth")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	for _, raw := range body["buckets"].([]interface{}) {
		b := raw.(map[string]interface{})
		if b["usd_value"] != unavailable {
			t.Fatalf("expected %q, got %v", unavailable, b["usd_value"])
		}
	}
}

func TestPoolDepthInvalidBuckets(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	for _, q := range []string{"0", "-3", "abc"} {
		rec, _ := doRequest(t, srv, "/api/pools/1/"+testPoolID+"/depth?buckets="+q)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("buckets=%s: status %d", q, rec.Code)
		}
	}
}

func TestPoolSwaps(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rec, body := doRequest(t, srv, "/api/pools/ethereum/"+testPoolID+"/swaps")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	swaps := body["swaps"].([]interface{})
	if len(swaps) != 2 {
		t.Fatalf("expected 2 swaps, got %d", len(swaps))
	}
	first := swaps[0].(map[string]interface{})
	if first["id"] != "swap-2" {
		t.Fatalf("unexpected first swap %v", first["id"])
	}
}

func TestHookMetadata(t *testing.T) {
	srv, _ := newTestServer(t, &stubHooks{
		meta:  hooks.Metadata{Address: "0xa1", Name: "Limit Order Hook"},
		found: true,
	})

	rec, body := doRequest(t, srv, "/api/hooks/0xa1")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	if body["name"] != "Limit Order Hook" {
		t.Fatalf("unexpected name %v", body["name"])
	}
}

func TestHookMetadataNotFound(t *testing.T) {
	srv, _ := newTestServer(t, &stubHooks{found: false})

	rec, _ := doRequest(t, srv, "/api/hooks/0xdead")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status %d", rec.Code)
	}
}

func TestHookMetadataUnconfigured(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rec, _ := doRequest(t, srv, "/api/hooks/0xa1")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status %d", rec.Code)
	}
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rec, body := doRequest(t, srv, "/healthz")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	if body["pools"].(float64) != 1 {
		t.Fatalf("unexpected pools %v", body["pools"])
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
}
