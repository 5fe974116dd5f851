package poller

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"poolscope/internal/metrics"
	"poolscope/internal/model"
	"poolscope/internal/univ4/depth"
)

type stubSource struct {
	pool    model.Pool
	poolOK  bool
	poolErr error
	ticks   []model.TickSample
	swaps   []model.SwapEvent
	bundle  model.Bundle

	lastSince uint64
}

func (s *stubSource) Pool(_ context.Context, _ string) (model.Pool, bool, error) {
	return s.pool, s.poolOK, s.poolErr
}

func (s *stubSource) Ticks(_ context.Context, _ string, _ int) ([]model.TickSample, error) {
	return s.ticks, nil
}

func (s *stubSource) RecentSwaps(_ context.Context, _ string, sinceTs uint64, _ int) ([]model.SwapEvent, error) {
	s.lastSince = sinceTs
	var out []model.SwapEvent
	for _, swap := range s.swaps {
		if swap.Timestamp > sinceTs {
			out = append(out, swap)
		}
	}
	return out, nil
}

func (s *stubSource) Bundle(_ context.Context, _ uint64) (model.Bundle, bool, error) {
	return s.bundle, true, nil
}

func testPool() model.Pool {
	return model.Pool{
		ID:          "0xpool",
		ChainID:     1,
		Tick:        30,
		TickSpacing: 60,
		Liquidity:   "10000",
		SqrtPrice:   "79228162514264337593543950336",
		Token0:      model.Token{ID: "0x1", Symbol: "WETH", Decimals: 18, DerivedETH: "1"},
		Token1:      model.Token{ID: "0x2", Symbol: "USDC", Decimals: 6, DerivedETH: "0.0004"},
	}
}

func newTestPoller(t *testing.T, src Source) *Poller {
	t.Helper()
	p, err := New(Config{
		PoolIDs:       []string{"0xpool"},
		CursorPath:    filepath.Join(t.TempDir(), "cursor.json"),
		CursorEnabled: true,
	}, src, nil, nil)
	if err != nil {
		t.Fatalf("new poller: %v", err)
	}
	return p
}

func TestPollOneStoresSnapshot(t *testing.T) {
	src := &stubSource{
		pool:   testPool(),
		poolOK: true,
		ticks: []model.TickSample{
			{TickIdx: -60, LiquidityNet: "100", LiquidityGross: "100"},
			{TickIdx: 60, LiquidityNet: "-100", LiquidityGross: "100"},
		},
		bundle: model.Bundle{EthPriceUSD: "2500"},
	}

	p := newTestPoller(t, src)
	p.pollAll(context.Background())

	snap, ok := p.Snapshot("0xpool")
	if !ok {
		t.Fatal("snapshot missing after poll")
	}
	if snap.Pool.ID != "0xpool" || len(snap.Ticks) != 2 || !snap.BundleOK {
		t.Fatalf("snapshot incomplete: %+v", snap)
	}
	if len(p.Snapshots()) != 1 {
		t.Fatalf("snapshots list %d", len(p.Snapshots()))
	}
}

func TestPollAdvancesCursorAndDedups(t *testing.T) {
	src := &stubSource{
		pool:   testPool(),
		poolOK: true,
		swaps: []model.SwapEvent{
			{ID: "a", PoolID: "0xpool", Timestamp: 100},
			{ID: "b", PoolID: "0xpool", Timestamp: 200},
		},
	}

	p := newTestPoller(t, src)
	p.pollAll(context.Background())

	if p.queue.Len() != 2 {
		t.Fatalf("queue len %d", p.queue.Len())
	}
	if got := p.cursor.LastSwapTs["0xpool"]; got != 200 {
		t.Fatalf("cursor ts %d, want 200", got)
	}

	// Next poll uses the advanced cursor, so nothing new arrives.
	p.pollAll(context.Background())
	if src.lastSince != 200 {
		t.Fatalf("since %d, want 200", src.lastSince)
	}
	if p.queue.Len() != 2 {
		t.Fatalf("queue grew to %d", p.queue.Len())
	}
}

func TestCursorSurvivesRestart(t *testing.T) {
	dir := t.TempDir()
	cursorPath := filepath.Join(dir, "cursor.json")

	src := &stubSource{
		pool:   testPool(),
		poolOK: true,
		swaps:  []model.SwapEvent{{ID: "a", PoolID: "0xpool", Timestamp: 500}},
	}

	cfg := Config{PoolIDs: []string{"0xpool"}, CursorPath: cursorPath, CursorEnabled: true}
	p, err := New(cfg, src, nil, nil)
	if err != nil {
		t.Fatalf("new poller: %v", err)
	}
	p.pollAll(context.Background())

	restarted, err := New(cfg, src, nil, nil)
	if err != nil {
		t.Fatalf("restart poller: %v", err)
	}
	if got := restarted.cursor.LastSwapTs["0xpool"]; got != 500 {
		t.Fatalf("restarted cursor %d, want 500", got)
	}
}

func TestDrainMovesSwapsNewestFirst(t *testing.T) {
	src := &stubSource{
		pool:   testPool(),
		poolOK: true,
		swaps: []model.SwapEvent{
			{ID: "old", PoolID: "0xpool", Timestamp: 100},
			{ID: "new", PoolID: "0xpool", Timestamp: 300},
			{ID: "mid", PoolID: "0xpool", Timestamp: 200},
		},
	}

	p := newTestPoller(t, src)
	p.pollAll(context.Background())
	p.drain()

	swaps := p.RecentSwaps("0xpool")
	if len(swaps) != 3 {
		t.Fatalf("recent swaps %d", len(swaps))
	}
	if swaps[0].ID != "new" || swaps[2].ID != "old" {
		t.Fatalf("order wrong: %s..%s", swaps[0].ID, swaps[2].ID)
	}
}

type stubRemoteCursor struct {
	seed  map[string]uint64
	saved map[string]uint64
}

func (s *stubRemoteCursor) LoadCursor(_ context.Context, poolID string) (uint64, bool, error) {
	ts, ok := s.seed[poolID]
	return ts, ok, nil
}

func (s *stubRemoteCursor) SaveCursor(_ context.Context, poolID string, ts uint64) error {
	if s.saved == nil {
		s.saved = make(map[string]uint64)
	}
	s.saved[poolID] = ts
	return nil
}

func TestQueueOverflowCountsDroppedMetric(t *testing.T) {
	swaps := make([]model.SwapEvent, 0, 10)
	for i := 0; i < 10; i++ {
		swaps = append(swaps, model.SwapEvent{
			ID:        string(rune('a' + i)),
			PoolID:    "0xpool",
			Timestamp: uint64(100 + i),
		})
	}
	src := &stubSource{pool: testPool(), poolOK: true, swaps: swaps}

	m := metrics.New(prometheus.NewRegistry())
	p, err := New(Config{
		PoolIDs:       []string{"0xpool"},
		QueueLimit:    4,
		CursorPath:    filepath.Join(t.TempDir(), "cursor.json"),
		CursorEnabled: true,
	}, src, m, nil)
	if err != nil {
		t.Fatalf("new poller: %v", err)
	}

	p.pollAll(context.Background())

	if got := testutil.ToFloat64(m.SwapsIngested); got != 10 {
		t.Fatalf("ingested counter %v, want 10", got)
	}
	if got := testutil.ToFloat64(m.SwapsDropped); got != 6 {
		t.Fatalf("dropped counter %v, want 6", got)
	}
	if got := testutil.ToFloat64(m.PendingSwaps); got != 4 {
		t.Fatalf("pending gauge %v, want 4", got)
	}
}

func TestSnapshotAgeTracksStaleness(t *testing.T) {
	src := &stubSource{pool: testPool(), poolOK: true}

	m := metrics.New(prometheus.NewRegistry())
	p, err := New(Config{
		PoolIDs:       []string{"0xpool"},
		CursorPath:    filepath.Join(t.TempDir(), "cursor.json"),
		CursorEnabled: true,
	}, src, m, nil)
	if err != nil {
		t.Fatalf("new poller: %v", err)
	}

	p.pollAll(context.Background())

	// A failing cycle keeps the stale snapshot, and its age must keep
	// advancing rather than staying pinned at zero.
	p.mu.Lock()
	snap := p.snapshots["0xpool"]
	snap.FetchedAt = time.Now().UTC().Add(-time.Minute)
	p.snapshots["0xpool"] = snap
	p.mu.Unlock()

	src.poolErr = context.DeadlineExceeded
	p.pollAll(context.Background())

	age := testutil.ToFloat64(m.SnapshotAgeSec.WithLabelValues("0xpool"))
	if age < 59 {
		t.Fatalf("snapshot age %v, want at least a minute", age)
	}
}

func TestRemoteCursorSeedsAndReceivesSaves(t *testing.T) {
	src := &stubSource{
		pool:   testPool(),
		poolOK: true,
		swaps: []model.SwapEvent{
			{ID: "a", PoolID: "0xpool", Timestamp: 100},
			{ID: "b", PoolID: "0xpool", Timestamp: 200},
		},
	}
	remote := &stubRemoteCursor{seed: map[string]uint64{"0xpool": 150}}

	p, err := New(Config{
		PoolIDs:       []string{"0xpool"},
		CursorPath:    filepath.Join(t.TempDir(), "cursor.json"),
		CursorEnabled: true,
		RemoteCursor:  remote,
	}, src, nil, nil)
	if err != nil {
		t.Fatalf("new poller: %v", err)
	}

	ctx := context.Background()
	p.seedRemoteCursor(ctx)
	if got := p.cursor.LastSwapTs["0xpool"]; got != 150 {
		t.Fatalf("seeded cursor %d, want 150", got)
	}

	p.pollAll(ctx)

	// The durable cursor filtered the older swap and received the
	// advanced timestamp back on save.
	if src.lastSince != 150 {
		t.Fatalf("since %d, want 150", src.lastSince)
	}
	if p.queue.Len() != 1 {
		t.Fatalf("queue len %d, want 1", p.queue.Len())
	}
	if got := remote.saved["0xpool"]; got != 200 {
		t.Fatalf("remote save %d, want 200", got)
	}
}

func TestDepthInputFromSnapshot(t *testing.T) {
	src := &stubSource{
		pool:   testPool(),
		poolOK: true,
		ticks: []model.TickSample{
			{TickIdx: -60, LiquidityNet: "100"},
			{TickIdx: 0, LiquidityNet: "not-a-number"},
			{TickIdx: 60, LiquidityNet: "-100"},
		},
		bundle: model.Bundle{EthPriceUSD: "2500"},
	}

	p := newTestPoller(t, src)
	p.pollAll(context.Background())

	in, ok := p.DepthInput("0xpool", 5)
	if !ok {
		t.Fatal("depth input missing")
	}
	if len(in.Samples) != 2 {
		t.Fatalf("malformed tick not skipped: %d samples", len(in.Samples))
	}
	if !in.EthPriceOK || in.EthPriceUSD != 2500 {
		t.Fatalf("bundle not threaded: %+v", in)
	}
	if in.PoolLiquidity == nil || in.SqrtPriceX96 == nil {
		t.Fatal("pool numerics not parsed")
	}

	ladder, err := depth.Build(in)
	if err != nil {
		t.Fatalf("build ladder: %v", err)
	}
	if len(ladder.Buckets) == 0 {
		t.Fatal("ladder empty")
	}
}
