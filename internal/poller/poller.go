// Package poller keeps a live snapshot per tracked pool by polling
// the subgraph on an interval, and throttles incoming swap events
// through a bounded pending queue drained on its own timer.
package poller

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"poolscope/internal/metrics"
	"poolscope/internal/model"
	"poolscope/internal/univ4/depth"
)

// Source is the slice of the subgraph client the poller needs.
type Source interface {
	Pool(ctx context.Context, id string) (model.Pool, bool, error)
	Ticks(ctx context.Context, poolID string, pageSize int) ([]model.TickSample, error)
	RecentSwaps(ctx context.Context, poolID string, sinceTs uint64, first int) ([]model.SwapEvent, error)
	Bundle(ctx context.Context, chainID uint64) (model.Bundle, bool, error)
}

// RemoteCursor persists per-pool swap cursors in durable storage,
// alongside the local cursor file.
type RemoteCursor interface {
	LoadCursor(ctx context.Context, poolID string) (uint64, bool, error)
	SaveCursor(ctx context.Context, poolID string, ts uint64) error
}

// Config controls polling cadence and queue sizing.
type Config struct {
	PoolIDs       []string
	PollInterval  time.Duration
	DrainInterval time.Duration
	DrainBatch    int
	QueueLimit    int
	SwapsPerPoll  int
	TickPageSize  int
	CursorPath    string
	CursorEnabled bool
	// RemoteCursor is optional; when set it seeds the cursor on
	// startup and receives every cursor save.
	RemoteCursor RemoteCursor
}

// Snapshot is one pool's latest consistent view. All fields are
// replaced wholesale on refresh; readers copy what they keep.
type Snapshot struct {
	Pool      model.Pool
	Ticks     []model.TickSample
	Bundle    model.Bundle
	BundleOK  bool
	FetchedAt time.Time
}

// Poller refreshes snapshots and merges swap streams.
type Poller struct {
	cfg     Config
	source  Source
	logger  *zap.Logger
	metrics *metrics.Metrics

	mu        sync.RWMutex
	snapshots map[string]Snapshot
	recent    map[string][]model.SwapEvent
	cursor    Cursor

	queue *PendingQueue
	store *CursorStore
}

func New(cfg Config, source Source, m *metrics.Metrics, logger *zap.Logger) (*Poller, error) {
	if source == nil {
		return nil, fmt.Errorf("source is nil")
	}
	if len(cfg.PoolIDs) == 0 {
		return nil, fmt.Errorf("at least one pool id is required")
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 12 * time.Second
	}
	if cfg.DrainInterval <= 0 {
		cfg.DrainInterval = time.Second
	}
	if cfg.DrainBatch <= 0 {
		cfg.DrainBatch = 8
	}
	if cfg.SwapsPerPoll <= 0 {
		cfg.SwapsPerPoll = 100
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	p := &Poller{
		cfg:       cfg,
		source:    source,
		logger:    logger,
		metrics:   m,
		snapshots: make(map[string]Snapshot),
		recent:    make(map[string][]model.SwapEvent),
		cursor:    Cursor{LastSwapTs: make(map[string]uint64)},
		queue:     NewPendingQueue(cfg.QueueLimit),
		store:     NewCursorStore(cfg.CursorPath, cfg.CursorEnabled),
	}

	cur, ok, err := p.store.Load()
	if err != nil {
		return nil, err
	}
	if ok {
		p.cursor = cur
		logger.Info("resume from cursor", zap.Int("pools", len(cur.LastSwapTs)))
	}

	return p, nil
}

// Run polls until ctx is done. The first cycle happens immediately.
func (p *Poller) Run(ctx context.Context) error {
	pollTicker := time.NewTicker(p.cfg.PollInterval)
	defer pollTicker.Stop()
	drainTicker := time.NewTicker(p.cfg.DrainInterval)
	defer drainTicker.Stop()

	p.seedRemoteCursor(ctx)
	p.pollAll(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-pollTicker.C:
			p.pollAll(ctx)
		case <-drainTicker.C:
			p.drain()
		}
	}
}

// Snapshot returns the latest view for a pool.
func (p *Poller) Snapshot(poolID string) (Snapshot, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	snap, ok := p.snapshots[poolID]
	return snap, ok
}

// Snapshots returns all live snapshots, ordered by pool id.
func (p *Poller) Snapshots() []Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]Snapshot, 0, len(p.snapshots))
	for _, snap := range p.snapshots {
		out = append(out, snap)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Pool.ID < out[j].Pool.ID
	})
	return out
}

// RecentSwaps returns the drained swaps for a pool, newest first.
func (p *Poller) RecentSwaps(poolID string) []model.SwapEvent {
	p.mu.RLock()
	defer p.mu.RUnlock()

	swaps := p.recent[poolID]
	out := make([]model.SwapEvent, len(swaps))
	copy(out, swaps)
	return out
}

// DepthInput assembles a ladder input from the current snapshot.
func (p *Poller) DepthInput(poolID string, window int) (depth.Input, bool) {
	snap, ok := p.Snapshot(poolID)
	if !ok {
		return depth.Input{}, false
	}
	return BuildDepthInput(snap, window), true
}

func (p *Poller) pollAll(ctx context.Context) {
	for _, poolID := range p.cfg.PoolIDs {
		select {
		case <-ctx.Done():
			return
		default:
		}
		p.pollOne(ctx, poolID)
	}

	if p.metrics != nil {
		p.mu.RLock()
		p.metrics.TrackedPools.Set(float64(len(p.snapshots)))
		// Ages advance during stale-on-failure windows, so they are
		// recomputed every cycle rather than reset on success.
		for poolID, snap := range p.snapshots {
			p.metrics.SnapshotAgeSec.WithLabelValues(poolID).Set(time.Since(snap.FetchedAt).Seconds())
		}
		p.mu.RUnlock()
	}

	if err := p.saveCursor(ctx); err != nil {
		p.logger.Warn("save cursor", zap.Error(err))
	}
}

// seedRemoteCursor merges durable cursors over the local file's; the
// most advanced timestamp wins per pool.
func (p *Poller) seedRemoteCursor(ctx context.Context) {
	if p.cfg.RemoteCursor == nil {
		return
	}

	for _, poolID := range p.cfg.PoolIDs {
		ts, ok, err := p.cfg.RemoteCursor.LoadCursor(ctx, poolID)
		if err != nil {
			p.logger.Warn("load remote cursor", zap.String("pool", poolID), zap.Error(err))
			continue
		}
		if !ok {
			continue
		}

		p.mu.Lock()
		if ts > p.cursor.LastSwapTs[poolID] {
			p.cursor.LastSwapTs[poolID] = ts
		}
		p.mu.Unlock()
	}
}

func (p *Poller) pollOne(ctx context.Context, poolID string) {
	pool, ok, err := p.source.Pool(ctx, poolID)
	if err != nil {
		p.fail(poolID, "pool", err)
		return
	}
	if !ok {
		p.logger.Warn("pool not indexed", zap.String("pool", poolID))
		return
	}

	ticks, err := p.source.Ticks(ctx, poolID, p.cfg.TickPageSize)
	if err != nil {
		p.fail(poolID, "ticks", err)
		return
	}

	bundle, bundleOK, err := p.source.Bundle(ctx, pool.ChainID)
	if err != nil {
		// A missing bundle only degrades USD labels; keep going.
		p.logger.Warn("bundle fetch failed", zap.String("pool", poolID), zap.Error(err))
		bundleOK = false
	}

	p.mu.RLock()
	since := p.cursor.LastSwapTs[poolID]
	p.mu.RUnlock()

	swaps, err := p.source.RecentSwaps(ctx, poolID, since, p.cfg.SwapsPerPoll)
	if err != nil {
		p.fail(poolID, "swaps", err)
		return
	}

	accepted, evicted := p.queue.Push(swaps)
	if p.metrics != nil {
		p.metrics.SwapsIngested.Add(float64(accepted))
		p.metrics.SwapsDropped.Add(float64(evicted))
		p.metrics.PendingSwaps.Set(float64(p.queue.Len()))
	}

	maxTs := since
	for _, swap := range swaps {
		if swap.Timestamp > maxTs {
			maxTs = swap.Timestamp
		}
	}

	now := time.Now().UTC()
	p.mu.Lock()
	p.snapshots[poolID] = Snapshot{
		Pool:      pool,
		Ticks:     ticks,
		Bundle:    bundle,
		BundleOK:  bundleOK,
		FetchedAt: now,
	}
	p.cursor.LastSwapTs[poolID] = maxTs
	p.mu.Unlock()

	if p.metrics != nil {
		p.metrics.PollCycles.WithLabelValues(poolID).Inc()
	}

	p.logger.Debug("poll complete",
		zap.String("pool", poolID),
		zap.Int("ticks", len(ticks)),
		zap.Int("swaps", len(swaps)),
	)
}

// drain moves a batch from the pending queue into the visible recent
// lists, newest first, trimming each list to the queue limit.
func (p *Poller) drain() {
	batch := p.queue.Drain(p.cfg.DrainBatch)
	if p.metrics != nil {
		p.metrics.PendingSwaps.Set(float64(p.queue.Len()))
	}
	if len(batch) == 0 {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	for _, swap := range batch {
		p.recent[swap.PoolID] = append(p.recent[swap.PoolID], swap)
	}
	for poolID, swaps := range p.recent {
		sort.SliceStable(swaps, func(i, j int) bool {
			return swaps[i].Timestamp > swaps[j].Timestamp
		})
		if len(swaps) > p.queue.limit {
			swaps = swaps[:p.queue.limit]
		}
		p.recent[poolID] = swaps
	}
}

func (p *Poller) fail(poolID, stage string, err error) {
	if p.metrics != nil {
		p.metrics.PollErrors.WithLabelValues(poolID, stage).Inc()
	}
	p.logger.Warn("poll failed, keeping stale snapshot",
		zap.String("pool", poolID),
		zap.String("stage", stage),
		zap.Error(err),
	)
}

func (p *Poller) saveCursor(ctx context.Context) error {
	p.mu.RLock()
	cur := Cursor{LastSwapTs: make(map[string]uint64, len(p.cursor.LastSwapTs))}
	for k, v := range p.cursor.LastSwapTs {
		cur.LastSwapTs[k] = v
	}
	p.mu.RUnlock()

	if p.cfg.RemoteCursor != nil {
		for poolID, ts := range cur.LastSwapTs {
			if err := p.cfg.RemoteCursor.SaveCursor(ctx, poolID, ts); err != nil {
				p.logger.Warn("save remote cursor", zap.String("pool", poolID), zap.Error(err))
			}
		}
	}

	return p.store.Save(cur)
}

// BuildDepthInput converts a snapshot into the depth module's input.
// Malformed tick rows are skipped rather than failing the ladder.
func BuildDepthInput(snap Snapshot, window int) depth.Input {
	samples := make([]depth.TickSample, 0, len(snap.Ticks))
	for _, tick := range snap.Ticks {
		net, err := tick.LiquidityNetInt()
		if err != nil {
			continue
		}
		samples = append(samples, depth.TickSample{Tick: tick.TickIdx, LiquidityNet: net})
	}

	in := depth.Input{
		Samples:     samples,
		CurrentTick: snap.Pool.Tick,
		TickSpacing: snap.Pool.TickSpacing,
		Window:      window,
	}

	if liq, err := snap.Pool.LiquidityInt(); err == nil {
		in.PoolLiquidity = liq
	}
	if sqrtP, err := snap.Pool.SqrtPriceInt(); err == nil {
		in.SqrtPriceX96 = sqrtP
	}

	d0, ok0 := snap.Pool.Token0.DerivedETHFloat()
	in.Token0 = depth.TokenPricing{Decimals: snap.Pool.Token0.Decimals, DerivedETH: d0, Available: ok0}
	d1, ok1 := snap.Pool.Token1.DerivedETHFloat()
	in.Token1 = depth.TokenPricing{Decimals: snap.Pool.Token1.Decimals, DerivedETH: d1, Available: ok1}

	if snap.BundleOK {
		if rate, ok := snap.Bundle.EthPriceFloat(); ok {
			in.EthPriceUSD = rate
			in.EthPriceOK = true
		}
	}

	return in
}
