// Package server exposes the poller's computed state as a read-only
// JSON API. Missing or unparsable data degrades to placeholder values
// in the payload; only malformed requests produce 4xx.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"poolscope/internal/chainmeta"
	"poolscope/internal/hooks"
	"poolscope/internal/model"
	"poolscope/internal/poller"
	"poolscope/internal/univ4/depth"
)

// PoolSource is the slice of the poller the API reads from.
type PoolSource interface {
	Snapshots() []poller.Snapshot
	RecentSwaps(poolID string) []model.SwapEvent
	DepthInput(poolID string, window int) (depth.Input, bool)
}

// HookDirectory resolves hook contract metadata.
type HookDirectory interface {
	Lookup(ctx context.Context, address string) (hooks.Metadata, bool, error)
}

// Config holds the listen address and depth ladder limits.
type Config struct {
	Addr                string
	DefaultDepthBuckets int
	MaxDepthBuckets     int
}

// Server wires the gin router over a pool source.
type Server struct {
	cfg    Config
	source PoolSource
	hooks  HookDirectory
	logger *zap.Logger
	engine *gin.Engine
}

// New builds the router. hookDir and gatherer may be nil; the matching
// endpoints then report unavailable.
func New(cfg Config, source PoolSource, hookDir HookDirectory, gatherer prometheus.Gatherer, logger *zap.Logger) (*Server, error) {
	if source == nil {
		return nil, fmt.Errorf("pool source is nil")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.DefaultDepthBuckets <= 0 {
		cfg.DefaultDepthBuckets = 25
	}
	if cfg.MaxDepthBuckets <= 0 {
		cfg.MaxDepthBuckets = 200
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), requestLog(logger))

	s := &Server{
		cfg:    cfg,
		source: source,
		hooks:  hookDir,
		logger: logger,
		engine: engine,
	}

	api := engine.Group("/api")
	api.GET("/pools", s.listPools)
	api.GET("/pools/:chain/:address", s.poolDetail)
	api.GET("/pools/:chain/:address/depth", s.poolDepth)
	api.GET("/pools/:chain/:address/swaps", s.poolSwaps)
	api.GET("/hooks/:address", s.hookMetadata)

	engine.GET("/healthz", s.healthz)
	if gatherer != nil {
		engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	return s, nil
}

// Handler exposes the router for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is cancelled, then drains with a short grace
// period.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	s.logger.Info("api listening", zap.String("addr", s.cfg.Addr))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return ctx.Err()
	}
}

func requestLog(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("elapsed", time.Since(start)),
		)
	}
}

func (s *Server) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"pools":  len(s.source.Snapshots()),
	})
}

func (s *Server) listPools(c *gin.Context) {
	snaps := s.source.Snapshots()
	out := make([]poolSummary, 0, len(snaps))
	for _, snap := range snaps {
		out = append(out, summarize(snap))
	}
	c.JSON(http.StatusOK, gin.H{"pools": out})
}

func (s *Server) poolDetail(c *gin.Context) {
	snap, ok := s.findPool(c)
	if !ok {
		return
	}

	swaps := s.source.RecentSwaps(snap.Pool.ID)
	row := statsFor(snap, len(swaps))

	detail := poolDetail{
		poolSummary: summarize(snap),
		TickSpacing: snap.Pool.TickSpacing,
		Liquidity:   snap.Pool.Liquidity,
		SqrtPrice:   snap.Pool.SqrtPrice,
		Hooks:       snap.Pool.Hooks,
		FeesUSD:     snap.Pool.FeesUSD,
		TxCount:     snap.Pool.TxCount,
		SwapCount:   row.SwapCount,
		TickSamples: row.TickSamples,
		FeeAPR:      orDash(row.FeeAPR),
		ExplorerURL: chainmeta.AddressURL(snap.Pool.ChainID, snap.Pool.ID),
		ObservedAt:  snap.FetchedAt,
	}
	c.JSON(http.StatusOK, detail)
}

func (s *Server) poolDepth(c *gin.Context) {
	snap, ok := s.findPool(c)
	if !ok {
		return
	}

	buckets := s.cfg.DefaultDepthBuckets
	if raw := c.Query("buckets"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "buckets must be a positive integer"})
			return
		}
		buckets = n
	}
	if buckets > s.cfg.MaxDepthBuckets {
		buckets = s.cfg.MaxDepthBuckets
	}

	in, _ := s.source.DepthInput(snap.Pool.ID, buckets)
	ladder, err := depth.Build(in)
	if err != nil {
		// Ladder math never fails on a valid snapshot; treat a
		// failure as "no depth yet" rather than a server error.
		s.logger.Warn("ladder build failed", zap.String("pool", snap.Pool.ID), zap.Error(err))
		ladder = depth.Ladder{ActiveTick: depth.ActiveTick(snap.Pool.Tick, snap.Pool.TickSpacing)}
	}

	c.JSON(http.StatusOK, renderLadder(snap, ladder))
}

func (s *Server) poolSwaps(c *gin.Context) {
	snap, ok := s.findPool(c)
	if !ok {
		return
	}

	swaps := s.source.RecentSwaps(snap.Pool.ID)
	out := make([]swapRow, 0, len(swaps))
	for _, swap := range swaps {
		out = append(out, swapRow{
			ID:        swap.ID,
			Timestamp: swap.Timestamp,
			Amount0:   swap.Amount0,
			Amount1:   swap.Amount1,
			AmountUSD: swap.AmountUSD,
			Tick:      swap.Tick,
			Origin:    swap.Origin,
			OriginURL: chainmeta.AddressURL(snap.Pool.ChainID, swap.Origin),
		})
	}
	c.JSON(http.StatusOK, gin.H{"pool": snap.Pool.ID, "swaps": out})
}

func (s *Server) hookMetadata(c *gin.Context) {
	if s.hooks == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "hook directory not configured"})
		return
	}

	address := c.Param("address")
	meta, found, err := s.hooks.Lookup(c.Request.Context(), address)
	if err != nil {
		s.logger.Warn("hook lookup failed", zap.String("hook", address), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "hook directory unreachable"})
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown hook", "address": strings.ToLower(address)})
		return
	}
	c.JSON(http.StatusOK, meta)
}

// findPool resolves the :chain/:address pair against live snapshots.
// chain accepts either a registry slug or a numeric chain id; address
// matching is case-insensitive.
func (s *Server) findPool(c *gin.Context) (poller.Snapshot, bool) {
	chainParam := c.Param("chain")
	address := strings.ToLower(c.Param("address"))

	var chainID uint64
	if network, ok := chainmeta.BySlug(chainParam); ok {
		chainID = network.ChainID
	} else if id, err := strconv.ParseUint(chainParam, 10, 64); err == nil {
		chainID = id
	} else {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unknown chain %q", chainParam)})
		return poller.Snapshot{}, false
	}

	for _, snap := range s.source.Snapshots() {
		if snap.Pool.ChainID == chainID && strings.ToLower(snap.Pool.ID) == address {
			return snap, true
		}
	}

	c.JSON(http.StatusNotFound, gin.H{"error": "pool not tracked", "chain": chainParam, "address": address})
	return poller.Snapshot{}, false
}
