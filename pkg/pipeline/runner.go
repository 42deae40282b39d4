package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/anchorstack/pkg/cache"
	"github.com/matzehuels/anchorstack/pkg/document"
	"github.com/matzehuels/anchorstack/pkg/render/sink"
)

// Runner encapsulates pipeline execution with caching.
// Both CLI and API use this to avoid duplicating caching logic.
//
// The Runner is stateless except for the cache and logger; it doesn't
// store pipeline results. Multiple goroutines can safely use the same
// Runner with different options.
type Runner struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger
}

// NewRunner creates a runner with the given cache and keyer.
// If keyer is nil, a DefaultKeyer is used.
// If cache is nil, a NullCache is used (caching disabled).
func NewRunner(c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		Cache:  c,
		Keyer:  keyer,
		Logger: logger,
	}
}

// Execute runs the complete solve → render pipeline with caching.
func (r *Runner) Execute(ctx context.Context, doc *document.Document, opts Options) (*Result, error) {
	r.applyLogger(&opts)
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}

	result := &Result{}

	// Stage 1: Solve
	solveStart := time.Now()
	layout, hash, hit, err := r.SolveWithCacheInfo(ctx, doc, opts)
	if err != nil {
		return nil, fmt.Errorf("solve: %w", err)
	}
	result.Layout = layout
	result.DocHash = hash
	result.Stats.SolveTime = time.Since(solveStart)
	result.Stats.CardCount = len(layout.Cards)
	for _, c := range layout.Cards {
		if c.Stacked {
			result.Stats.StackedCount++
		}
	}
	result.CacheInfo.SolveHit = hit

	r.Logger.Debug("solved document",
		"cards", result.Stats.CardCount,
		"stacked", result.Stats.StackedCount,
		"cached", hit,
		"duration", result.Stats.SolveTime)

	// Stage 2: Render
	renderStart := time.Now()
	artifacts, err := Render(layout, opts)
	if err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	result.Artifacts = artifacts
	result.Stats.RenderTime = time.Since(renderStart)

	if len(opts.Formats) > 0 {
		r.Logger.Debug("rendered outputs",
			"formats", opts.Formats,
			"duration", result.Stats.RenderTime)
	}

	return result, nil
}

// SolveWithCacheInfo solves doc with caching. It returns the layout, the
// document's content hash and whether the layout came from the cache.
func (r *Runner) SolveWithCacheInfo(ctx context.Context, doc *document.Document, opts Options) (sink.Layout, string, bool, error) {
	if err := doc.Validate(); err != nil {
		return sink.Layout{}, "", false, err
	}
	r.applyLogger(&opts)

	canonical, err := document.Canonical(doc)
	if err != nil {
		return sink.Layout{}, "", false, fmt.Errorf("hash document: %w", err)
	}
	hash := cache.Hash(canonical)
	cacheKey := r.Keyer.SolveKey(hash, opts.SolveKeyOpts(doc))

	// Try cache first (unless refresh requested)
	if !opts.Refresh {
		if data, hit, err := r.Cache.Get(ctx, cacheKey); err != nil {
			r.Logger.Warn("cache read failed", "key", cacheKey, "err", err)
		} else if hit {
			var cached sink.Layout
			if err := json.Unmarshal(data, &cached); err == nil {
				return cached, hash, true, nil
			}
			// Undecodable entries fall through to a fresh solve.
		}
	}

	layout, err := Solve(ctx, doc, opts)
	if err != nil {
		return sink.Layout{}, "", false, err
	}

	if data, err := sink.RenderJSON(layout, sink.WithJSONCompact()); err == nil {
		if err := r.Cache.Set(ctx, cacheKey, data, cache.TTLSolve); err != nil {
			r.Logger.Warn("cache write failed", "key", cacheKey, "err", err)
		}
	}

	return layout, hash, false, nil
}

// Close releases resources held by the runner (primarily the cache).
func (r *Runner) Close() error {
	if r.Cache != nil {
		return r.Cache.Close()
	}
	return nil
}

// applyLogger sets the runner's logger on options if not already set.
func (r *Runner) applyLogger(opts *Options) {
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}
}
