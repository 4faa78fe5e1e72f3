package catalog

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	pkgerrors "github.com/mavilaortega/caja-backend/pkg/errors"
	"github.com/mavilaortega/caja-backend/pkg/logger"
	"github.com/mavilaortega/caja-backend/pkg/metrics"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"golang.org/x/sync/singleflight"
)

const refreshKey = "catalog"

// Snapshot is an immutable view of the catalog. It is replaced wholesale on
// each refresh; readers never observe a half-updated one.
type Snapshot struct {
	Products      []ProductView
	SalesAverages map[uuid.UUID]decimal.Decimal
	CapturedAt    time.Time
}

// Cache holds the current catalog snapshot and refreshes it in the
// background. Get never blocks; commit-path code must read stock through the
// stock gate instead.
type Cache struct {
	reader   Reader
	logg     *logger.Logger
	metrics  *metrics.CatalogMetrics
	interval time.Duration
	timeout  time.Duration
	now      func() time.Time

	current atomic.Pointer[Snapshot]
	group   singleflight.Group

	// staleGen advances on every MarkStale; refreshedGen records the
	// generation the last fully successful refresh observed before reading.
	// They differ while an invalidation is outstanding, so a mark arriving
	// mid-refresh survives that refresh's publish.
	staleGen     atomic.Uint64
	refreshedGen atomic.Uint64
}

type CacheOptions struct {
	Reader          Reader
	Logger          *logger.Logger
	Metrics         *metrics.CatalogMetrics
	RefreshInterval time.Duration
	RefreshTimeout  time.Duration

	// Now overrides the clock in tests.
	Now func() time.Time
}

func NewCache(opts CacheOptions) (*Cache, error) {
	if opts.Reader == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "catalog cache requires a reader")
	}
	if opts.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "catalog cache requires a logger")
	}
	if opts.RefreshInterval <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "catalog refresh interval must be positive")
	}
	if opts.RefreshTimeout <= 0 {
		opts.RefreshTimeout = 10 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	c := &Cache{
		reader:   opts.Reader,
		logg:     opts.Logger,
		metrics:  opts.Metrics,
		interval: opts.RefreshInterval,
		timeout:  opts.RefreshTimeout,
		now:      opts.Now,
	}
	c.current.Store(&Snapshot{
		SalesAverages: map[uuid.UUID]decimal.Decimal{},
	})
	// The sentinel snapshot starts one generation behind so the first
	// RefreshIfStale always runs.
	c.staleGen.Store(1)
	return c, nil
}

// Get returns the last published snapshot without blocking, even when stale.
func (c *Cache) Get() *Snapshot {
	return c.current.Load()
}

// Stale reports whether the snapshot is older than the refresh interval or
// has been explicitly invalidated.
func (c *Cache) Stale() bool {
	if c.staleGen.Load() != c.refreshedGen.Load() {
		return true
	}
	snap := c.current.Load()
	return c.now().Sub(snap.CapturedAt) > c.interval
}

// MarkStale forces the next RefreshIfStale to run. Called after a committed
// sale so displayed stock catches up without waiting a full interval.
func (c *Cache) MarkStale() {
	c.staleGen.Add(1)
}

// RefreshIfStale starts one background refresh when the snapshot is stale.
// Callers arriving while a refresh is in flight coalesce onto it; a fresh
// snapshot makes this a no-op. Never blocks.
func (c *Cache) RefreshIfStale(ctx context.Context) {
	if !c.Stale() {
		return
	}
	go func() {
		_, _, _ = c.group.Do(refreshKey, func() (any, error) {
			// Re-check under the flight lock: a caller scheduled after a
			// completed refresh must not start another one.
			if !c.Stale() {
				return nil, nil
			}
			c.refresh(context.WithoutCancel(ctx))
			return nil, nil
		})
	}()
}

// Run drives periodic refreshes until ctx is cancelled. Owned by the api
// process; exactly one Run loop per cache.
func (c *Cache) Run(ctx context.Context) {
	c.RefreshIfStale(ctx)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logg.Info(ctx, "catalog refresher stopping")
			return
		case <-ticker.C:
			c.RefreshIfStale(ctx)
		}
	}
}

// refresh performs the two reads and publishes a new snapshot. A failed read
// retains that portion of the previous snapshot; when both fail the previous
// snapshot stays published and the next tick retries.
func (c *Cache) refresh(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	started := c.now()
	previous := c.current.Load()
	observedGen := c.staleGen.Load()

	products, productsErr := c.reader.ListProducts(ctx)
	averages, averagesErr := c.reader.SalesAverages(ctx)
	c.metrics.ObserveRefresh(c.now().Sub(started))

	combined := multierr.Append(productsErr, averagesErr)
	if productsErr != nil && averagesErr != nil {
		c.metrics.IncFailure()
		c.logg.Error(ctx, "catalog refresh failed, keeping previous snapshot", combined)
		return
	}

	next := &Snapshot{
		Products:      products,
		SalesAverages: averages,
		CapturedAt:    c.now(),
	}
	if productsErr != nil {
		next.Products = previous.Products
	}
	if averagesErr != nil {
		next.SalesAverages = previous.SalesAverages
	}

	c.current.Store(next)

	if combined != nil {
		// The retained portion is still old, so stay marked stale and let
		// the next tick try again.
		c.staleGen.Add(1)
		c.metrics.IncPartial()
		c.logg.Warn(ctx, fmt.Sprintf("catalog refresh partially failed: %v", combined))
		return
	}

	// Publish against the generation seen before the reads: a MarkStale that
	// landed while they ran leaves the cache stale for the next cycle.
	c.refreshedGen.Store(observedGen)
	c.metrics.IncSuccess()
}
