package catalog

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	pkgerrors "github.com/mavilaortega/caja-backend/pkg/errors"
	"github.com/mavilaortega/caja-backend/pkg/logger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type stubReader struct {
	mu          sync.Mutex
	products    []ProductView
	averages    map[uuid.UUID]decimal.Decimal
	productsErr error
	averagesErr error

	listCalls int32
	avgCalls  int32
	block     chan struct{}
}

func (s *stubReader) ListProducts(ctx context.Context) ([]ProductView, error) {
	atomic.AddInt32(&s.listCalls, 1)
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.products, s.productsErr
}

func (s *stubReader) SalesAverages(ctx context.Context) (map[uuid.UUID]decimal.Decimal, error) {
	atomic.AddInt32(&s.avgCalls, 1)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.averages, s.averagesErr
}

func (s *stubReader) set(products []ProductView, productsErr, averagesErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products = products
	s.productsErr = productsErr
	s.averagesErr = averagesErr
}

func newTestCache(t *testing.T, reader Reader, now func() time.Time) *Cache {
	t.Helper()
	cache, err := NewCache(CacheOptions{
		Reader:          reader,
		Logger:          logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		RefreshInterval: 30 * time.Second,
		Now:             now,
	})
	if err != nil {
		t.Fatalf("new cache: %v", err)
	}
	return cache
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestGetNeverBlocksAndStartsEmpty(t *testing.T) {
	t.Parallel()

	cache := newTestCache(t, &stubReader{}, time.Now)

	snap := cache.Get()
	if snap == nil {
		t.Fatal("expected a sentinel snapshot before first refresh")
	}
	if len(snap.Products) != 0 || snap.SalesAverages == nil {
		t.Fatalf("unexpected sentinel snapshot: %+v", snap)
	}
	if !cache.Stale() {
		t.Fatal("sentinel snapshot must be stale")
	}
}

func TestConcurrentRefreshCoalesces(t *testing.T) {
	t.Parallel()

	reader := &stubReader{block: make(chan struct{})}
	reader.averages = map[uuid.UUID]decimal.Decimal{}
	cache := newTestCache(t, reader, time.Now)

	ctx := context.Background()
	for i := 0; i < 8; i++ {
		cache.RefreshIfStale(ctx)
	}
	waitFor(t, func() bool { return atomic.LoadInt32(&reader.listCalls) >= 1 })
	close(reader.block)
	waitFor(t, func() bool { return !cache.Stale() })

	if calls := atomic.LoadInt32(&reader.listCalls); calls != 1 {
		t.Fatalf("expected exactly one product read, got %d", calls)
	}
	if calls := atomic.LoadInt32(&reader.avgCalls); calls != 1 {
		t.Fatalf("expected exactly one averages read, got %d", calls)
	}
}

func TestFreshSnapshotSkipsRefresh(t *testing.T) {
	t.Parallel()

	reader := &stubReader{averages: map[uuid.UUID]decimal.Decimal{}}
	cache := newTestCache(t, reader, time.Now)

	cache.RefreshIfStale(context.Background())
	waitFor(t, func() bool { return !cache.Stale() })
	published := cache.Get()

	// Snapshot captured moments ago, well under the 30s interval.
	for i := 0; i < 4; i++ {
		cache.RefreshIfStale(context.Background())
	}
	time.Sleep(50 * time.Millisecond)

	if got := cache.Get(); got != published {
		t.Fatal("fresh snapshot must be returned without triggering a refresh")
	}
	if calls := atomic.LoadInt32(&reader.listCalls); calls != 1 {
		t.Fatalf("expected no further reads while fresh, got %d", calls)
	}
}

func TestMarkStaleForcesRefresh(t *testing.T) {
	t.Parallel()

	productID := uuid.New()
	reader := &stubReader{averages: map[uuid.UUID]decimal.Decimal{}}
	cache := newTestCache(t, reader, time.Now)

	cache.RefreshIfStale(context.Background())
	waitFor(t, func() bool { return !cache.Stale() })

	reader.set([]ProductView{{ID: productID, Name: "Espresso", StockQty: 7}}, nil, nil)
	cache.MarkStale()
	if !cache.Stale() {
		t.Fatal("MarkStale must flag the snapshot stale")
	}

	cache.RefreshIfStale(context.Background())
	waitFor(t, func() bool { return len(cache.Get().Products) == 1 })

	if got := cache.Get().Products[0].ID; got != productID {
		t.Fatalf("expected refreshed product, got %s", got)
	}
}

func TestMarkStaleDuringRefreshSurvivesPublish(t *testing.T) {
	t.Parallel()

	productID := uuid.New()
	reader := &stubReader{
		products: []ProductView{{ID: productID, Name: "Lungo", StockQty: 4}},
		averages: map[uuid.UUID]decimal.Decimal{},
		block:    make(chan struct{}),
	}
	cache := newTestCache(t, reader, time.Now)

	cache.RefreshIfStale(context.Background())
	waitFor(t, func() bool { return atomic.LoadInt32(&reader.listCalls) == 1 })

	// A sale commits while the refresh reads are still running.
	cache.MarkStale()
	close(reader.block)
	waitFor(t, func() bool { return len(cache.Get().Products) == 1 })

	if !cache.Stale() {
		t.Fatal("invalidation during an in-flight refresh must survive its publish")
	}

	cache.RefreshIfStale(context.Background())
	waitFor(t, func() bool { return !cache.Stale() })
	if calls := atomic.LoadInt32(&reader.listCalls); calls != 2 {
		t.Fatalf("expected a second read for the surviving mark, got %d", calls)
	}
}

func TestPartialFailureRetainsPreviousPortion(t *testing.T) {
	t.Parallel()

	productID := uuid.New()
	reader := &stubReader{
		products: []ProductView{{ID: productID, Name: "Cortado", StockQty: 12}},
		averages: map[uuid.UUID]decimal.Decimal{productID: decimal.NewFromInt(3)},
	}
	cache := newTestCache(t, reader, time.Now)

	cache.RefreshIfStale(context.Background())
	waitFor(t, func() bool { return !cache.Stale() })

	// Averages read now breaks; the product read still succeeds.
	reader.set(
		[]ProductView{{ID: productID, Name: "Cortado", StockQty: 9}},
		nil,
		pkgerrors.New(pkgerrors.CodeDependency, "averages unavailable"),
	)
	cache.MarkStale()
	cache.RefreshIfStale(context.Background())
	waitFor(t, func() bool { return cache.Get().Products[0].StockQty == 9 })

	snap := cache.Get()
	if avg, ok := snap.SalesAverages[productID]; !ok || !avg.Equal(decimal.NewFromInt(3)) {
		t.Fatalf("expected previous averages retained, got %+v", snap.SalesAverages)
	}
	if !cache.Stale() {
		t.Fatal("partially refreshed snapshot must stay stale")
	}
}

func TestTotalFailureKeepsPreviousSnapshot(t *testing.T) {
	t.Parallel()

	productID := uuid.New()
	reader := &stubReader{
		products: []ProductView{{ID: productID, Name: "Ristretto", StockQty: 5}},
		averages: map[uuid.UUID]decimal.Decimal{},
	}
	cache := newTestCache(t, reader, time.Now)

	cache.RefreshIfStale(context.Background())
	waitFor(t, func() bool { return !cache.Stale() })
	published := cache.Get()

	reader.set(nil,
		pkgerrors.New(pkgerrors.CodeDependency, "db down"),
		pkgerrors.New(pkgerrors.CodeDependency, "db down"),
	)
	cache.MarkStale()
	cache.RefreshIfStale(context.Background())
	waitFor(t, func() bool { return atomic.LoadInt32(&reader.listCalls) >= 2 })
	time.Sleep(20 * time.Millisecond)

	if got := cache.Get(); got != published {
		t.Fatal("total refresh failure must keep the previous snapshot published")
	}
	if !cache.Stale() {
		t.Fatal("failed refresh must leave the cache stale for the next tick")
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	t.Parallel()

	reader := &stubReader{averages: map[uuid.UUID]decimal.Decimal{}}
	cache := newTestCache(t, reader, time.Now)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		cache.Run(ctx)
		close(done)
	}()

	waitFor(t, func() bool { return !cache.Stale() })
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop on cancellation")
	}
}
