package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/couchcryptid/ghg-merge/internal/domain"
	"github.com/couchcryptid/ghg-merge/internal/mockdata"
	"github.com/couchcryptid/ghg-merge/internal/observability"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testRange = domain.TimeRange{
	Start: time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC),
	End:   time.Date(2019, 2, 1, 0, 0, 0, 0, time.UTC),
}

// --- mocks for decorator tests ---

type countingFluxStore struct {
	calls atomic.Int64
	err   error
	delay time.Duration
}

func (m *countingFluxStore) FetchFlux(_ context.Context, q domain.FluxQuery) (*domain.FluxField, error) {
	m.calls.Add(1)
	time.Sleep(m.delay)
	if m.err != nil {
		return nil, m.err
	}
	return mockdata.Flux(q.Species, q.Domain, q.Sector, mockdata.DefaultGrid(), []time.Time{q.TimeRange.Start}, 1e-8), nil
}

type countingBCStore struct {
	calls atomic.Int64
}

func (m *countingBCStore) FetchBoundaryCondition(_ context.Context, q domain.BoundaryConditionQuery) (*domain.BoundaryConditionField, error) {
	m.calls.Add(1)
	return mockdata.BoundaryCondition(q.Species, q.Domain, q.Source, mockdata.DefaultGrid(), []time.Time{q.TimeRange.Start}, 1.9e-6), nil
}

// --- decorator tests ---

func TestCachedFluxStore_CacheHit(t *testing.T) {
	inner := &countingFluxStore{}
	metrics := observability.NewMetricsForTesting()
	cached := NewCachedFluxStore(inner, 10, metrics)
	q := domain.FluxQuery{Species: "ch4", Domain: "EUROPE", Sector: "anthropogenic", TimeRange: testRange}

	f1, err := cached.FetchFlux(context.Background(), q)
	require.NoError(t, err)
	f2, err := cached.FetchFlux(context.Background(), q)
	require.NoError(t, err)

	assert.Same(t, f1, f2)
	assert.Equal(t, int64(1), inner.calls.Load(), "should only call inner once")
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.StoreCache.WithLabelValues("flux", "hit")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.StoreCache.WithLabelValues("flux", "miss")), 0)
}

func TestCachedFluxStore_DifferentKeysMiss(t *testing.T) {
	inner := &countingFluxStore{}
	cached := NewCachedFluxStore(inner, 10, nil)

	q := domain.FluxQuery{Species: "ch4", Domain: "EUROPE", Sector: "anthropogenic", TimeRange: testRange}
	_, _ = cached.FetchFlux(context.Background(), q)
	q.Sector = "natural"
	_, _ = cached.FetchFlux(context.Background(), q)
	q.Store = "other"
	_, _ = cached.FetchFlux(context.Background(), q)

	assert.Equal(t, int64(3), inner.calls.Load())
}

func TestCachedFluxStore_ErrorsNotCached(t *testing.T) {
	inner := &countingFluxStore{err: domain.ErrNotFound}
	cached := NewCachedFluxStore(inner, 10, nil)
	q := domain.FluxQuery{Species: "ch4", Sector: "waste", TimeRange: testRange}

	_, err := cached.FetchFlux(context.Background(), q)
	require.ErrorIs(t, err, domain.ErrNotFound)
	_, err = cached.FetchFlux(context.Background(), q)
	require.ErrorIs(t, err, domain.ErrNotFound)

	assert.Equal(t, int64(2), inner.calls.Load())
}

func TestCachedFluxStore_ConcurrentMissesShareFetch(t *testing.T) {
	inner := &countingFluxStore{delay: 50 * time.Millisecond}
	cached := NewCachedFluxStore(inner, 10, nil)
	q := domain.FluxQuery{Species: "ch4", Sector: "anthropogenic", TimeRange: testRange}

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := cached.FetchFlux(context.Background(), q)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), inner.calls.Load())
}

func TestCachedBoundaryConditionStore_CacheHit(t *testing.T) {
	inner := &countingBCStore{}
	cached := NewCachedBoundaryConditionStore(inner, 4, nil)
	q := domain.BoundaryConditionQuery{Species: "ch4", Domain: "EUROPE", Source: "CAMS", TimeRange: testRange}

	for range 5 {
		_, err := cached.FetchBoundaryCondition(context.Background(), q)
		require.NoError(t, err)
	}
	assert.Equal(t, int64(1), inner.calls.Load())

	q.Source = "MOZART"
	_, err := cached.FetchBoundaryCondition(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, int64(2), inner.calls.Load())
}

func TestCachedBoundaryConditionStore_NormalizationDoesNotTouchCache(t *testing.T) {
	cached := NewCachedBoundaryConditionStore(&countingBCStore{}, 4, nil)
	q := domain.BoundaryConditionQuery{Species: "ch4", Domain: "EUROPE", Source: "CAMS", TimeRange: testRange}

	bc, err := cached.FetchBoundaryCondition(context.Background(), q)
	require.NoError(t, err)
	_ = domain.NormalizeBoundaryCondition(bc, 1e-9)

	again, err := cached.FetchBoundaryCondition(context.Background(), q)
	require.NoError(t, err)
	assert.InDelta(t, 1.9e-6, again.Faces[domain.FaceNorth].Elements[0], 1e-18)
}

// --- LRU unit tests ---

func TestLRU_BasicGetPut(t *testing.T) {
	c := newLRU[string](3)

	c.put("a", "A")
	c.put("b", "B")

	v, ok := c.get("a")
	assert.True(t, ok)
	assert.Equal(t, "A", v)

	_, ok = c.get("missing")
	assert.False(t, ok)
	assert.Equal(t, 2, c.len())
}

func TestLRU_Eviction(t *testing.T) {
	c := newLRU[string](2)

	c.put("a", "A")
	c.put("b", "B")
	c.put("c", "C") // evicts "a"

	_, ok := c.get("a")
	assert.False(t, ok, "a should have been evicted")

	v, ok := c.get("c")
	assert.True(t, ok)
	assert.Equal(t, "C", v)
	assert.Equal(t, 2, c.len())
}

func TestLRU_AccessPromotesEntry(t *testing.T) {
	c := newLRU[int](2)

	c.put("a", 1)
	c.put("b", 2)
	c.get("a")
	c.put("c", 3) // evicts "b", the least recently used

	_, ok := c.get("a")
	assert.True(t, ok, "a was accessed recently, should not be evicted")
	_, ok = c.get("b")
	assert.False(t, ok, "b should have been evicted")
}

func TestLRU_UpdateExisting(t *testing.T) {
	c := newLRU[string](2)

	c.put("a", "A1")
	c.put("a", "A2")

	v, ok := c.get("a")
	assert.True(t, ok)
	assert.Equal(t, "A2", v)
	assert.Equal(t, 1, c.len())
}
