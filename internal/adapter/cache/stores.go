// Package cache provides LRU decorators for the dataset stores. Cached fields
// are shared between callers and must be treated as read-only.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/couchcryptid/ghg-merge/internal/domain"
	"github.com/couchcryptid/ghg-merge/internal/observability"
	"golang.org/x/sync/singleflight"
)

// CachedFluxStore wraps a FluxStore with an in-memory LRU cache.
type CachedFluxStore struct {
	inner   domain.FluxStore
	cache   *lru[*domain.FluxField]
	group   singleflight.Group
	metrics *observability.Metrics
}

// NewCachedFluxStore creates a cache decorator around a flux store.
// metrics may be nil.
func NewCachedFluxStore(inner domain.FluxStore, maxEntries int, metrics *observability.Metrics) *CachedFluxStore {
	return &CachedFluxStore{
		inner:   inner,
		cache:   newLRU[*domain.FluxField](maxEntries),
		metrics: metrics,
	}
}

// FetchFlux returns the cached field for q or fetches it once, even when
// several callers miss at the same time.
func (c *CachedFluxStore) FetchFlux(ctx context.Context, q domain.FluxQuery) (*domain.FluxField, error) {
	key := fmt.Sprintf("flux:%s|%s|%s|%s|%s", q.Store, q.Species, q.Domain, q.Sector, rangeKey(q.TimeRange))
	if v, ok := c.cache.get(key); ok {
		record(c.metrics, "flux", "hit")
		return v, nil
	}
	record(c.metrics, "flux", "miss")

	v, err, _ := c.group.Do(key, func() (any, error) {
		f, err := c.inner.FetchFlux(ctx, q)
		if err != nil {
			return nil, err
		}
		c.cache.put(key, f)
		return f, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.FluxField), nil
}

// CachedBoundaryConditionStore wraps a BoundaryConditionStore with an
// in-memory LRU cache. Every site of a run asks for the same field.
type CachedBoundaryConditionStore struct {
	inner   domain.BoundaryConditionStore
	cache   *lru[*domain.BoundaryConditionField]
	group   singleflight.Group
	metrics *observability.Metrics
}

// NewCachedBoundaryConditionStore creates a cache decorator around a boundary
// condition store. metrics may be nil.
func NewCachedBoundaryConditionStore(inner domain.BoundaryConditionStore, maxEntries int, metrics *observability.Metrics) *CachedBoundaryConditionStore {
	return &CachedBoundaryConditionStore{
		inner:   inner,
		cache:   newLRU[*domain.BoundaryConditionField](maxEntries),
		metrics: metrics,
	}
}

func (c *CachedBoundaryConditionStore) FetchBoundaryCondition(ctx context.Context, q domain.BoundaryConditionQuery) (*domain.BoundaryConditionField, error) {
	key := fmt.Sprintf("bc:%s|%s|%s|%s|%s", q.Store, q.Species, q.Domain, q.Source, rangeKey(q.TimeRange))
	if v, ok := c.cache.get(key); ok {
		record(c.metrics, "boundary_condition", "hit")
		return v, nil
	}
	record(c.metrics, "boundary_condition", "miss")

	v, err, _ := c.group.Do(key, func() (any, error) {
		bc, err := c.inner.FetchBoundaryCondition(ctx, q)
		if err != nil {
			return nil, err
		}
		c.cache.put(key, bc)
		return bc, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.BoundaryConditionField), nil
}

func rangeKey(r domain.TimeRange) string {
	return r.Start.UTC().Format(time.RFC3339) + "/" + r.End.UTC().Format(time.RFC3339)
}

func record(m *observability.Metrics, kind, result string) {
	if m == nil {
		return
	}
	m.StoreCache.WithLabelValues(kind, result).Inc()
}
