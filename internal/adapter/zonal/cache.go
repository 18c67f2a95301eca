package zonal

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/couchcryptid/weather-anomaly-service/internal/analysis"
	"github.com/couchcryptid/weather-anomaly-service/internal/domain"
	"github.com/couchcryptid/weather-anomaly-service/internal/observability"
)

// CachedAggregator wraps an Aggregator with an in-memory LRU cache over
// monthly reductions. Published observation rasters are immutable, so a
// computed reduction never changes; forecast samples are superseded by
// every new model run and are never cached.
type CachedAggregator struct {
	inner   analysis.Aggregator
	cache   *lruCache
	metrics *observability.Metrics
}

// NewCachedAggregator creates a cache decorator around an aggregator.
func NewCachedAggregator(inner analysis.Aggregator, maxEntries int, metrics *observability.Metrics) *CachedAggregator {
	return &CachedAggregator{
		inner:   inner,
		cache:   newLRUCache(maxEntries),
		metrics: metrics,
	}
}

func (c *CachedAggregator) ForecastSamples(ctx context.Context, unitIDs []string, p domain.Parameter) (map[string][]domain.ForecastSample, error) {
	return c.inner.ForecastSamples(ctx, unitIDs, p)
}

func (c *CachedAggregator) MonthlyReduction(ctx context.Context, unitIDs []string, period time.Time, p domain.Parameter) (map[string]analysis.ReductionValue, error) {
	values := make(map[string]analysis.ReductionValue, len(unitIDs))
	missing := make([]string, 0, len(unitIDs))

	for _, id := range unitIDs {
		if v, ok := c.cache.get(reductionKey(id, period, p)); ok {
			c.metrics.ZonalCache.WithLabelValues("hit").Inc()
			values[id] = v
			continue
		}
		c.metrics.ZonalCache.WithLabelValues("miss").Inc()
		missing = append(missing, id)
	}

	if len(missing) == 0 {
		return values, nil
	}

	fetched, err := c.inner.MonthlyReduction(ctx, missing, period, p)
	if err != nil {
		return nil, err
	}
	for id, v := range fetched {
		values[id] = v
		// Only cache real values so a month published late is retried.
		if v.OK {
			c.cache.put(reductionKey(id, period, p), v)
		}
	}
	return values, nil
}

func reductionKey(unitID string, period time.Time, p domain.Parameter) string {
	return fmt.Sprintf("%s|%s|%s", unitID, period.Format("2006-01"), p)
}

// lruCache is a simple thread-safe LRU cache for reduction values.
type lruCache struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*entry
	head       *entry // most recently used
	tail       *entry // least recently used
}

type entry struct {
	key   string
	value analysis.ReductionValue
	prev  *entry
	next  *entry
}

func newLRUCache(maxEntries int) *lruCache {
	return &lruCache{
		maxEntries: maxEntries,
		entries:    make(map[string]*entry),
	}
}

func (c *lruCache) get(key string) (analysis.ReductionValue, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return analysis.ReductionValue{}, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache) put(key string, value analysis.ReductionValue) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		c.moveToFront(e)
		return
	}

	e := &entry{key: key, value: value}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *lruCache) moveToFront(e *entry) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *lruCache) addToFront(e *entry) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *lruCache) remove(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

func (c *lruCache) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
}
