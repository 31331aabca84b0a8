// Package cache implements the Pipeline Cache (C3): a bounded,
// capacity/pressure/idle-evicting LRU mapping CacheKey to a loaded
// Pipeline handle. Grounded on the teacher's internal/manager instance
// map (internal/manager/manager.go, evict.go, lru_persist.go), generalized
// from a single-instance-per-model-id map to a proper ordered LRU with
// list.List, and extended with golang.org/x/sync/singleflight to collapse
// concurrent loads of the same key per spec.md §4.3.
package cache

import (
	"container/list"
	"context"
	"fmt"
	"sync"
	"time"

	"nmtd/pkg/types"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// Pipeline is the cache's payload: the loaded inference collaborator plus
// its bookkeeping metadata. Release is called exactly once, when the
// pipeline is evicted or the cache is purged. Handle is the opaque
// runtime.Handle the inference collaborator returned from Load; cache
// stays independent of internal/runtime's concrete type by holding it as
// interface{}.
type Pipeline struct {
	Meta    types.PipelineMeta
	Handle  interface{}
	Release func()
}

// Loader loads a Pipeline for a cache miss. It runs outside the cache
// lock, per spec.md §4.3's "model loading happens outside the lock".
type Loader func(ctx context.Context, key types.CacheKey) (Pipeline, error)

type entry struct {
	key      types.CacheKey
	pipeline Pipeline
}

// PipelineCache is a capacity-bounded LRU of loaded pipelines with
// idle and memory-pressure eviction, and single-flight load coalescing.
type PipelineCache struct {
	mu       sync.Mutex
	capacity int
	ll       *list.List // front = MRU, back = LRU
	items    map[types.CacheKey]*list.Element
	group    singleflight.Group
	log      zerolog.Logger
}

// New builds a PipelineCache with the given MAX_CACHED_MODELS capacity.
func New(capacity int, log zerolog.Logger) *PipelineCache {
	if capacity < 1 {
		capacity = 1
	}
	return &PipelineCache{
		capacity: capacity,
		ll:       list.New(),
		items:    make(map[types.CacheKey]*list.Element),
		log:      log.With().Str("component", "cache").Logger(),
	}
}

// Get returns the pipeline for key, moving it to MRU and refreshing
// LastAccess on hit. The second return is false on a miss.
func (c *PipelineCache) Get(key types.CacheKey) (Pipeline, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return Pipeline{}, false
	}
	c.ll.MoveToFront(el)
	e := el.Value.(*entry)
	e.pipeline.Meta.LastAccess = time.Now()
	return e.pipeline, true
}

// GetOrLoad returns the cached pipeline for key, or loads it via loader,
// coalescing concurrent misses for the same key: a second caller for a
// key already loading awaits the first loader's result instead of
// duplicating the load. On load failure the cache is left unchanged and
// the single-flight entry is cleared so a retry is permitted.
func (c *PipelineCache) GetOrLoad(ctx context.Context, key types.CacheKey, loader Loader) (Pipeline, error) {
	if p, ok := c.Get(key); ok {
		return p, nil
	}

	v, err, _ := c.group.Do(key.String(), func() (interface{}, error) {
		// Re-check: another goroutine may have inserted while we were
		// scheduled between the Get miss above and Do's own lock.
		if p, ok := c.Get(key); ok {
			return p, nil
		}
		p, err := loader(ctx, key)
		if err != nil {
			return nil, err
		}
		c.Put(key, p)
		return p, nil
	})
	if err != nil {
		return Pipeline{}, err
	}
	return v.(Pipeline), nil
}

// Put inserts or replaces the pipeline for key at the MRU end, evicting
// the LRU entry first if the cache is at capacity.
func (c *PipelineCache) Put(key types.CacheKey, p Pipeline) {
	p.Meta.LastAccess = time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		e := el.Value.(*entry)
		if e.pipeline.Release != nil {
			e.pipeline.Release()
		}
		e.pipeline = p
		c.ll.MoveToFront(el)
		return
	}

	if c.ll.Len() >= c.capacity {
		c.evictOneLocked()
	}

	el := c.ll.PushFront(&entry{key: key, pipeline: p})
	c.items[key] = el
}

// Size returns the number of pipelines currently cached.
func (c *PipelineCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

// Keys returns the current cache keys, MRU first.
func (c *PipelineCache) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, c.ll.Len())
	for el := c.ll.Front(); el != nil; el = el.Next() {
		out = append(out, el.Value.(*entry).key.String())
	}
	return out
}

// EvictIdle removes every entry whose LastAccess is older than timeout,
// returning the evicted keys.
func (c *PipelineCache) EvictIdle(now time.Time, timeout time.Duration) []types.CacheKey {
	c.mu.Lock()
	defer c.mu.Unlock()

	var evicted []types.CacheKey
	var next *list.Element
	for el := c.ll.Back(); el != nil; el = next {
		next = el.Prev()
		e := el.Value.(*entry)
		if now.Sub(e.pipeline.Meta.LastAccess) > timeout {
			c.removeLocked(el)
			evicted = append(evicted, e.key)
		}
	}
	return evicted
}

// PressureSource reports a memory pressure percentage (0-100) and whether
// it is observable at all (e.g. VRAM may be unobservable without a GPU).
type PressureSource interface {
	PercentUsed() (pct float64, observable bool)
}

// EvictUnderPressure evicts LRU entries while any pressure source exceeds
// its critical threshold, stopping once every source is below threshold
// minus hysteresis or the cache is empty. Mirrors spec.md §4.3's
// evict_under_pressure and the teacher's evictUntilFits loop, generalized
// from a single fixed budget check to arbitrary pressure sources.
func (c *PipelineCache) EvictUnderPressure(sources map[string]PressureSource, criticalThresholds map[string]float64, hysteresisMargin float64) []types.CacheKey {
	c.mu.Lock()
	defer c.mu.Unlock()

	var evicted []types.CacheKey
	evicting := false
	for {
		overThreshold := false
		for name, src := range sources {
			pct, observable := src.PercentUsed()
			if !observable {
				continue
			}
			threshold, ok := criticalThresholds[name]
			if !ok {
				continue
			}
			limit := threshold
			if evicting {
				limit = threshold - hysteresisMargin
			}
			if pct > limit {
				overThreshold = true
			}
		}
		if !overThreshold || c.ll.Len() == 0 {
			break
		}
		evicting = true
		back := c.ll.Back()
		e := back.Value.(*entry)
		c.removeLocked(back)
		evicted = append(evicted, e.key)
	}
	return evicted
}

// PurgeAll releases every cached pipeline and empties the cache, used on
// shutdown.
func (c *PipelineCache) PurgeAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for el := c.ll.Front(); el != nil; el = el.Next() {
		e := el.Value.(*entry)
		if e.pipeline.Release != nil {
			e.pipeline.Release()
		}
	}
	c.ll.Init()
	c.items = make(map[types.CacheKey]*list.Element)
}

func (c *PipelineCache) evictOneLocked() {
	back := c.ll.Back()
	if back == nil {
		return
	}
	e := back.Value.(*entry)
	c.log.Info().Str("key", e.key.String()).Msg("evicting LRU pipeline for capacity")
	c.removeLocked(back)
}

func (c *PipelineCache) removeLocked(el *list.Element) {
	e := el.Value.(*entry)
	if e.pipeline.Release != nil {
		e.pipeline.Release()
	}
	delete(c.items, e.key)
	c.ll.Remove(el)
	c.log.Info().Str("key", e.key.String()).Msg("pipeline evicted")
}

// ErrKeyString formats a load error message with the offending key, for
// callers that want a consistent ModelLoadError wrapper.
func ErrKeyString(key types.CacheKey, err error) error {
	return fmt.Errorf("load pipeline for %s: %w", key.String(), err)
}
