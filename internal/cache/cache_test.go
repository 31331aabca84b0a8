package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"nmtd/pkg/types"

	"github.com/rs/zerolog"
)

func key(src, tgt string) types.CacheKey {
	return types.CacheKey{Src: src, Tgt: tgt, Family: types.FamilyOpusMT}
}

func TestPutGetRoundtrip(t *testing.T) {
	c := New(2, zerolog.Nop())
	c.Put(key("en", "de"), Pipeline{Meta: types.PipelineMeta{ModelID: "m1"}})

	p, ok := c.Get(key("en", "de"))
	if !ok {
		t.Fatal("expected hit")
	}
	if p.Meta.ModelID != "m1" {
		t.Errorf("got %q", p.Meta.ModelID)
	}
}

func TestCapacityBoundAtEveryObservation(t *testing.T) {
	c := New(2, zerolog.Nop())
	for i := 0; i < 10; i++ {
		c.Put(types.CacheKey{Src: "en", Tgt: string(rune('a' + i)), Family: types.FamilyOpusMT}, Pipeline{})
		if c.Size() > 2 {
			t.Fatalf("cache size exceeded capacity after put %d: %d", i, c.Size())
		}
	}
}

func TestMRUSurvivesCapacityOneAlternation(t *testing.T) {
	c := New(1, zerolog.Nop())
	a := key("en", "de")
	b := key("en", "fr")

	c.Put(a, Pipeline{})
	c.Get(a) // touch a
	c.Put(b, Pipeline{})
	if _, ok := c.Get(a); ok {
		t.Error("expected a to be evicted once b displaces it at capacity 1")
	}
	if _, ok := c.Get(b); !ok {
		t.Error("expected b (MRU) to survive")
	}
}

func TestLRUEvictedFirstAtCapacity(t *testing.T) {
	c := New(2, zerolog.Nop())
	a, b, cc := key("en", "de"), key("en", "fr"), key("en", "it")

	c.Put(a, Pipeline{})
	c.Put(b, Pipeline{})
	c.Get(a) // a becomes MRU, b becomes LRU
	c.Put(cc, Pipeline{})

	if _, ok := c.Get(b); ok {
		t.Error("expected LRU key b to be evicted")
	}
	if _, ok := c.Get(a); !ok {
		t.Error("expected a to survive (was touched most recently)")
	}
	if _, ok := c.Get(cc); !ok {
		t.Error("expected newly put c to survive")
	}
}

func TestReleaseCalledOnEviction(t *testing.T) {
	c := New(1, zerolog.Nop())
	var released int32
	c.Put(key("en", "de"), Pipeline{Release: func() { atomic.AddInt32(&released, 1) }})
	c.Put(key("en", "fr"), Pipeline{})

	if atomic.LoadInt32(&released) != 1 {
		t.Errorf("expected release called once, got %d", released)
	}
}

func TestGetOrLoadSingleFlightCollapsesConcurrentMisses(t *testing.T) {
	c := New(4, zerolog.Nop())
	var loadCount int32

	loader := func(ctx context.Context, k types.CacheKey) (Pipeline, error) {
		atomic.AddInt32(&loadCount, 1)
		time.Sleep(10 * time.Millisecond)
		return Pipeline{Meta: types.PipelineMeta{ModelID: "m"}}, nil
	}

	var wg sync.WaitGroup
	k := key("en", "de")
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.GetOrLoad(context.Background(), k, loader); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if atomic.LoadInt32(&loadCount) != 1 {
		t.Errorf("expected exactly one load, got %d", loadCount)
	}
	if c.Size() != 1 {
		t.Errorf("expected exactly one cache entry, got %d", c.Size())
	}
}

func TestGetOrLoadFailurePropagatesAndLeavesCacheUnchanged(t *testing.T) {
	c := New(4, zerolog.Nop())
	wantErr := errors.New("boom")
	loader := func(ctx context.Context, k types.CacheKey) (Pipeline, error) {
		return Pipeline{}, wantErr
	}
	_, err := c.GetOrLoad(context.Background(), key("en", "de"), loader)
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected error to propagate, got %v", err)
	}
	if c.Size() != 0 {
		t.Errorf("expected cache untouched on failed load, got size %d", c.Size())
	}
}

func TestGetOrLoadRetryAllowedAfterFailure(t *testing.T) {
	c := New(4, zerolog.Nop())
	calls := 0
	loader := func(ctx context.Context, k types.CacheKey) (Pipeline, error) {
		calls++
		if calls == 1 {
			return Pipeline{}, errors.New("first attempt fails")
		}
		return Pipeline{Meta: types.PipelineMeta{ModelID: "m"}}, nil
	}
	k := key("en", "de")
	if _, err := c.GetOrLoad(context.Background(), k, loader); err == nil {
		t.Fatal("expected first attempt to fail")
	}
	if _, err := c.GetOrLoad(context.Background(), k, loader); err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
}

func TestEvictIdleRemovesAllStaleEntries(t *testing.T) {
	c := New(4, zerolog.Nop())
	c.Put(key("en", "de"), Pipeline{})
	c.Put(key("en", "fr"), Pipeline{})

	// Put always stamps now(), so entries cannot be backdated; instead
	// evict with a one-minute timeout against a "now" one hour in the
	// future, which makes every entry stale.
	future := time.Now().Add(time.Hour)
	evicted := c.EvictIdle(future, time.Minute)
	if len(evicted) != 2 {
		t.Fatalf("expected both entries evicted when now is far in the future, got %d", len(evicted))
	}
	if c.Size() != 0 {
		t.Errorf("expected empty cache after idle eviction, got %d", c.Size())
	}
}

func TestEvictIdleKeepsFreshEntries(t *testing.T) {
	c := New(4, zerolog.Nop())
	c.Put(key("en", "de"), Pipeline{})
	evicted := c.EvictIdle(time.Now(), time.Hour)
	if len(evicted) != 0 {
		t.Errorf("expected no eviction for fresh entry, got %v", evicted)
	}
}

type fakePressure struct {
	pct        float64
	observable bool
}

func (f fakePressure) PercentUsed() (float64, bool) { return f.pct, f.observable }

func TestEvictUnderPressureEmptiesCacheWhenPressurePersists(t *testing.T) {
	c := New(4, zerolog.Nop())
	c.Put(key("en", "de"), Pipeline{})
	c.Put(key("en", "fr"), Pipeline{})
	c.Put(key("en", "it"), Pipeline{})

	sources := map[string]PressureSource{"ram": fakePressure{pct: 95, observable: true}}
	thresholds := map[string]float64{"ram": 90}

	evicted := c.EvictUnderPressure(sources, thresholds, 5)
	if len(evicted) == 0 {
		t.Fatal("expected at least one eviction under sustained pressure")
	}
	// Pressure source is a fixed fake that never drops, so eviction
	// continues until the cache is empty.
	if c.Size() != 0 {
		t.Errorf("expected cache emptied when pressure never subsides, got %d", c.Size())
	}
}

func TestEvictUnderPressureNoOpWhenBelowThreshold(t *testing.T) {
	c := New(4, zerolog.Nop())
	c.Put(key("en", "de"), Pipeline{})

	sources := map[string]PressureSource{"ram": fakePressure{pct: 10, observable: true}}
	thresholds := map[string]float64{"ram": 90}

	evicted := c.EvictUnderPressure(sources, thresholds, 5)
	if len(evicted) != 0 {
		t.Errorf("expected no eviction below threshold, got %v", evicted)
	}
}

func TestEvictUnderPressureIgnoresUnobservableSource(t *testing.T) {
	c := New(4, zerolog.Nop())
	c.Put(key("en", "de"), Pipeline{})

	sources := map[string]PressureSource{"gpu": fakePressure{pct: 99, observable: false}}
	thresholds := map[string]float64{"gpu": 90}

	evicted := c.EvictUnderPressure(sources, thresholds, 5)
	if len(evicted) != 0 {
		t.Errorf("expected unobservable source to be ignored, got %v", evicted)
	}
}

func TestPurgeAllReleasesEverythingAndEmpties(t *testing.T) {
	c := New(4, zerolog.Nop())
	var released int32
	c.Put(key("en", "de"), Pipeline{Release: func() { atomic.AddInt32(&released, 1) }})
	c.Put(key("en", "fr"), Pipeline{Release: func() { atomic.AddInt32(&released, 1) }})

	c.PurgeAll()

	if c.Size() != 0 {
		t.Errorf("expected empty cache after purge, got %d", c.Size())
	}
	if atomic.LoadInt32(&released) != 2 {
		t.Errorf("expected both pipelines released, got %d", released)
	}
}
