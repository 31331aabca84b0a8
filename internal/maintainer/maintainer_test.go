package maintainer

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"nmtd/internal/cache"
	"nmtd/pkg/types"

	"github.com/rs/zerolog"
)

func key(tgt string) types.CacheKey {
	return types.CacheKey{Src: "en", Tgt: tgt, Family: types.FamilyOpusMT}
}

func TestTickEvictsIdleEntries(t *testing.T) {
	pc := cache.New(4, zerolog.Nop())
	pc.Put(key("de"), cache.Pipeline{})

	m := New(Options{IdleCheckInterval: time.Hour, ModelIdleTimeout: time.Nanosecond}, pc, nil, nil, 0, nil, zerolog.Nop())
	time.Sleep(2 * time.Millisecond)
	m.tick()

	if pc.Size() != 0 {
		t.Errorf("expected idle entry evicted, cache size=%d", pc.Size())
	}
}

func TestTickSkipsIdleEvictionWhenTimeoutZero(t *testing.T) {
	pc := cache.New(4, zerolog.Nop())
	pc.Put(key("de"), cache.Pipeline{})

	m := New(Options{IdleCheckInterval: time.Hour, ModelIdleTimeout: 0}, pc, nil, nil, 0, nil, zerolog.Nop())
	m.tick()

	if pc.Size() != 1 {
		t.Errorf("expected no eviction when ModelIdleTimeout=0, size=%d", pc.Size())
	}
}

type fakePressureSource struct{ pct float64 }

func (f fakePressureSource) PercentUsed() (float64, bool) { return f.pct, true }

func TestTickEvictsUnderPressureWhenMonitoringEnabled(t *testing.T) {
	pc := cache.New(4, zerolog.Nop())
	pc.Put(key("de"), cache.Pipeline{})
	pc.Put(key("fr"), cache.Pipeline{})

	sources := map[string]cache.PressureSource{"ram": fakePressureSource{pct: 99}}
	thresholds := map[string]float64{"ram": 50}

	m := New(Options{IdleCheckInterval: time.Hour, MemoryMonitoringEnabled: true}, pc, sources, thresholds, 5, nil, zerolog.Nop())
	m.tick()

	if pc.Size() != 0 {
		t.Errorf("expected pressure eviction to empty the cache, size=%d", pc.Size())
	}
}

func TestTickIgnoresPressureWhenMonitoringDisabled(t *testing.T) {
	pc := cache.New(4, zerolog.Nop())
	pc.Put(key("de"), cache.Pipeline{})

	sources := map[string]cache.PressureSource{"ram": fakePressureSource{pct: 99}}
	thresholds := map[string]float64{"ram": 50}

	m := New(Options{IdleCheckInterval: time.Hour, MemoryMonitoringEnabled: false}, pc, sources, thresholds, 5, nil, zerolog.Nop())
	m.tick()

	if pc.Size() != 1 {
		t.Errorf("expected no eviction when monitoring disabled, size=%d", pc.Size())
	}
}

type countingClearer struct{ calls int32 }

func (c *countingClearer) ClearCache() { atomic.AddInt32(&c.calls, 1) }

func TestTickCallsClearerOnInterval(t *testing.T) {
	pc := cache.New(4, zerolog.Nop())
	clearer := &countingClearer{}

	m := New(Options{IdleCheckInterval: time.Minute, DeviceCacheClearInterval: time.Minute}, pc, nil, nil, 0, clearer, zerolog.Nop())
	m.tick()

	if atomic.LoadInt32(&clearer.calls) != 1 {
		t.Errorf("expected clearer called once, got %d", clearer.calls)
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	pc := cache.New(4, zerolog.Nop())
	m := New(Options{IdleCheckInterval: time.Millisecond}, pc, nil, nil, 0, nil, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()
	time.Sleep(5 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("expected Run to return after context cancellation")
	}
}
