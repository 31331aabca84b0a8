// Package maintainer implements the Background Maintainer (C9): a single
// periodic task performing idle eviction, pressure eviction, and an
// optional device memory-cache-clear tick. Grounded on
// original_source/src/app.py's _maintenance_task (a sleep loop calling
// torch.cuda.empty_cache() on an interval), generalized from "CUDA cache
// clear only" to the full idle+pressure eviction sweep spec.md §4.9 adds.
package maintainer

import (
	"context"
	"time"

	"nmtd/internal/cache"

	"github.com/rs/zerolog"
)

// DeviceCacheClearer optionally releases free device memory each tick
// (e.g. a CUDA empty_cache equivalent). No-op by default since this
// module carries no real GPU binding.
type DeviceCacheClearer interface {
	ClearCache()
}

// NoopClearer is the default DeviceCacheClearer.
type NoopClearer struct{}

// ClearCache does nothing.
func (NoopClearer) ClearCache() {}

// Options configures a Maintainer's ticks.
type Options struct {
	IdleCheckInterval       time.Duration
	ModelIdleTimeout        time.Duration // 0 disables idle eviction
	DeviceCacheClearInterval time.Duration // 0 disables the clear tick
	MemoryMonitoringEnabled bool
}

// Maintainer runs the periodic maintenance loop until its context is
// cancelled.
type Maintainer struct {
	opt      Options
	cache    *cache.PipelineCache
	sources  map[string]cache.PressureSource
	thresholds map[string]float64
	hysteresis float64
	clearer  DeviceCacheClearer
	log      zerolog.Logger

	clearTicksSinceStart int
}

// New builds a Maintainer.
func New(opt Options, pc *cache.PipelineCache, sources map[string]cache.PressureSource, thresholds map[string]float64, hysteresis float64, clearer DeviceCacheClearer, log zerolog.Logger) *Maintainer {
	if clearer == nil {
		clearer = NoopClearer{}
	}
	return &Maintainer{
		opt:        opt,
		cache:      pc,
		sources:    sources,
		thresholds: thresholds,
		hysteresis: hysteresis,
		clearer:    clearer,
		log:        log.With().Str("component", "maintainer").Logger(),
	}
}

// Run blocks, ticking every opt.IdleCheckInterval, until ctx is cancelled.
// Any in-progress eviction completes before Run returns (the tick body is
// synchronous, never left running in a detached goroutine).
func (m *Maintainer) Run(ctx context.Context) {
	if m.opt.IdleCheckInterval <= 0 {
		<-ctx.Done()
		return
	}

	ticker := time.NewTicker(m.opt.IdleCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.log.Info().Msg("maintainer stopping")
			return
		case <-ticker.C:
			m.tick()
		}
	}
}

func (m *Maintainer) tick() {
	if m.opt.ModelIdleTimeout > 0 {
		evicted := m.cache.EvictIdle(time.Now(), m.opt.ModelIdleTimeout)
		if len(evicted) > 0 {
			m.log.Info().Int("count", len(evicted)).Msg("idle eviction")
		}
	}

	if m.opt.MemoryMonitoringEnabled && len(m.sources) > 0 {
		evicted := m.cache.EvictUnderPressure(m.sources, m.thresholds, m.hysteresis)
		if len(evicted) > 0 {
			m.log.Warn().Int("count", len(evicted)).Msg("pressure eviction")
		}
	}

	if m.opt.DeviceCacheClearInterval > 0 {
		m.clearTicksSinceStart++
		ticksPerClear := int(m.opt.DeviceCacheClearInterval / m.opt.IdleCheckInterval)
		if ticksPerClear < 1 {
			ticksPerClear = 1
		}
		if m.clearTicksSinceStart%ticksPerClear == 0 {
			m.clearer.ClearCache()
			m.log.Debug().Msg("device cache clear tick")
		}
	}
}
