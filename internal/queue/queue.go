// Package queue implements the Queue & Slot Manager (C6): a bounded
// admission gate protecting model inference from overload, with an
// inflight semaphore, a FIFO waiting queue, and an EMA-smoothed duration
// tracker driving the Retry-After estimate. Grounded on the teacher's
// channel-reservation pattern in internal/manager/queue_admission.go,
// generalized from one channel-pair per model instance to a single
// process-wide gate with an explicit FIFO waiter list (the teacher's
// buffered channels alone don't give strict FIFO across many waiters),
// and on original_source/src/services/queue_manager.py's
// QueueManager/TranslateSlot for the EMA/estimate/acquire semantics.
package queue

import (
	"container/list"
	"context"
	"errors"
	"sync"

	"nmtd/pkg/types"
)

// Sentinel errors surfaced to the orchestrator/edge; internal/httpapi maps
// these to status codes (503 for ErrServiceBusy, 429 for ErrQueueOverflow,
// a translation timeout for ErrTimeout).
var (
	ErrServiceBusy   = errors.New("service busy: queueing disabled and no inflight slot available")
	ErrQueueOverflow = errors.New("queue overflow: waiting queue at capacity")
	ErrTimeout       = errors.New("translation timeout: deadline elapsed while waiting for a slot")
)

// QueueOverflowError carries an estimated Retry-After alongside
// ErrQueueOverflow so the edge can set the response header.
type QueueOverflowError struct {
	RetryAfterSec float64
}

func (e *QueueOverflowError) Error() string { return ErrQueueOverflow.Error() }
func (e *QueueOverflowError) Unwrap() error  { return ErrQueueOverflow }

// Options configures a Gate.
type Options struct {
	CapacityInflight int
	CapacityWait     int
	EnableQueue      bool
	Alpha            float64 // EMA smoothing factor
	MinRetryAfterSec float64
	MaxRetryAfterSec float64
}

type waiter struct {
	ch chan struct{}
}

// Gate is the process-wide admission gate.
type Gate struct {
	mu       sync.Mutex
	opt      Options
	inflight int
	waiters  *list.List // of *waiter, front = next to wake

	ema float64
}

// New builds a Gate from Options.
func New(opt Options) *Gate {
	if opt.Alpha <= 0 {
		opt.Alpha = 0.2
	}
	return &Gate{
		opt:     opt,
		waiters: list.New(),
	}
}

// Handle is returned by Acquire; the caller must call Release exactly
// once with the observed translation duration.
type Handle struct {
	g *Gate
}

// Release decrements inflight, folds durationSec into the EMA, and wakes
// the next FIFO waiter if any.
func (h Handle) Release(durationSec float64) {
	h.g.release(durationSec)
}

// Acquire reserves an inflight slot, blocking in FIFO order if the gate
// is at capacity and queueing is enabled. ctx cancellation (including
// deadline expiry) removes the caller from the FIFO atomically and
// returns ErrTimeout.
func (g *Gate) Acquire(ctx context.Context) (Handle, error) {
	g.mu.Lock()
	if g.inflight < g.opt.CapacityInflight {
		g.inflight++
		g.mu.Unlock()
		return Handle{g: g}, nil
	}

	if !g.opt.EnableQueue {
		g.mu.Unlock()
		return Handle{}, ErrServiceBusy
	}

	if g.waiters.Len() >= g.opt.CapacityWait {
		retryAfter := g.estimateLocked()
		g.mu.Unlock()
		return Handle{}, &QueueOverflowError{RetryAfterSec: retryAfter}
	}

	w := &waiter{ch: make(chan struct{}, 1)}
	el := g.waiters.PushBack(w)
	g.mu.Unlock()

	select {
	case <-w.ch:
		return Handle{g: g}, nil
	case <-ctx.Done():
		g.mu.Lock()
		// The waiter may have been woken (and removed) concurrently with
		// the context firing; only remove if it's still queued.
		stillQueued := false
		for e := g.waiters.Front(); e != nil; e = e.Next() {
			if e == el {
				stillQueued = true
				break
			}
		}
		if stillQueued {
			g.waiters.Remove(el)
			g.mu.Unlock()
			return Handle{}, ErrTimeout
		}
		g.mu.Unlock()
		// Already woken: release already incremented inflight on our
		// behalf, just drain the ready channel and take the slot.
		<-w.ch
		return Handle{g: g}, nil
	}
}

func (g *Gate) release(durationSec float64) {
	g.mu.Lock()
	g.inflight--
	g.ema = g.opt.Alpha*durationSec + (1-g.opt.Alpha)*g.ema

	if g.inflight < g.opt.CapacityInflight {
		if front := g.waiters.Front(); front != nil {
			g.waiters.Remove(front)
			g.inflight++
			w := front.Value.(*waiter)
			g.mu.Unlock()
			w.ch <- struct{}{}
			return
		}
	}
	g.mu.Unlock()
}

// Estimate returns the current Retry-After estimate in seconds:
// clamp((waiting / max(capacityInflight,1)) * ema, min, max).
func (g *Gate) Estimate() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.estimateLocked()
}

func (g *Gate) estimateLocked() float64 {
	capInflight := g.opt.CapacityInflight
	if capInflight < 1 {
		capInflight = 1
	}
	raw := (float64(g.waiters.Len()) / float64(capInflight)) * g.ema
	return clamp(raw, g.opt.MinRetryAfterSec, g.opt.MaxRetryAfterSec)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if hi > 0 && v > hi {
		return hi
	}
	return v
}

// Metrics returns a snapshot of the gate's current state.
func (g *Gate) Metrics() types.QueueMetrics {
	g.mu.Lock()
	defer g.mu.Unlock()
	return types.QueueMetrics{
		Inflight:         g.inflight,
		Waiting:          g.waiters.Len(),
		CapacityInflight: g.opt.CapacityInflight,
		CapacityWait:     g.opt.CapacityWait,
		EMADurationSec:   g.ema,
	}
}
