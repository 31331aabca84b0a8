package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestAcquireImmediateWhenUnderCapacity(t *testing.T) {
	g := New(Options{CapacityInflight: 2, CapacityWait: 0, EnableQueue: false})
	h, err := g.Acquire(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	h.Release(0.1)
}

func TestAcquireServiceBusyWhenQueueDisabled(t *testing.T) {
	g := New(Options{CapacityInflight: 1, CapacityWait: 0, EnableQueue: false})
	h1, err := g.Acquire(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	defer h1.Release(0)

	_, err = g.Acquire(context.Background())
	if !errors.Is(err, ErrServiceBusy) {
		t.Fatalf("expected ErrServiceBusy, got %v", err)
	}
}

func TestAcquireQueueOverflowWithRetryAfter(t *testing.T) {
	g := New(Options{CapacityInflight: 1, CapacityWait: 0, EnableQueue: true, MinRetryAfterSec: 1, MaxRetryAfterSec: 30})
	h1, err := g.Acquire(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	defer h1.Release(0)

	_, err = g.Acquire(context.Background())
	var overflow *QueueOverflowError
	if !errors.As(err, &overflow) {
		t.Fatalf("expected QueueOverflowError, got %v", err)
	}
	if overflow.RetryAfterSec < 1 {
		t.Errorf("expected retry-after clamped to min 1s, got %v", overflow.RetryAfterSec)
	}
}

func TestAcquireWaitsThenSucceedsFIFO(t *testing.T) {
	g := New(Options{CapacityInflight: 1, CapacityWait: 4, EnableQueue: true, Alpha: 0.5})
	h1, err := g.Acquire(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	order := make(chan int, 3)
	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h, err := g.Acquire(context.Background())
			if err != nil {
				t.Errorf("waiter %d: unexpected error %v", i, err)
				return
			}
			order <- i
			h.Release(0.01)
		}(i)
		time.Sleep(5 * time.Millisecond) // ensure enqueue order
	}

	time.Sleep(10 * time.Millisecond)
	h1.Release(0.05)
	wg.Wait()
	close(order)

	var got []int
	for v := range order {
		got = append(got, v)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 waiters to complete, got %d", len(got))
	}
	for i, v := range got {
		if v != i {
			t.Errorf("expected FIFO order 0,1,2; got %v at position %d in %v", v, i, got)
		}
	}
}

func TestAcquireTimeoutRemovesWaiterFromFIFO(t *testing.T) {
	g := New(Options{CapacityInflight: 1, CapacityWait: 4, EnableQueue: true})
	h1, err := g.Acquire(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	defer h1.Release(0)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = g.Acquire(ctx)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}

	m := g.Metrics()
	if m.Waiting != 0 {
		t.Errorf("expected timed-out waiter removed from queue, waiting=%d", m.Waiting)
	}
}

func TestReleaseUpdatesEMA(t *testing.T) {
	g := New(Options{CapacityInflight: 1, Alpha: 1.0}) // alpha=1 makes ema track exactly
	h, _ := g.Acquire(context.Background())
	h.Release(2.5)
	m := g.Metrics()
	if m.EMADurationSec != 2.5 {
		t.Errorf("expected ema=2.5, got %v", m.EMADurationSec)
	}
}

func TestMetricsReflectInflightAndWaiting(t *testing.T) {
	g := New(Options{CapacityInflight: 1, CapacityWait: 2, EnableQueue: true})
	h1, _ := g.Acquire(context.Background())
	defer h1.Release(0)

	done := make(chan struct{})
	go func() {
		h, err := g.Acquire(context.Background())
		if err == nil {
			h.Release(0)
		}
		close(done)
	}()
	time.Sleep(10 * time.Millisecond)

	m := g.Metrics()
	if m.Inflight != 1 || m.Waiting != 1 {
		t.Errorf("expected inflight=1 waiting=1, got %+v", m)
	}
}
