package reactor

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"ballast-go/internal/metrics"
)

func newTestPool(workers, queueSize int, m *metrics.Metrics) *Pool {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewPool(workers, queueSize, logger, m)
}

func TestPool_InThreadAutostart(t *testing.T) {
	p := newTestPool(2, 4, nil)
	var counter atomic.Int32

	InThread(p, true, func() { counter.Add(1) })

	if got := counter.Load(); got != 1 {
		t.Errorf("counter = %d, want 1", got)
	}
	if p.IsActive() {
		t.Error("IsActive() = true after autostarted dispatch, want false")
	}
}

func TestPool_InThreadStopped(t *testing.T) {
	p := newTestPool(1, 0, nil)
	counter := 0

	InThread(p, false, func() { counter++ })

	if counter != 1 {
		t.Errorf("counter = %d, want 1", counter)
	}
	if p.IsActive() {
		t.Error("IsActive() = true, want false")
	}
}

func TestPool_InThreadRunning(t *testing.T) {
	p := newTestPool(2, 8, nil)
	p.Launch()
	defer func() { _ = p.Shutdown(context.Background()) }()

	if !p.IsActive() {
		t.Fatal("IsActive() = false after Launch, want true")
	}

	ran := make(chan struct{})
	InThread(p, true, func() { close(ran) })

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("deferred job did not run")
	}
	if !p.IsActive() {
		t.Error("IsActive() = false after dispatch on a running pool, want true")
	}
}

func TestPool_RunDeferredReturnsBeforeCompletion(t *testing.T) {
	p := newTestPool(1, 1, nil)
	p.Launch()

	release := make(chan struct{})
	var finished atomic.Bool
	p.RunDeferred(func() {
		<-release
		finished.Store(true)
	})

	if finished.Load() {
		t.Error("job finished before release, want RunDeferred to return once scheduled")
	}
	close(release)

	if err := p.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if !finished.Load() {
		t.Error("job not finished after Shutdown, want queue drained")
	}
}

func TestPool_ShutdownDrainsQueue(t *testing.T) {
	p := newTestPool(2, 64, nil)
	p.Launch()

	var counter atomic.Int32
	for range 50 {
		p.RunDeferred(func() { counter.Add(1) })
	}

	if err := p.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if got := counter.Load(); got != 50 {
		t.Errorf("counter = %d, want 50", got)
	}
	if p.IsActive() {
		t.Error("IsActive() = true after Shutdown, want false")
	}
}

func TestPool_ShutdownContextExpires(t *testing.T) {
	p := newTestPool(1, 0, nil)
	p.Launch()

	release := make(chan struct{})
	defer close(release)
	p.RunDeferred(func() { <-release })

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := p.Shutdown(ctx); err != context.DeadlineExceeded {
		t.Errorf("Shutdown() error = %v, want %v", err, context.DeadlineExceeded)
	}
}

func TestPool_NestedDispatchDoesNotBlock(t *testing.T) {
	m := metrics.New()
	p := newTestPool(1, 0, m)
	p.Launch()

	innerRan := make(chan struct{})
	outerDone := make(chan struct{})
	InThread(p, false, func() {
		defer close(outerDone)
		// The only worker is busy running this job and the queue holds nothing.
		InThread(p, false, func() { close(innerRan) })
	})

	for name, ch := range map[string]chan struct{}{"outer": outerDone, "inner": innerRan} {
		select {
		case <-ch:
		case <-time.After(2 * time.Second):
			t.Fatalf("%s job did not finish; nested dispatch blocked the pool", name)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := p.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
}

func TestPool_ShutdownWaitsForOverflow(t *testing.T) {
	p := newTestPool(1, 0, nil)
	p.Launch()

	release := make(chan struct{})
	var finished atomic.Int32
	for range 3 {
		p.RunDeferred(func() {
			<-release
			finished.Add(1)
		})
	}
	close(release)

	if err := p.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if got := finished.Load(); got != 3 {
		t.Errorf("finished = %d, want 3 after Shutdown", got)
	}
}

func TestPool_ShutdownWithoutLaunch(t *testing.T) {
	p := newTestPool(1, 0, nil)
	if err := p.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() error = %v, want nil", err)
	}
}

func TestPool_RecoversPanics(t *testing.T) {
	m := metrics.New()
	p := newTestPool(1, 4, m)
	p.Launch()

	p.RunDeferred(func() { panic("boom") })
	ran := make(chan struct{})
	p.RunDeferred(func() { close(ran) })

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not survive a panicking job")
	}
	if err := p.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}

	families, err := m.Registry.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	counts := make(map[string]float64)
	for _, f := range families {
		if f.GetName() != "ballast_deferred_jobs_total" {
			continue
		}
		for _, metric := range f.GetMetric() {
			for _, lp := range metric.GetLabel() {
				if lp.GetName() == "result" {
					counts[lp.GetValue()] = metric.GetCounter().GetValue()
				}
			}
		}
	}
	if counts["panicked"] != 1 || counts["completed"] != 1 || counts["scheduled"] != 2 {
		t.Errorf("deferred job counts = %v, want panicked=1 completed=1 scheduled=2", counts)
	}
}

func TestPool_StartWhenActiveCallsOnStart(t *testing.T) {
	p := newTestPool(1, 0, nil)
	p.Launch()
	defer func() { _ = p.Shutdown(context.Background()) }()

	called := false
	p.Start(func() { called = true })

	if !called {
		t.Error("onStart not called on an active pool")
	}
	if !p.IsActive() {
		t.Error("IsActive() = false, want the running pool untouched")
	}
}
