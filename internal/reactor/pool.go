package reactor

import (
	"context"
	"log/slog"
	"sync"

	"ballast-go/internal/metrics"
)

// Pool is a Scheduler backed by a fixed set of worker goroutines reading
// from a buffered queue. Stopping a pool drains the queue before Start returns.
type Pool struct {
	workers   int
	queueSize int
	logger    *slog.Logger
	metrics   *metrics.Metrics

	mu     sync.RWMutex
	active bool
	queue  chan func()
	stopCh chan struct{}
	done   chan struct{}
	wg     sync.WaitGroup
}

var _ Scheduler = (*Pool)(nil)

// NewPool creates a stopped Pool. Non-positive sizes fall back to one worker
// and an unbuffered queue. The metrics parameter is optional; pass nil to
// disable job metrics.
func NewPool(workers, queueSize int, logger *slog.Logger, m *metrics.Metrics) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	return &Pool{
		workers:   workers,
		queueSize: queueSize,
		logger:    logger.With("component", "reactor"),
		metrics:   m,
	}
}

// IsActive reports whether the pool is accepting deferred work.
func (p *Pool) IsActive() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.active
}

// RunDeferred enqueues fn for a worker and returns once it is queued. When
// the queue is full fn gets its own goroutine, so scheduling never waits on
// jobs already in flight. On a stopped pool fn runs synchronously.
func (p *Pool) RunDeferred(fn func()) {
	p.mu.RLock()
	if !p.active {
		p.mu.RUnlock()
		p.observe("inline")
		fn()
		return
	}
	select {
	case p.queue <- fn:
		p.mu.RUnlock()
		p.observe("scheduled")
	default:
		// Start cannot reach wg.Wait while the read lock is held.
		p.wg.Add(1)
		p.mu.RUnlock()
		p.observe("overflow")
		go func() {
			defer p.wg.Done()
			p.run(fn)
		}()
	}
}

// Start runs the pool until Stop is called. onStart is called on the calling
// goroutine once the workers are running; if the pool is already active,
// onStart is simply called and Start returns.
func (p *Pool) Start(onStart func()) {
	p.mu.Lock()
	if p.active {
		p.mu.Unlock()
		if onStart != nil {
			onStart()
		}
		return
	}
	p.active = true
	queue := make(chan func(), p.queueSize)
	stopCh := make(chan struct{})
	p.queue = queue
	p.stopCh = stopCh
	p.mu.Unlock()

	for range p.workers {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for fn := range queue {
				p.run(fn)
			}
		}()
	}
	p.logger.Debug("reactor started", "workers", p.workers, "queue_size", p.queueSize)

	if onStart != nil {
		onStart()
	}
	<-stopCh

	p.mu.Lock()
	p.active = false
	close(queue)
	p.mu.Unlock()

	p.wg.Wait()
	p.logger.Debug("reactor stopped")
}

// Stop signals a running pool to stop. It does not wait; Start returns once
// queued work has drained.
func (p *Pool) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopCh == nil {
		return
	}
	close(p.stopCh)
	p.stopCh = nil
}

// Launch starts the pool on a background goroutine and returns once it is active.
func (p *Pool) Launch() {
	ready := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		p.Start(func() { close(ready) })
	}()
	<-ready

	p.mu.Lock()
	p.done = done
	p.mu.Unlock()
}

// Shutdown stops a launched pool and waits for queued work to finish or for
// ctx to end.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.RLock()
	done := p.done
	p.mu.RUnlock()

	p.Stop()
	if done == nil {
		return nil
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pool) run(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("deferred job panicked", "panic", r)
			p.observe("panicked")
		}
	}()
	fn()
	p.observe("completed")
}

func (p *Pool) observe(result string) {
	if p.metrics != nil {
		p.metrics.DeferredJobs.WithLabelValues(result).Inc()
	}
}
