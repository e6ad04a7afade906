package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	defaultWorkers   = 4
	defaultQueueSize = 256
)

// Pool runs a fixed set of goroutines over a bounded queue of work items.
// Submit never blocks: when the queue is full the item is dropped and the
// caller told, so a slow processor sheds load instead of backing up the
// request path.
type Pool[T any] struct {
	workers   int
	queueSize int
	processor func(context.Context, T) error

	queue chan T
	wg    sync.WaitGroup

	mu      sync.Mutex
	started bool
	stopped bool

	submitted atomic.Int64
	processed atomic.Int64
	failed    atomic.Int64
	dropped   atomic.Int64

	metrics *poolMetrics
}

type poolMetrics struct {
	depth     prometheus.Gauge
	submitted prometheus.Counter
	processed prometheus.Counter
	failed    prometheus.Counter
	dropped   prometheus.Counter
	duration  *prometheus.HistogramVec
}

// Option configures a Pool.
type Option[T any] func(*Pool[T])

// WithWorkers sets the number of worker goroutines.
func WithWorkers[T any](n int) Option[T] {
	return func(p *Pool[T]) {
		if n > 0 {
			p.workers = n
		}
	}
}

// WithQueueSize bounds the number of items waiting for a worker.
func WithQueueSize[T any](n int) Option[T] {
	return func(p *Pool[T]) {
		if n > 0 {
			p.queueSize = n
		}
	}
}

// WithRegisterer enables Prometheus metrics for the pool, registered with
// reg under the given name prefix.
func WithRegisterer[T any](reg prometheus.Registerer, prefix string) Option[T] {
	return func(p *Pool[T]) {
		m := &poolMetrics{
			depth: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: prefix + "_queue_depth",
				Help: "Work items waiting for a worker",
			}),
			submitted: prometheus.NewCounter(prometheus.CounterOpts{
				Name: prefix + "_submitted_total",
				Help: "Work items accepted into the queue",
			}),
			processed: prometheus.NewCounter(prometheus.CounterOpts{
				Name: prefix + "_processed_total",
				Help: "Work items handed to the processor",
			}),
			failed: prometheus.NewCounter(prometheus.CounterOpts{
				Name: prefix + "_failed_total",
				Help: "Work items whose processor returned an error",
			}),
			dropped: prometheus.NewCounter(prometheus.CounterOpts{
				Name: prefix + "_dropped_total",
				Help: "Work items rejected because the queue was full",
			}),
			duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Name:    prefix + "_processing_duration_seconds",
				Help:    "Time spent processing one work item",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
			}, []string{"status"}),
		}
		reg.MustRegister(m.depth, m.submitted, m.processed, m.failed, m.dropped, m.duration)
		p.metrics = m
	}
}

// NewPool creates a pool that runs processor on each submitted item.
// Panics on a nil processor; everything else has a default.
func NewPool[T any](processor func(context.Context, T) error, opts ...Option[T]) *Pool[T] {
	if processor == nil {
		panic(ErrNilProcessor)
	}
	p := &Pool[T]{
		workers:   defaultWorkers,
		queueSize: defaultQueueSize,
		processor: processor,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.queue = make(chan T, p.queueSize)
	return p
}

// Start launches the workers. They run until Stop closes the queue or ctx
// is cancelled.
func (p *Pool[T]) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return ErrAlreadyStarted
	}
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.run(ctx)
	}
	p.started = true
	return nil
}

// Submit queues one work item without blocking. A full queue drops the
// item and returns ErrQueueFull.
func (p *Pool[T]) Submit(item T) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return ErrNotStarted
	}
	if p.stopped {
		return ErrStopped
	}

	select {
	case p.queue <- item:
		p.submitted.Add(1)
		if p.metrics != nil {
			p.metrics.submitted.Inc()
			p.metrics.depth.Set(float64(len(p.queue)))
		}
		return nil
	default:
		p.dropped.Add(1)
		if p.metrics != nil {
			p.metrics.dropped.Inc()
		}
		return ErrQueueFull
	}
}

// Stop closes the queue and waits up to timeout for in-flight work to
// drain. Stopping an unstarted or already-stopped pool is a no-op.
func (p *Pool[T]) Stop(timeout time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started || p.stopped {
		return nil
	}
	p.stopped = true
	close(p.queue)

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-done:
		return nil
	case <-timer.C:
		return ErrStopTimeout
	}
}

// Stats is a snapshot of the pool counters.
type Stats struct {
	Workers    int   `json:"workers"`
	QueueSize  int   `json:"queue_size"`
	QueueDepth int   `json:"queue_depth"`
	Submitted  int64 `json:"submitted"`
	Processed  int64 `json:"processed"`
	Failed     int64 `json:"failed"`
	Dropped    int64 `json:"dropped"`
}

// Stats returns the current counters. Safe to call at any time.
func (p *Pool[T]) Stats() Stats {
	return Stats{
		Workers:    p.workers,
		QueueSize:  p.queueSize,
		QueueDepth: len(p.queue),
		Submitted:  p.submitted.Load(),
		Processed:  p.processed.Load(),
		Failed:     p.failed.Load(),
		Dropped:    p.dropped.Load(),
	}
}

func (p *Pool[T]) run(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case item, ok := <-p.queue:
			if !ok {
				return
			}
			start := time.Now()
			err := p.processor(ctx, item)

			p.processed.Add(1)
			if err != nil {
				p.failed.Add(1)
			}
			if p.metrics != nil {
				p.metrics.processed.Inc()
				p.metrics.depth.Set(float64(len(p.queue)))
				status := "success"
				if err != nil {
					p.metrics.failed.Inc()
					status = "error"
				}
				p.metrics.duration.WithLabelValues(status).Observe(time.Since(start).Seconds())
			}
		}
	}
}
