package athina

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// dispatcher delivers payloads on a fixed pool of background workers fed by
// a bounded queue. Submitting never blocks: when the queue is full the
// payload is dropped.
type dispatcher struct {
	deliverer Deliverer
	jobs      chan *DeliveryRequest
	timeout   time.Duration

	// mu guards closed and the send side of jobs.
	mu     sync.RWMutex
	closed bool

	ctx     context.Context
	cancel  context.CancelFunc
	group   *errgroup.Group
	pending atomic.Int64

	logger  StructuredLogger
	metrics Metrics
	onError func(*AsyncError)
}

func newDispatcher(cfg *Config, d Deliverer, onError func(*AsyncError)) *dispatcher {
	ctx, cancel := context.WithCancel(context.Background())
	retries := time.Duration(cfg.MaxRetries)
	return &dispatcher{
		deliverer: d,
		jobs:      make(chan *DeliveryRequest, cfg.QueueSize),
		timeout:   cfg.Timeout*(retries+1) + cfg.RetryDelay*retries,
		ctx:       ctx,
		cancel:    cancel,
		group:     &errgroup.Group{},
		logger:    cfg.Logger,
		metrics:   cfg.Metrics,
		onError:   onError,
	}
}

// start launches n workers.
func (d *dispatcher) start(n int) {
	for i := 0; i < n; i++ {
		d.group.Go(d.worker)
	}
}

// submit queues req for delivery and returns immediately.
func (d *dispatcher) submit(req *DeliveryRequest) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return ErrClientClosed
	}

	d.pending.Add(1)
	select {
	case d.jobs <- req:
		if d.metrics != nil {
			d.metrics.SetGauge(MetricQueueDepth, float64(len(d.jobs)))
		}
		return nil
	default:
		d.pending.Add(-1)
		if d.metrics != nil {
			d.metrics.IncrementCounter(MetricDispatchDropped, 1)
		}
		return ErrQueueFull
	}
}

func (d *dispatcher) worker() error {
	for req := range d.jobs {
		d.deliver(req)
	}
	return nil
}

func (d *dispatcher) deliver(req *DeliveryRequest) {
	defer d.pending.Add(-1)

	start := time.Now()
	ctx, cancel := context.WithTimeout(d.ctx, d.timeout)
	defer cancel()

	err := d.safeDeliver(ctx, req)

	if d.metrics != nil {
		d.metrics.RecordDuration(MetricDeliveryDuration, time.Since(start))
		d.metrics.SetGauge(MetricQueueDepth, float64(len(d.jobs)))
	}
	if err != nil {
		if d.metrics != nil {
			d.metrics.IncrementCounter(MetricDeliveriesFailed, 1)
		}
		asyncErr := NewAsyncError(AsyncOpDeliver, err)
		asyncErr.Path = req.Path
		d.onError(asyncErr)
		return
	}
	if d.metrics != nil {
		d.metrics.IncrementCounter(MetricDeliveriesSent, 1)
	}
	d.logger.Debug("athina: delivered", "path", req.Path, "duration", time.Since(start))
}

// safeDeliver turns a panicking Deliverer into an error.
func (d *dispatcher) safeDeliver(ctx context.Context, req *DeliveryRequest) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("athina: deliverer panicked: %v", r)
		}
	}()
	return d.deliverer.Deliver(ctx, req)
}

// pendingCount returns the number of queued or in-flight deliveries.
func (d *dispatcher) pendingCount() int64 {
	return d.pending.Load()
}

// flush waits until every submitted payload has been attempted.
func (d *dispatcher) flush(ctx context.Context) error {
	if d.pending.Load() == 0 {
		return nil
	}
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if d.pending.Load() == 0 {
				return nil
			}
		}
	}
}

// close stops intake. Queued payloads are still delivered.
func (d *dispatcher) close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.closed {
		d.closed = true
		close(d.jobs)
	}
}

// wait blocks until every worker has exited. If ctx ends first, in-flight
// deliveries are cancelled and ErrShutdownTimeout is returned once the
// workers have stopped.
func (d *dispatcher) wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.group.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.cancel()
		return nil
	case <-ctx.Done():
		d.cancel()
		<-done
		return ErrShutdownTimeout
	}
}
