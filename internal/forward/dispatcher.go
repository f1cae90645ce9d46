// Package forward delivers transform results to caller-supplied URLs in
// the background.
package forward

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgallion1/formflat/internal/metrics"
	"github.com/go-resty/resty/v2"
	"github.com/segmentio/ksuid"
	"go.uber.org/zap"
)

var (
	ErrQueueFull = errors.New("forward queue is full")
	ErrStopped   = errors.New("forward dispatcher stopped")
)

// Headers set on every forwarded request.
const (
	HeaderDeliveryID = "X-Delivery-ID"
	HeaderRequestID  = "X-Request-ID"
)

// Job is one result waiting to be forwarded.
type Job struct {
	ID        string
	URL       string
	Body      []byte
	RequestID string
}

type Config struct {
	Workers     int
	QueueSize   int
	Timeout     time.Duration
	Retries     int
	BaseBackoff time.Duration
}

// Dispatcher owns the forward queue and its workers.
type Dispatcher struct {
	cfg     Config
	client  *resty.Client
	queue   chan Job
	metrics *metrics.Metrics
	log     *zap.Logger

	mu     sync.RWMutex
	closed bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewDispatcher(cfg Config, m *metrics.Metrics, log *zap.Logger) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{
		cfg:     cfg,
		client:  resty.New().SetHeader("User-Agent", "formflat-forwarder"),
		queue:   make(chan Job, cfg.QueueSize),
		metrics: m,
		log:     log,
	}
}

// Start launches worker goroutines.
func (d *Dispatcher) Start(ctx context.Context) {
	workerCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	for range d.cfg.Workers {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			for job := range d.queue {
				d.process(workerCtx, job)
			}
		}()
	}
}

// Stop refuses new jobs and waits for queued ones to finish. If ctx ends
// first, in-flight deliveries are cancelled and ctx's error is returned.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		if d.cancel != nil {
			d.cancel()
		}
		<-done
		return ctx.Err()
	}
	if d.cancel != nil {
		d.cancel()
	}
	return nil
}

// Submit queues a job without blocking and returns its delivery ID.
func (d *Dispatcher) Submit(job Job) (string, error) {
	if job.ID == "" {
		job.ID = ksuid.New().String()
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return "", ErrStopped
	}
	select {
	case d.queue <- job:
		return job.ID, nil
	default:
		d.metrics.Forward(metrics.OutcomeDropped)
		return "", fmt.Errorf("%w (%d)", ErrQueueFull, d.cfg.QueueSize)
	}
}

// QueueDepth returns current queue depth.
func (d *Dispatcher) QueueDepth() int {
	return len(d.queue)
}

func (d *Dispatcher) process(ctx context.Context, job Job) {
	log := d.log.With(
		zap.String("delivery_id", job.ID),
		zap.String("request_id", job.RequestID),
		zap.String("url", job.URL),
	)
	start := time.Now()
	status, err := d.Deliver(ctx, job)
	if err != nil {
		d.metrics.Forward(metrics.OutcomeFailed)
		log.Warn("forward failed",
			zap.Int("status", status),
			zap.Error(err),
			zap.Duration("elapsed", time.Since(start)))
		return
	}
	d.metrics.Forward(metrics.OutcomeOK)
	log.Info("forwarded result",
		zap.Int("status", status),
		zap.Int("bytes", len(job.Body)),
		zap.Duration("elapsed", time.Since(start)))
}
