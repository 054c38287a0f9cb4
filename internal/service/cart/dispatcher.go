package cart

import (
	"context"
	"errors"
	"hash/fnv"
	"sync"
	"time"

	"go.uber.org/zap"

	"storefront/internal/logging"
)

// ErrDispatcherClosed is returned by Submit after Shutdown.
var ErrDispatcherClosed = errors.New("cart dispatcher closed")

type task struct {
	key string
	run func(ctx context.Context)
}

// Dispatcher runs backend calls on a fixed set of workers. Tasks sharing a key always land on
// the same worker, so they run one at a time in submission order; other keys run in parallel.
type Dispatcher struct {
	queues  []chan task
	timeout time.Duration
	logger  *zap.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewDispatcher(size int, timeout time.Duration, logger *zap.Logger) *Dispatcher {
	if size <= 0 {
		size = 1
	}
	d := &Dispatcher{
		queues:  make([]chan task, size),
		timeout: timeout,
		logger:  logging.OrNop(logger),
	}
	for i := range d.queues {
		d.queues[i] = make(chan task, 1000)
		d.wg.Add(1)
		go d.worker(d.queues[i])
	}
	return d
}

func (d *Dispatcher) worker(tasks <-chan task) {
	defer d.wg.Done()
	for t := range tasks {
		d.runTask(t)
	}
}

func (d *Dispatcher) runTask(t task) {
	ctx := context.Background()
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("cart task panicked", zap.String("cart_id", t.key), zap.Any("panic", r))
		}
	}()
	t.run(ctx)
}

// Submit queues fn behind every task already submitted for key.
func (d *Dispatcher) Submit(key string, fn func(ctx context.Context)) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrDispatcherClosed
	}
	d.queues[d.slot(key)] <- task{key: key, run: fn}
	return nil
}

// Barrier blocks until every task submitted for key before the call has finished.
func (d *Dispatcher) Barrier(ctx context.Context, key string) error {
	done := make(chan struct{})
	if err := d.Submit(key, func(context.Context) { close(done) }); err != nil {
		return err
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown stops accepting tasks and waits for the queued ones to finish.
func (d *Dispatcher) Shutdown() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for _, q := range d.queues {
		close(q)
	}
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) slot(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(len(d.queues)))
}
