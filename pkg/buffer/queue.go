package buffer

import (
	"fmt"
	"sync"
	"time"
)

// Queue accumulates items pushed by a producer and hands them to a drain
// callback on a fixed timer. Enqueue is O(1), never blocks on processing,
// and is safe to call while a drain is mid-flight: the drain detaches the
// whole buffer atomically and replaces it with an empty one, so a producer
// never observes a half-drained buffer and no item is lost.
type Queue[T any] struct {
	mu       sync.Mutex
	items    []T
	interval time.Duration
	drainFn  func([]T) error
	stop     chan struct{}
	wg       sync.WaitGroup
	lastErr  error
}

// New creates a queue draining at the given interval. The drain callback is
// invoked with each detached batch on a single background goroutine, so
// batches are processed serially in tick order.
func New[T any](interval time.Duration, drainFn func([]T) error) *Queue[T] {
	q := &Queue[T]{
		interval: interval,
		drainFn:  drainFn,
		stop:     make(chan struct{}),
	}
	q.wg.Add(1)
	go q.loop()
	return q
}

// Enqueue appends an item. It performs no validation and never triggers a
// drain by itself; only the timer (or Close) drains.
func (q *Queue[T]) Enqueue(item T) {
	q.mu.Lock()
	q.items = append(q.items, item)
	q.mu.Unlock()
}

// Drain detaches the current buffer contents and runs the drain callback
// immediately. An empty buffer is a no-op.
func (q *Queue[T]) Drain() error {
	q.mu.Lock()
	batch := q.detach()
	q.mu.Unlock()
	return q.runDrain(batch)
}

// Close stops the timer and drains whatever is still buffered.
func (q *Queue[T]) Close() error {
	close(q.stop)
	q.wg.Wait()
	return q.Drain()
}

// Len returns the number of currently buffered items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// LastError returns the most recent error recorded by the background timer.
func (q *Queue[T]) LastError() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.lastErr
}

func (q *Queue[T]) loop() {
	defer q.wg.Done()
	ticker := time.NewTicker(q.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := q.Drain(); err != nil {
				q.mu.Lock()
				q.lastErr = err
				q.mu.Unlock()
			}
		case <-q.stop:
			return
		}
	}
}

func (q *Queue[T]) detach() []T {
	if len(q.items) == 0 {
		return nil
	}
	batch := q.items
	q.items = nil
	return batch
}

// runDrain guards the callback: a panic while processing a batch must not
// kill the timer loop, it surfaces as an error instead.
func (q *Queue[T]) runDrain(batch []T) (err error) {
	if len(batch) == 0 {
		return nil
	}
	if q.drainFn == nil {
		return fmt.Errorf("buffer: no drain function configured")
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("buffer: drain panic: %v", r)
		}
	}()
	return q.drainFn(batch)
}
