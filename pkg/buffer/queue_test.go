package buffer

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestQueueDrainsOnInterval(t *testing.T) {
	var (
		mu      sync.Mutex
		drained [][]int
	)
	q := New[int](50*time.Millisecond, func(items []int) error {
		mu.Lock()
		defer mu.Unlock()
		cp := append([]int(nil), items...)
		drained = append(drained, cp)
		return nil
	})
	defer q.Close()

	q.Enqueue(1)
	q.Enqueue(2)
	q.Enqueue(3)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(drained) == 1 && len(drained[0]) == 3
	}, time.Second, 20*time.Millisecond)
}

func TestQueueEnqueueNeverTriggersDrain(t *testing.T) {
	var calls int
	q := New[int](time.Hour, func(items []int) error {
		calls++
		return nil
	})
	defer q.Close()

	for i := 0; i < 10_000; i++ {
		q.Enqueue(i)
	}
	require.Equal(t, 0, calls)
	require.Equal(t, 10_000, q.Len())
}

func TestQueueCloseFlushesRemaining(t *testing.T) {
	var (
		mu    sync.Mutex
		total int
	)
	q := New[int](time.Hour, func(items []int) error {
		mu.Lock()
		defer mu.Unlock()
		total += len(items)
		return nil
	})
	q.Enqueue(1)
	q.Enqueue(2)
	require.NoError(t, q.Close())
	require.Equal(t, 2, total)
}

func TestQueueEnqueueDuringDrainLosesNothing(t *testing.T) {
	var (
		mu      sync.Mutex
		seen    int
		started = make(chan struct{})
		release = make(chan struct{})
		once    sync.Once
	)
	q := New[int](time.Hour, func(items []int) error {
		once.Do(func() {
			close(started)
			<-release
		})
		mu.Lock()
		defer mu.Unlock()
		seen += len(items)
		return nil
	})

	q.Enqueue(1)
	go func() {
		_ = q.Drain()
	}()
	<-started

	// Producer appends while the first drain is mid-flight.
	q.Enqueue(2)
	q.Enqueue(3)
	close(release)

	require.NoError(t, q.Close())
	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 3, seen)
}

func TestQueueDrainPanicDoesNotKillLoop(t *testing.T) {
	var (
		mu    sync.Mutex
		calls int
	)
	q := New[int](30*time.Millisecond, func(items []int) error {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		if n == 1 {
			panic("boom")
		}
		return nil
	})
	defer q.Close()

	q.Enqueue(1)
	require.Eventually(t, func() bool {
		return q.LastError() != nil
	}, time.Second, 10*time.Millisecond)
	require.Contains(t, q.LastError().Error(), "drain panic")

	// The ticker keeps firing after the panic.
	q.Enqueue(2)
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return calls >= 2
	}, time.Second, 10*time.Millisecond)
}

func TestQueueRecordsDrainError(t *testing.T) {
	sentinel := errors.New("flush failed")
	q := New[int](30*time.Millisecond, func(items []int) error {
		return sentinel
	})
	defer q.Close()

	q.Enqueue(1)
	require.Eventually(t, func() bool {
		return errors.Is(q.LastError(), sentinel)
	}, time.Second, 10*time.Millisecond)
}
