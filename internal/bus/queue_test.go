package bus

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFIFOOrder(t *testing.T) {
	q := NewQueue()

	var mu sync.Mutex
	var got []int
	for i := 0; i < 100; i++ {
		i := i
		if err := q.Publish(func() {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
		}); err != nil {
			t.Fatalf("publish %d: %v", i, err)
		}
	}
	q.Close()

	if len(got) != 100 {
		t.Fatalf("delivered %d of 100", len(got))
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("out of order at %d: %d", i, v)
		}
	}
}

func TestCloseDrainsPending(t *testing.T) {
	q := NewQueue()

	done := make(chan struct{})
	var count int
	for i := 0; i < 10; i++ {
		last := i == 9
		_ = q.Publish(func() {
			count++
			if last {
				close(done)
			}
		})
	}
	q.Close()

	select {
	case <-done:
	default:
		t.Fatal("close returned before the queue drained")
	}
	if count != 10 {
		t.Fatalf("ran %d of 10", count)
	}

	if err := q.Publish(func() {}); !errors.Is(err, ErrQueueClosed) {
		t.Fatalf("publish after close: %v", err)
	}

	// Idempotent.
	q.Close()
}

func TestPanicDoesNotKillWorker(t *testing.T) {
	q := NewQueue()
	defer q.Close()

	survived := make(chan struct{})
	_ = q.Publish(func() { panic("boom") })
	_ = q.Publish(func() { close(survived) })

	require.Eventually(t, func() bool {
		select {
		case <-survived:
			return true
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond, "worker died after a panicking task")
}

func TestPublishDoesNotBlock(t *testing.T) {
	q := NewQueue()
	defer q.Close()

	gate := make(chan struct{})
	_ = q.Publish(func() { <-gate })

	// The worker is parked on the first task; publishing thousands more
	// must still return immediately.
	start := time.Now()
	for i := 0; i < 10_000; i++ {
		if err := q.Publish(func() {}); err != nil {
			t.Fatalf("publish: %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("publish blocked for %s", elapsed)
	}
	if q.Len() == 0 {
		t.Fatal("expected a backlog while the worker is parked")
	}
	close(gate)
}
