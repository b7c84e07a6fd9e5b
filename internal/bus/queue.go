// Package bus provides the in-memory event queue that decouples state
// mutation from callback delivery. Tasks drain in FIFO order on a single
// worker goroutine so observers never see events out of order.
package bus

import (
	"errors"
	"sync"

	"github.com/yanun0323/logs"
)

var ErrQueueClosed = errors.New("event queue closed")

// Task is the unit of work passed through the queue.
type Task func()

// Queue is an unbounded FIFO task queue drained by one worker goroutine.
// Publish never blocks the caller.
type Queue struct {
	mu      sync.Mutex
	cond    *sync.Cond
	pending []Task
	closed  bool

	wg sync.WaitGroup
}

// NewQueue allocates a queue and starts its worker.
func NewQueue() *Queue {
	q := &Queue{}
	q.cond = sync.NewCond(&q.mu)
	q.wg.Add(1)
	go q.run()
	return q
}

// Publish appends a task to the queue. It returns ErrQueueClosed after
// Close; the task is dropped in that case.
func (q *Queue) Publish(task Task) error {
	if task == nil {
		return nil
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}
	q.pending = append(q.pending, task)
	q.cond.Signal()
	return nil
}

// Len reports the number of tasks waiting to run.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Close stops intake, drains the remaining tasks, and waits for the
// worker to exit. Safe to call more than once.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		q.wg.Wait()
		return
	}
	q.closed = true
	q.cond.Signal()
	q.mu.Unlock()

	q.wg.Wait()
}

func (q *Queue) run() {
	defer q.wg.Done()
	for {
		q.mu.Lock()
		for len(q.pending) == 0 && !q.closed {
			q.cond.Wait()
		}
		if len(q.pending) == 0 && q.closed {
			q.mu.Unlock()
			return
		}
		task := q.pending[0]
		q.pending = q.pending[1:]
		q.mu.Unlock()

		invoke(task)
	}
}

// invoke runs one task; a panicking task must not kill the worker.
func invoke(task Task) {
	defer func() {
		if r := recover(); r != nil {
			logs.Errorf("event handler panicked, err: %+v", r)
		}
	}()
	task()
}
