package push

import (
	"bytes"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
)

// taskQueue runs posted tasks one at a time, in order, on a single
// goroutine. It is unbounded so that tasks may post further tasks without
// deadlocking.
type taskQueue struct {
	mu     sync.Mutex
	tasks  []func()
	closed bool
	wake   chan struct{}

	// owner is the id of the goroutine inside run, zero before it starts.
	owner atomic.Uint64
}

func newTaskQueue() *taskQueue {
	return &taskQueue{wake: make(chan struct{}, 1)}
}

// post enqueues task. It returns false once the queue is closed.
func (q *taskQueue) post(task func()) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.tasks = append(q.tasks, task)
	q.mu.Unlock()

	q.signal()
	return true
}

// close stops accepting tasks. Tasks already queued still run.
func (q *taskQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()

	q.signal()
}

func (q *taskQueue) isClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// onQueue reports whether the caller is running on the queue goroutine,
// i.e. inside a task.
func (q *taskQueue) onQueue() bool {
	owner := q.owner.Load()
	return owner != 0 && owner == goroutineID()
}

func (q *taskQueue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// run executes tasks until the queue is closed and drained, then closes done.
func (q *taskQueue) run(done chan<- struct{}) {
	defer close(done)
	q.owner.Store(goroutineID())

	for {
		q.mu.Lock()
		batch := q.tasks
		q.tasks = nil
		closed := q.closed
		q.mu.Unlock()

		for _, task := range batch {
			task()
		}

		if len(batch) > 0 {
			continue
		}
		if closed {
			return
		}
		<-q.wake
	}
}

// goroutineID reads the current goroutine's id from the first line of its
// stack trace, "goroutine 42 [running]:". It returns 0 if that fails.
func goroutineID() uint64 {
	var buf [64]byte
	line := buf[:runtime.Stack(buf[:], false)]
	line = bytes.TrimPrefix(line, []byte("goroutine "))
	if i := bytes.IndexByte(line, ' '); i >= 0 {
		line = line[:i]
	}
	id, err := strconv.ParseUint(string(line), 10, 64)
	if err != nil {
		return 0
	}
	return id
}
