package batch

import "sync"

// Task is one source URL of one batch waiting for a worker
type Task struct {
	Index int
	URL   string
	run   *run
}

// Queue is a thread-safe FIFO of tasks shared by all batches
type Queue struct {
	mu      sync.Mutex
	cond    *sync.Cond
	items   []Task
	stopped bool
}

// NewQueue creates an empty queue
func NewQueue() *Queue {
	q := &Queue{
		items: make([]Task, 0),
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push appends a task. Returns false if the queue is stopped.
func (q *Queue) Push(task Task) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.stopped {
		return false
	}

	q.items = append(q.items, task)
	q.cond.Signal()

	return true
}

// Pop removes and returns the first task, blocking while the queue is empty.
// Returns false once the queue is stopped and drained.
func (q *Queue) Pop() (Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for {
		if len(q.items) > 0 {
			task := q.items[0]
			q.items = q.items[1:]
			return task, true
		}

		if q.stopped {
			return Task{}, false
		}

		q.cond.Wait()
	}
}

// Size returns the number of queued tasks
func (q *Queue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Stop rejects further pushes; workers drain what is left, then Pop returns false
func (q *Queue) Stop() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.stopped = true
	q.cond.Broadcast()
}

// Stopped reports whether Stop was called
func (q *Queue) Stopped() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.stopped
}
