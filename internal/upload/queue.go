package upload

import (
	"sync"

	"github.com/alvmarrod/profile-weaver/internal/storage"
)

// Job is one batch waiting to be forwarded
type Job struct {
	Endpoint string
	Items    []storage.Profile
	Proxy    string
}

// Queue implements a thread-safe FIFO of upload jobs
type Queue struct {
	mu      sync.Mutex
	cond    *sync.Cond
	items   []Job
	stopped bool
}

// NewQueue creates an empty queue
func NewQueue() *Queue {
	q := &Queue{
		items: make([]Job, 0),
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push appends a job
// Returns false if the queue is stopped
func (q *Queue) Push(job Job) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	// Don't accept new entries if stopped
	if q.stopped {
		return false
	}

	q.items = append(q.items, job)

	// Signal waiting worker
	q.cond.Signal()

	return true
}

// Pop removes and returns the first job
// Blocks if queue is empty and not stopped
// Returns (job, true) if successful, (empty, false) if stopped and empty
func (q *Queue) Pop() (Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for {
		if len(q.items) > 0 {
			job := q.items[0]
			q.items = q.items[1:]
			return job, true
		}

		if q.stopped {
			return Job{}, false
		}

		q.cond.Wait()
	}
}

// Size returns the current number of queued jobs
func (q *Queue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Stop signals the queue to stop accepting new jobs
// A worker blocked on Pop() drains remaining jobs, then receives false
func (q *Queue) Stop() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.stopped = true
	q.cond.Broadcast()
}
