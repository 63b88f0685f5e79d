package jobqueue

import (
	"context"
	"errors"
	"sync"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/PixelMarket/internal/pkg/billing"
)

var (
	// ErrQueueFull is returned when the in-process buffer has no room left
	ErrQueueFull = errors.New("job queue is full")
	// ErrQueueStopped is returned when dispatching to a stopped queue
	ErrQueueStopped = errors.New("job queue is not running")
)

// LocalQueue processes logs on a fixed pool of in-process workers. Jobs
// are lost on restart; the manager's recovery worker picks their logs up
// again from the database.
type LocalQueue struct {
	processor billing.Processor
	workers   int
	jobs      chan uint
	wg        sync.WaitGroup
	mu        sync.RWMutex
	running   bool
	busy      int64
	busyMu    sync.Mutex
}

// NewLocalQueue creates an in-process queue with room for buffer pending jobs
func NewLocalQueue(workers, buffer int, processor billing.Processor) *LocalQueue {
	if workers <= 0 {
		workers = 3
	}
	if buffer <= 0 {
		buffer = workers * 64
	}
	return &LocalQueue{
		processor: processor,
		workers:   workers,
		jobs:      make(chan uint, buffer),
	}
}

// Mode reports the backend name shown on the status endpoint
func (q *LocalQueue) Mode() string {
	return billing.QueueLocal
}

// Start starts the workers
func (q *LocalQueue) Start() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.running {
		return
	}
	q.jobs = make(chan uint, cap(q.jobs))
	q.running = true
	log.Infof("[JobQueue] Starting %d local workers", q.workers)

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(i, q.jobs)
	}
}

// Stop drains the buffered jobs and waits for the workers to finish
func (q *LocalQueue) Stop() {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return
	}
	q.running = false
	close(q.jobs)
	q.mu.Unlock()

	log.Info("[JobQueue] Stopping local workers...")
	q.wg.Wait()
	log.Info("[JobQueue] All local workers stopped")
}

// Dispatch queues a received log without blocking
func (q *LocalQueue) Dispatch(_ context.Context, logID uint) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if !q.running {
		return ErrQueueStopped
	}
	select {
	case q.jobs <- logID:
		return nil
	default:
		return ErrQueueFull
	}
}

// Depth returns the number of buffered and in-flight jobs
func (q *LocalQueue) Depth(_ context.Context) (int64, int64, error) {
	q.mu.RLock()
	pending := int64(len(q.jobs))
	q.mu.RUnlock()

	q.busyMu.Lock()
	defer q.busyMu.Unlock()
	return pending, q.busy, nil
}

func (q *LocalQueue) worker(id int, jobs <-chan uint) {
	defer q.wg.Done()
	for logID := range jobs {
		q.setBusy(1)
		outcome := q.processor.Process(context.Background(), logID)
		q.setBusy(-1)
		log.Debugf("[JobQueue] Local worker %d finished log %d as %s", id, logID, outcome.Status)
	}
	log.Debugf("[JobQueue] Local worker %d stopping", id)
}

func (q *LocalQueue) setBusy(delta int64) {
	q.busyMu.Lock()
	q.busy += delta
	q.busyMu.Unlock()
}
