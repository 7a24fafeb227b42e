package wp

import (
	"context"
	"errors"
	"sync"

	"github.com/segmentio/fasthash/fnv1a"
)

var ErrPoolStopped = errors.New("worker pool stopped")

// Pool runs tasks on a fixed set of workers. Tasks submitted with the same
// key always land on the same worker, so they run in submission order.
type Pool struct {
	maxWorkers int
	taskQueues []chan func()
	wg         sync.WaitGroup
	mu         sync.RWMutex
	stopped    bool
}

func NewPool(maxWorkers int, queueBuffer int) *Pool {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	if queueBuffer < 1 {
		queueBuffer = 1
	}

	p := &Pool{
		maxWorkers: maxWorkers,
		taskQueues: make([]chan func(), maxWorkers),
	}

	for i := 0; i < maxWorkers; i++ {
		p.taskQueues[i] = make(chan func(), queueBuffer)
		p.wg.Add(1)
		go p.startWorker(p.taskQueues[i])
	}

	return p
}

func (p *Pool) startWorker(queue chan func()) {
	defer p.wg.Done()
	for task := range queue {
		task()
	}
}

// Size returns the number of workers
func (p *Pool) Size() int { return p.maxWorkers }

// Submit queues task on the worker owning uid. It blocks while that worker's
// queue is full, until ctx is done.
func (p *Pool) Submit(ctx context.Context, uid string, task func()) error {
	if task == nil {
		return nil
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return ErrPoolStopped
	}

	idx := fnv1a.HashString64(uid) % uint64(p.maxWorkers)
	select {
	case p.taskQueues[idx] <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop rejects new tasks, runs the queued ones and waits for the workers
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	for _, q := range p.taskQueues {
		close(q)
	}
	p.mu.Unlock()

	p.wg.Wait()
}
