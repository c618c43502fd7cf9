// Package scheduler provides the bounded worker pool that executes node
// compute procedures. One pool is shared by all graphs created under an
// execution environment.
package scheduler

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	imetrics "github.com/flowcore/flowcore/internal/infrastructure/metrics"
)

// Pool dispatches tasks across a fixed set of workers. Each worker owns a
// bounded queue; submission is round-robin and idle workers steal from their
// siblings for load balancing.
type Pool struct {
	queues     []chan func()
	numWorkers int
	counter    atomic.Int64
	ctx        context.Context
	cancel     context.CancelFunc
	workers    sync.WaitGroup
	// tasks counts queued plus in-flight work, including work submitted
	// by running tasks. Wait blocks on it.
	tasks sync.WaitGroup
}

// New creates a pool with the given worker count and per-worker queue
// capacity. Non-positive workers default to the CPU count; non-positive
// capacity defaults to 100.
func New(numWorkers, queueCapacity int) *Pool {
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
		if numWorkers < 1 {
			numWorkers = 1
		}
	}
	if queueCapacity <= 0 {
		queueCapacity = 100
	}

	queues := make([]chan func(), numWorkers)
	for i := range queues {
		queues[i] = make(chan func(), queueCapacity)
	}

	ctx, cancel := context.WithCancel(context.Background())

	p := &Pool{
		queues:     queues,
		numWorkers: numWorkers,
		ctx:        ctx,
		cancel:     cancel,
	}
	for i := 0; i < numWorkers; i++ {
		p.workers.Add(1)
		go p.worker(i)
	}
	imetrics.SetSchedulerWorkers(numWorkers)
	return p
}

// Submit queues a task for execution. Tasks may themselves submit further
// tasks; Wait covers the whole transitive set. Submission never blocks:
// tasks are often submitted from inside workers, and a worker blocked on a
// full queue cannot drain its own. When every queue is full the task runs
// on a fresh goroutine instead.
func (p *Pool) Submit(task func()) {
	p.tasks.Add(1)
	worker := int(p.counter.Add(1) % int64(p.numWorkers))
	for i := 0; i < p.numWorkers; i++ {
		select {
		case p.queues[(worker+i)%p.numWorkers] <- task:
			imetrics.AddSchedulerQueued(1)
			return
		default:
		}
	}
	go p.run(task)
}

// Wait blocks until the pool has no queued or in-flight tasks.
func (p *Pool) Wait() {
	p.tasks.Wait()
}

// Stop shuts the workers down and discards tasks still queued. Callers that
// need completion call Wait first.
func (p *Pool) Stop() {
	p.cancel()
	p.workers.Wait()
	for _, q := range p.queues {
		for {
			select {
			case <-q:
				p.tasks.Done()
				imetrics.AddSchedulerQueued(-1)
			default:
			}
			if len(q) == 0 {
				break
			}
		}
	}
}

// Workers returns the worker count.
func (p *Pool) Workers() int {
	return p.numWorkers
}

func (p *Pool) worker(id int) {
	defer p.workers.Done()

	steal := time.NewTicker(time.Millisecond)
	defer steal.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case task := <-p.queues[id]:
			imetrics.AddSchedulerQueued(-1)
			p.run(task)
		case <-steal.C:
			p.stealWork(id)
		}
	}
}

func (p *Pool) stealWork(workerID int) bool {
	for i := 0; i < p.numWorkers; i++ {
		if i == workerID {
			continue
		}
		select {
		case task := <-p.queues[i]:
			imetrics.AddSchedulerQueued(-1)
			p.run(task)
			return true
		default:
		}
	}
	return false
}

func (p *Pool) run(task func()) {
	defer p.tasks.Done()
	task()
}

// Stats reports a snapshot of queue depths.
type Stats struct {
	NumWorkers   int
	QueueLengths []int
	TotalQueued  int
}

// Snapshot returns current scheduler statistics.
func (p *Pool) Snapshot() Stats {
	lengths := make([]int, len(p.queues))
	total := 0
	for i, q := range p.queues {
		l := len(q)
		lengths[i] = l
		total += l
	}
	return Stats{
		NumWorkers:   p.numWorkers,
		QueueLengths: lengths,
		TotalQueued:  total,
	}
}
