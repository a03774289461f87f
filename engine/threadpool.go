// Package engine implements the candlestick aggregation pipeline: the
// fixed-size worker pool, the indicator trait and registry, the
// windowed candlestick generator, and the concrete indicator
// implementations dispatched by the registry.
package engine

import (
	"runtime"
	"sync"

	"marketforge/logger"
)

// ThreadPool is a fixed-size pool of worker goroutines draining a FIFO
// task queue. There is no result handle: tasks return nothing. Shutdown
// closes the task channel, which wakes every worker; Submit after
// Shutdown is a documented no-op rather than a panic or a block.
type ThreadPool struct {
	tasks    chan func()
	wg       sync.WaitGroup
	mu       sync.Mutex
	stopped  bool
	log      *logger.Entry
	queueCap int
}

// NewThreadPool constructs a pool with numWorkers goroutines (defaulting
// to runtime.NumCPU() when numWorkers <= 0) and a task queue of the given
// capacity (0 means unbuffered — submit blocks until a worker is free).
func NewThreadPool(numWorkers int, queueCapacity int, log *logger.Log) *ThreadPool {
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	p := &ThreadPool{
		tasks:    make(chan func(), queueCapacity),
		queueCap: queueCapacity,
		log:      log.WithComponent("threadpool"),
	}
	p.wg.Add(numWorkers)
	for i := 0; i < numWorkers; i++ {
		go p.workerLoop()
	}
	return p
}

func (p *ThreadPool) workerLoop() {
	defer p.wg.Done()
	for task := range p.tasks {
		p.runTask(task)
	}
}

// runTask executes a single task with a recover so a panicking indicator
// or dispatch callback cannot bring down the whole pool — the Go
// analogue of the original design notes' single top-level crash handler.
func (p *ThreadPool) runTask(task func()) {
	defer func() {
		if r := recover(); r != nil {
			p.log.WithFields(logger.Fields{"panic": r}).Error("thread pool task panicked")
		}
	}()
	task()
}

// Submit enqueues a task for execution by some worker, in FIFO order.
// No ordering is guaranteed between tasks executed by different workers.
// Submitting after Shutdown is a silent no-op.
func (p *ThreadPool) Submit(task func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return
	}
	p.tasks <- task
}

// Shutdown stops accepting new tasks, drains the queue, and waits for
// every worker to exit.
func (p *ThreadPool) Shutdown() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.tasks)
	p.mu.Unlock()
	p.wg.Wait()
}
