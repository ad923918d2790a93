// ============================================================================
// stepflow Worker Pool - Concurrent Task Executor
// ============================================================================
//
// Package: internal/worker
// File: worker_pool.go
// Function: Manages the lifecycle of Worker goroutines and task dispatch
//
// Architecture:
//   ┌─────────────┐
//   │ Controller  │ --Submit()--> taskCh
//   └─────────────┘
//         ↑
//   ReceiveResult()
//         ↑
//   ┌─────────────┐
//   │   Pool      │
//   │  ┌────────┐ │
//   │  │Worker 1│←── taskCh
//   │  │Worker 2│←── taskCh   ──→ resultCh
//   │  └────────┘ │
//   └─────────────┘
//
// Lifecycle:
//   1. NewPool()         - create channels
//   2. Start(n, exec)    - launch n Worker goroutines
//      StartContext(ctx, n, exec) ties running tasks to ctx
//   3. Submit(task)      - enqueue a task
//   4. ReceiveResult(ctx)- read one result
//   5. Stop()            - cancel running tasks, close taskCh, wait for
//                          workers, close resultCh
//
// ============================================================================

package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

var log = slog.Default()

var (
	// ErrPoolClosed is returned once Stop has been called.
	ErrPoolClosed = errors.New("worker pool is closed")
	// ErrPoolNotStarted is returned when submitting before Start.
	ErrPoolNotStarted = errors.New("worker pool not started")
	// ErrPoolStarted is returned by a second call to Start.
	ErrPoolStarted = errors.New("worker pool already started")
	// ErrNoExecutor is returned when Start is given a nil Executor.
	ErrNoExecutor = errors.New("worker pool needs an executor")
)

// Pool manages a fixed set of concurrent Workers.
type Pool struct {
	workers  []*Worker      // started workers
	taskCh   chan Task      // tasks waiting for a worker
	resultCh chan Result    // finished results
	stopCh   chan struct{}  // closed by Stop
	cancel   context.CancelFunc
	wg       sync.WaitGroup // tracks running workers
	started  bool
	stopped  bool
	mu       sync.Mutex   // guards started and stopped
	sendMu   sync.RWMutex // Submit sends under RLock, Stop closes taskCh under Lock
}

// NewPool creates a pool whose task and result channels hold bufferSize items.
func NewPool(bufferSize int) *Pool {
	return &Pool{
		workers:  make([]*Worker, 0),
		taskCh:   make(chan Task, bufferSize),
		resultCh: make(chan Result, bufferSize),
		stopCh:   make(chan struct{}),
	}
}

// Start launches workerCount workers that all run execute.
func (p *Pool) Start(workerCount int, execute Executor) error {
	return p.StartContext(context.Background(), workerCount, execute)
}

// StartContext is Start with every task context derived from ctx, so ending
// ctx cancels the tasks that are running.
func (p *Pool) StartContext(ctx context.Context, workerCount int, execute Executor) error {
	if execute == nil {
		return ErrNoExecutor
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return ErrPoolStarted
	}

	ctx, p.cancel = context.WithCancel(ctx)
	for i := 0; i < workerCount; i++ {
		w := newWorker(ctx, i, execute, p.taskCh, p.resultCh, p.stopCh)
		p.workers = append(p.workers, w)

		p.wg.Add(1)
		go func(w *Worker) {
			defer p.wg.Done()
			w.Run()
		}(w)
	}

	p.started = true
	log.Debug("worker pool started", "workers", workerCount)
	return nil
}

// Submit hands a task to the pool. It blocks while the task buffer is full
// and returns ErrPoolClosed if the pool stops meanwhile.
func (p *Pool) Submit(task Task) error {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return ErrPoolNotStarted
	}
	if p.stopped {
		p.mu.Unlock()
		return ErrPoolClosed
	}
	p.mu.Unlock()

	// taskCh is only closed under the write lock, so sending under the read
	// lock never hits a closed channel.
	p.sendMu.RLock()
	defer p.sendMu.RUnlock()

	select {
	case <-p.stopCh:
		return ErrPoolClosed
	default:
	}

	select {
	case p.taskCh <- task:
		return nil
	case <-p.stopCh:
		return ErrPoolClosed
	}
}

// ReceiveResult waits for the next result, the pool to stop, or ctx to end.
func (p *Pool) ReceiveResult(ctx context.Context) (Result, error) {
	select {
	case result, ok := <-p.resultCh:
		if !ok {
			return Result{}, ErrPoolClosed
		}
		return result, nil
	case <-p.stopCh:
		return Result{}, ErrPoolClosed
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Stop closes the pool, cancels the context of in-flight tasks and waits
// for their executors to return.
// Calling Stop more than once, or before Start, is a no-op.
func (p *Pool) Stop() {
	p.mu.Lock()
	if !p.started || p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	p.mu.Unlock()

	close(p.stopCh)
	p.cancel()

	p.sendMu.Lock()
	close(p.taskCh)
	p.sendMu.Unlock()

	p.wg.Wait()
	close(p.resultCh)
	log.Debug("worker pool stopped")
}

// GetWorkerCount returns the number of started workers.
func (p *Pool) GetWorkerCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.workers)
}

// IsStarted reports whether Start has succeeded.
func (p *Pool) IsStarted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.started
}
