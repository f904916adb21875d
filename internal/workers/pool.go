// Package workers provides a bounded pool for parallel per-symbol work.
package workers

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// Task represents a unit of work to be processed.
type Task interface {
	Execute() error
}

// TaskFunc is a function that can be used as a Task.
type TaskFunc func() error

func (f TaskFunc) Execute() error { return f() }

// Pool manages a fixed set of worker goroutines draining a task queue.
// Per-symbol backtest pipelines are independent, so a request fans its
// symbols out onto the pool and joins on its own WaitGroup.
type Pool struct {
	logger *zap.Logger
	config PoolConfig

	taskQueue chan Task
	wg        sync.WaitGroup

	running atomic.Bool
	cancel  context.CancelFunc

	tasksCompleted atomic.Int64
	tasksFailed    atomic.Int64
}

// PoolConfig configures the worker pool.
type PoolConfig struct {
	Name       string
	NumWorkers int
	QueueSize  int
}

// DefaultPoolConfig returns sensible defaults for CPU-bound simulation work.
func DefaultPoolConfig(name string) PoolConfig {
	return PoolConfig{
		Name:       name,
		NumWorkers: runtime.NumCPU(),
		QueueSize:  256,
	}
}

// NewPool creates a pool; call Start before submitting tasks.
func NewPool(logger *zap.Logger, config PoolConfig) *Pool {
	if config.NumWorkers < 1 {
		config.NumWorkers = 1
	}
	if config.QueueSize < 1 {
		config.QueueSize = 1
	}
	return &Pool{
		logger:    logger,
		config:    config,
		taskQueue: make(chan Task, config.QueueSize),
	}
}

// Start launches the worker goroutines.
func (p *Pool) Start(ctx context.Context) {
	if !p.running.CompareAndSwap(false, true) {
		return
	}

	ctx, p.cancel = context.WithCancel(ctx)

	for i := 0; i < p.config.NumWorkers; i++ {
		p.wg.Add(1)
		go p.work(ctx, i)
	}

	p.logger.Info("Worker pool started",
		zap.String("pool", p.config.Name),
		zap.Int("workers", p.config.NumWorkers),
	)
}

// Submit enqueues a task, blocking while the queue is full. It fails when
// the pool is not running.
func (p *Pool) Submit(task Task) error {
	if !p.running.Load() {
		return fmt.Errorf("pool %s not running", p.config.Name)
	}
	p.taskQueue <- task
	return nil
}

// Stop drains outstanding tasks and stops the workers.
func (p *Pool) Stop() {
	if !p.running.CompareAndSwap(true, false) {
		return
	}
	close(p.taskQueue)
	p.wg.Wait()
	if p.cancel != nil {
		p.cancel()
	}

	p.logger.Info("Worker pool stopped",
		zap.String("pool", p.config.Name),
		zap.Int64("completed", p.tasksCompleted.Load()),
		zap.Int64("failed", p.tasksFailed.Load()),
	)
}

// Stats returns completed and failed task counts.
func (p *Pool) Stats() (completed, failed int64) {
	return p.tasksCompleted.Load(), p.tasksFailed.Load()
}

func (p *Pool) work(ctx context.Context, id int) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case task, ok := <-p.taskQueue:
			if !ok {
				return
			}
			p.run(task, id)
		}
	}
}

func (p *Pool) run(task Task, id int) {
	defer func() {
		if r := recover(); r != nil {
			p.tasksFailed.Add(1)
			p.logger.Error("Worker panic recovered",
				zap.String("pool", p.config.Name),
				zap.Int("worker", id),
				zap.Any("panic", r),
			)
		}
	}()

	if err := task.Execute(); err != nil {
		p.tasksFailed.Add(1)
		p.logger.Debug("Task failed",
			zap.String("pool", p.config.Name),
			zap.Error(err),
		)
		return
	}
	p.tasksCompleted.Add(1)
}
