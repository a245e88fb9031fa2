// Package async runs fire-and-forget side paths off the request goroutine.
package async

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"
)

// Task is a unit of background work. Its error is logged, never returned to the submitter.
type Task func(ctx context.Context) error

// Executor dispatches tasks without blocking the caller.
type Executor interface {
	// Submit queues the task; it returns false when the task was dropped.
	Submit(name string, task Task) bool
}

type job struct {
	name string
	task Task
}

// Pool is a bounded worker pool. A full queue drops new tasks with a warning.
type Pool struct {
	logger logrus.FieldLogger
	queue  chan job
	wg     conc.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
	mu     sync.RWMutex
	closed bool
}

// NewPool starts workers goroutines reading from a queue of queueSize.
func NewPool(logger logrus.FieldLogger, workers, queueSize int) *Pool {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		logger: logger.WithField("component", "executor"),
		queue:  make(chan job, queueSize),
		ctx:    ctx,
		cancel: cancel,
	}
	for i := 0; i < workers; i++ {
		p.wg.Go(p.work)
	}
	return p
}

func (p *Pool) Submit(name string, task Task) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		p.logger.WithField("task", name).Warn("executor closed, dropping task")
		return false
	}
	select {
	case p.queue <- job{name: name, task: task}:
		return true
	default:
		p.logger.WithField("task", name).Warn("executor queue full, dropping task")
		return false
	}
}

func (p *Pool) work() {
	for j := range p.queue {
		p.run(j)
	}
}

func (p *Pool) run(j job) {
	var catcher panics.Catcher
	var err error
	catcher.Try(func() { err = j.task(p.ctx) })
	entry := p.logger.WithField("task", j.name)
	if recovered := catcher.Recovered(); recovered != nil {
		entry.WithError(recovered.AsError()).Error("async task panicked")
		return
	}
	if err != nil {
		entry.WithError(err).Error("async task failed")
	}
}

// Close stops accepting tasks, drains the queue and waits for the workers.
func (p *Pool) Close() {
	p.once.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.queue)
		p.mu.Unlock()
		p.wg.Wait()
		p.cancel()
	})
}

// Inline runs tasks synchronously on the caller goroutine. Failures are logged like Pool does.
type Inline struct {
	Logger logrus.FieldLogger
}

func (i Inline) Submit(name string, task Task) bool {
	if err := task(context.Background()); err != nil && i.Logger != nil {
		i.Logger.WithField("task", name).WithError(err).Error("async task failed")
	}
	return true
}
