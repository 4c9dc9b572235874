package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
)

// Task is a unit of deferred work
type Task func(ctx context.Context) error

// TaskQueue accepts work that must run after the current call returns
type TaskQueue interface {
	Enqueue(name string, task Task)
}

type namedTask struct {
	name string
	run  Task
}

// DeferredQueue holds tasks until the owner drains it
type DeferredQueue struct {
	mu    sync.Mutex
	tasks []namedTask
}

// NewDeferredQueue creates an empty queue
func NewDeferredQueue() *DeferredQueue {
	return &DeferredQueue{}
}

// Enqueue appends a task
func (q *DeferredQueue) Enqueue(name string, task Task) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tasks = append(q.tasks, namedTask{name: name, run: task})
}

// Len returns the number of pending tasks
func (q *DeferredQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

// Drain runs pending tasks in order on the calling goroutine, including
// tasks enqueued while draining. Every task runs; failures are joined.
func (q *DeferredQueue) Drain(ctx context.Context) error {
	log := logging.GetFromContext(ctx)
	var errs []error
	for {
		q.mu.Lock()
		batch := q.tasks
		q.tasks = nil
		q.mu.Unlock()

		if len(batch) == 0 {
			return errors.Join(errs...)
		}
		for _, t := range batch {
			if err := ctx.Err(); err != nil {
				return errors.Join(append(errs, err)...)
			}
			if err := t.run(ctx); err != nil {
				log.Warn("deferred task failed", "task", t.name, "err", err.Error())
				errs = append(errs, fmt.Errorf("task %s: %w", t.name, err))
			}
		}
	}
}
