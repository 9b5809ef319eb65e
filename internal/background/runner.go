// Copyright 2026 The Adminkit Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package background runs units of work detached from any request, each under
// an explicitly supplied tenant identity and a supervised task handle.
package background

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	"github.com/adminkit/adminkit/internal/id"
	"github.com/adminkit/adminkit/internal/observability/logger"
	"github.com/adminkit/adminkit/internal/tenantctx"
)

// ErrShuttingDown is returned by Go after Shutdown has begun.
var ErrShuttingDown = errors.New("background runner is shutting down")

// Func is a unit of background work. It must honor ctx cancellation.
type Func func(ctx context.Context) error

// Task is a supervised handle to one background unit of work.
type Task struct {
	ID   string
	Name string

	cancel context.CancelFunc
	done   chan struct{}

	mu  sync.Mutex
	err error
}

// Done is closed when the task has finished.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Err returns the task's failure, nil while running or on success.
func (t *Task) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Cancel requests cooperative cancellation of the task.
func (t *Task) Cancel() {
	t.cancel()
}

func (t *Task) finish(err error) {
	t.mu.Lock()
	t.err = err
	t.mu.Unlock()
	close(t.done)
}

// Runner launches and tracks background tasks. Every task gets its own
// context derived from the runner's base context, with the caller's tenant
// identity installed for the duration of the task and torn down with it.
type Runner struct {
	baseCtx context.Context

	mu       sync.Mutex
	tasks    map[string]*Task
	stopping bool
	wg       sync.WaitGroup
}

// NewRunner creates a runner whose tasks are children of baseCtx.
func NewRunner(baseCtx context.Context) *Runner {
	return &Runner{
		baseCtx: baseCtx,
		tasks:   make(map[string]*Task),
	}
}

// Go launches fn under tc as the ambient tenant identity. The returned Task
// can be awaited, cancelled, and enumerated until the runner is shut down.
// Failures (including panics) are logged and recorded on the handle; they
// never propagate to the host process.
func (r *Runner) Go(name string, tc tenantctx.TenantContext, fn Func) (*Task, error) {
	r.mu.Lock()
	if r.stopping {
		r.mu.Unlock()
		return nil, ErrShuttingDown
	}

	ctx, cancel := context.WithCancel(r.baseCtx)
	ctx = tenantctx.With(ctx, tc)

	task := &Task{
		ID:     id.NewUUIDv7(),
		Name:   name,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	r.tasks[task.ID] = task
	r.wg.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.wg.Done()
		defer cancel()
		defer func() {
			r.mu.Lock()
			delete(r.tasks, task.ID)
			r.mu.Unlock()
		}()

		err := r.run(ctx, task, fn)
		if err != nil {
			slog.ErrorContext(ctx, "background task failed",
				logger.Component("background"),
				logger.String("task_id", task.ID),
				logger.String("task_name", task.Name),
				logger.OrgID(tc.OrgID),
				logger.UserID(tc.UserID),
				logger.Error(err),
			)
		}
		task.finish(err)
	}()

	return task, nil
}

// run invokes fn, converting a panic into an error so a misbehaving unit of
// work cannot take the host down.
func (r *Runner) run(ctx context.Context, task *Task, fn Func) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic in background task %s: %v", task.Name, rec)
			slog.ErrorContext(ctx, "background task panicked",
				logger.Component("background"),
				logger.String("task_name", task.Name),
				logger.String("stack", string(debug.Stack())),
			)
		}
	}()
	return fn(ctx)
}

// Tasks returns a snapshot of the currently live task handles.
func (r *Runner) Tasks() []*Task {
	r.mu.Lock()
	defer r.mu.Unlock()

	tasks := make([]*Task, 0, len(r.tasks))
	for _, t := range r.tasks {
		tasks = append(tasks, t)
	}
	return tasks
}

// Shutdown cancels all live tasks and waits for them to finish, bounded by
// ctx. After Shutdown no new task can be launched.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.stopping = true
	for _, t := range r.tasks {
		t.cancel()
	}
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("background runner shutdown: %w", ctx.Err())
	}
}
