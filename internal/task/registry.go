// ABOUTME: Registry tracking at most one in-flight research task per user.
// ABOUTME: Runs engine invocations in their own goroutines and delivers results on a channel.

package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/2389/line-gateway/internal/engine"
)

// Status is the lifecycle position of a research task.
type Status string

const (
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// ErrTaskActive is returned by Submit while the user already has a task
// in flight. A second query is rejected rather than silently overwriting
// the first slot.
var ErrTaskActive = errors.New("research task already in flight for user")

// Task is the tracked record of one research query.
type Task struct {
	ID        string
	UserID    string
	Query     string
	Status    Status
	StartedAt time.Time
	EndedAt   time.Time
	Error     string
}

// Result is the terminal outcome of an engine invocation, delivered on
// the channel returned by Submit. Cancelled results carry no answer; the
// engine ran to completion but the user had already cancelled.
type Result struct {
	Answer    string
	Err       error
	Cancelled bool
}

// Registry holds one task slot per user id. All slot mutations happen
// under one mutex; slots are small and mutations are cheap.
type Registry struct {
	mu     sync.Mutex
	slots  map[string]*Task
	engine engine.Engine
	logger *slog.Logger
	ttl    time.Duration
	done   chan struct{}
	closed bool
}

// NewRegistry creates a task registry backed by the given engine. If
// sweepInterval is positive, terminal slots older than ttl are evicted
// on that interval until Close is called.
func NewRegistry(eng engine.Engine, ttl, sweepInterval time.Duration, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{
		slots:  make(map[string]*Task),
		engine: eng,
		logger: logger.With("component", "task"),
		ttl:    ttl,
		done:   make(chan struct{}),
	}
	if sweepInterval > 0 {
		go r.sweepLoop(sweepInterval)
	}
	return r
}

// Submit registers a processing task for userID and starts the engine
// invocation in its own goroutine, so the caller can acknowledge the
// platform without waiting. The returned channel delivers exactly one
// Result and is then closed.
//
// Returns ErrTaskActive if the user already has a processing task.
func (r *Registry) Submit(ctx context.Context, userID, query string, cfg engine.ResearchConfig) (string, <-chan Result, error) {
	r.mu.Lock()
	if existing, ok := r.slots[userID]; ok && existing.Status == StatusProcessing {
		r.mu.Unlock()
		return "", nil, ErrTaskActive
	}
	t := &Task{
		ID:        uuid.New().String(),
		UserID:    userID,
		Query:     query,
		Status:    StatusProcessing,
		StartedAt: time.Now(),
	}
	r.slots[userID] = t
	r.mu.Unlock()

	results := make(chan Result, 1)

	// The invocation must outlive the webhook request that triggered it;
	// detach from the request's cancellation but keep its values.
	invokeCtx := context.WithoutCancel(ctx)

	go r.run(invokeCtx, userID, t.ID, query, cfg, results)

	return t.ID, results, nil
}

// run executes the engine call and records the terminal status. Engine
// panics are contained here so a misbehaving engine cannot take down the
// router.
func (r *Registry) run(ctx context.Context, userID, taskID, query string, cfg engine.ResearchConfig, results chan<- Result) {
	defer close(results)

	var answer string
	err := func() (err error) {
		defer func() {
			if rec := recover(); rec != nil {
				err = fmt.Errorf("engine panic: %v", rec)
			}
		}()
		answer, err = r.engine.Invoke(ctx, query, cfg)
		return err
	}()

	if err != nil {
		r.fail(userID, taskID, err)
		results <- Result{Err: err}
		return
	}

	if !r.complete(userID, taskID) {
		// Cancelled (or superseded) while the engine was running. The
		// answer is dropped; the user asked us to stop.
		r.logger.Info("dropping result for cancelled task", "user_id", userID, "task_id", taskID)
		results <- Result{Cancelled: true}
		return
	}
	results <- Result{Answer: answer}
}

// complete marks the task completed. Returns false if the slot no longer
// holds this task in processing state.
func (r *Registry) complete(userID, taskID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.slots[userID]
	if !ok || t.ID != taskID || t.Status != StatusProcessing {
		return false
	}
	t.Status = StatusCompleted
	t.EndedAt = time.Now()
	return true
}

// fail marks the task failed with the error detail.
func (r *Registry) fail(userID, taskID string, cause error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.slots[userID]
	if !ok || t.ID != taskID || t.Status != StatusProcessing {
		return
	}
	t.Status = StatusFailed
	t.EndedAt = time.Now()
	t.Error = cause.Error()
}

// Cancel marks the user's task cancelled. Returns true only if the task
// was in processing state. Cancellation is bookkeeping only: an engine
// call already in flight keeps running, but its result is dropped.
func (r *Registry) Cancel(userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.slots[userID]
	if !ok || t.Status != StatusProcessing {
		return false
	}
	t.Status = StatusCancelled
	t.EndedAt = time.Now()
	return true
}

// Status returns a copy of the user's last known task record. The second
// return value is false if the user has no tracked task.
func (r *Registry) Status(userID string) (Task, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.slots[userID]
	if !ok {
		return Task{}, false
	}
	return *t, true
}

// SweepExpired removes terminal slots whose tasks ended longer than ttl
// ago and returns the number removed. Processing slots are never swept.
func (r *Registry) SweepExpired(ttl time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	removed := 0
	for userID, t := range r.slots {
		if t.Status == StatusProcessing {
			continue
		}
		if now.Sub(t.EndedAt) > ttl {
			delete(r.slots, userID)
			removed++
		}
	}
	return removed
}

// Close stops the background sweeper. Safe to call multiple times.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.closed {
		close(r.done)
		r.closed = true
	}
}

// sweepLoop periodically evicts expired terminal slots until Close.
func (r *Registry) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := r.SweepExpired(r.ttl); n > 0 {
				r.logger.Info("swept expired task slots", "count", n)
			}
		case <-r.done:
			return
		}
	}
}
