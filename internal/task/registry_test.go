// ABOUTME: Tests for the research task registry.
// ABOUTME: Covers submit/complete/fail lifecycles, cancellation, active rejection, and sweeps.

package task

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/line-gateway/internal/engine"
)

// blockingEngine lets tests control when an invocation finishes.
type blockingEngine struct {
	mu      sync.Mutex
	release chan struct{}
	answer  string
	err     error
	panics  bool
}

func newBlockingEngine() *blockingEngine {
	return &blockingEngine{release: make(chan struct{})}
}

func (e *blockingEngine) Invoke(ctx context.Context, query string, cfg engine.ResearchConfig) (string, error) {
	<-e.release
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.panics {
		panic("engine exploded")
	}
	return e.answer, e.err
}

func (e *blockingEngine) finish(answer string, err error) {
	e.mu.Lock()
	e.answer = answer
	e.err = err
	e.mu.Unlock()
	close(e.release)
}

func newTestRegistry(t *testing.T, eng engine.Engine) *Registry {
	t.Helper()
	r := NewRegistry(eng, 24*time.Hour, 0, nil)
	t.Cleanup(r.Close)
	return r
}

func TestRegistry_Submit_Completes(t *testing.T) {
	eng := newBlockingEngine()
	r := newTestRegistry(t, eng)

	taskID, results, err := r.Submit(context.Background(), "U1", "quantum computing", engine.ResearchConfig{})
	require.NoError(t, err)
	require.NotEmpty(t, taskID)

	// task is processing while the engine runs
	view, ok := r.Status("U1")
	require.True(t, ok)
	assert.Equal(t, StatusProcessing, view.Status)
	assert.Equal(t, "quantum computing", view.Query)
	assert.True(t, view.EndedAt.IsZero())

	eng.finish("the answer", nil)

	res := <-results
	require.NoError(t, res.Err)
	assert.Equal(t, "the answer", res.Answer)

	view, ok = r.Status("U1")
	require.True(t, ok)
	assert.Equal(t, StatusCompleted, view.Status)
	assert.False(t, view.EndedAt.IsZero())
}

func TestRegistry_Submit_Fails(t *testing.T) {
	eng := newBlockingEngine()
	r := newTestRegistry(t, eng)

	_, results, err := r.Submit(context.Background(), "U1", "q", engine.ResearchConfig{})
	require.NoError(t, err)

	eng.finish("", errors.New("model overloaded"))

	res := <-results
	require.Error(t, res.Err)

	view, ok := r.Status("U1")
	require.True(t, ok)
	assert.Equal(t, StatusFailed, view.Status)
	assert.Contains(t, view.Error, "model overloaded")
}

func TestRegistry_Submit_RejectsWhileActive(t *testing.T) {
	eng := newBlockingEngine()
	r := newTestRegistry(t, eng)

	_, _, err := r.Submit(context.Background(), "U1", "first", engine.ResearchConfig{})
	require.NoError(t, err)

	_, _, err = r.Submit(context.Background(), "U1", "second", engine.ResearchConfig{})
	assert.ErrorIs(t, err, ErrTaskActive)

	// a different user is unaffected
	_, _, err = r.Submit(context.Background(), "U2", "other", engine.ResearchConfig{})
	assert.NoError(t, err)

	eng.finish("done", nil)
}

func TestRegistry_Submit_AllowedAfterTerminal(t *testing.T) {
	eng := newBlockingEngine()
	r := newTestRegistry(t, eng)

	_, results, err := r.Submit(context.Background(), "U1", "first", engine.ResearchConfig{})
	require.NoError(t, err)
	eng.finish("done", nil)
	<-results

	eng2 := newBlockingEngine()
	r.engine = eng2
	_, _, err = r.Submit(context.Background(), "U1", "second", engine.ResearchConfig{})
	assert.NoError(t, err)
	eng2.finish("done again", nil)
}

func TestRegistry_Cancel(t *testing.T) {
	eng := newBlockingEngine()
	r := newTestRegistry(t, eng)

	// nothing to cancel yet
	assert.False(t, r.Cancel("U1"))

	_, results, err := r.Submit(context.Background(), "U1", "q", engine.ResearchConfig{})
	require.NoError(t, err)

	// cancel succeeds exactly once while processing
	assert.True(t, r.Cancel("U1"))
	assert.False(t, r.Cancel("U1"))

	view, ok := r.Status("U1")
	require.True(t, ok)
	assert.Equal(t, StatusCancelled, view.Status)

	// engine finishes later; result is dropped, status stays cancelled
	eng.finish("too late", nil)
	res := <-results
	assert.True(t, res.Cancelled)
	assert.Empty(t, res.Answer)

	view, _ = r.Status("U1")
	assert.Equal(t, StatusCancelled, view.Status)
}

func TestRegistry_EnginePanicBecomesFailure(t *testing.T) {
	eng := newBlockingEngine()
	eng.panics = true
	r := newTestRegistry(t, eng)

	_, results, err := r.Submit(context.Background(), "U1", "q", engine.ResearchConfig{})
	require.NoError(t, err)

	close(eng.release)

	res := <-results
	require.Error(t, res.Err)
	assert.Contains(t, res.Err.Error(), "engine panic")

	view, ok := r.Status("U1")
	require.True(t, ok)
	assert.Equal(t, StatusFailed, view.Status)
}

func TestRegistry_Status_NotFound(t *testing.T) {
	r := newTestRegistry(t, newBlockingEngine())

	_, ok := r.Status("unknown")
	assert.False(t, ok)
}

func TestRegistry_SweepExpired(t *testing.T) {
	eng := newBlockingEngine()
	r := newTestRegistry(t, eng)

	_, results, err := r.Submit(context.Background(), "done-user", "q", engine.ResearchConfig{})
	require.NoError(t, err)
	eng.finish("answer", nil)
	<-results

	// backdate the terminal slot past the TTL
	r.mu.Lock()
	r.slots["done-user"].EndedAt = time.Now().Add(-25 * time.Hour)
	r.mu.Unlock()

	// a processing slot must survive the sweep regardless of age
	eng2 := newBlockingEngine()
	r.engine = eng2
	_, _, err = r.Submit(context.Background(), "busy-user", "q", engine.ResearchConfig{})
	require.NoError(t, err)
	r.mu.Lock()
	r.slots["busy-user"].StartedAt = time.Now().Add(-48 * time.Hour)
	r.mu.Unlock()

	removed := r.SweepExpired(24 * time.Hour)
	assert.Equal(t, 1, removed)

	_, ok := r.Status("done-user")
	assert.False(t, ok)
	_, ok = r.Status("busy-user")
	assert.True(t, ok)

	eng2.finish("done", nil)
}
