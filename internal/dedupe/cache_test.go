// ABOUTME: Tests for the webhook delivery dedupe cache.
// ABOUTME: Validates TTL expiration, size-bounded eviction, cleanup, and atomicity.

package dedupe

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCheckAndMark_NewEventID(t *testing.T) {
	cache := New(5*time.Minute, 100)
	defer cache.Close()

	assert.False(t, cache.CheckAndMark("evt-1"), "first delivery should not be a duplicate")
	assert.True(t, cache.CheckAndMark("evt-1"), "redelivery should be a duplicate")
}

func TestCheckAndMark_DistinctEventIDs(t *testing.T) {
	cache := New(5*time.Minute, 100)
	defer cache.Close()

	assert.False(t, cache.CheckAndMark("evt-1"))
	assert.False(t, cache.CheckAndMark("evt-2"))
	assert.False(t, cache.CheckAndMark("evt-3"))
	assert.Equal(t, 3, cache.Len())
}

func TestCheckAndMark_Expired(t *testing.T) {
	cache := New(10*time.Millisecond, 100)
	defer cache.Close()

	assert.False(t, cache.CheckAndMark("evt-1"))
	assert.True(t, cache.CheckAndMark("evt-1"))

	time.Sleep(20 * time.Millisecond)

	// After the TTL a redelivery is treated as new again.
	assert.False(t, cache.CheckAndMark("evt-1"))
}

func TestEviction_OldestFirst(t *testing.T) {
	cache := New(5*time.Minute, 3)
	defer cache.Close()

	cache.CheckAndMark("evt-1")
	cache.CheckAndMark("evt-2")
	cache.CheckAndMark("evt-3")
	cache.CheckAndMark("evt-4")

	assert.Equal(t, 3, cache.Len())
	assert.False(t, cache.CheckAndMark("evt-1"), "oldest id should have been evicted")
	assert.True(t, cache.CheckAndMark("evt-3"))
	assert.True(t, cache.CheckAndMark("evt-4"))
}

func TestRunCleanup_RemovesExpired(t *testing.T) {
	cache := New(10*time.Millisecond, 100)
	defer cache.Close()

	cache.CheckAndMark("evt-1")
	cache.CheckAndMark("evt-2")
	time.Sleep(20 * time.Millisecond)

	cache.runCleanup()

	assert.Equal(t, 0, cache.Len(), "cleanup should remove expired entries")
}

func TestCheckAndMark_Atomic(t *testing.T) {
	cache := New(5*time.Minute, 100)
	defer cache.Close()

	const numGoroutines = 100

	var successCount int32
	var mu sync.Mutex
	var wg sync.WaitGroup
	wg.Add(numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		go func() {
			defer wg.Done()
			if !cache.CheckAndMark("contested-event") {
				mu.Lock()
				successCount++
				mu.Unlock()
			}
		}()
	}

	wg.Wait()

	assert.Equal(t, int32(1), successCount,
		"exactly one goroutine should observe the event id as new")
}

func TestConcurrentDistinctIDs(t *testing.T) {
	cache := New(5*time.Minute, 1000)
	defer cache.Close()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				cache.CheckAndMark(fmt.Sprintf("evt-%d-%d", id, j))
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 500, cache.Len())
}

func TestClose_Idempotent(t *testing.T) {
	cache := New(5*time.Minute, 100)

	cache.CheckAndMark("evt-1")
	cache.Close()
	cache.Close()
}
