package inflight

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracker_TryAcquireRelease(t *testing.T) {
	tr := NewTracker()

	require.True(t, tr.TryAcquire("TOKEN_A"))
	assert.False(t, tr.TryAcquire("TOKEN_A"), "second acquire for same address must fail")
	assert.True(t, tr.Contains("TOKEN_A"))
	assert.True(t, tr.TryAcquire("TOKEN_B"), "different address is independent")
	assert.Equal(t, 2, tr.Len())

	tr.Release("TOKEN_A")
	assert.False(t, tr.Contains("TOKEN_A"))
	assert.True(t, tr.TryAcquire("TOKEN_A"), "released address can be re-acquired")
}

func TestTracker_ReleaseUnknownIsNoop(t *testing.T) {
	tr := NewTracker()
	tr.Release("NEVER_SEEN")
	assert.Equal(t, 0, tr.Len())
}

func TestTracker_ConcurrentAcquireSingleWinner(t *testing.T) {
	const goroutines = 64
	tr := NewTracker()

	var wins atomic.Int64
	var start, done sync.WaitGroup
	start.Add(1)
	done.Add(goroutines)

	for i := 0; i < goroutines; i++ {
		go func() {
			defer done.Done()
			start.Wait()
			if tr.TryAcquire("HOT_TOKEN") {
				wins.Add(1)
			}
		}()
	}
	start.Done()
	done.Wait()

	assert.Equal(t, int64(1), wins.Load(), "exactly one goroutine may win the entry")
	assert.Equal(t, 1, tr.Len())
}

func TestTracker_Snapshot(t *testing.T) {
	tr := NewTracker()
	require.True(t, tr.TryAcquire("A"))
	require.True(t, tr.TryAcquire("B"))

	snap := tr.Snapshot()
	assert.ElementsMatch(t, []string{"A", "B"}, snap)

	// Mutating the snapshot must not affect the tracker.
	snap[0] = "Z"
	assert.True(t, tr.Contains("A"))
}
