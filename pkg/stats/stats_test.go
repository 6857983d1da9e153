package stats

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServerStatsCounters(t *testing.T) {
	t.Run("IncrementAndGet", func(t *testing.T) {
		s := NewServerStats("0.0.0.0:69", time.Minute)

		s.IncrementCounter(CounterSessionsSpawned, 1)
		s.IncrementCounter(CounterSessionsSpawned, 1)
		s.IncrementCounter(CounterBytesSent, 1024)

		assert.Equal(t, int64(2), s.GetCounter(CounterSessionsSpawned))
		assert.Equal(t, int64(1024), s.GetCounter(CounterBytesSent))
	})

	t.Run("MissingCounterIsZero", func(t *testing.T) {
		s := NewServerStats("", time.Minute)
		assert.Equal(t, int64(0), s.GetCounter("never_touched"))
	})

	t.Run("NegativeIncrement", func(t *testing.T) {
		s := NewServerStats("", time.Minute)
		s.IncrementCounter("c", 10)
		s.IncrementCounter("c", -3)
		assert.Equal(t, int64(7), s.GetCounter("c"))
	})

	t.Run("GetAndResetAll", func(t *testing.T) {
		s := NewServerStats("", time.Minute)
		s.IncrementCounter("a", 1)
		s.IncrementCounter("b", 2)

		snapshot := s.GetAndResetAllCounters()
		assert.Equal(t, map[string]int64{"a": 1, "b": 2}, snapshot)

		// registry starts fresh after the reset
		assert.Empty(t, s.GetAllCounters())
		assert.Equal(t, int64(0), s.GetCounter("a"))
	})

	t.Run("GetAndResetSingle", func(t *testing.T) {
		s := NewServerStats("", time.Minute)
		s.IncrementCounter("a", 5)

		assert.Equal(t, int64(5), s.GetAndResetCounter("a"))
		assert.Equal(t, int64(0), s.GetCounter("a"))
	})

	t.Run("SnapshotIsACopy", func(t *testing.T) {
		s := NewServerStats("", time.Minute)
		s.IncrementCounter("a", 1)

		snapshot := s.GetAllCounters()
		snapshot["a"] = 999

		assert.Equal(t, int64(1), s.GetCounter("a"))
	})
}

func TestServerStatsConcurrency(t *testing.T) {
	s := NewServerStats("", time.Minute)

	const workers = 16
	const perWorker = 1000

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				s.IncrementCounter("hits", 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(workers*perWorker), s.GetCounter("hits"))
}

func TestSessionStatsDuration(t *testing.T) {
	s := NewSessionStats(nil, nil, "boot.img")
	require.False(t, s.StartTime.IsZero())

	s.EndTime = s.StartTime.Add(250 * time.Millisecond)
	assert.Equal(t, 250*time.Millisecond, s.Duration())
}
