package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var epoch = time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC)

func TestFakeClock_FrozenUntilAdvanced(t *testing.T) {
	clock := NewFakeClock(epoch)

	assert.Equal(t, epoch, clock.Now())
	assert.Equal(t, epoch, clock.Now())

	clock.Advance(time.Minute)
	assert.Equal(t, epoch.Add(time.Minute), clock.Now())

	clock.Set(epoch)
	assert.Equal(t, epoch, clock.Now())
}

func TestSteppingClock_DistinctStamps(t *testing.T) {
	clock := NewSteppingClock(epoch, time.Second)

	assert.Equal(t, epoch, clock.Now())
	assert.Equal(t, epoch.Add(time.Second), clock.Now())
	assert.Equal(t, epoch.Add(2*time.Second), clock.Now())
}

func TestSteppingClock_ConcurrentAccess(t *testing.T) {
	clock := NewSteppingClock(epoch, time.Millisecond)

	var wg sync.WaitGroup
	var mu sync.Mutex
	seen := make(map[time.Time]bool)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ts := clock.Now()
			mu.Lock()
			seen[ts] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, seen, 50, "every call got a distinct stamp")
}
