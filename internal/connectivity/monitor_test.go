package connectivity

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReport_ReconnectOncePerTransition(t *testing.T) {
	m := New()
	var reconnects, changes atomic.Int32
	m.OnReconnect(func() { reconnects.Add(1) })
	m.OnChange(func(bool) { changes.Add(1) })

	assert.False(t, m.Online())

	m.Report(true)
	m.Report(true)
	m.Report(true)
	assert.Equal(t, int32(1), reconnects.Load())

	m.Report(false)
	m.Report(false)
	m.Report(true)
	assert.Equal(t, int32(2), reconnects.Load())
	assert.Equal(t, int32(3), changes.Load())
}

func TestWithInitialState(t *testing.T) {
	m := New(WithInitialState(true))
	var reconnects atomic.Int32
	m.OnReconnect(func() { reconnects.Add(1) })

	m.Report(true)
	assert.True(t, m.Online())
	assert.Equal(t, int32(0), reconnects.Load(), "already online, no transition")
}

func TestProbeNow(t *testing.T) {
	var fail atomic.Bool
	m := New(WithProber(ProberFunc(func(context.Context) error {
		if fail.Load() {
			return errors.New("unreachable")
		}
		return nil
	})))

	assert.True(t, m.ProbeNow(context.Background()))
	fail.Store(true)
	assert.False(t, m.ProbeNow(context.Background()))
}

func TestStart_ProbesPeriodically(t *testing.T) {
	var probes atomic.Int32
	var reconnects atomic.Int32
	m := New(
		WithInterval(20*time.Millisecond),
		WithProber(ProberFunc(func(context.Context) error {
			probes.Add(1)
			return nil
		})),
	)
	m.OnReconnect(func() { reconnects.Add(1) })

	require.NoError(t, m.Start(context.Background()))
	defer m.Stop()

	require.Eventually(t, func() bool { return probes.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	assert.True(t, m.Online())
	assert.Equal(t, int32(1), reconnects.Load(), "many successful probes, one transition")
}

func TestStart_SkipsTickWhileProbeInFlight(t *testing.T) {
	var inFlight, maxInFlight atomic.Int32
	release := make(chan struct{})
	m := New(
		WithInterval(10*time.Millisecond),
		WithProbeTimeout(time.Second),
		WithProber(ProberFunc(func(ctx context.Context) error {
			n := inFlight.Add(1)
			defer inFlight.Add(-1)
			for {
				cur := maxInFlight.Load()
				if n <= cur || maxInFlight.CompareAndSwap(cur, n) {
					break
				}
			}
			select {
			case <-release:
			case <-ctx.Done():
			}
			return nil
		})),
	)

	require.NoError(t, m.Start(context.Background()))
	time.Sleep(100 * time.Millisecond)
	close(release)
	require.NoError(t, m.Stop())

	assert.Equal(t, int32(1), maxInFlight.Load())
}

func TestStart_RejectsBadInterval(t *testing.T) {
	m := New(WithInterval(0))
	assert.Error(t, m.Start(context.Background()))
}

type chanListener struct {
	ch chan bool
}

func (l chanListener) Listen(ctx context.Context, report func(bool)) {
	for {
		select {
		case <-ctx.Done():
			return
		case online := <-l.ch:
			report(online)
		}
	}
}

func TestListener_DrivesState(t *testing.T) {
	l := chanListener{ch: make(chan bool)}
	m := New(WithListener(l))

	var mu sync.Mutex
	var seen []bool
	m.OnChange(func(online bool) {
		mu.Lock()
		seen = append(seen, online)
		mu.Unlock()
	})

	require.NoError(t, m.Start(context.Background()))

	l.ch <- true
	l.ch <- false
	l.ch <- true
	require.NoError(t, m.Stop())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []bool{true, false, true}, seen)
}
