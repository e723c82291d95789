// Package connectivity tracks whether the device can reach the match store.
//
// Two independent signals feed one online flag: a passive Listener (the
// platform's network-change notifications) and an active Prober run on a
// fixed interval. A probe tick is skipped while the previous probe is still
// in flight. Reconnect callbacks fire once per offline to online transition,
// never per probe.
package connectivity

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
)

const (
	// DefaultInterval is the active probe period.
	DefaultInterval = 5 * time.Second

	// DefaultProbeTimeout bounds a single probe.
	DefaultProbeTimeout = 3 * time.Second
)

// Prober checks whether the store is reachable. A nil error means online.
type Prober interface {
	Probe(ctx context.Context) error
}

// ProberFunc adapts a function to Prober.
type ProberFunc func(ctx context.Context) error

// Probe calls f.
func (f ProberFunc) Probe(ctx context.Context) error { return f(ctx) }

// Listener delivers passive connectivity changes. Listen blocks, calling
// report on every change, until ctx is cancelled.
type Listener interface {
	Listen(ctx context.Context, report func(online bool))
}

// Monitor holds the online flag. Safe for concurrent use.
type Monitor struct {
	prober   Prober
	listener Listener
	interval time.Duration
	timeout  time.Duration

	mu          sync.Mutex
	online      bool
	onChange    []func(online bool)
	onReconnect []func()

	sched  gocron.Scheduler
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithProber sets the active probe. Without one, only Report and the
// Listener move the flag.
func WithProber(p Prober) Option {
	return func(m *Monitor) { m.prober = p }
}

// WithListener sets the passive change source.
func WithListener(l Listener) Option {
	return func(m *Monitor) { m.listener = l }
}

// WithInterval sets the probe period.
// Default: 5s (DefaultInterval)
func WithInterval(d time.Duration) Option {
	return func(m *Monitor) { m.interval = d }
}

// WithProbeTimeout bounds each probe.
// Default: 3s (DefaultProbeTimeout)
func WithProbeTimeout(d time.Duration) Option {
	return func(m *Monitor) { m.timeout = d }
}

// WithInitialState sets the flag before the first signal arrives.
// Default: offline.
func WithInitialState(online bool) Option {
	return func(m *Monitor) { m.online = online }
}

// New creates a stopped monitor.
func New(opts ...Option) *Monitor {
	m := &Monitor{
		interval: DefaultInterval,
		timeout:  DefaultProbeTimeout,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start launches the listener and the probe job. The first probe runs
// immediately.
func (m *Monitor) Start(ctx context.Context) error {
	if m.interval <= 0 {
		return fmt.Errorf("connectivity: interval must be positive, got %s", m.interval)
	}

	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel

	if m.listener != nil {
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			m.listener.Listen(ctx, m.Report)
		}()
	}

	if m.prober == nil {
		return nil
	}

	sched, err := gocron.NewScheduler()
	if err != nil {
		cancel()
		return fmt.Errorf("connectivity: create scheduler: %w", err)
	}
	_, err = sched.NewJob(
		gocron.DurationJob(m.interval),
		gocron.NewTask(func() {
			m.probe(ctx)
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		cancel()
		return fmt.Errorf("connectivity: schedule probe: %w", err)
	}
	sched.Start()
	m.sched = sched

	slog.Info("connectivity monitor started", "interval", m.interval)
	return nil
}

// Stop halts the probe job and the listener.
func (m *Monitor) Stop() error {
	if m.cancel != nil {
		m.cancel()
	}
	var err error
	if m.sched != nil {
		err = m.sched.Shutdown()
	}
	m.wg.Wait()
	return err
}

// ProbeNow runs one probe synchronously and returns the resulting state.
func (m *Monitor) ProbeNow(ctx context.Context) bool {
	if m.prober == nil {
		return m.Online()
	}
	m.probe(ctx)
	return m.Online()
}

func (m *Monitor) probe(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	pctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	err := m.prober.Probe(pctx)
	if err != nil {
		slog.Debug("connectivity probe failed", "error", err)
	}
	m.Report(err == nil)
}

// Online returns the current flag.
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Report sets the flag. Callbacks run on the caller's goroutine, and only
// when the flag actually changes.
func (m *Monitor) Report(online bool) {
	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()
		return
	}
	m.online = online
	changed := append([]func(bool){}, m.onChange...)
	var reconnect []func()
	if online {
		reconnect = append(reconnect, m.onReconnect...)
	}
	m.mu.Unlock()

	if online {
		slog.Info("connectivity restored")
	} else {
		slog.Warn("connectivity lost")
	}

	for _, fn := range changed {
		fn(online)
	}
	for _, fn := range reconnect {
		fn()
	}
}

// OnChange registers fn for every transition.
func (m *Monitor) OnChange(fn func(online bool)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChange = append(m.onChange, fn)
}

// OnReconnect registers fn for offline to online transitions.
func (m *Monitor) OnReconnect(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onReconnect = append(m.onReconnect, fn)
}
