package harness

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/roach88/liveledger/internal/connectivity"
	"github.com/roach88/liveledger/internal/engine"
	"github.com/roach88/liveledger/internal/live"
	"github.com/roach88/liveledger/internal/match"
	"github.com/roach88/liveledger/internal/queue"
	"github.com/roach88/liveledger/internal/store"
	"github.com/roach88/liveledger/internal/testutil"
)

// Kickoff is the start time of every match a scenario creates, and the
// first reading of the scenario clock.
var Kickoff = time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC)

// Harness is one device stack: store, switchable remote, queue, monitor,
// sync engine and live service.
type Harness struct {
	store    *store.Store
	remote   *testutil.SwitchableStore
	queue    *queue.Queue
	monitor  *connectivity.Monitor
	engine   *engine.Engine
	service  *live.Service
	notifier *recorder
	dir      string
}

// New builds a fresh stack for the scenario in a temporary directory.
// The caller must Close it.
func New(ctx context.Context, scenario *Scenario) (*Harness, error) {
	dir, err := os.MkdirTemp("", "liveledger-scenario-*")
	if err != nil {
		return nil, fmt.Errorf("create scenario dir: %w", err)
	}
	h := &Harness{dir: dir, notifier: &recorder{}}

	clock := testutil.NewSteppingClock(Kickoff, time.Second)

	h.store, err = store.Open(filepath.Join(dir, "scenario.db"), store.WithClock(clock))
	if err != nil {
		h.Close()
		return nil, fmt.Errorf("open store: %w", err)
	}
	h.remote = testutil.NewSwitchableStore(h.store)

	qopts := []queue.Option{
		queue.WithClock(clock),
		queue.WithIDGenerator(match.NewFixedGenerator("item")),
	}
	if scenario.MaxRetries > 0 {
		qopts = append(qopts, queue.WithMaxRetries(scenario.MaxRetries))
	}
	h.queue, err = queue.Open(ctx, testutil.NewMemoryKV(), qopts...)
	if err != nil {
		h.Close()
		return nil, fmt.Errorf("open queue: %w", err)
	}

	h.monitor = connectivity.New(connectivity.WithInitialState(true))
	h.engine = engine.New(h.remote, h.queue, h.monitor, engine.WithClock(clock))
	if err := h.engine.Start(ctx); err != nil {
		h.Close()
		return nil, fmt.Errorf("start engine: %w", err)
	}

	h.service = live.New(h.remote, h.engine,
		live.WithNotifier(h.notifier),
		live.WithOperator(scenario.operator()),
		live.WithClock(clock),
		live.WithIDGenerator(match.NewFixedGenerator("ev")),
		live.WithDirectory(teamDirectory(scenario.Teams)),
	)
	return h, nil
}

// Close stops the engine and removes the stack's files.
func (h *Harness) Close() {
	if h.engine != nil {
		h.engine.Stop()
	}
	if h.queue != nil {
		h.queue.Close()
	}
	if h.store != nil {
		h.store.Close()
	}
	os.RemoveAll(h.dir)
}

// Service returns the live service under test.
func (h *Harness) Service() *live.Service {
	return h.service
}

// Run executes a scenario on a fresh stack and evaluates its assertions.
func Run(scenario *Scenario) (*Result, error) {
	ctx := context.Background()

	h, err := New(ctx, scenario)
	if err != nil {
		return nil, err
	}
	defer h.Close()

	result := &Result{Pass: true}
	for i, step := range scenario.Steps {
		h.executeStep(ctx, i, step, result)
	}

	if err := h.collect(ctx, result); err != nil {
		return nil, err
	}

	actx := &assertionContext{store: h.store, result: result}
	for i, a := range scenario.Assertions {
		if err := actx.check(ctx, a); err != nil {
			result.fail(fmt.Sprintf("assertion %d: %v", i, err))
		}
	}

	slog.Debug("scenario finished", "name", scenario.Name, "pass", result.Pass, "steps", len(result.Trace))
	return result, nil
}

// executeStep runs one step, records it and checks its expect clause.
func (h *Harness) executeStep(ctx context.Context, i int, step Step, result *Result) {
	deferred, err := h.apply(ctx, step)
	code := ""
	if err != nil {
		code = string(match.CodeOf(err))
		if code == "" {
			code = "UNKNOWN"
		}
	}
	result.addTrace(step, deferred, code)

	want := step.Expect
	switch {
	case want != nil && want.Error != "":
		if code != want.Error {
			result.fail(fmt.Sprintf("step %d (%s): expected error %s, got %q", i, step.Op, want.Error, code))
		}
	case err != nil:
		result.fail(fmt.Sprintf("step %d (%s): %v", i, step.Op, err))
	}
	if want != nil && want.Deferred != nil && *want.Deferred != deferred {
		result.fail(fmt.Sprintf("step %d (%s): expected deferred=%t, got %t", i, step.Op, *want.Deferred, deferred))
	}
}

// apply performs a step and reports whether its write was queued.
func (h *Harness) apply(ctx context.Context, step Step) (bool, error) {
	svc := h.service
	var (
		out live.Outcome
		err error
	)

	switch step.Op {
	case OpCreate:
		out, err = svc.Create(ctx, match.LiveMatch{
			ID:         step.Match,
			HomeTeamID: step.Home,
			AwayTeamID: step.Away,
			StartTime:  Kickoff,
			Location:   step.Location,
		})
	case OpStart:
		out, err = svc.Start(ctx, step.Match)
	case OpHalftime:
		out, err = svc.Halftime(ctx, step.Match)
	case OpResume:
		out, err = svc.Resume(ctx, step.Match)
	case OpEnd:
		out, err = svc.End(ctx, step.Match)
	case OpPostpone:
		out, err = svc.Postpone(ctx, step.Match)
	case OpCancel:
		out, err = svc.Cancel(ctx, step.Match)
	case OpDelete:
		out, err = svc.Delete(ctx, step.Match)
	case OpEvent:
		out, err = svc.AddEvent(ctx, step.Match, match.Event{
			Type:     match.EventType(step.Event.Type),
			TeamID:   step.Event.Team,
			Minute:   step.Event.Minute,
			PlayerID: step.Event.Player,
			Data:     match.EventData{GoalType: step.Event.GoalType},
		})
	case OpOffline:
		h.remote.SetOffline(true)
		h.monitor.Report(false)
	case OpOnline:
		h.remote.SetOffline(false)
		h.monitor.Report(true)
		h.engine.Wait()
	case OpSync:
		_, err = svc.ForceSync(ctx)
	default:
		err = fmt.Errorf("unknown op %q", step.Op)
	}
	return out.Deferred, err
}

// collect reads the final state straight from the store, bypassing the
// switchable remote so offline scenarios can still be inspected.
func (h *Harness) collect(ctx context.Context, result *Result) error {
	h.engine.Wait()

	matches, err := h.store.ListMatches(ctx, match.Filter{})
	if err != nil {
		return fmt.Errorf("collect matches: %w", err)
	}
	for i := range matches {
		events, err := h.store.Events(ctx, matches[i].ID)
		if err != nil {
			return fmt.Errorf("collect events for %s: %w", matches[i].ID, err)
		}
		if events == nil {
			events = []match.Event{}
		}
		matches[i].Events = events
	}
	result.Matches = matches
	result.Status = h.engine.Status()
	result.Notifications = h.notifier.Titles()
	return nil
}

// recorder is a live.Notifier that keeps notification titles in order.
type recorder struct {
	mu     sync.Mutex
	titles []string
}

func (r *recorder) Notify(_ context.Context, title, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.titles = append(r.titles, title)
	return nil
}

func (r *recorder) Titles() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string{}, r.titles...)
}

// teamDirectory resolves team names from the scenario's teams map,
// falling back to the id.
type teamDirectory map[string]string

func (d teamDirectory) TeamName(_ context.Context, id string) (string, error) {
	if name, ok := d[id]; ok {
		return name, nil
	}
	return id, nil
}
