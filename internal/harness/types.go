package harness

import (
	"github.com/roach88/liveledger/internal/engine"
	"github.com/roach88/liveledger/internal/match"
)

// TraceEvent records one executed step.
type TraceEvent struct {
	Seq      int    `json:"seq"`
	Op       string `json:"op"`
	Match    string `json:"match,omitempty"`
	Deferred bool   `json:"deferred,omitempty"`
	// Error is the error code the step failed with, if any.
	Error string `json:"error,omitempty"`
}

// Result is the outcome of running a scenario.
type Result struct {
	// Pass is true when every step met its expectation and every
	// assertion held.
	Pass bool

	// Errors lists failed expectations and assertions.
	Errors []string

	Trace []TraceEvent

	// Matches holds the store's final matches, ledger included.
	Matches []match.LiveMatch

	// Status is the sync engine's final status.
	Status engine.SyncStatus

	// Notifications holds the titles of notifications sent during the run.
	Notifications []string
}

func (r *Result) addTrace(step Step, deferred bool, code string) {
	r.Trace = append(r.Trace, TraceEvent{
		Seq:      len(r.Trace) + 1,
		Op:       step.Op,
		Match:    step.Match,
		Deferred: deferred,
		Error:    code,
	})
}

func (r *Result) fail(msg string) {
	r.Pass = false
	r.Errors = append(r.Errors, msg)
}

// find returns the final match with the given id, or nil.
func (r *Result) find(id string) *match.LiveMatch {
	for i := range r.Matches {
		if r.Matches[i].ID == id {
			return &r.Matches[i]
		}
	}
	return nil
}
