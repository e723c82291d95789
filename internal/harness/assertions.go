package harness

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/roach88/liveledger/internal/store"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []TraceEvent
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFull trace:\n")
	for _, ev := range e.Trace {
		fmt.Fprintf(&buf, "  [%d] %s %s", ev.Seq, ev.Op, ev.Match)
		if ev.Deferred {
			buf.WriteString(" (deferred)")
		}
		if ev.Error != "" {
			fmt.Fprintf(&buf, " error=%s", ev.Error)
		}
		buf.WriteString("\n")
	}
	return buf.String()
}

type assertionContext struct {
	store  *store.Store
	result *Result
}

func (c *assertionContext) check(ctx context.Context, a Assertion) error {
	trace := c.result.Trace
	switch a.Type {
	case AssertTraceContains:
		return assertTraceContains(trace, a)
	case AssertTraceOrder:
		return assertTraceOrder(trace, a)
	case AssertTraceCount:
		return assertTraceCount(trace, a)
	case AssertMatchState:
		m := c.result.find(a.Match)
		if m == nil {
			return &AssertionError{
				Type:     a.Type,
				Expected: fmt.Sprintf("match %s in the store", a.Match),
				Actual:   "not found",
				Trace:    trace,
			}
		}
		return assertFields(a.Type, m, a.Expect, trace)
	case AssertSyncState:
		return assertFields(a.Type, c.result.Status, a.Expect, trace)
	case AssertLedgerConsistent:
		return assertLedgerConsistent(ctx, c.store, trace)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

// assertTraceContains checks for a step with the given op, on the given
// match when one is named.
func assertTraceContains(trace []TraceEvent, a Assertion) error {
	for _, ev := range trace {
		if ev.Op == a.Op && (a.Match == "" || ev.Match == a.Match) {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("op %s on %q", a.Op, a.Match),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that ops first appear in the given order.
// Other steps may appear in between.
func assertTraceOrder(trace []TraceEvent, a Assertion) error {
	positions := make(map[string]int)
	for _, ev := range trace {
		if positions[ev.Op] == 0 {
			positions[ev.Op] = ev.Seq
		}
	}

	for _, op := range a.Ops {
		if positions[op] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all ops present: %v", a.Ops),
				Actual:   fmt.Sprintf("missing op: %s", op),
				Trace:    trace,
			}
		}
	}

	for i := 1; i < len(a.Ops); i++ {
		prev, curr := a.Ops[i-1], a.Ops[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("ops in order: %v", a.Ops),
				Actual: fmt.Sprintf("%s (seq %d) should be before %s (seq %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}
	return nil
}

// assertTraceCount checks that an op appears exactly Count times.
func assertTraceCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, ev := range trace {
		if ev.Op == a.Op {
			count++
		}
	}
	if count != a.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", a.Count, a.Op),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertFields compares dotted JSON paths of v against expected values.
// A missing path compares equal to an empty expected value.
func assertFields(kind string, v any, expect map[string]any, trace []TraceEvent) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%s: marshal: %w", kind, err)
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("%s: unmarshal: %w", kind, err)
	}

	for path, want := range expect {
		got, ok := lookup(doc, path)
		if !ok {
			got = nil
		}
		if !sameValue(got, want) {
			return &AssertionError{
				Type:     kind,
				Expected: fmt.Sprintf("%s = %v", path, want),
				Actual:   fmt.Sprintf("%s = %v", path, got),
				Trace:    trace,
			}
		}
	}
	return nil
}

// lookup walks a dotted path through decoded JSON. The special segment
// "length" yields the length of an array.
func lookup(doc map[string]any, path string) (any, bool) {
	var cur any = doc
	for _, part := range strings.Split(path, ".") {
		switch node := cur.(type) {
		case map[string]any:
			next, ok := node[part]
			if !ok {
				return nil, false
			}
			cur = next
		case []any:
			if part != "length" {
				return nil, false
			}
			cur = len(node)
		default:
			return nil, false
		}
	}
	return cur, true
}

// sameValue compares by printed form, so YAML ints match JSON numbers.
func sameValue(got, want any) bool {
	if got == nil {
		return want == nil || want == ""
	}
	return fmt.Sprint(got) == fmt.Sprint(want)
}

// assertLedgerConsistent checks that stored stats equal a fold of every
// match's ledger.
func assertLedgerConsistent(ctx context.Context, st *store.Store, trace []TraceEvent) error {
	reports, err := st.VerifyAll(ctx)
	if err != nil {
		return fmt.Errorf("ledger_consistent: %w", err)
	}
	var drifted []string
	for _, r := range reports {
		if r.Drift {
			drifted = append(drifted, r.MatchID)
		}
	}
	if len(drifted) > 0 {
		return &AssertionError{
			Type:     AssertLedgerConsistent,
			Expected: "no stats drift",
			Actual:   fmt.Sprintf("drift in %v", drifted),
			Trace:    trace,
		}
	}
	return nil
}
