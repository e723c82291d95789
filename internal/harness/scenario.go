package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/liveledger/internal/live"
)

// Scenario is a scripted match-day session.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Operator is who uses the device. Defaults to a referee.
	Operator *OperatorSpec `yaml:"operator,omitempty"`

	// Teams maps team ids to display names for notifications.
	Teams map[string]string `yaml:"teams,omitempty"`

	// MaxRetries overrides the queue's retry limit when positive.
	MaxRetries int `yaml:"max_retries,omitempty"`

	Steps []Step `yaml:"steps"`

	// Assertions validate the final trace and state.
	Assertions []Assertion `yaml:"assertions"`
}

// OperatorSpec identifies the device operator.
type OperatorSpec struct {
	ID   string `yaml:"id"`
	Role string `yaml:"role"`
}

// Step is one operator action or connectivity change.
type Step struct {
	Op string `yaml:"op"`

	// Match is the match id the op applies to.
	Match string `yaml:"match,omitempty"`

	// Home, Away and Location are used by create.
	Home     string `yaml:"home,omitempty"`
	Away     string `yaml:"away,omitempty"`
	Location string `yaml:"location,omitempty"`

	Event *EventSpec `yaml:"event,omitempty"`

	// Expect specifies the expected outcome. If nil the step must succeed.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// EventSpec describes a ledger event to record.
type EventSpec struct {
	Type     string `yaml:"type"`
	Team     string `yaml:"team"`
	Minute   int    `yaml:"minute"`
	Player   string `yaml:"player,omitempty"`
	GoalType string `yaml:"goal_type,omitempty"`
}

// ExpectClause specifies the expected outcome of a step.
type ExpectClause struct {
	// Deferred, when set, must equal whether the write was queued.
	Deferred *bool `yaml:"deferred,omitempty"`

	// Error is the expected error code, such as INVALID_TRANSITION.
	Error string `yaml:"error,omitempty"`
}

// Assertion validates the trace or the final state.
type Assertion struct {
	Type string `yaml:"type"`

	// Op is used by trace_contains and trace_count.
	Op string `yaml:"op,omitempty"`

	// Match narrows trace_contains and selects the match for match_state.
	Match string `yaml:"match,omitempty"`

	// Ops is the expected order (trace_order).
	Ops []string `yaml:"ops,omitempty"`

	// Count is the expected number of occurrences (trace_count).
	Count int `yaml:"count,omitempty"`

	// Expect maps dotted JSON paths to values (match_state, sync_state).
	Expect map[string]any `yaml:"expect,omitempty"`
}

// Step op constants.
const (
	OpCreate   = "create"
	OpStart    = "start"
	OpHalftime = "halftime"
	OpResume   = "resume"
	OpEnd      = "end"
	OpPostpone = "postpone"
	OpCancel   = "cancel"
	OpDelete   = "delete"
	OpEvent    = "event"
	OpOffline  = "offline"
	OpOnline   = "online"
	OpSync     = "sync"
)

// Assertion type constants.
const (
	AssertTraceContains    = "trace_contains"
	AssertTraceOrder       = "trace_order"
	AssertTraceCount       = "trace_count"
	AssertMatchState       = "match_state"
	AssertSyncState        = "sync_state"
	AssertLedgerConsistent = "ledger_consistent"
)

var matchOps = map[string]bool{
	OpCreate: true, OpStart: true, OpHalftime: true, OpResume: true, OpEnd: true,
	OpPostpone: true, OpCancel: true, OpDelete: true, OpEvent: true,
}

var deviceOps = map[string]bool{OpOffline: true, OpOnline: true, OpSync: true}

// LoadScenario reads and parses a scenario YAML file.
// Unknown fields are rejected so typos fail loudly.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// operator returns the scenario's operator or the default referee.
func (s *Scenario) operator() live.Operator {
	if s.Operator == nil {
		return live.Operator{ID: "ref-1", Role: live.RoleReferee}
	}
	return live.Operator{ID: s.Operator.ID, Role: s.Operator.Role}
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if s.Operator != nil && (s.Operator.ID == "" || s.Operator.Role == "") {
		return fmt.Errorf("operator needs both id and role")
	}

	for i, step := range s.Steps {
		switch {
		case matchOps[step.Op]:
			if step.Match == "" {
				return fmt.Errorf("step %d: %s requires a match", i, step.Op)
			}
		case deviceOps[step.Op]:
		default:
			return fmt.Errorf("step %d: unknown op %q", i, step.Op)
		}
		if step.Op == OpCreate && (step.Home == "" || step.Away == "") {
			return fmt.Errorf("step %d: create requires home and away", i)
		}
		if step.Op == OpEvent && step.Event == nil {
			return fmt.Errorf("step %d: event requires an event block", i)
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(a); err != nil {
			return fmt.Errorf("assertion %d: %w", i, err)
		}
	}
	return nil
}

// validateAssertion checks one assertion's required fields.
func validateAssertion(a Assertion) error {
	switch a.Type {
	case AssertTraceContains:
		if a.Op == "" {
			return fmt.Errorf("trace_contains requires op")
		}
	case AssertTraceOrder:
		if len(a.Ops) < 2 {
			return fmt.Errorf("trace_order requires at least two ops")
		}
	case AssertTraceCount:
		if a.Op == "" {
			return fmt.Errorf("trace_count requires op")
		}
		if a.Count < 0 {
			return fmt.Errorf("trace_count requires a non-negative count")
		}
	case AssertMatchState:
		if a.Match == "" || len(a.Expect) == 0 {
			return fmt.Errorf("match_state requires match and expect")
		}
	case AssertSyncState:
		if len(a.Expect) == 0 {
			return fmt.Errorf("sync_state requires expect")
		}
	case AssertLedgerConsistent:
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}
