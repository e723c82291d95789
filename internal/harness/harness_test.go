package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/liveledger/internal/match"
)

func loadTestScenario(t *testing.T, name string) *Scenario {
	t.Helper()
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", name+".yaml"))
	require.NoError(t, err)
	return s
}

func TestScenarios_Golden(t *testing.T) {
	for _, name := range []string{
		"offline_card_syncs_on_reconnect",
		"retry_exhaustion_drops_item",
	} {
		t.Run(name, func(t *testing.T) {
			result, err := RunWithGolden(t, loadTestScenario(t, name))
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestScenarios_AllPass(t *testing.T) {
	paths, err := filepath.Glob(filepath.Join("testdata", "scenarios", "*.yaml"))
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			s, err := LoadScenario(path)
			require.NoError(t, err)

			result, err := Run(s)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestRun_OfflineEventReachesStore(t *testing.T) {
	result, err := Run(loadTestScenario(t, "offline_card_syncs_on_reconnect"))
	require.NoError(t, err)
	require.True(t, result.Pass, "errors: %v", result.Errors)

	m := result.find("m1")
	require.NotNil(t, m)
	assert.Equal(t, match.StatusInProgress, m.Status)
	assert.Equal(t, 1, m.Stats.HomeTeam.Goals)
	assert.Equal(t, 1, m.Stats.AwayTeam.YellowCards)
	require.Len(t, m.Events, 2)
	assert.Equal(t, match.EventYellowCard, m.Events[1].Type)

	assert.True(t, result.Status.Online)
	assert.Zero(t, result.Status.PendingItems)
	assert.NotNil(t, result.Status.LastSyncAt)
}

func TestRun_UnexpectedErrorFails(t *testing.T) {
	s := &Scenario{
		Name:        "double_start",
		Description: "Starting twice without expecting an error",
		Steps: []Step{
			{Op: OpCreate, Match: "m1", Home: "home", Away: "away"},
			{Op: OpStart, Match: "m1"},
			{Op: OpStart, Match: "m1"},
		},
	}

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "step 2 (start)")
	assert.Equal(t, "INVALID_TRANSITION", result.Trace[2].Error)
}

func TestRun_DeferredMismatchFails(t *testing.T) {
	no := false
	s := &Scenario{
		Name:        "deferred_mismatch",
		Description: "An offline create expected to apply directly",
		Steps: []Step{
			{Op: OpOffline},
			{Op: OpCreate, Match: "m1", Home: "home", Away: "away", Expect: &ExpectClause{Deferred: &no}},
		},
	}

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "expected deferred=false, got true")
	assert.Empty(t, result.Matches)
	assert.Equal(t, 1, result.Status.PendingItems)
}

func TestRun_FailedAssertion(t *testing.T) {
	s := &Scenario{
		Name:        "wrong_status",
		Description: "A match_state assertion that does not hold",
		Steps: []Step{
			{Op: OpCreate, Match: "m1", Home: "home", Away: "away"},
		},
		Assertions: []Assertion{
			{Type: AssertMatchState, Match: "m1", Expect: map[string]any{"status": "completed"}},
			{Type: AssertMatchState, Match: "m9", Expect: map[string]any{"status": "scheduled"}},
		},
	}

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], "status = completed")
	assert.Contains(t, result.Errors[0], "status = scheduled")
	assert.Contains(t, result.Errors[1], "match m9")
}

func TestRun_AdminDelete(t *testing.T) {
	s := &Scenario{
		Name:        "admin_delete",
		Description: "An admin deletes a match",
		Operator:    &OperatorSpec{ID: "admin-1", Role: "admin"},
		Steps: []Step{
			{Op: OpCreate, Match: "m1", Home: "home", Away: "away"},
			{Op: OpDelete, Match: "m1"},
		},
	}

	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Empty(t, result.Matches)
}
