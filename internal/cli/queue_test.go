package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/liveledger/internal/engine"
	"github.com/roach88/liveledger/internal/localstore"
	"github.com/roach88/liveledger/internal/match"
	"github.com/roach88/liveledger/internal/queue"
)

// seedQueue writes a device queue holding a match create and a goal.
func seedQueue(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "device.db")

	kv, err := localstore.Open(path)
	require.NoError(t, err)
	defer kv.Close()
	q, err := queue.Open(ctx, kv)
	require.NoError(t, err)
	defer q.Close()

	create, err := engine.CreateMatch(match.LiveMatch{ID: "match-1", HomeTeamID: "home", AwayTeamID: "away", StartTime: kickoff})
	require.NoError(t, err)
	_, err = q.Enqueue(ctx, create)
	require.NoError(t, err)

	goal, err := engine.AppendEvent(match.Event{ID: "ev-1", MatchID: "match-1", Type: match.EventGoal, TeamID: "home", Minute: 5})
	require.NoError(t, err)
	_, err = q.Enqueue(ctx, goal)
	require.NoError(t, err)

	return path
}

func runQueueStatusCmd(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewQueueCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetArgs(append([]string{"status"}, args...))
	err := cmd.Execute()
	return buf.String(), err
}

func TestQueueStatus_Empty(t *testing.T) {
	out, err := runQueueStatusCmd(t, "text", "--queue-db", filepath.Join(t.TempDir(), "device.db"))
	require.NoError(t, err)
	assert.Contains(t, out, "Queue is empty.")
}

func TestQueueStatus_Pending(t *testing.T) {
	path := seedQueue(t)

	out, err := runQueueStatusCmd(t, "text", "--queue-db", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Pending: 2 mutation(s)")
	assert.Contains(t, out, "create liveMatches/match-1")
	assert.Contains(t, out, "create liveMatchEvents/ev-1")

	out, err = runQueueStatusCmd(t, "json", "--queue-db", path)
	require.NoError(t, err)
	var resp struct {
		Data QueueStatusResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, 2, resp.Data.Pending)
	assert.Equal(t, queue.KindCreate, resp.Data.Items[0].Type)
	assert.Equal(t, queue.DefaultMaxRetries, resp.Data.Items[0].MaxRetries)
}

func TestQueueStatus_MissingFlag(t *testing.T) {
	_, err := runQueueStatusCmd(t, "text")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
