package testutil

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/liveledger/internal/match"
)

type nopBackend struct{ Backend }

func (nopBackend) AppendEvent(context.Context, match.Event) (bool, error) { return true, nil }

func TestSwitchableStore_Offline(t *testing.T) {
	ctx := context.Background()
	s := NewSwitchableStore(nopBackend{})

	_, err := s.AppendEvent(ctx, match.Event{})
	require.NoError(t, err)
	require.NoError(t, s.Probe(ctx))

	s.SetOffline(true)
	_, err = s.AppendEvent(ctx, match.Event{})
	assert.True(t, match.IsConnectivity(err))
	assert.True(t, match.IsConnectivity(s.Probe(ctx)))

	s.SetOffline(false)
	boom := errors.New("boom")
	s.FailWrites(boom)
	_, err = s.AppendEvent(ctx, match.Event{})
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, s.Probe(ctx))

	assert.Equal(t, 1, s.Writes())
	assert.Equal(t, 2, s.Rejected())
}
