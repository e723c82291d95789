package engine

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/liveledger/internal/match"
	"github.com/roach88/liveledger/internal/queue"
)

// CreateMatch builds the queued form of a match create. The match must
// carry its id so a replayed create stays idempotent.
func CreateMatch(m match.LiveMatch) (queue.Mutation, error) {
	if m.ID == "" {
		return queue.Mutation{}, match.NewValidationError("id", "queued creates need a client-assigned id")
	}
	data, err := json.Marshal(m)
	if err != nil {
		return queue.Mutation{}, fmt.Errorf("encode match: %w", err)
	}
	return queue.Mutation{
		Kind:       queue.KindCreate,
		Collection: queue.CollectionMatches,
		DocumentID: m.ID,
		Data:       data,
	}, nil
}

// UpdateMatch builds the queued form of a partial update.
func UpdateMatch(id string, p match.Patch) (queue.Mutation, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return queue.Mutation{}, fmt.Errorf("encode patch: %w", err)
	}
	return queue.Mutation{
		Kind:       queue.KindUpdate,
		Collection: queue.CollectionMatches,
		DocumentID: id,
		Data:       data,
	}, nil
}

// DeleteMatch builds the queued form of a match delete.
func DeleteMatch(id string) queue.Mutation {
	return queue.Mutation{
		Kind:       queue.KindDelete,
		Collection: queue.CollectionMatches,
		DocumentID: id,
	}
}

// AppendEvent builds the queued form of an event append. The event must
// carry its id.
func AppendEvent(ev match.Event) (queue.Mutation, error) {
	if ev.ID == "" {
		return queue.Mutation{}, match.NewValidationError("id", "queued events need a client-assigned id")
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return queue.Mutation{}, fmt.Errorf("encode event: %w", err)
	}
	return queue.Mutation{
		Kind:       queue.KindCreate,
		Collection: queue.CollectionEvents,
		DocumentID: ev.ID,
		Data:       data,
	}, nil
}
