package engine

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/roach88/liveledger/internal/match"
	"github.com/roach88/liveledger/internal/queue"
)

// Store is the write side of the match store that queued items replay
// against.
type Store interface {
	CreateMatch(ctx context.Context, m match.LiveMatch) (string, error)
	UpdateMatch(ctx context.Context, id string, p match.Patch) error
	DeleteMatch(ctx context.Context, id string) error
	AppendEvent(ctx context.Context, ev match.Event) (bool, error)
}

// Apply replays one queued item against s.
//
// Deleting a match that is already gone counts as success. Appending an
// event that is already in the ledger counts as success.
func Apply(ctx context.Context, s Store, it queue.Item) error {
	switch it.Collection {
	case queue.CollectionMatches:
		return applyMatch(ctx, s, it)
	case queue.CollectionEvents:
		if it.Type != queue.KindCreate {
			return fmt.Errorf("apply %s: ledger events are append-only, got %s", it.ID, it.Type)
		}
		var ev match.Event
		if err := json.Unmarshal(it.Data, &ev); err != nil {
			return fmt.Errorf("apply %s: decode event: %w", it.ID, err)
		}
		if _, err := s.AppendEvent(ctx, ev); err != nil {
			return fmt.Errorf("apply %s: %w", it.ID, err)
		}
		return nil
	default:
		return fmt.Errorf("apply %s: unknown collection %q", it.ID, it.Collection)
	}
}

func applyMatch(ctx context.Context, s Store, it queue.Item) error {
	switch it.Type {
	case queue.KindCreate:
		var m match.LiveMatch
		if err := json.Unmarshal(it.Data, &m); err != nil {
			return fmt.Errorf("apply %s: decode match: %w", it.ID, err)
		}
		if _, err := s.CreateMatch(ctx, m); err != nil {
			return fmt.Errorf("apply %s: %w", it.ID, err)
		}
	case queue.KindUpdate:
		var p match.Patch
		if err := json.Unmarshal(it.Data, &p); err != nil {
			return fmt.Errorf("apply %s: decode patch: %w", it.ID, err)
		}
		if err := s.UpdateMatch(ctx, it.DocumentID, p); err != nil {
			return fmt.Errorf("apply %s: %w", it.ID, err)
		}
	case queue.KindDelete:
		if err := s.DeleteMatch(ctx, it.DocumentID); err != nil && !match.IsNotFound(err) {
			return fmt.Errorf("apply %s: %w", it.ID, err)
		}
	default:
		return fmt.Errorf("apply %s: unknown mutation type %q", it.ID, it.Type)
	}
	return nil
}
