// Package relay carries committed store changes between server replicas
// over a Redis stream.
//
// Every replica appends its own changes with XADD and tails the stream with
// a plain XREAD (no consumer group): each replica must see every change.
// The store drops changes that carry its own origin.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/roach88/liveledger/internal/match"
)

const (
	// DefaultStream is the stream key shared by all replicas.
	DefaultStream = "liveledger.changes"

	// Entries kept in the stream (approximate trim).
	defaultMaxLen = 10000

	// Batch size for reading entries
	batchSize = 100

	// Block duration when waiting for new entries
	blockDuration = 1 * time.Second
)

// Sink receives changes read from the stream.
type Sink interface {
	Deliver(ctx context.Context, ch match.Change)
}

// Redis relays changes through one Redis stream.
type Redis struct {
	client *redis.Client
	stream string
	maxLen int64
}

// NewRedis creates a relay on the given stream (DefaultStream if empty).
func NewRedis(client *redis.Client, stream string) *Redis {
	if stream == "" {
		stream = DefaultStream
	}
	return &Redis{
		client: client,
		stream: stream,
		maxLen: defaultMaxLen,
	}
}

// Publish appends a change to the stream.
func (r *Redis) Publish(ctx context.Context, ch match.Change) error {
	values, err := encode(ch)
	if err != nil {
		return err
	}
	return r.client.XAdd(ctx, &redis.XAddArgs{
		Stream: r.stream,
		MaxLen: r.maxLen,
		Approx: true,
		Values: values,
	}).Err()
}

// Run tails the stream from its current end and hands every change to
// sink until ctx is cancelled.
func (r *Redis) Run(ctx context.Context, sink Sink) error {
	slog.Info("relay started", "stream", r.stream)
	lastID := "$"

	for {
		if ctx.Err() != nil {
			return nil
		}

		streams, err := r.client.XRead(ctx, &redis.XReadArgs{
			Streams: []string{r.stream, lastID},
			Count:   batchSize,
			Block:   blockDuration,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				return nil
			}
			slog.Warn("relay read failed", "stream", r.stream, "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}

		for _, st := range streams {
			for _, msg := range st.Messages {
				lastID = msg.ID
				ch, err := decode(msg)
				if err != nil {
					slog.Warn("relay entry skipped", "id", msg.ID, "error", err)
					continue
				}
				sink.Deliver(ctx, ch)
			}
		}
	}
}

func encode(ch match.Change) (map[string]any, error) {
	data, err := json.Marshal(ch)
	if err != nil {
		return nil, fmt.Errorf("marshaling change: %w", err)
	}
	return map[string]any{
		"data":     string(data),
		"match_id": ch.MatchID,
		"kind":     string(ch.Kind),
		"origin":   ch.Origin,
	}, nil
}

func decode(msg redis.XMessage) (match.Change, error) {
	data, ok := msg.Values["data"].(string)
	if !ok {
		return match.Change{}, fmt.Errorf("invalid entry format: %v", msg.Values)
	}
	var ch match.Change
	if err := json.Unmarshal([]byte(data), &ch); err != nil {
		return match.Change{}, fmt.Errorf("parsing change: %w", err)
	}
	return ch, nil
}
