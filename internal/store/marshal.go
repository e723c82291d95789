package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/roach88/liveledger/internal/match"
)

// Timestamps are stored as Unix nanoseconds so they round-trip exactly
// and sort numerically in both dialects.

func toNanos(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromNanos(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}

func toNullNanos(t *time.Time) sql.NullInt64 {
	if t == nil || t.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixNano(), Valid: true}
}

func fromNullNanos(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := fromNanos(n.Int64)
	return &t
}

// marshalStats converts Stats to JSON TEXT for storage.
func marshalStats(s match.Stats) (string, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("marshal stats: %w", err)
	}
	return string(data), nil
}

// unmarshalStats parses JSON TEXT to Stats.
func unmarshalStats(data string) (match.Stats, error) {
	var s match.Stats
	if data == "" || data == "{}" {
		return s, nil
	}
	if err := json.Unmarshal([]byte(data), &s); err != nil {
		return match.Stats{}, fmt.Errorf("unmarshal stats: %w", err)
	}
	return s, nil
}

// marshalEventData converts an event payload to JSON TEXT for storage.
func marshalEventData(d match.EventData) (string, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return "", fmt.Errorf("marshal event data: %w", err)
	}
	return string(data), nil
}

// unmarshalEventData parses JSON TEXT to an event payload.
func unmarshalEventData(data string) (match.EventData, error) {
	var d match.EventData
	if data == "" || data == "{}" {
		return d, nil
	}
	if err := json.Unmarshal([]byte(data), &d); err != nil {
		return match.EventData{}, fmt.Errorf("unmarshal event data: %w", err)
	}
	return d, nil
}
