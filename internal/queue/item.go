package queue

import (
	"encoding/json"
	"time"
)

// Kind is the write intent of a queued mutation.
type Kind string

const (
	KindCreate Kind = "create"
	KindUpdate Kind = "update"
	KindDelete Kind = "delete"
)

// Collection names the remote document collection a mutation targets.
type Collection string

const (
	CollectionMatches Collection = "liveMatches"
	CollectionEvents  Collection = "liveMatchEvents"
)

// Mutation is a write intent before it is queued.
type Mutation struct {
	Kind       Kind
	Collection Collection
	DocumentID string
	Data       json.RawMessage
}

// Item is one persisted entry of the queue.
type Item struct {
	ID         string          `json:"id"`
	Type       Kind            `json:"type"`
	Collection Collection      `json:"collection"`
	DocumentID string          `json:"documentId,omitempty"`
	Data       json.RawMessage `json:"data,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
	RetryCount int             `json:"retryCount"`
	MaxRetries int             `json:"maxRetries"`
	LastError  string          `json:"lastError,omitempty"`
}

// Exhausted reports whether the item has used up its attempts.
func (it Item) Exhausted() bool {
	return it.RetryCount >= it.MaxRetries
}

// Failure pairs a dropped item with the error of its last attempt.
type Failure struct {
	Item Item
	Err  error
}

// DrainReport summarizes one drain pass.
type DrainReport struct {
	// Skipped is set when another drain was already running; nothing else
	// in the report is meaningful then.
	Skipped   bool
	Attempted int
	Applied   int
	Retried   int
	Dropped   []Failure
	// Remaining is the queue length after the pass, including items
	// enqueued while it ran.
	Remaining int
	// Settled is set once the results were merged back into the queue. The
	// counts above hold then even if Drain also returned a persist error.
	Settled bool
}
