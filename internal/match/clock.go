package match

import "time"

// Clock supplies wall-clock time for audit fields and queue timestamps.
// Ordering inside a ledger never depends on it: events are ordered by the
// store's per-match sequence number.
type Clock interface {
	Now() time.Time
}

// SystemClock reads time.Now in UTC.
type SystemClock struct{}

// Now returns the current UTC time.
func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}
