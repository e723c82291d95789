package engine

import "time"

// SyncStatus is the observable state of the sync engine.
type SyncStatus struct {
	Online       bool       `json:"online"`
	LastSyncAt   *time.Time `json:"lastSyncAt,omitempty"`
	PendingItems int        `json:"pendingItems"`
	InProgress   bool       `json:"inProgress"`
	LastError    string     `json:"lastError,omitempty"`
	// Dropped counts items removed after exhausting their retries since
	// the engine started.
	Dropped int `json:"dropped"`
}

// clone copies s so observers never share the LastSyncAt pointer.
func (s SyncStatus) clone() SyncStatus {
	if s.LastSyncAt != nil {
		t := *s.LastSyncAt
		s.LastSyncAt = &t
	}
	return s
}
