// Package engine implements the offline sync engine.
//
// The engine wires the connectivity monitor to the mutation queue: every
// offline to online transition triggers one asynchronous drain, ForceSync
// triggers a synchronous one, and an enqueue while online triggers one too.
// Drains never overlap; the queue's owner goroutine guarantees that and a
// second request during a pass is a no-op.
//
// The engine owns SyncStatus. It is rebuilt from the persisted queue at
// Start and changed only here: connectivity transitions flip Online,
// enqueues and drains move PendingItems, and drains set InProgress,
// LastSyncAt and LastError.
//
// Retry exhaustion is never silent. A dropped item sets LastError and
// increments Dropped; that error survives later clean passes until
// AcknowledgeError is called.
//
// Applying an item reuses the store's own idempotency: creates are keyed by
// document id and events by event id, so a retry after a lost
// acknowledgement cannot double-apply a stats delta.
package engine
