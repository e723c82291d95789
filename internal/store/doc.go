// Package store provides durable storage for live matches and their event
// ledgers over database/sql.
//
// The store implements:
//   - Matches: one row per match document, stats stored as JSON
//   - Match events: the append-only ledger, ordered by a per-match seq
//   - Subscriptions: per-match, per-ledger and active-set change feeds
//
// # Critical Patterns
//
// Atomic append: AppendEvent inserts the event and applies the stats delta
// in the same transaction, so the ledger and the derived stats can never
// diverge from the store's point of view.
//
// Per-event idempotency: events are inserted with ON CONFLICT(id) DO
// NOTHING and the stats delta is applied only when a row was inserted. A
// replayed offline mutation (same event id) is a no-op.
//
// Deterministic ordering: ledger reads use ORDER BY seq ASC, never
// timestamps. Match listings use ORDER BY start_time DESC, id ASC.
//
// # Dialects
//
// SQLite (Open) is the default and runs with WAL, synchronous=NORMAL,
// busy_timeout=5000 and foreign keys on. Postgres (OpenPostgres) serves
// multi-replica deployments; queries are written with ? placeholders and
// rebound to $n.
package store
