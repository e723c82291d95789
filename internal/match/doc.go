// Package match provides the data model for the live-match event ledger.
//
// This package contains type definitions, the status transition table,
// validation and the error taxonomy. Every other internal package imports
// match; match imports nothing internal.
//
// Key constraints:
//   - Events are append-only. Nothing in this module mutates or deletes an
//     accepted event.
//   - Stats are a materialized view of the event list. Callers never write
//     them directly: Patch has no stats field.
//   - Wire JSON uses camelCase field names (the persisted document shape).
package match
