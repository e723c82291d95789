// Package harness runs match-day scenarios against a complete device stack.
//
// A scenario drives the live service through a sequence of operator
// actions and connectivity changes, then checks the resulting trace, the
// matches the store holds and the sync engine's status.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: offline_card_syncs_on_reconnect
//	description: "A card recorded offline reaches the store on reconnect"
//	operator: { id: ref-1, role: referee }
//	steps:
//	  - op: create
//	    match: m1
//	    home: home
//	    away: away
//	  - op: start
//	    match: m1
//	  - op: offline
//	  - op: event
//	    match: m1
//	    event: { type: yellow_card, team: away, minute: 40 }
//	    expect: { deferred: true }
//	  - op: online
//	assertions:
//	  - type: match_state
//	    match: m1
//	    expect: { "stats.awayTeam.yellowCards": 1 }
//	  - type: sync_state
//	    expect: { pendingItems: 0 }
//
// # Step Ops
//
//   - create, start, halftime, resume, end, postpone, cancel, delete: match lifecycle
//   - event: record a ledger event
//   - offline, online: cut or restore the store and tell the monitor
//   - sync: drain the queue now
//
// # Assertion Types
//
//   - trace_contains: an op (optionally on a match) appears in the trace
//   - trace_order: ops appear in the given order
//   - trace_count: an op appears exactly N times
//   - match_state: dotted JSON paths of a stored match have the given values
//   - sync_state: dotted JSON paths of the sync status have the given values
//   - ledger_consistent: every stored match's stats equal a fold of its ledger
//
// Every run is deterministic: the clock steps one second per reading and
// ids come from fixed generators, so traces can be compared with golden
// files.
package harness
