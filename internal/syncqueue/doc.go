// Package syncqueue persists pending article status changes in SQLite and
// exposes the claim/commit/release protocol the sync engine drives.
//
// Each record is keyed by (article ID, status key) and carries the desired flag
// value plus an explicit state: pending or claimed. Producers upsert records at
// any time; the single consumer claims every pending record, delivers the
// snapshot, then commits (deletes) or releases (re-queues) whole articles.
//
// SQLite transaction serialization is the only mutual exclusion. The Store holds
// a single connection, opens write transactions with BEGIN IMMEDIATE, and never
// guards queue state with an in-process mutex. Every multi-row mutation runs in
// one transaction and is either applied completely or rolled back.
//
// Upserts that land while a record is claimed refresh its flag and bump its
// revision without touching the claim. Commit only deletes records whose
// revision still matches the claimed snapshot; newer intent is released so the
// next cycle delivers it.
//
// A consumer that crashes mid-batch leaves claimed rows behind. Call
// ReleaseAllClaimed once at process start before claiming again.
package syncqueue
