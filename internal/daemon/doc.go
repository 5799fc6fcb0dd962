// Package daemon coordinates the long-running articlesync process.
//
// It owns the sync queue store and the sync engine, enforces single-instance
// execution with a flock-based lock file, and exposes the queue operations the
// IPC server forwards to CLI clients: marking statuses, inspecting pending
// records, forcing a sync cycle, and recovering abandoned claims.
//
// Keep orchestration here; queue semantics live in syncqueue and delivery in
// syncengine.
package daemon
