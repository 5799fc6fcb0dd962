package ipc

import (
	"time"

	"articlesync/internal/syncqueue"
)

// ServiceName is the RPC service name registered by the server.
const ServiceName = "ArticleSync"

// StatusRequest requests daemon status.
type StatusRequest struct{}

// StatusResponse reports daemon, engine, and queue state.
type StatusResponse struct {
	Running         bool           `json:"running"`
	PID             int            `json:"pid"`
	StartedAt       time.Time      `json:"started_at"`
	SyncEnabled     bool           `json:"sync_enabled"`
	RemoteURL       string         `json:"remote_url,omitempty"`
	QueueDBPath     string         `json:"queue_db_path"`
	LockPath        string         `json:"lock_path"`
	QueueTotal      int            `json:"queue_total"`
	QueuePending    int            `json:"queue_pending"`
	QueueClaimed    int            `json:"queue_claimed"`
	QueuePerKey     map[string]int `json:"queue_per_key"`
	QueueError      string         `json:"queue_error,omitempty"`
	EngineRunning   bool           `json:"engine_running"`
	Cycles          int64          `json:"cycles"`
	RecoveredClaims int64          `json:"recovered_claims"`
	LastRunAt       time.Time      `json:"last_run_at"`
	LastCycleID     string         `json:"last_cycle_id,omitempty"`
	LastCommitted   int            `json:"last_committed"`
	LastReleased    int            `json:"last_released"`
	LastError       string         `json:"last_error,omitempty"`
	PollInterval    string         `json:"poll_interval,omitempty"`
}

// MarkRequest queues the desired flag for key on each article.
type MarkRequest struct {
	ArticleIDs []string `json:"article_ids"`
	Key        string   `json:"key"`
	Flag       bool     `json:"flag"`
}

// MarkResponse reports how many records were queued.
type MarkResponse struct {
	Queued int `json:"queued"`
}

// DiscardRequest drops a pending record.
type DiscardRequest struct {
	ArticleID string `json:"article_id"`
	Key       string `json:"key"`
}

// DiscardResponse reports whether a record was removed.
type DiscardResponse struct {
	Removed bool `json:"removed"`
}

// PendingRequest lists articles with an unclaimed record of Key.
type PendingRequest struct {
	Key string `json:"key"`
}

// PendingResponse carries pending article ids plus the overall record count.
type PendingResponse struct {
	ArticleIDs []string `json:"article_ids"`
	Total      int      `json:"total"`
}

// ListRequest lists records, optionally filtered by state.
type ListRequest struct {
	States []string `json:"states,omitempty"`
}

// Record is the wire form of a queued status record.
type Record struct {
	ArticleID string    `json:"article_id"`
	Key       string    `json:"status_key"`
	Flag      bool      `json:"flag"`
	State     string    `json:"state"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ListResponse returns queued records.
type ListResponse struct {
	Records []Record `json:"records"`
}

// SyncRequest asks the daemon to run one cycle now.
type SyncRequest struct{}

// SyncResponse summarizes the forced cycle.
type SyncResponse struct {
	CycleID       string   `json:"cycle_id"`
	Claimed       int      `json:"claimed"`
	Batches       int      `json:"batches"`
	FailedBatches int      `json:"failed_batches"`
	Committed     []string `json:"committed,omitempty"`
	Released      []string `json:"released,omitempty"`
	DurationMS    int64    `json:"duration_ms"`
}

// ReleaseClaimsRequest returns claimed records to pending.
type ReleaseClaimsRequest struct{}

// ReleaseClaimsResponse reports how many records were released.
type ReleaseClaimsResponse struct {
	Released int64 `json:"released"`
}

// DatabaseHealthRequest requests database diagnostics.
type DatabaseHealthRequest struct{}

// DatabaseHealthResponse carries database diagnostics.
type DatabaseHealthResponse struct {
	Health syncqueue.DatabaseHealth `json:"health"`
}

// StopRequest asks the daemon process to shut down.
type StopRequest struct{}

// StopResponse acknowledges a stop request.
type StopResponse struct {
	Stopping bool `json:"stopping"`
}

// FromQueueRecord converts a queue record to its wire form.
func FromQueueRecord(r syncqueue.Record) Record {
	return Record{
		ArticleID: r.ArticleID,
		Key:       r.Key.String(),
		Flag:      r.Flag,
		State:     string(r.State),
		UpdatedAt: r.UpdatedAt,
	}
}
