package syncengine

import "time"

// Result summarizes one sync cycle.
type Result struct {
	CycleID       string        `json:"cycle_id"`
	Claimed       int           `json:"claimed"`
	Batches       int           `json:"batches"`
	FailedBatches int           `json:"failed_batches"`
	Committed     []string      `json:"committed,omitempty"`
	Released      []string      `json:"released,omitempty"`
	Duration      time.Duration `json:"duration"`
}

// StatusSummary describes the engine state for status reporting.
type StatusSummary struct {
	Running          bool      `json:"running"`
	Cycles           int64     `json:"cycles"`
	RecoveredClaims  int64     `json:"recovered_claims"`
	LastRunAt        time.Time `json:"last_run_at"`
	LastCycleID      string    `json:"last_cycle_id,omitempty"`
	LastClaimed      int       `json:"last_claimed"`
	LastCommitted    int       `json:"last_committed"`
	LastReleased     int       `json:"last_released"`
	LastError        string    `json:"last_error,omitempty"`
	PollInterval     string    `json:"poll_interval"`
	ErrorRetryPeriod string    `json:"error_retry_interval"`
}

// Status returns a snapshot of engine state.
func (e *Engine) Status() StatusSummary {
	e.mu.Lock()
	defer e.mu.Unlock()
	summary := StatusSummary{
		Running:          e.running,
		Cycles:           e.cycles,
		RecoveredClaims:  e.recovered,
		LastRunAt:        e.lastRunAt,
		LastError:        e.lastError,
		PollInterval:     e.opts.PollInterval.String(),
		ErrorRetryPeriod: e.opts.ErrorRetryInterval.String(),
	}
	if e.lastResult != nil {
		summary.LastCycleID = e.lastResult.CycleID
		summary.LastClaimed = e.lastResult.Claimed
		summary.LastCommitted = len(e.lastResult.Committed)
		summary.LastReleased = len(e.lastResult.Released)
	}
	return summary
}
