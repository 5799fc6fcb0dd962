package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"articlesync/internal/config"
	"articlesync/internal/logging"
	"articlesync/internal/syncengine"
	"articlesync/internal/syncqueue"
)

// ErrSyncDisabled is returned by operations that need the sync engine when it is not configured.
var ErrSyncDisabled = errors.New("sync engine disabled")

// Daemon coordinates the sync engine and enforces single-instance execution.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger
	store  *syncqueue.Store
	engine *syncengine.Engine

	lockPath string
	lock     *flock.Flock

	running   atomic.Bool
	startedAt atomic.Int64
	cancel    context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool                      `json:"running"`
	PID          int                       `json:"pid"`
	StartedAt    time.Time                 `json:"started_at"`
	SyncEnabled  bool                      `json:"sync_enabled"`
	RemoteURL    string                    `json:"remote_url,omitempty"`
	Engine       *syncengine.StatusSummary `json:"engine,omitempty"`
	Queue        syncqueue.Stats           `json:"queue"`
	QueueError   string                    `json:"queue_error,omitempty"`
	QueueDBPath  string                    `json:"queue_db_path"`
	LockFilePath string                    `json:"lock_file_path"`
}

// New constructs a daemon. engine may be nil when background sync is disabled.
func New(cfg *config.Config, store *syncqueue.Store, logger *slog.Logger, engine *syncengine.Engine) (*Daemon, error) {
	if cfg == nil || store == nil {
		return nil, errors.New("daemon requires config and store")
	}
	lockPath := cfg.LockPath()
	return &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		engine:   engine,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start acquires the daemon lock and launches the sync engine.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another articlesync daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	if d.engine != nil {
		if err := d.engine.Start(runCtx); err != nil {
			cancel()
			_ = d.lock.Unlock()
			return fmt.Errorf("start sync engine: %w", err)
		}
	} else {
		logging.WarnWithContext(d.logger, "sync engine disabled; statuses will queue without delivery", "sync_disabled",
			logging.String(logging.FieldErrorHint, "set remote.base_url and sync.enabled in the config"),
			logging.String(logging.FieldImpact, "pending statuses accumulate until sync is enabled"),
		)
	}

	d.cancel = cancel
	d.startedAt.Store(time.Now().UnixNano())
	d.running.Store(true)
	d.logger.Info("articlesync daemon started",
		logging.String("lock", d.lockPath),
		logging.String("queue_db", d.store.Path()),
		logging.Bool("sync_enabled", d.engine != nil),
	)
	return nil
}

// Stop stops background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if d.engine != nil {
		d.engine.Stop()
	}
	if err := d.lock.Unlock(); err != nil {
		logging.WarnWithContext(d.logger, "failed to release daemon lock", "lock_release_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "remove "+d.lockPath+" if the next start fails"),
		)
	}
	d.running.Store(false)
	d.logger.Info("articlesync daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Status returns daemon and queue state.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		SyncEnabled:  d.engine != nil,
		RemoteURL:    d.cfg.Remote.BaseURL,
		QueueDBPath:  d.store.Path(),
		LockFilePath: d.lockPath,
	}
	if ts := d.startedAt.Load(); ts > 0 && status.Running {
		status.StartedAt = time.Unix(0, ts)
	}
	if d.engine != nil {
		summary := d.engine.Status()
		status.Engine = &summary
	}
	stats, err := d.store.Stats(ctx)
	if err != nil {
		status.QueueError = err.Error()
	} else {
		status.Queue = stats
	}
	return status
}

// Mark records the desired flag for key on every listed article and wakes the engine.
func (d *Daemon) Mark(ctx context.Context, articleIDs []string, key syncqueue.StatusKey, flag bool) (int, error) {
	records := make([]syncqueue.Record, 0, len(articleIDs))
	for _, id := range articleIDs {
		records = append(records, syncqueue.Record{ArticleID: id, Key: key, Flag: flag})
	}
	if err := d.store.Upsert(ctx, records); err != nil {
		return 0, err
	}
	d.logger.Debug("statuses queued",
		logging.String(logging.FieldStatusKey, key.String()),
		logging.Bool("flag", flag),
		logging.Int("articles", len(records)),
	)
	if d.engine != nil && len(records) > 0 {
		d.engine.Trigger()
	}
	return len(records), nil
}

// Discard drops the pending record for (articleID, key).
func (d *Daemon) Discard(ctx context.Context, articleID string, key syncqueue.StatusKey) (bool, error) {
	return d.store.Discard(ctx, articleID, key)
}

// PendingCount returns the number of queued records regardless of claim state.
func (d *Daemon) PendingCount(ctx context.Context) (int, error) {
	return d.store.PendingCount(ctx)
}

// PendingArticleIDs returns ids with an unclaimed record of key.
func (d *Daemon) PendingArticleIDs(ctx context.Context, key syncqueue.StatusKey) ([]string, error) {
	return d.store.PendingArticleIDs(ctx, key)
}

// ListRecords returns queued records, optionally filtered by state.
func (d *Daemon) ListRecords(ctx context.Context, states []syncqueue.State) ([]syncqueue.Record, error) {
	return d.store.List(ctx, states...)
}

// Stats returns aggregate queue counts.
func (d *Daemon) Stats(ctx context.Context) (syncqueue.Stats, error) {
	return d.store.Stats(ctx)
}

// DatabaseHealth returns detailed database diagnostics.
func (d *Daemon) DatabaseHealth(ctx context.Context) (syncqueue.DatabaseHealth, error) {
	return d.store.CheckHealth(ctx)
}

// SyncNow runs one sync cycle immediately.
func (d *Daemon) SyncNow(ctx context.Context) (syncengine.Result, error) {
	if d.engine == nil {
		return syncengine.Result{}, ErrSyncDisabled
	}
	return d.engine.RunOnce(ctx)
}

// ReleaseClaims returns claimed records to pending.
func (d *Daemon) ReleaseClaims(ctx context.Context) (int64, error) {
	if d.engine != nil {
		return d.engine.ReleaseClaims(ctx)
	}
	return d.store.ReleaseAllClaimed(ctx)
}

// LockPath returns the daemon lock file location.
func (d *Daemon) LockPath() string {
	return d.lockPath
}

