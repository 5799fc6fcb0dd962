package syncengine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"articlesync/internal/config"
	"articlesync/internal/logging"
	"articlesync/internal/syncqueue"
)

const settleTimeout = 10 * time.Second

// Queue is the subset of the sync queue the engine consumes.
type Queue interface {
	ClaimAllUnclaimed(ctx context.Context) ([]syncqueue.Record, error)
	Commit(ctx context.Context, articleIDs []string) error
	Release(ctx context.Context, articleIDs []string) error
	ReleaseAllClaimed(ctx context.Context) (int64, error)
}

// Sender delivers one batch of status changes to the remote service.
type Sender interface {
	SendStatuses(ctx context.Context, batch Batch) error
}

// Options tunes engine cadence and batch sizing.
type Options struct {
	PollInterval       time.Duration
	ErrorRetryInterval time.Duration
	MaxBatchSize       int
}

// OptionsFromConfig derives engine options from configuration.
func OptionsFromConfig(cfg *config.Config) Options {
	if cfg == nil {
		return Options{}
	}
	return Options{
		PollInterval:       time.Duration(cfg.Sync.PollInterval) * time.Second,
		ErrorRetryInterval: time.Duration(cfg.Sync.ErrorRetryInterval) * time.Second,
		MaxBatchSize:       cfg.Sync.MaxBatchSize,
	}
}

func (o Options) withDefaults() Options {
	if o.PollInterval <= 0 {
		o.PollInterval = time.Minute
	}
	if o.ErrorRetryInterval <= 0 {
		o.ErrorRetryInterval = 2 * time.Minute
	}
	return o
}

// Engine runs sync cycles against a queue and sender.
type Engine struct {
	queue  Queue
	sender Sender
	logger *slog.Logger
	opts   Options

	cycleMu sync.Mutex
	trigger chan struct{}

	mu         sync.Mutex
	running    bool
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	lastResult *Result
	lastError  string
	lastRunAt  time.Time
	cycles     int64
	recovered  int64
}

// New constructs an engine. A nil logger discards output.
func New(queue Queue, sender Sender, logger *slog.Logger, opts Options) *Engine {
	return &Engine{
		queue:   queue,
		sender:  sender,
		logger:  logging.NewComponentLogger(logger, "engine"),
		opts:    opts.withDefaults(),
		trigger: make(chan struct{}, 1),
	}
}

// Start releases abandoned claims and begins the background loop.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return errors.New("sync engine already running")
	}
	e.mu.Unlock()

	released, err := e.queue.ReleaseAllClaimed(ctx)
	if err != nil {
		return err
	}
	if released > 0 {
		logging.WarnWithContext(e.logger, "released claims left by an interrupted cycle", "claims_recovered",
			logging.Int64("released", released),
			logging.String(logging.FieldErrorHint, "previous run stopped before finishing a cycle"),
			logging.String(logging.FieldImpact, "affected statuses will be sent again"),
		)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return errors.New("sync engine already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.running = true
	e.recovered += released
	e.wg.Add(1)
	go e.loop(runCtx)
	return nil
}

// Stop terminates the loop and waits for an in-flight cycle to settle.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	cancel := e.cancel
	e.running = false
	e.cancel = nil
	e.mu.Unlock()

	cancel()
	e.wg.Wait()
}

// Trigger wakes the loop so the next cycle starts immediately.
func (e *Engine) Trigger() {
	select {
	case e.trigger <- struct{}{}:
	default:
	}
}

func (e *Engine) loop(ctx context.Context) {
	defer e.wg.Done()
	for {
		if ctx.Err() != nil {
			return
		}
		wait := e.opts.PollInterval
		if _, err := e.RunOnce(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			wait = e.opts.ErrorRetryInterval
		}
		select {
		case <-ctx.Done():
			return
		case <-e.trigger:
		case <-time.After(wait):
		}
	}
}

// ReleaseClaims returns every claimed record to pending. It waits for an
// in-flight cycle to settle first so a running batch is never released under it.
func (e *Engine) ReleaseClaims(ctx context.Context) (int64, error) {
	e.cycleMu.Lock()
	defer e.cycleMu.Unlock()
	released, err := e.queue.ReleaseAllClaimed(ctx)
	if err != nil {
		return 0, err
	}
	e.mu.Lock()
	e.recovered += released
	e.mu.Unlock()
	return released, nil
}

// RunOnce performs a single claim/deliver/settle cycle. It returns an error
// when the queue itself fails; delivery failures are reported in the Result
// and leave the affected articles released for retry.
func (e *Engine) RunOnce(ctx context.Context) (Result, error) {
	e.cycleMu.Lock()
	defer e.cycleMu.Unlock()

	started := time.Now()
	result := Result{CycleID: uuid.NewString()}
	ctx = logging.WithCycleID(ctx, result.CycleID)
	logger := logging.WithContext(ctx, e.logger)

	result, err := e.runCycle(ctx, logger, result)
	result.Duration = time.Since(started)
	e.recordCycle(started, result, err)
	return result, err
}

func (e *Engine) runCycle(ctx context.Context, logger *slog.Logger, result Result) (Result, error) {
	claimed, err := e.queue.ClaimAllUnclaimed(ctx)
	if err != nil {
		logging.ErrorWithContext(logger, "claim pending statuses failed", "claim_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check queue database access"),
		)
		return result, err
	}
	result.Claimed = len(claimed)
	if len(claimed) == 0 {
		logger.Debug("no pending statuses")
		return result, nil
	}

	batches := GroupBatches(claimed, e.opts.MaxBatchSize)
	result.Batches = len(batches)
	logger.Info("sync cycle started",
		logging.Int("records", len(claimed)),
		logging.Int("batches", len(batches)),
	)

	failed := make(map[string]struct{})
	for _, batch := range batches {
		if err := e.sender.SendStatuses(ctx, batch); err != nil {
			result.FailedBatches++
			for _, id := range batch.ArticleIDs {
				failed[id] = struct{}{}
			}
			logging.WarnWithContext(logger, "status batch delivery failed", "batch_failed",
				logging.Error(err),
				logging.Bool("retryable", Retryable(err)),
				logging.String(logging.FieldStatusKey, batch.Key.String()),
				logging.Bool("flag", batch.Flag),
				logging.Int("articles", len(batch.ArticleIDs)),
				logging.String(logging.FieldErrorHint, "check remote availability and credentials"),
				logging.String(logging.FieldImpact, "articles stay queued and are retried next cycle"),
			)
			continue
		}
		logger.Debug("status batch delivered",
			logging.String(logging.FieldStatusKey, batch.Key.String()),
			logging.Bool("flag", batch.Flag),
			logging.Int("articles", len(batch.ArticleIDs)),
		)
	}

	result.Committed, result.Released = splitArticles(claimed, failed)

	// Settle even when ctx was cancelled mid-delivery so claims never linger.
	settleCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), settleTimeout)
	defer cancel()

	if len(result.Released) > 0 {
		if err := e.queue.Release(settleCtx, result.Released); err != nil {
			logging.ErrorWithContext(logger, "release failed batches failed", "release_failed",
				logging.Error(err),
				logging.Int("articles", len(result.Released)),
				logging.String(logging.FieldErrorHint, "claims are recovered on the next cycle or restart"),
			)
			return result, err
		}
	}
	if len(result.Committed) > 0 {
		if err := e.queue.Commit(settleCtx, result.Committed); err != nil {
			logging.ErrorWithContext(logger, "commit delivered statuses failed", "commit_failed",
				logging.Error(err),
				logging.Int("articles", len(result.Committed)),
				logging.String(logging.FieldErrorHint, "delivered statuses will be sent again"),
			)
			return result, err
		}
	}

	logger.Info("sync cycle finished",
		logging.Int("committed", len(result.Committed)),
		logging.Int("released", len(result.Released)),
		logging.Int("failed_batches", result.FailedBatches),
	)
	if err := ctx.Err(); err != nil {
		return result, err
	}
	return result, nil
}

func (e *Engine) recordCycle(started time.Time, result Result, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cycles++
	e.lastRunAt = started
	res := result
	e.lastResult = &res
	switch {
	case err != nil:
		e.lastError = err.Error()
	case result.FailedBatches > 0:
		e.lastError = "one or more batches failed delivery"
	default:
		e.lastError = ""
	}
}
