package testsupport

import (
	"context"
	"errors"
	"sync"

	"articlesync/internal/syncengine"
)

// ErrSendFailed is returned by RecordingSender for batches configured to fail.
var ErrSendFailed = errors.New("send failed")

// RecordingSender captures delivered batches and can fail selected ones.
type RecordingSender struct {
	mu      sync.Mutex
	batches []syncengine.Batch
	failFn  func(syncengine.Batch) bool
	hook    func(syncengine.Batch)
}

// NewRecordingSender returns a sender that accepts every batch.
func NewRecordingSender() *RecordingSender {
	return &RecordingSender{}
}

// FailWhen makes SendStatuses fail for batches matching fn.
func (s *RecordingSender) FailWhen(fn func(syncengine.Batch) bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failFn = fn
}

// OnSend registers a hook that runs before each delivery decision.
func (s *RecordingSender) OnSend(fn func(syncengine.Batch)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hook = fn
}

// SendStatuses records the batch and reports the configured outcome.
func (s *RecordingSender) SendStatuses(ctx context.Context, batch syncengine.Batch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	hook := s.hook
	fail := s.failFn
	s.mu.Unlock()

	if hook != nil {
		hook(batch)
	}
	if fail != nil && fail(batch) {
		return ErrSendFailed
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, len(batch.ArticleIDs))
	copy(ids, batch.ArticleIDs)
	batch.ArticleIDs = ids
	s.batches = append(s.batches, batch)
	return nil
}

// Batches returns the successfully delivered batches in order.
func (s *RecordingSender) Batches() []syncengine.Batch {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]syncengine.Batch, len(s.batches))
	copy(out, s.batches)
	return out
}

// Reset drops all recorded batches.
func (s *RecordingSender) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = nil
}
