package testsupport

import (
	"context"
	"testing"

	"articlesync/internal/config"
	"articlesync/internal/syncqueue"
)

// MustOpenStore opens the queue store for cfg and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *syncqueue.Store {
	t.Helper()

	store, err := syncqueue.Open(cfg)
	if err != nil {
		t.Fatalf("syncqueue.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

// MustUpsert writes records and fails the test on error.
func MustUpsert(t testing.TB, store *syncqueue.Store, records ...syncqueue.Record) {
	t.Helper()

	if err := store.Upsert(context.Background(), records); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
}

// Record builds a pending record for tests.
func Record(articleID string, key syncqueue.StatusKey, flag bool) syncqueue.Record {
	return syncqueue.Record{ArticleID: articleID, Key: key, Flag: flag}
}
