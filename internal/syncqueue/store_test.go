package syncqueue_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"articlesync/internal/syncqueue"
	"articlesync/internal/testsupport"
)

func recordKeys(records []syncqueue.Record) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, fmt.Sprintf("%s/%s/%t/%s", r.ArticleID, r.Key, r.Flag, r.State))
	}
	return out
}

func sameKeys(t *testing.T, got []syncqueue.Record, want ...string) {
	t.Helper()
	keys := recordKeys(got)
	if len(keys) != len(want) {
		t.Fatalf("unexpected records: got %v want %v", keys, want)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("unexpected records: got %v want %v", keys, want)
		}
	}
}

func mustCount(t *testing.T, store *syncqueue.Store, want int) {
	t.Helper()
	count, err := store.PendingCount(context.Background())
	if err != nil {
		t.Fatalf("PendingCount: %v", err)
	}
	if count != want {
		t.Fatalf("expected %d records, got %d", want, count)
	}
}

func TestClaimCommitRemovesRecord(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.MustUpsert(t, store, testsupport.Record("a1", syncqueue.StatusRead, true))
	mustCount(t, store, 1)

	claimed, err := store.ClaimAllUnclaimed(ctx)
	if err != nil {
		t.Fatalf("ClaimAllUnclaimed: %v", err)
	}
	sameKeys(t, claimed, "a1/read/true/claimed")
	if !claimed[0].Claimed() {
		t.Fatal("expected claimed helper to report true")
	}

	if err := store.Commit(ctx, []string{"a1"}); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	mustCount(t, store, 0)
}

func TestUpsertLastWriteWins(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.MustUpsert(t, store, testsupport.Record("a1", syncqueue.StatusRead, true))
	testsupport.MustUpsert(t, store, testsupport.Record("a1", syncqueue.StatusRead, false))

	mustCount(t, store, 1)
	record, err := store.Get(ctx, "a1", syncqueue.StatusRead)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if record == nil || record.Flag {
		t.Fatalf("expected single record with flag=false, got %#v", record)
	}
	if record.State != syncqueue.StatePending {
		t.Fatalf("expected pending state, got %q", record.State)
	}
}

func TestUpsertWithinBatchKeepsLastValue(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	testsupport.MustUpsert(t, store,
		testsupport.Record("a1", syncqueue.StatusStarred, true),
		testsupport.Record("a1", syncqueue.StatusStarred, false),
		testsupport.Record("a1", syncqueue.StatusRead, true),
	)
	records, err := store.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	sameKeys(t, records, "a1/read/true/pending", "a1/starred/false/pending")
}

func TestUpsertIsIdempotent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	rec := testsupport.Record("a1", syncqueue.StatusRead, true)
	testsupport.MustUpsert(t, store, rec)
	if _, err := store.ClaimAllUnclaimed(ctx); err != nil {
		t.Fatalf("ClaimAllUnclaimed: %v", err)
	}
	testsupport.MustUpsert(t, store, rec)

	if err := store.Commit(ctx, []string{"a1"}); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	mustCount(t, store, 0)
}

func TestReleaseMakesRecordClaimableAgain(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.MustUpsert(t, store, testsupport.Record("a1", syncqueue.StatusStarred, true))
	if _, err := store.ClaimAllUnclaimed(ctx); err != nil {
		t.Fatalf("ClaimAllUnclaimed: %v", err)
	}
	if err := store.Release(ctx, []string{"a1"}); err != nil {
		t.Fatalf("Release: %v", err)
	}
	mustCount(t, store, 1)

	record, err := store.Get(ctx, "a1", syncqueue.StatusStarred)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if record == nil || record.Claimed() || !record.Flag {
		t.Fatalf("expected unclaimed record keeping flag, got %#v", record)
	}

	again, err := store.ClaimAllUnclaimed(ctx)
	if err != nil {
		t.Fatalf("ClaimAllUnclaimed: %v", err)
	}
	sameKeys(t, again, "a1/starred/true/claimed")
}

func TestCommitOnlyTouchesListedArticles(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.MustUpsert(t, store,
		testsupport.Record("a1", syncqueue.StatusRead, true),
		testsupport.Record("a1", syncqueue.StatusStarred, true),
		testsupport.Record("a2", syncqueue.StatusRead, false),
	)
	claimed, err := store.ClaimAllUnclaimed(ctx)
	if err != nil {
		t.Fatalf("ClaimAllUnclaimed: %v", err)
	}
	if len(claimed) != 3 {
		t.Fatalf("expected both articles claimed, got %v", recordKeys(claimed))
	}

	if err := store.Commit(ctx, []string{"a1"}); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	mustCount(t, store, 1)
	remaining, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	sameKeys(t, remaining, "a2/read/false/claimed")
}

func TestClaimIsReentrant(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.MustUpsert(t, store,
		testsupport.Record("a1", syncqueue.StatusRead, true),
		testsupport.Record("a2", syncqueue.StatusStarred, false),
	)
	first, err := store.ClaimAllUnclaimed(ctx)
	if err != nil {
		t.Fatalf("first claim: %v", err)
	}
	second, err := store.ClaimAllUnclaimed(ctx)
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	sameKeys(t, second, recordKeys(first)...)
	mustCount(t, store, 2)
}

func TestClaimIncludesNewlyPendingAlongsidePriorClaims(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.MustUpsert(t, store, testsupport.Record("a1", syncqueue.StatusRead, true))
	if _, err := store.ClaimAllUnclaimed(ctx); err != nil {
		t.Fatalf("claim: %v", err)
	}
	testsupport.MustUpsert(t, store, testsupport.Record("a2", syncqueue.StatusRead, true))

	claimed, err := store.ClaimAllUnclaimed(ctx)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	sameKeys(t, claimed, "a1/read/true/claimed", "a2/read/true/claimed")
}

func TestClaimEmptyQueue(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	claimed, err := store.ClaimAllUnclaimed(context.Background())
	if err != nil {
		t.Fatalf("ClaimAllUnclaimed: %v", err)
	}
	if claimed == nil || len(claimed) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", claimed)
	}
}

func TestUpsertWhileClaimedRefreshesFlagAndKeepsClaim(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.MustUpsert(t, store, testsupport.Record("a1", syncqueue.StatusRead, true))
	if _, err := store.ClaimAllUnclaimed(ctx); err != nil {
		t.Fatalf("claim: %v", err)
	}
	testsupport.MustUpsert(t, store, testsupport.Record("a1", syncqueue.StatusRead, false))

	record, err := store.Get(ctx, "a1", syncqueue.StatusRead)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if record == nil || record.Flag || !record.Claimed() {
		t.Fatalf("expected refreshed flag with claim intact, got %#v", record)
	}
	ids, err := store.PendingArticleIDs(ctx, syncqueue.StatusRead)
	if err != nil {
		t.Fatalf("PendingArticleIDs: %v", err)
	}
	if len(ids) != 0 {
		t.Fatalf("expected claimed record hidden from pending ids, got %v", ids)
	}
}

func TestCommitKeepsIntentWrittenDuringFlight(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.MustUpsert(t, store,
		testsupport.Record("a1", syncqueue.StatusRead, true),
		testsupport.Record("a1", syncqueue.StatusStarred, true),
	)
	if _, err := store.ClaimAllUnclaimed(ctx); err != nil {
		t.Fatalf("claim: %v", err)
	}
	testsupport.MustUpsert(t, store, testsupport.Record("a1", syncqueue.StatusRead, false))

	if err := store.Commit(ctx, []string{"a1"}); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	remaining, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	sameKeys(t, remaining, "a1/read/false/pending")
}

func TestCommitLeavesUnclaimedRecordsOfArticle(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.MustUpsert(t, store, testsupport.Record("a1", syncqueue.StatusRead, true))
	if _, err := store.ClaimAllUnclaimed(ctx); err != nil {
		t.Fatalf("claim: %v", err)
	}
	testsupport.MustUpsert(t, store, testsupport.Record("a1", syncqueue.StatusStarred, true))

	if err := store.Commit(ctx, []string{"a1"}); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	remaining, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	sameKeys(t, remaining, "a1/starred/true/pending")
}

func TestReleaseAllClaimed(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	released, err := store.ReleaseAllClaimed(ctx)
	if err != nil {
		t.Fatalf("ReleaseAllClaimed on empty queue: %v", err)
	}
	if released != 0 {
		t.Fatalf("expected no-op, released %d", released)
	}

	testsupport.MustUpsert(t, store,
		testsupport.Record("a1", syncqueue.StatusRead, true),
		testsupport.Record("a2", syncqueue.StatusStarred, true),
	)
	released, err = store.ReleaseAllClaimed(ctx)
	if err != nil {
		t.Fatalf("ReleaseAllClaimed without claims: %v", err)
	}
	if released != 0 {
		t.Fatalf("expected no-op without claims, released %d", released)
	}

	if _, err := store.ClaimAllUnclaimed(ctx); err != nil {
		t.Fatalf("claim: %v", err)
	}
	released, err = store.ReleaseAllClaimed(ctx)
	if err != nil {
		t.Fatalf("ReleaseAllClaimed: %v", err)
	}
	if released != 2 {
		t.Fatalf("expected 2 released, got %d", released)
	}
	claimed, err := store.List(ctx, syncqueue.StateClaimed)
	if err != nil {
		t.Fatalf("List claimed: %v", err)
	}
	if len(claimed) != 0 {
		t.Fatalf("expected no claimed records, got %v", recordKeys(claimed))
	}
}

func TestClaimsSurviveReopen(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.MustUpsert(t, store, testsupport.Record("a1", syncqueue.StatusRead, true))
	if _, err := store.ClaimAllUnclaimed(ctx); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened := testsupport.MustOpenStore(t, cfg)
	record, err := reopened.Get(ctx, "a1", syncqueue.StatusRead)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if record == nil || !record.Claimed() {
		t.Fatalf("expected claim to persist across reopen, got %#v", record)
	}
	released, err := reopened.ReleaseAllClaimed(ctx)
	if err != nil || released != 1 {
		t.Fatalf("expected recovery to release 1 record, got %d err=%v", released, err)
	}
}

func TestPendingArticleIDs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.MustUpsert(t, store,
		testsupport.Record("b", syncqueue.StatusRead, true),
		testsupport.Record("a", syncqueue.StatusRead, false),
		testsupport.Record("c", syncqueue.StatusStarred, true),
	)
	ids, err := store.PendingArticleIDs(ctx, syncqueue.StatusRead)
	if err != nil {
		t.Fatalf("PendingArticleIDs: %v", err)
	}
	if len(ids) != 2 || ids[0] != "a" || ids[1] != "b" {
		t.Fatalf("unexpected ids: %v", ids)
	}

	if _, err := store.PendingArticleIDs(ctx, syncqueue.StatusKey("pinned")); !errors.Is(err, syncqueue.ErrInvalidStatusKey) {
		t.Fatalf("expected ErrInvalidStatusKey, got %v", err)
	}
}

func TestValidationRejectsBeforeWriting(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	err := store.Upsert(ctx, []syncqueue.Record{
		testsupport.Record("a1", syncqueue.StatusRead, true),
		testsupport.Record("a2", syncqueue.StatusKey("pinned"), true),
	})
	if !errors.Is(err, syncqueue.ErrInvalidStatusKey) {
		t.Fatalf("expected ErrInvalidStatusKey, got %v", err)
	}
	if syncqueue.ErrorKind(err) != syncqueue.KindValidation {
		t.Fatalf("expected validation kind, got %q", syncqueue.ErrorKind(err))
	}
	mustCount(t, store, 0)

	if err := store.Upsert(ctx, []syncqueue.Record{testsupport.Record("  ", syncqueue.StatusRead, true)}); !errors.Is(err, syncqueue.ErrInvalidArticleID) {
		t.Fatalf("expected ErrInvalidArticleID, got %v", err)
	}
	if err := store.Release(ctx, []string{"a1", ""}); !errors.Is(err, syncqueue.ErrInvalidArticleID) {
		t.Fatalf("expected ErrInvalidArticleID from Release, got %v", err)
	}
}

func TestDiscard(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.MustUpsert(t, store,
		testsupport.Record("a1", syncqueue.StatusRead, true),
		testsupport.Record("a1", syncqueue.StatusStarred, true),
	)
	removed, err := store.Discard(ctx, "a1", syncqueue.StatusRead)
	if err != nil || !removed {
		t.Fatalf("expected discard to remove record, removed=%v err=%v", removed, err)
	}
	removed, err = store.Discard(ctx, "a1", syncqueue.StatusRead)
	if err != nil || removed {
		t.Fatalf("expected second discard to be a no-op, removed=%v err=%v", removed, err)
	}
	mustCount(t, store, 1)
}

func TestStatsAndListByState(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.MustUpsert(t, store,
		testsupport.Record("a1", syncqueue.StatusRead, true),
		testsupport.Record("a2", syncqueue.StatusStarred, true),
	)
	if _, err := store.ClaimAllUnclaimed(ctx); err != nil {
		t.Fatalf("claim: %v", err)
	}
	testsupport.MustUpsert(t, store, testsupport.Record("a3", syncqueue.StatusRead, false))

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Total != 3 || stats.Pending != 1 || stats.Claimed != 2 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if stats.PerKey[syncqueue.StatusRead] != 2 || stats.PerKey[syncqueue.StatusStarred] != 1 {
		t.Fatalf("unexpected per-key stats: %+v", stats.PerKey)
	}

	pending, err := store.List(ctx, syncqueue.StatePending)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	sameKeys(t, pending, "a3/read/false/pending")
}

func TestManyArticlesCommitInChunks(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	var records []syncqueue.Record
	var ids []string
	for i := 0; i < 1200; i++ {
		id := fmt.Sprintf("article-%04d", i)
		ids = append(ids, id)
		records = append(records, testsupport.Record(id, syncqueue.StatusRead, true))
	}
	testsupport.MustUpsert(t, store, records...)
	claimed, err := store.ClaimAllUnclaimed(ctx)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if len(claimed) != len(ids) {
		t.Fatalf("expected %d claimed, got %d", len(ids), len(claimed))
	}
	if err := store.Commit(ctx, ids[:1100]); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	mustCount(t, store, 100)
}

func TestConcurrentProducersAndConsumer(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	const producers = 6
	const perProducer = 40

	var wg sync.WaitGroup
	errCh := make(chan error, producers+1)
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				rec := testsupport.Record(fmt.Sprintf("p%d-%d", p, i), syncqueue.StatusRead, i%2 == 0)
				if err := store.Upsert(ctx, []syncqueue.Record{rec}); err != nil {
					errCh <- err
					return
				}
			}
		}(p)
	}

	delivered := make(map[string]struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		for round := 0; round < 20; round++ {
			claimed, err := store.ClaimAllUnclaimed(ctx)
			if err != nil {
				errCh <- err
				return
			}
			ids := make([]string, 0, len(claimed))
			for _, r := range claimed {
				ids = append(ids, r.ArticleID)
				delivered[r.ArticleID] = struct{}{}
			}
			if err := store.Commit(ctx, ids); err != nil {
				errCh <- err
				return
			}
		}
	}()

	wg.Wait()
	<-done
	close(errCh)
	for err := range errCh {
		t.Fatalf("concurrent operation failed: %v", err)
	}

	remaining, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	for _, r := range remaining {
		delivered[r.ArticleID] = struct{}{}
	}
	if len(delivered) != producers*perProducer {
		t.Fatalf("expected every article delivered or pending, got %d of %d", len(delivered), producers*perProducer)
	}
}

func TestClosedStoreReportsStorageUnavailable(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	_, err := store.ClaimAllUnclaimed(context.Background())
	if !errors.Is(err, syncqueue.ErrStorageUnavailable) {
		t.Fatalf("expected ErrStorageUnavailable, got %v", err)
	}
	if _, err := store.PendingCount(context.Background()); syncqueue.ErrorKind(err) != syncqueue.KindStorageUnavailable {
		t.Fatalf("expected storage_unavailable kind, got %v", err)
	}
}

func TestOpenPathRejectsDirectory(t *testing.T) {
	dir := t.TempDir()
	if _, err := syncqueue.OpenPath(dir); !errors.Is(err, syncqueue.ErrStorageUnavailable) {
		t.Fatalf("expected ErrStorageUnavailable opening a directory, got %v", err)
	}
	store, err := syncqueue.OpenPath(filepath.Join(dir, "nested", "queue.db"))
	if err != nil {
		t.Fatalf("expected nested path to open, got %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestCheckHealth(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	testsupport.MustUpsert(t, store, testsupport.Record("a1", syncqueue.StatusRead, true))

	health, err := store.CheckHealth(context.Background())
	if err != nil {
		t.Fatalf("CheckHealth: %v", err)
	}
	if !health.DatabaseExists || !health.DatabaseReadable || !health.TableExists || !health.IntegrityCheck {
		t.Fatalf("unexpected health: %+v", health)
	}
	if len(health.MissingColumns) != 0 {
		t.Fatalf("unexpected missing columns: %v", health.MissingColumns)
	}
	if health.TotalRecords != 1 || health.SchemaVersion != 1 {
		t.Fatalf("unexpected counts: %+v", health)
	}
}
