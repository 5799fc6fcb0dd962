package main

import (
	"context"
	"encoding/json"
	"testing"

	"articlesync/internal/syncqueue"
	"articlesync/internal/testsupport"
)

func TestStatusViaDaemon(t *testing.T) {
	env := setupCLITestEnv(t, withEngine())
	testsupport.MustUpsert(t, env.store, testsupport.Record("a1", syncqueue.StatusRead, true))

	out, _, err := runCLI(t, []string{"status"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "System Status")
	requireContains(t, out, "running (pid")
	requireContains(t, out, "Sync engine")
	requireContains(t, out, "Key read")

	out, _, err = runCLI(t, []string{"--json", "status"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("status json: %v", err)
	}
	var view statusView
	if err := json.Unmarshal([]byte(out), &view); err != nil {
		t.Fatalf("decode status %q: %v", out, err)
	}
	if view.Daemon == nil || !view.Daemon.Running || !view.Daemon.SyncEnabled {
		t.Fatalf("unexpected daemon status %+v", view.Daemon)
	}
	if view.Queue.Total != 1 || view.Queue.Pending != 1 {
		t.Fatalf("unexpected queue stats %+v", view.Queue)
	}
}

func TestOfflineCommandsUseStore(t *testing.T) {
	env := setupCLITestEnv(t, offline())

	out, _, err := runCLI(t, []string{"mark", "a1", "--starred"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("mark: %v", err)
	}
	requireContains(t, out, "Queued 1 status changes")

	out, _, err = runCLI(t, []string{"status"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "not running")
	requireContains(t, out, "Key starred")

	out, _, err = runCLI(t, []string{"release-claims"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("release-claims: %v", err)
	}
	requireContains(t, out, "Released 0 claimed records")

	out, _, err = runCLI(t, []string{"stop"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	requireContains(t, out, "Daemon is not running")
}

func TestOfflineSyncReleasesOnDeliveryFailure(t *testing.T) {
	env := setupCLITestEnv(t, offline())

	if _, _, err := runCLI(t, []string{"mark", "a1", "--read"}, env.socketPath, env.configPath); err != nil {
		t.Fatalf("mark: %v", err)
	}

	out, _, err := runCLI(t, []string{"sync"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	requireContains(t, out, "Released 1 articles for retry: a1")

	store := testsupport.MustOpenStore(t, env.cfg)
	ids, err := store.PendingArticleIDs(context.Background(), syncqueue.StatusRead)
	if err != nil {
		t.Fatalf("PendingArticleIDs: %v", err)
	}
	if len(ids) != 1 || ids[0] != "a1" {
		t.Fatalf("expected a1 to stay pending, got %v", ids)
	}
}
