package daemonrun_test

import (
	"context"
	"os"
	"testing"
	"time"

	"articlesync/internal/daemonrun"
	"articlesync/internal/ipc"
	"articlesync/internal/testsupport"
)

func TestRunServesIPCUntilStopped(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Logging.Level = "error"
	sender := testsupport.NewRecordingSender()
	ready := make(chan struct{})

	errCh := make(chan error, 1)
	go func() {
		errCh <- daemonrun.Run(context.Background(), cfg, daemonrun.Options{Sender: sender, Ready: ready})
	}()

	select {
	case <-ready:
	case err := <-errCh:
		t.Fatalf("Run exited early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("daemon did not become ready")
	}

	if _, err := os.Stat(cfg.PIDPath()); err != nil {
		t.Fatalf("expected pid file: %v", err)
	}

	client, err := ipc.Dial(cfg.SocketPath())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	if _, err := client.Mark([]string{"a1"}, "starred", true); err != nil {
		t.Fatalf("Mark: %v", err)
	}
	if _, err := client.Sync(); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if _, err := client.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	_ = client.Close()

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("daemon did not stop")
	}

	if len(sender.Batches()) == 0 {
		t.Fatal("expected marked status delivered")
	}
	if _, err := os.Stat(cfg.SocketPath()); !os.IsNotExist(err) {
		t.Fatalf("expected socket removed, stat err=%v", err)
	}
	if _, err := os.Stat(cfg.PIDPath()); !os.IsNotExist(err) {
		t.Fatalf("expected pid file removed, stat err=%v", err)
	}
}

func TestRunRequiresRemoteWhenSyncEnabled(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithRemote(""))
	cfg.Logging.Level = "error"
	if err := daemonrun.Run(context.Background(), cfg, daemonrun.Options{}); err == nil {
		t.Fatal("expected error without remote endpoint")
	}
}
