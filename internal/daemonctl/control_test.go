package daemonctl_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"articlesync/internal/daemon"
	"articlesync/internal/daemonctl"
	"articlesync/internal/ipc"
	"articlesync/internal/testsupport"
)

func startDaemon(t *testing.T) (string, chan struct{}) {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithSyncDisabled())
	store := testsupport.MustOpenStore(t, cfg)
	d, err := daemon.New(cfg, store, nil, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	if err := d.Start(ctx); err != nil {
		cancel()
		t.Fatalf("daemon Start: %v", err)
	}

	stopped := make(chan struct{})
	var srv *ipc.Server
	srv, err = ipc.NewServer(ctx, cfg.SocketPath(), d, nil, func() {
		srv.Close()
		close(stopped)
	})
	if err != nil {
		cancel()
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()
	t.Cleanup(func() {
		cancel()
		select {
		case <-stopped:
		default:
			srv.Close()
		}
		d.Stop()
	})
	return cfg.SocketPath(), stopped
}

func TestEnsureStartedReportsRunningDaemon(t *testing.T) {
	socket, _ := startDaemon(t)
	result, err := daemonctl.EnsureStarted(socket, "", daemonctl.LaunchOptions{}, time.Second)
	if err != nil {
		t.Fatalf("EnsureStarted: %v", err)
	}
	if result.State != daemonctl.StartStateAlreadyRunning {
		t.Fatalf("expected already running, got %s", result.State)
	}
	if result.PID != os.Getpid() {
		t.Fatalf("expected pid %d, got %d", os.Getpid(), result.PID)
	}
}

func TestEnsureStartedRequiresExecutableWhenNotRunning(t *testing.T) {
	socket := filepath.Join(t.TempDir(), "missing.sock")
	if _, err := daemonctl.EnsureStarted(socket, "", daemonctl.LaunchOptions{}, time.Second); err == nil {
		t.Fatal("expected launch error for empty executable path")
	}
}

func TestStopAndTerminateGraceful(t *testing.T) {
	socket, stopped := startDaemon(t)

	result, err := daemonctl.StopAndTerminate(socket, nil, 5*time.Second)
	if err != nil {
		t.Fatalf("StopAndTerminate: %v", err)
	}
	if !result.StopAcknowledged {
		t.Fatal("expected stop acknowledgement")
	}
	if result.ForcedKill {
		t.Fatal("did not expect forced kill")
	}
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("shutdown callback not invoked")
	}

	alive, _, err := daemonctl.ProcessInfo(socket)
	if err != nil {
		t.Fatalf("ProcessInfo: %v", err)
	}
	if alive {
		t.Fatal("expected daemon socket gone")
	}
}

func TestStopAndTerminateNotRunning(t *testing.T) {
	socket := filepath.Join(t.TempDir(), "missing.sock")
	_, err := daemonctl.StopAndTerminate(socket, nil, time.Second)
	if !errors.Is(err, daemonctl.ErrDaemonNotRunning) {
		t.Fatalf("expected ErrDaemonNotRunning, got %v", err)
	}
}

func TestReadPIDFile(t *testing.T) {
	dir := t.TempDir()

	pid, err := daemonctl.ReadPIDFile(filepath.Join(dir, "absent.pid"))
	if err != nil || pid != 0 {
		t.Fatalf("expected 0,nil for missing file, got %d,%v", pid, err)
	}

	valid := filepath.Join(dir, "valid.pid")
	if err := os.WriteFile(valid, []byte("4242\n"), 0o644); err != nil {
		t.Fatalf("write pid: %v", err)
	}
	pid, err = daemonctl.ReadPIDFile(valid)
	if err != nil || pid != 4242 {
		t.Fatalf("expected 4242, got %d,%v", pid, err)
	}

	invalid := filepath.Join(dir, "invalid.pid")
	if err := os.WriteFile(invalid, []byte("abc"), 0o644); err != nil {
		t.Fatalf("write pid: %v", err)
	}
	if _, err := daemonctl.ReadPIDFile(invalid); err == nil {
		t.Fatal("expected error for invalid pid")
	}
}

func TestForceKillRefusesCurrentProcess(t *testing.T) {
	pidPath := filepath.Join(t.TempDir(), "articlesync.pid")
	if err := os.WriteFile(pidPath, []byte(strconv.Itoa(os.Getpid())), 0o644); err != nil {
		t.Fatalf("write pid: %v", err)
	}
	_, err := daemonctl.ForceKillProcess(pidPath, "", 0)
	if err == nil || !strings.Contains(err.Error(), "refusing") {
		t.Fatalf("expected refusal, got %v", err)
	}
	if _, statErr := os.Stat(pidPath); statErr != nil {
		t.Fatalf("pid file should be kept: %v", statErr)
	}
}

func TestLaunchArgs(t *testing.T) {
	args := daemonctl.LaunchArgs(daemonctl.LaunchOptions{
		SocketPath: "/tmp/a.sock",
		ConfigPath: " /etc/articlesync.toml ",
		LogLevel:   "debug",
	})
	want := "daemon --socket /tmp/a.sock --config /etc/articlesync.toml --log-level debug"
	if got := strings.Join(args, " "); got != want {
		t.Fatalf("unexpected args %q", got)
	}
	if got := strings.Join(daemonctl.LaunchArgs(daemonctl.LaunchOptions{}), " "); got != "daemon" {
		t.Fatalf("unexpected default args %q", got)
	}
}
