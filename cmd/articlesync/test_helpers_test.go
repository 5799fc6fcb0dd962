package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"articlesync/internal/config"
	"articlesync/internal/daemon"
	"articlesync/internal/ipc"
	"articlesync/internal/syncengine"
	"articlesync/internal/syncqueue"
	"articlesync/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	store      *syncqueue.Store
	daemon     *daemon.Daemon
	sender     *testsupport.RecordingSender
	socketPath string
	configPath string
}

type envOption func(*envSettings)

type envSettings struct {
	withEngine bool
	withDaemon bool
}

func withEngine() envOption {
	return func(s *envSettings) { s.withEngine = true }
}

func offline() envOption {
	return func(s *envSettings) { s.withDaemon = false }
}

func setupCLITestEnv(t *testing.T, opts ...envOption) *cliTestEnv {
	t.Helper()

	settings := envSettings{withDaemon: true}
	for _, opt := range opts {
		opt(&settings)
	}

	cfg := testsupport.NewConfig(t)
	t.Setenv("HOME", filepath.Join(testsupport.BaseDir(cfg), "home"))
	t.Setenv("ARTICLESYNC_REMOTE_URL", "")
	t.Setenv("ARTICLESYNC_API_TOKEN", "")
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}

	configPath := filepath.Join(testsupport.BaseDir(cfg), "articlesync.toml")
	writeTestConfig(t, configPath, cfg)

	env := &cliTestEnv{
		cfg:        cfg,
		socketPath: cfg.SocketPath(),
		configPath: configPath,
	}
	if !settings.withDaemon {
		return env
	}

	store := testsupport.MustOpenStore(t, cfg)
	env.store = store

	var engine *syncengine.Engine
	if settings.withEngine {
		env.sender = testsupport.NewRecordingSender()
		engine = syncengine.New(store, env.sender, nil, syncengine.Options{
			PollInterval:       time.Hour,
			ErrorRetryInterval: time.Hour,
		})
	}

	d, err := daemon.New(cfg, store, nil, engine)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	env.daemon = d

	ctx, cancel := context.WithCancel(context.Background())
	if err := d.Start(ctx); err != nil {
		cancel()
		t.Fatalf("daemon Start: %v", err)
	}

	srv, err := ipc.NewServer(ctx, env.socketPath, d, nil, nil)
	if err != nil {
		cancel()
		d.Stop()
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()

	t.Cleanup(func() {
		cancel()
		srv.Close()
		d.Stop()
	})

	if engine != nil {
		// The loop runs its first cycle on start; let it drain before tests seed records.
		waitFor(t, 5*time.Second, func() bool {
			return engine.Status().Cycles > 0
		})
	}
	return env
}

func runCLI(t *testing.T, args []string, socket, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	flags := []string{"--socket", socket}
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content := fmt.Sprintf(
		"[paths]\nstate_dir = %q\nlog_dir = %q\n\n[remote]\nbase_url = %q\napi_token = %q\n\n[sync]\nenabled = %t\npoll_interval = %d\nerror_retry_interval = %d\n\n[logging]\nlevel = \"error\"\n",
		cfg.Paths.StateDir,
		cfg.Paths.LogDir,
		cfg.Remote.BaseURL,
		cfg.Remote.APIToken,
		cfg.Sync.Enabled,
		cfg.Sync.PollInterval,
		cfg.Sync.ErrorRetryInterval,
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func waitFor(t *testing.T, duration time.Duration, fn func() bool) {
	t.Helper()
	deadline := time.Now().Add(duration)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", duration)
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
