// Package daemonrun wires configuration, logging, storage, and the sync engine
// into the long-running daemon process.
package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"articlesync/internal/config"
	"articlesync/internal/daemon"
	"articlesync/internal/ipc"
	"articlesync/internal/logging"
	"articlesync/internal/remote"
	"articlesync/internal/syncengine"
	"articlesync/internal/syncqueue"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
	// SocketPath overrides the IPC socket location from configuration.
	SocketPath string
	// Sender overrides the HTTP sender built from configuration.
	Sender syncengine.Sender
	// Ready, when set, is closed once the IPC socket accepts connections.
	Ready chan<- struct{}
}

// Run starts the articlesync daemon and blocks until ctx is cancelled, a
// termination signal arrives, or a client requests shutdown.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}

	signalCtx, stopSignals := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer stopSignals()
	runCtx, shutdown := context.WithCancel(signalCtx)
	defer shutdown()

	logger, err := newLogger(cfg, opts)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	store, err := syncqueue.Open(cfg)
	if err != nil {
		logging.ErrorWithContext(logger, "open queue store failed", "queue_open_failed",
			logging.Error(err),
			logging.String("queue_db", cfg.QueuePath()),
			logging.String(logging.FieldErrorHint, "check state_dir permissions or delete the database after a schema change"),
		)
		return err
	}

	engine, err := buildEngine(cfg, store, logger, opts.Sender)
	if err != nil {
		_ = store.Close()
		return err
	}

	d, err := daemon.New(cfg, store, logger, engine)
	if err != nil {
		_ = store.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(runCtx); err != nil {
		logging.ErrorWithContext(logger, "daemon start failed", "daemon_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "stop the running daemon or check queue database access"),
		)
		return err
	}

	pidPath := cfg.PIDPath()
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	socketPath := cfg.SocketPath()
	if strings.TrimSpace(opts.SocketPath) != "" {
		socketPath = opts.SocketPath
	}
	ipcServer, err := ipc.NewServer(runCtx, socketPath, d, logger, shutdown)
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	logger.Info("articlesync daemon ready",
		logging.String(logging.FieldEventType, "daemon_ready"),
		logging.String("socket", socketPath),
		logging.Bool("remote_configured", cfg.RemoteConfigured()),
		logging.Bool("api_token_present", strings.TrimSpace(cfg.Remote.APIToken) != ""),
	)
	if opts.Ready != nil {
		close(opts.Ready)
	}

	<-runCtx.Done()
	logger.Info("articlesync daemon shutting down")
	return nil
}

func newLogger(cfg *config.Config, opts Options) (*slog.Logger, error) {
	effective := *cfg
	if level := strings.TrimSpace(opts.LogLevel); level != "" {
		effective.Logging.Level = level
	}
	logger, err := logging.NewFromConfig(&effective)
	if err != nil {
		return nil, err
	}
	if opts.Development {
		logger = logger.With(logging.Bool("development", true))
	}
	return logger, nil
}

func buildEngine(cfg *config.Config, store *syncqueue.Store, logger *slog.Logger, sender syncengine.Sender) (*syncengine.Engine, error) {
	if !cfg.Sync.Enabled {
		return nil, nil
	}
	if sender == nil {
		client, err := remote.NewClient(cfg)
		if err != nil {
			if errors.Is(err, remote.ErrNotConfigured) {
				return nil, fmt.Errorf("sync enabled but %w", err)
			}
			return nil, err
		}
		sender = client
		logger.Debug("remote sender configured", logging.String("endpoint", client.Endpoint()))
	}
	return syncengine.New(store, sender, logger, syncengine.OptionsFromConfig(cfg)), nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}
