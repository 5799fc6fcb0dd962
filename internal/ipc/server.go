package ipc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"sync"
	"time"

	"articlesync/internal/daemon"
	"articlesync/internal/logging"
	"articlesync/internal/syncengine"
	"articlesync/internal/syncqueue"
)

const stopGracePeriod = 100 * time.Millisecond

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	connMu sync.Mutex
	conns  map[net.Conn]struct{}
}

// NewServer configures the IPC server at the given socket path. shutdown, when
// set, is invoked for Stop requests so the hosting process can exit.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger, shutdown func()) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	logger = logging.NewComponentLogger(logger, "ipc")

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	rpcServer := rpc.NewServer()
	srv := &service{daemon: d, logger: logger, ctx: serverCtx, shutdown: shutdown}
	if err := rpcServer.RegisterName(ServiceName, srv); err != nil {
		cancel()
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	return &Server{
		path:      path,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
		conns:     make(map[net.Conn]struct{}),
	}, nil
}

// Serve starts accepting RPC connections until the server is closed.
func (s *Server) Serve() {
	s.logger.Debug("IPC server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				if s.ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
					return
				}
				logging.WarnWithContext(s.logger, "accept failed", "ipc_accept_failed",
					logging.Error(err),
					logging.String(logging.FieldImpact, "IPC clients may fail to connect"),
					logging.String(logging.FieldErrorHint, "check socket permissions and restart the daemon if needed"),
				)
				continue
			}
			s.track(conn, true)
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				defer s.track(c, false)
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

func (s *Server) track(conn net.Conn, add bool) {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	if add {
		s.conns[conn] = struct{}{}
		return
	}
	delete(s.conns, conn)
}

// Close stops the server, drops open connections, and removes the socket file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.connMu.Lock()
	for conn := range s.conns {
		_ = conn.Close()
	}
	s.connMu.Unlock()
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		logging.WarnWithContext(s.logger, "failed to remove socket", "ipc_socket_cleanup_failed",
			logging.String("socket", s.path),
			logging.Error(err),
			logging.String(logging.FieldImpact, "stale IPC socket makes the CLI think a daemon is running"),
			logging.String(logging.FieldErrorHint, "remove the socket file manually"),
		)
	}
}

type service struct {
	daemon   *daemon.Daemon
	logger   *slog.Logger
	ctx      context.Context
	shutdown func()
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	status := s.daemon.Status(s.ctx)
	resp.Running = status.Running
	resp.PID = status.PID
	resp.StartedAt = status.StartedAt
	resp.SyncEnabled = status.SyncEnabled
	resp.RemoteURL = status.RemoteURL
	resp.QueueDBPath = status.QueueDBPath
	resp.LockPath = status.LockFilePath
	resp.QueueTotal = status.Queue.Total
	resp.QueuePending = status.Queue.Pending
	resp.QueueClaimed = status.Queue.Claimed
	resp.QueueError = status.QueueError
	resp.QueuePerKey = make(map[string]int, len(status.Queue.PerKey))
	for key, count := range status.Queue.PerKey {
		resp.QueuePerKey[key.String()] = count
	}
	if engine := status.Engine; engine != nil {
		resp.EngineRunning = engine.Running
		resp.Cycles = engine.Cycles
		resp.RecoveredClaims = engine.RecoveredClaims
		resp.LastRunAt = engine.LastRunAt
		resp.LastCycleID = engine.LastCycleID
		resp.LastCommitted = engine.LastCommitted
		resp.LastReleased = engine.LastReleased
		resp.LastError = engine.LastError
		resp.PollInterval = engine.PollInterval
	}
	return nil
}

func (s *service) Mark(req MarkRequest, resp *MarkResponse) error {
	key, err := syncqueue.ParseStatusKey(req.Key)
	if err != nil {
		return err
	}
	queued, err := s.daemon.Mark(s.ctx, req.ArticleIDs, key, req.Flag)
	if err != nil {
		return err
	}
	resp.Queued = queued
	return nil
}

func (s *service) Discard(req DiscardRequest, resp *DiscardResponse) error {
	key, err := syncqueue.ParseStatusKey(req.Key)
	if err != nil {
		return err
	}
	removed, err := s.daemon.Discard(s.ctx, req.ArticleID, key)
	if err != nil {
		return err
	}
	resp.Removed = removed
	return nil
}

func (s *service) Pending(req PendingRequest, resp *PendingResponse) error {
	total, err := s.daemon.PendingCount(s.ctx)
	if err != nil {
		return err
	}
	resp.Total = total
	if req.Key == "" {
		return nil
	}
	key, err := syncqueue.ParseStatusKey(req.Key)
	if err != nil {
		return err
	}
	ids, err := s.daemon.PendingArticleIDs(s.ctx, key)
	if err != nil {
		return err
	}
	resp.ArticleIDs = ids
	return nil
}

func (s *service) List(req ListRequest, resp *ListResponse) error {
	states := make([]syncqueue.State, 0, len(req.States))
	for _, raw := range req.States {
		state, err := syncqueue.ParseState(raw)
		if err != nil {
			return err
		}
		states = append(states, state)
	}
	records, err := s.daemon.ListRecords(s.ctx, states)
	if err != nil {
		return err
	}
	resp.Records = make([]Record, 0, len(records))
	for _, record := range records {
		resp.Records = append(resp.Records, FromQueueRecord(record))
	}
	return nil
}

func (s *service) Sync(_ SyncRequest, resp *SyncResponse) error {
	s.logger.Debug("sync cycle requested")
	result, err := s.daemon.SyncNow(s.ctx)
	if err != nil {
		return err
	}
	*resp = FromSyncResult(result)
	return nil
}

func (s *service) ReleaseClaims(_ ReleaseClaimsRequest, resp *ReleaseClaimsResponse) error {
	released, err := s.daemon.ReleaseClaims(s.ctx)
	if err != nil {
		return err
	}
	resp.Released = released
	s.logger.Info("claims released via IPC",
		logging.Int64("released", released),
		logging.String(logging.FieldEventType, "claims_released"),
	)
	return nil
}

func (s *service) DatabaseHealth(_ DatabaseHealthRequest, resp *DatabaseHealthResponse) error {
	health, err := s.daemon.DatabaseHealth(s.ctx)
	resp.Health = health
	return err
}

func (s *service) Stop(_ StopRequest, resp *StopResponse) error {
	s.logger.Info("daemon stop requested via IPC", logging.String(logging.FieldEventType, "daemon_stop"))
	if s.shutdown == nil {
		s.daemon.Stop()
		resp.Stopping = true
		return nil
	}
	// Reply before the process tears the server down.
	time.AfterFunc(stopGracePeriod, s.shutdown)
	resp.Stopping = true
	return nil
}

// FromSyncResult converts an engine cycle result to its wire form.
func FromSyncResult(result syncengine.Result) SyncResponse {
	return SyncResponse{
		CycleID:       result.CycleID,
		Claimed:       result.Claimed,
		Batches:       result.Batches,
		FailedBatches: result.FailedBatches,
		Committed:     result.Committed,
		Released:      result.Released,
		DurationMS:    result.Duration.Milliseconds(),
	}
}
