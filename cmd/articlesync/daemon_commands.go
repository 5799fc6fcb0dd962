package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"articlesync/internal/daemonctl"
	"articlesync/internal/ipc"
	"articlesync/internal/logging"
	"articlesync/internal/preflight"
	"articlesync/internal/remote"
	"articlesync/internal/syncengine"
	"articlesync/internal/syncqueue"
)

const (
	stopGracePeriod  = 5 * time.Second
	startWaitTimeout = 10 * time.Second
)

func newDaemonCommands(ctx *commandContext) []*cobra.Command {
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the articlesync daemon in the background",
		RunE: func(cmd *cobra.Command, args []string) error {
			socket, err := ctx.socketPath()
			if err != nil {
				return err
			}
			exe, err := daemonExecutable()
			if err != nil {
				return err
			}
			result, err := daemonctl.EnsureStarted(socket, exe, ctx.launchOptions(socket), startWaitTimeout)
			if err != nil {
				return err
			}
			printStartResult(cmd.OutOrStdout(), result)
			return nil
		},
	}

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the running articlesync daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			socket, err := ctx.socketPath()
			if err != nil {
				return err
			}
			cfg, _ := ctx.ensureConfig()
			result, err := daemonctl.StopAndTerminate(socket, cfg, stopGracePeriod)
			if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
				fmt.Fprintln(stdout, "Daemon is not running")
				return nil
			}
			if err != nil {
				return err
			}
			printStopResult(stdout, result)
			return nil
		},
	}

	restartCmd := &cobra.Command{
		Use:   "restart",
		Short: "Restart the articlesync daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			socket, err := ctx.socketPath()
			if err != nil {
				return err
			}
			exe, err := daemonExecutable()
			if err != nil {
				return err
			}
			cfg, _ := ctx.ensureConfig()
			result, err := daemonctl.Restart(socket, cfg, exe, ctx.launchOptions(socket), stopGracePeriod, startWaitTimeout)
			if err != nil {
				return err
			}
			if result.WasRunning {
				printStopResult(stdout, result.Stop)
			}
			printStartResult(stdout, result.Start)
			return nil
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, sync engine, and queue status",
		RunE: func(cmd *cobra.Command, args []string) error {
			var daemonStatus *ipc.StatusResponse
			err := ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Status()
				if err != nil {
					return err
				}
				daemonStatus = resp
				return nil
			})
			if err != nil && !errors.Is(err, errDaemonNotRunning) {
				return err
			}

			var stats syncqueue.Stats
			if daemonStatus != nil {
				stats = statsFromStatus(daemonStatus)
			} else {
				err = ctx.withStore(func(store *syncqueue.Store) error {
					var statsErr error
					stats, statsErr = store.Stats(cmd.Context())
					return statsErr
				})
			}
			if err != nil {
				return err
			}

			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			view := statusView{
				Daemon: daemonStatus,
				Queue:  stats,
				Checks: preflight.RunAll(cmd.Context(), cfg),
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, view)
			}
			renderStatus(cmd.OutOrStdout(), view, shouldColorize(cmd.OutOrStdout()))
			return nil
		},
	}

	syncCmd := &cobra.Command{
		Use:   "sync",
		Short: "Run one sync cycle now",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result ipc.SyncResponse
			err := ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Sync()
				if err != nil {
					return err
				}
				result = *resp
				return nil
			})
			if errors.Is(err, errDaemonNotRunning) {
				result, err = runDirectSync(cmd, ctx)
			}
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, result)
			}
			printSyncResult(cmd.OutOrStdout(), result)
			return nil
		},
	}

	releaseCmd := &cobra.Command{
		Use:   "release-claims",
		Short: "Return claimed records to pending so the next cycle re-sends them",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withQueue(func(api queueAPI) error {
				released, err := api.ReleaseClaims(cmd.Context())
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, ipc.ReleaseClaimsResponse{Released: released})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Released %d claimed records\n", released)
				return nil
			})
		},
	}

	return []*cobra.Command{startCmd, stopCmd, restartCmd, statusCmd, syncCmd, releaseCmd}
}

type statusView struct {
	Daemon *ipc.StatusResponse `json:"daemon,omitempty"`
	Queue  syncqueue.Stats     `json:"queue"`
	Checks []preflight.Result  `json:"checks"`
}

func renderStatus(out io.Writer, view statusView, colorize bool) {
	status, stats := view.Daemon, view.Queue

	printSectionHeader(out, "System Status", colorize)
	if status == nil || !status.Running {
		fmt.Fprintln(out, renderStatusLine("Daemon", statusWarn, "not running", colorize))
	} else {
		detail := "running (pid " + strconv.Itoa(status.PID) + ")"
		if !status.StartedAt.IsZero() {
			detail += " since " + status.StartedAt.Local().Format(time.DateTime)
		}
		fmt.Fprintln(out, renderStatusLine("Daemon", statusOK, detail, colorize))
		if status.SyncEnabled {
			fmt.Fprintln(out, renderStatusLine("Sync engine", statusOK, "enabled, polling every "+status.PollInterval, colorize))
		} else {
			fmt.Fprintln(out, renderStatusLine("Sync engine", statusWarn, "disabled", colorize))
		}
		if status.LastCycleID != "" {
			detail := fmt.Sprintf("%s committed %d, released %d", shortID(status.LastCycleID), status.LastCommitted, status.LastReleased)
			kind := statusOK
			if status.LastError != "" {
				kind = statusError
				detail += ": " + status.LastError
			} else if status.LastReleased > 0 {
				kind = statusWarn
			}
			fmt.Fprintln(out, renderStatusLine("Last cycle", kind, detail, colorize))
		}
		if status.QueueError != "" {
			fmt.Fprintln(out, renderStatusLine("Queue", statusError, status.QueueError, colorize))
		}
	}
	for _, check := range view.Checks {
		kind := statusOK
		if !check.Passed {
			kind = statusError
		}
		fmt.Fprintln(out, renderStatusLine(check.Name, kind, check.Detail, colorize))
	}
	fmt.Fprintln(out)

	printSectionHeader(out, "Queue Status", colorize)
	if stats.Total == 0 {
		fmt.Fprintln(out, "Queue is empty")
		return
	}
	fmt.Fprint(out, renderTable([]string{"Status", "Count"}, buildQueueStatusRows(stats), []columnAlignment{alignLeft, alignRight}))
}

func buildQueueStatusRows(stats syncqueue.Stats) [][]string {
	rows := [][]string{
		{"Pending", strconv.Itoa(stats.Pending)},
		{"Claimed", strconv.Itoa(stats.Claimed)},
	}
	keys := make([]string, 0, len(stats.PerKey))
	for key := range stats.PerKey {
		keys = append(keys, key.String())
	}
	sort.Strings(keys)
	for _, key := range keys {
		rows = append(rows, []string{"Key " + key, strconv.Itoa(stats.PerKey[syncqueue.StatusKey(key)])})
	}
	rows = append(rows, []string{"Total", strconv.Itoa(stats.Total)})
	return rows
}

func runDirectSync(cmd *cobra.Command, ctx *commandContext) (ipc.SyncResponse, error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return ipc.SyncResponse{}, err
	}
	client, err := remote.NewClient(cfg)
	if err != nil {
		return ipc.SyncResponse{}, err
	}
	logger, err := logging.New(logging.Options{
		Level:            ctx.logLevel(cfg),
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	})
	if err != nil {
		return ipc.SyncResponse{}, err
	}

	var response ipc.SyncResponse
	err = ctx.withStore(func(store *syncqueue.Store) error {
		engine := syncengine.New(store, client, logger, syncengine.OptionsFromConfig(cfg))
		result, err := engine.RunOnce(cmd.Context())
		if err != nil {
			return err
		}
		response = ipc.FromSyncResult(result)
		return nil
	})
	return response, err
}

func printSyncResult(out io.Writer, result ipc.SyncResponse) {
	if result.Claimed == 0 {
		fmt.Fprintln(out, "Nothing to sync")
		return
	}
	fmt.Fprintf(out, "Cycle %s: %d records in %d batches (%d failed) in %dms\n",
		shortID(result.CycleID), result.Claimed, result.Batches, result.FailedBatches, result.DurationMS)
	fmt.Fprintf(out, "Committed %d articles\n", len(result.Committed))
	if len(result.Released) > 0 {
		fmt.Fprintf(out, "Released %d articles for retry: %s\n", len(result.Released), strings.Join(result.Released, ", "))
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func printStartResult(out io.Writer, result daemonctl.StartResult) {
	switch result.State {
	case daemonctl.StartStateAlreadyRunning:
		fmt.Fprintf(out, "Daemon already running (pid %d)\n", result.PID)
	default:
		fmt.Fprintf(out, "Daemon started (pid %d)\n", result.PID)
	}
}

func printStopResult(out io.Writer, result daemonctl.StopResult) {
	if result.ForcedKill {
		fmt.Fprintf(out, "Daemon did not exit in time; killed pid %d\n", result.PID)
		return
	}
	fmt.Fprintln(out, "Daemon stopped")
}

func daemonExecutable() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("resolve executable: %w", err)
	}
	return exe, nil
}
