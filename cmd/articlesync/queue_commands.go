package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"articlesync/internal/ipc"
	"articlesync/internal/syncqueue"
)

func newQueueCommands(ctx *commandContext) []*cobra.Command {
	return []*cobra.Command{
		newMarkCommand(ctx),
		newDiscardCommand(ctx),
		newPendingCommand(ctx),
		newListCommand(ctx),
	}
}

func newMarkCommand(ctx *commandContext) *cobra.Command {
	var read, starred, unset bool

	cmd := &cobra.Command{
		Use:   "mark <article-id>...",
		Short: "Queue read or starred changes for one or more articles",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var keys []syncqueue.StatusKey
			if read {
				keys = append(keys, syncqueue.StatusRead)
			}
			if starred {
				keys = append(keys, syncqueue.StatusStarred)
			}
			if len(keys) == 0 {
				return errors.New("choose at least one of --read or --starred")
			}
			flag := !unset

			return ctx.withQueue(func(api queueAPI) error {
				queued := 0
				for _, key := range keys {
					n, err := api.Mark(cmd.Context(), args, key, flag)
					if err != nil {
						return fmt.Errorf("mark %s: %w", key, err)
					}
					queued += n
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, ipc.MarkResponse{Queued: queued})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Queued %d status changes\n", queued)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&read, "read", false, "Queue the read status")
	cmd.Flags().BoolVar(&starred, "starred", false, "Queue the starred status")
	cmd.Flags().BoolVar(&unset, "unset", false, "Queue the status as cleared (unread/unstarred)")
	return cmd
}

func newDiscardCommand(ctx *commandContext) *cobra.Command {
	var keyFlag string

	cmd := &cobra.Command{
		Use:   "discard <article-id>",
		Short: "Drop a queued status change that no longer needs syncing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := syncqueue.ParseStatusKey(keyFlag)
			if err != nil {
				return fmt.Errorf("%w (expected %s)", err, statusKeyChoices())
			}
			return ctx.withQueue(func(api queueAPI) error {
				removed, err := api.Discard(cmd.Context(), args[0], key)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, ipc.DiscardResponse{Removed: removed})
				}
				if removed {
					fmt.Fprintf(cmd.OutOrStdout(), "Discarded %s status for %s\n", key, args[0])
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "No queued %s status for %s\n", key, args[0])
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&keyFlag, "key", "", "Status key to discard ("+statusKeyChoices()+")")
	_ = cmd.MarkFlagRequired("key")
	return cmd
}

func newPendingCommand(ctx *commandContext) *cobra.Command {
	var keyFlag string

	cmd := &cobra.Command{
		Use:   "pending",
		Short: "Show the number of queued records or the articles pending for a key",
		RunE: func(cmd *cobra.Command, args []string) error {
			var key syncqueue.StatusKey
			if strings.TrimSpace(keyFlag) != "" {
				parsed, err := syncqueue.ParseStatusKey(keyFlag)
				if err != nil {
					return fmt.Errorf("%w (expected %s)", err, statusKeyChoices())
				}
				key = parsed
			}
			return ctx.withQueue(func(api queueAPI) error {
				ids, total, err := api.Pending(cmd.Context(), key)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, ipc.PendingResponse{ArticleIDs: ids, Total: total})
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%d records queued\n", total)
				if key == "" {
					return nil
				}
				if len(ids) == 0 {
					fmt.Fprintf(out, "No articles pending for %s\n", key)
					return nil
				}
				fmt.Fprintf(out, "Pending %s:\n", key)
				for _, id := range ids {
					fmt.Fprintf(out, "  %s\n", id)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&keyFlag, "key", "", "List unclaimed articles for this status key ("+statusKeyChoices()+")")
	return cmd
}

func newListCommand(ctx *commandContext) *cobra.Command {
	var stateFlags []string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queued status records",
		RunE: func(cmd *cobra.Command, args []string) error {
			states := make([]syncqueue.State, 0, len(stateFlags))
			for _, raw := range stateFlags {
				state, err := syncqueue.ParseState(raw)
				if err != nil {
					return err
				}
				states = append(states, state)
			}
			return ctx.withQueue(func(api queueAPI) error {
				records, err := api.List(cmd.Context(), states)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, ipc.ListResponse{Records: records})
				}
				if len(records) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable(
					[]string{"Article", "Key", "Flag", "State", "Updated"},
					buildRecordRows(records),
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVar(&stateFlags, "state", nil, "Filter by state (pending, claimed)")
	return cmd
}

func buildRecordRows(records []ipc.Record) [][]string {
	rows := make([][]string, 0, len(records))
	for _, record := range records {
		updated := ""
		if !record.UpdatedAt.IsZero() {
			updated = record.UpdatedAt.Local().Format(time.DateTime)
		}
		rows = append(rows, []string{
			record.ArticleID,
			record.Key,
			strconv.FormatBool(record.Flag),
			record.State,
			updated,
		})
	}
	return rows
}

// statusKeyChoices lists the accepted --key values for help text.
func statusKeyChoices() string {
	keys := syncqueue.AllStatusKeys()
	names := make([]string, 0, len(keys))
	for _, key := range keys {
		names = append(names, key.String())
	}
	return strings.Join(names, " or ")
}
