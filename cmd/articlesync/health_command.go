package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

func newHealthCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check the pending status database",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withQueue(func(api queueAPI) error {
				health, err := api.Health(cmd.Context())
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, health)
				}
				pairs := [][2]string{
					{"Database", health.DBPath},
					{"Exists", yesNo(health.DatabaseExists)},
					{"Readable", yesNo(health.DatabaseReadable)},
					{"Schema version", strconv.Itoa(health.SchemaVersion)},
					{"Table present", yesNo(health.TableExists)},
					{"Integrity check", yesNo(health.IntegrityCheck)},
					{"Records", strconv.Itoa(health.TotalRecords)},
				}
				if len(health.MissingColumns) > 0 {
					pairs = append(pairs, [2]string{"Missing columns", strings.Join(health.MissingColumns, ", ")})
				}
				if health.Error != "" {
					pairs = append(pairs, [2]string{"Error", health.Error})
				}
				fmt.Fprint(cmd.OutOrStdout(), renderKeyValueTable(pairs))
				return nil
			})
		},
	}
}
