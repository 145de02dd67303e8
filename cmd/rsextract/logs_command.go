package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"rsextract/internal/logging"
	"rsextract/internal/logs"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var (
		lines  int
		follow bool
		filter logs.Filter
	)

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show records from the shared log file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path := filepath.Join(cfg.Paths.LogDir, logging.LogFileName)
			out := cmd.OutOrStdout()

			result, err := logs.Tail(cmd.Context(), path, logs.TailOptions{Filter: filter, Offset: -1, Limit: lines})
			if err != nil {
				return err
			}
			for _, e := range result.Entries {
				fmt.Fprintln(out, e.Format())
			}
			if !follow || result.Done {
				return nil
			}

			offset := result.Offset
			for {
				result, err := logs.Tail(cmd.Context(), path, logs.TailOptions{Filter: filter, Offset: offset, Follow: true, Wait: time.Minute})
				if err != nil {
					if errors.Is(err, cmd.Context().Err()) {
						return nil
					}
					return err
				}
				offset = result.Offset
				for _, e := range result.Entries {
					fmt.Fprintln(out, e.Format())
				}
				if result.Done {
					return nil
				}
			}
		},
	}

	cmd.Flags().IntVarP(&lines, "lines", "n", 200, "Number of trailing matching records to show")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new records until the selected take or run finishes")
	cmd.Flags().StringVar(&filter.RunID, "run", "", "Only records of this run id")
	cmd.Flags().StringVarP(&filter.Action, "action", "a", "", "Only records of this action")
	cmd.Flags().IntVarP(&filter.Take, "take", "t", 0, "Only records of this take number")
	cmd.Flags().StringVar(&filter.MinLevel, "level", "", "Minimum level (debug, info, warn, error)")
	return cmd
}
