package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"rsextract/internal/dataset"
)

func newTakesCommand(ctx *commandContext) *cobra.Command {
	var action string

	cmd := &cobra.Command{
		Use:   "takes",
		Short: "List recorded takes and the next take number per action",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			actions, err := dataset.Discover(cfg.Paths.DatasetDir, cfg.Cameras.Serial1)
			if err != nil {
				return err
			}
			action = strings.TrimSpace(action)

			rows := make([][]string, 0, len(actions))
			for _, a := range actions {
				if action != "" && a.Name != action {
					continue
				}
				next, err := dataset.NextTakeNumber(a.Dir, cfg.Cameras.Serial1)
				if err != nil {
					return err
				}
				rows = append(rows, []string{a.Name, strconv.Itoa(len(a.Takes)), formatTakeList(a.Takes), fmt.Sprintf("%02d", next)})
			}
			out := cmd.OutOrStdout()
			if len(rows) == 0 {
				fmt.Fprintln(out, "No actions found.")
				return nil
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Action", "Count", "Takes", "Next"},
				rows,
				[]columnAlignment{alignLeft, alignRight, alignLeft, alignRight},
			))
			return nil
		},
	}

	cmd.Flags().StringVarP(&action, "action", "a", "", "Only list this action")
	return cmd
}

func formatTakeList(takes []int) string {
	if len(takes) == 0 {
		return "-"
	}
	parts := make([]string, len(takes))
	for i, n := range takes {
		parts[i] = fmt.Sprintf("%02d", n)
	}
	return strings.Join(parts, " ")
}
