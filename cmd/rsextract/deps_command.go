package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"rsextract/internal/preflight"
)

func newDepsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "deps",
		Short: "Check external tools and directories a run needs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			failed := false

			fmt.Fprintln(out, "Dependencies")
			for _, status := range preflight.CheckSystemDeps(cfg) {
				kind, message := statusOK, status.Command
				if !status.Available {
					message = status.Detail
					kind = statusError
					if status.Optional {
						kind = statusWarn
					} else {
						failed = true
					}
				}
				fmt.Fprintln(out, renderStatusLine(status.Name, kind, message, colorize))
			}

			if err := cfg.EnsureDirectories(); err != nil {
				return err
			}
			fmt.Fprintln(out, "Preflight")
			for _, result := range preflight.RunAll(cfg) {
				kind := statusOK
				if !result.Passed {
					kind = statusError
					failed = true
				}
				fmt.Fprintln(out, renderStatusLine(result.Name, kind, result.Detail, colorize))
			}
			if failed {
				return errReported
			}
			return nil
		},
	}
}
