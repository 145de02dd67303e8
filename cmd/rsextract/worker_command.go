package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"rsextract/internal/logging"
	"rsextract/internal/take"
)

func newWorkerCommand(ctx *commandContext) *cobra.Command {
	var action string
	var takeNumber int
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Process a single take and print its status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.logger(cmd)
			if err != nil {
				return err
			}

			runCtx := cmd.Context()
			if id := strings.TrimSpace(os.Getenv(envRunID)); id != "" {
				runCtx = logging.WithRunID(runCtx, id)
			}

			var status take.Status
			processor, err := take.NewProcessor(cfg, logger)
			if err != nil {
				status = take.Status{Kind: take.StatusError, Action: action, Take: takeNumber, Err: err}
			} else {
				status = processor.Process(runCtx, action, takeNumber)
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				line, err := json.Marshal(status.Report())
				if err != nil {
					return fmt.Errorf("encode status: %w", err)
				}
				fmt.Fprintln(out, string(line))
			} else {
				fmt.Fprintln(out, status.String())
			}
			if status.Kind == take.StatusError {
				return errReported
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&action, "action", "a", "", "Action directory name")
	cmd.Flags().IntVarP(&takeNumber, "take", "t", 0, "Take number")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the status as a JSON line")
	_ = cmd.MarkFlagRequired("action")
	_ = cmd.MarkFlagRequired("take")
	return cmd
}
